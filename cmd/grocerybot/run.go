package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grocerybot/assistant/internal/usecase"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one shopping session",
	Long: `Loads the shopping list, syncs it with the catalog and walks every pending item
through the browser driver. The list file is written back once when the session
ends, including on quit, error or interrupt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if transport, _ := cmd.Flags().GetString("driver"); transport != "" {
			cfg.Driver.Transport = transport
		}
		if list, _ := cmd.Flags().GetString("list"); list != "" {
			cfg.List.Path = list
		}
		withHTTP, _ := cmd.Flags().GetBool("http")

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		channel, err := a.newDriverChannel()
		if err != nil {
			return err
		}

		sessionCfg := usecase.SessionConfig{
			MachineTimeout:     cfg.Driver.MachineTimeout,
			ReadyTimeout:       cfg.Driver.ReadyTimeout,
			PostListActions:    cfg.Session.PostListActions,
			PromptMissingPrice: cfg.Session.PromptMissingPrice,
			CleanSearchTerms:   cfg.Session.CleanSearchTerms,
			Logger:             a.log,
		}
		if a.metrics != nil {
			sessionCfg.Observer = a.metrics
		}
		session := usecase.NewSessionService(
			channel,
			a.newListSource(),
			a.catalog,
			a.matcher,
			sessionCfg,
		)

		defer func() {
			if r := recover(); r != nil {
				a.log.Error().Interface("panic", r).Msg("session panicked")
				panic(r)
			}
		}()
		// Runs while a panic unwinds too, before the guard above.
		defer session.FlushOnExit(context.Background())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if withHTTP {
			httpCtx, stopHTTP := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- a.serveHTTP(httpCtx, a.newHTTPServer()) }()
			defer func() {
				stopHTTP()
				if err := <-done; err != nil {
					a.log.Error().Err(err).Msg("http server failed")
				}
			}()
		}

		summary, err := session.Run(ctx)
		printSummary(cmd.OutOrStdout(), summary)
		return err
	},
}

func printSummary(w io.Writer, s usecase.RunSummary) {
	if s.Pending == 0 && !s.Quit {
		fmt.Fprintln(w, "Nothing to buy.")
		return
	}
	fmt.Fprintf(w, "Purchased %d, skipped %d, unresolved %d of %d items", s.Purchased, s.Skipped, s.Unresolved, s.Pending)
	if s.Quit {
		fmt.Fprintf(w, " (quit with %d remaining)", s.Remaining)
	}
	fmt.Fprintln(w)
	for _, name := range s.Dropped {
		fmt.Fprintf(w, "  dropped: %s\n", name)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("driver", "", "Driver transport: file, redis or memory (overrides driver.transport)")
	runCmd.Flags().String("list", "", "Shopping list file (overrides list.path)")
	runCmd.Flags().Bool("http", false, "Also serve the lookup API while the session runs")
}
