package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/grocerybot/assistant/internal/domain"
)

var matchCmd = &cobra.Command{
	Use:   "match <name>",
	Short: "Show how a list name resolves against the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			cfg.Session.DebugMatching = true
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		name := strings.Join(args, " ")
		res, err := a.catalog.Match(cmd.Context(), name)
		if err != nil {
			return err
		}
		return printResolution(cmd.OutOrStdout(), name, res)
	},
}

func printResolution(w io.Writer, name string, res domain.Resolution) error {
	fmt.Fprintf(w, "%q: %s\n", name, res.Kind)
	if len(res.Candidates) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tDESCRIPTION\tPRIORITY\tKIND\tSCORE")
	for _, c := range res.Candidates {
		mark := ""
		if res.Selected != nil && res.Selected.Item.ID == c.Item.ID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\n",
			mark, c.Item.ID, c.Item.CombinedText(), c.Item.NormalizedPriority(), c.Kind, c.Score)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().Bool("debug", false, "Log every scored candidate")
}
