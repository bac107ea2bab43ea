package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grocerybot/assistant/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "grocerybot",
	Short:         "Grocery shopping assistant",
	Long:          `grocerybot walks a shopping list through a browser driver, matching each item against a local catalog of known products and recording what was bought.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./config.yaml, ./config/config.yaml, /etc/grocerybot/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().Bool("read-only", false, "Do not write to the catalog or purchase ledger")
}

// loadConfig loads the configuration and applies the persistent flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if readOnly, _ := cmd.Flags().GetBool("read-only"); readOnly {
		cfg.Catalog.ReadOnly = true
	}
	return cfg, nil
}
