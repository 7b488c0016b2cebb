package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "events-cli",
	Short: "AI safety event intake pipeline",
	Long:  "Gathers candidate events from forums, ticketing platforms, and curated lists, filters and LLM-evaluates them, and promotes confirmed events to the public listing.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
