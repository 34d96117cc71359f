package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inamasaru/leadsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadsync",
	Short: "Lead sync and KPI notification job",
	Long:  "Syncs lead records between Notion and LINE: daily KPI reports, single-lead registration with dedup, optional Stripe checkout links.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Local development convenience; the scheduler injects real env.
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return err
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
