package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Send the daily KPI report only",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline()
		if err != nil {
			return err
		}

		if err := p.RunDailyKPI(cmd.Context()); err != nil {
			return err
		}
		zap.L().Info("KPI report complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kpiCmd)
}
