package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	metricsWorkspace string
	metricsLookback  int
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print a metrics snapshot of recent debates and spend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Collector.Collect(ctx, metricsWorkspace, metricsLookback)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	metricsCmd.Flags().StringVar(&metricsWorkspace, "workspace", "", "restrict to one workspace (spend metrics require this)")
	metricsCmd.Flags().IntVar(&metricsLookback, "lookback-hours", 24, "window size in hours")
	rootCmd.AddCommand(metricsCmd)
}
