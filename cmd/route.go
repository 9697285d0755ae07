package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/model"
	"github.com/parleylabs/parley/internal/routing"
)

var (
	routeWorkspace string
	routeTask      string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Show which provider/model a task would be routed to",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		decision, err := env.Engine.Resolve(ctx, routeWorkspace, model.ParseTaskType(routeTask))
		if err != nil {
			if routing.IsBudgetExceeded(err) {
				return eris.Wrap(err, "routing blocked")
			}
			return eris.Wrap(err, "resolve routing")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decision)
	},
}

func init() {
	routeCmd.Flags().StringVar(&routeWorkspace, "workspace", "", "workspace id (required)")
	routeCmd.Flags().StringVar(&routeTask, "task", "default", "task type (code_review, fast_chat, deep_reasoning, default)")
	_ = routeCmd.MarkFlagRequired("workspace")
	rootCmd.AddCommand(routeCmd)
}
