package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/model"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage workspace routing policies",
}

var (
	policySetTask      string
	policySetProvider  string
	policySetModel     string
	policySetEfficient bool
)

var policySetCmd = &cobra.Command{
	Use:   "set <workspace-id>",
	Short: "Create or replace the routing policy for a task type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		policy := model.RoutingPolicy{
			ID:                 uuid.New().String(),
			WorkspaceID:        args[0],
			TaskType:           model.ParseTaskType(policySetTask),
			PreferredProvider:  policySetProvider,
			PreferredModel:     policySetModel,
			CostEfficiencyMode: policySetEfficient,
			UpdatedAt:          time.Now().UTC(),
		}
		if err := env.Store.UpsertRoutingPolicy(ctx, policy); err != nil {
			return eris.Wrap(err, "save policy")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(policy)
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list <workspace-id>",
	Short: "List a workspace's routing policies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		policies, err := env.Store.ListRoutingPolicies(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "list policies")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(policies)
	},
}

func init() {
	policySetCmd.Flags().StringVar(&policySetTask, "task", "default", "task type the policy applies to")
	policySetCmd.Flags().StringVar(&policySetProvider, "provider", "", "preferred provider id")
	policySetCmd.Flags().StringVar(&policySetModel, "model", "", "preferred model id")
	policySetCmd.Flags().BoolVar(&policySetEfficient, "cost-efficiency", false, "always use the task's efficient fallback")

	policyCmd.AddCommand(policySetCmd, policyListCmd)
	rootCmd.AddCommand(policyCmd)
}
