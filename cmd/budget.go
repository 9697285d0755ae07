package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/model"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Inspect and manage workspace budgets",
}

var budgetShowCmd = &cobra.Command{
	Use:   "show <workspace-id>",
	Short: "Show a workspace's monthly budget status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		status, err := env.Ledger.Status(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "budget status")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

var (
	budgetSetName   string
	budgetSetAmount float64
)

var budgetSetCmd = &cobra.Command{
	Use:   "set <workspace-id>",
	Short: "Create or update a workspace and its monthly budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if budgetSetAmount < 0 {
			return eris.New("budget must be >= 0")
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		ws := model.Workspace{
			ID:            args[0],
			Name:          budgetSetName,
			MonthlyBudget: budgetSetAmount,
		}
		if err := env.Store.UpsertWorkspace(ctx, ws); err != nil {
			return eris.Wrap(err, "save workspace")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ws)
	},
}

func init() {
	budgetSetCmd.Flags().StringVar(&budgetSetName, "name", "", "workspace display name")
	budgetSetCmd.Flags().Float64Var(&budgetSetAmount, "amount", 0, "monthly budget in USD (required)")
	_ = budgetSetCmd.MarkFlagRequired("amount")

	budgetCmd.AddCommand(budgetShowCmd, budgetSetCmd)
	rootCmd.AddCommand(budgetCmd)
}
