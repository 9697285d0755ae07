package main

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models known to each configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		providers := initProviders()

		var mu sync.Mutex
		byProvider := make(map[string][]string)

		g, gctx := errgroup.WithContext(ctx)
		for _, name := range providers.Names() {
			adapter, _ := providers.Get(name)
			g.Go(func() error {
				models, err := adapter.ListModels(gctx, cfg.Providers.APIKey(adapter.Name()))
				if err != nil {
					// A vendor being down should not hide the others.
					zap.L().Warn("list models failed",
						zap.String("provider", adapter.Name()),
						zap.Error(err),
					)
					return nil
				}
				mu.Lock()
				byProvider[adapter.Name()] = models
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(byProvider)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
