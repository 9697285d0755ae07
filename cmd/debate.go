package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parleylabs/parley/internal/debate"
	"github.com/parleylabs/parley/internal/model"
	"github.com/parleylabs/parley/internal/supervisor"
)

var (
	debateWorkspace string
	debateTopic     string
	debateRounds    int
	debatePersonas  []string
	debateMaxTokens int
	debateNoPersist bool
)

var debateCmd = &cobra.Command{
	Use:   "debate",
	Short: "Run a multi-model debate on a topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "debate")
		if err != nil {
			return err
		}
		defer env.Close()

		participants, err := resolveParticipants(env)
		if err != nil {
			return err
		}

		maxTokens := debateMaxTokens
		if maxTokens == 0 {
			maxTokens = cfg.Debate.MaxTokens
		}
		rounds := debateRounds
		if rounds == 0 {
			rounds = cfg.Debate.DefaultRounds
		}

		result, err := env.Orchestrator.Run(ctx, debate.Request{
			WorkspaceID:  debateWorkspace,
			Topic:        debateTopic,
			Rounds:       rounds,
			Participants: participants,
			MaxTokens:    maxTokens,
		})
		if err != nil {
			return eris.Wrap(err, "run debate")
		}

		result.RiskScore = env.Supervisor.CalculateRiskScore(ctx, result)
		result.ApprovalStatus = supervisor.DetermineApprovalStatus(result.RiskScore)

		if !debateNoPersist {
			if err := env.Store.SaveDebate(ctx, result); err != nil {
				return eris.Wrap(err, "save debate")
			}
		}

		zap.L().Info("debate complete",
			zap.String("debate_id", result.ID),
			zap.Int("rounds", len(result.Rounds)),
			zap.Int("risk_score", result.RiskScore),
			zap.String("approval_status", string(result.ApprovalStatus)),
			zap.Int("total_tokens", result.TotalUsage.TotalTokens),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// resolveParticipants maps the requested persona ids onto participants
// carrying the configured vendor credentials.
func resolveParticipants(env *appEnv) ([]model.Participant, error) {
	ids := debatePersonas
	if len(ids) == 0 {
		ids = []string{"proponent", "critic"}
	}

	participants := make([]model.Participant, 0, len(ids))
	for _, id := range ids {
		persona, ok := env.Personas.Get(id)
		if !ok {
			return nil, eris.Errorf("unknown persona %q", id)
		}
		key := cfg.Providers.APIKey(persona.Provider)
		if key == "" {
			return nil, eris.Errorf("no API key configured for provider %q (persona %q)", persona.Provider, id)
		}
		participants = append(participants, persona.Participant(key))
	}
	return participants, nil
}

func init() {
	debateCmd.Flags().StringVar(&debateWorkspace, "workspace", "", "workspace to bill usage against")
	debateCmd.Flags().StringVar(&debateTopic, "topic", "", "debate topic (required)")
	debateCmd.Flags().IntVar(&debateRounds, "rounds", 0, "number of rounds (default from config)")
	debateCmd.Flags().StringSliceVar(&debatePersonas, "personas", nil, "persona ids in speaking order (default proponent,critic)")
	debateCmd.Flags().IntVar(&debateMaxTokens, "max-tokens", 0, "per-turn completion cap (default from config)")
	debateCmd.Flags().BoolVar(&debateNoPersist, "no-persist", false, "do not store the result")
	_ = debateCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(debateCmd)
}
