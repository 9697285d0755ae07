// Package supervisor scores finished debates for risk and maps the score
// to an approval decision.
package supervisor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/parleylabs/parley/internal/model"
	"github.com/parleylabs/parley/internal/provider"
	"github.com/parleylabs/parley/internal/resilience"
)

const neutralScore = 50

const riskPromptTemplate = `Analyze the following debate result and provide a risk score between 0 and 100.
100 = Extremely High Risk (Critical system changes, lack of consensus).
0 = Extremely Low Risk (Documentation changes, minor refactors, high consensus).

Debate Topic: %s
Summary: %s

Consider:
1. Scope of changes.
2. Potential for regressions.
3. Consensus among participants.
4. Complexity of the proposed solution.

Respond with ONLY the numerical score.`

const nudgeSystemPrompt = `You are a supervisor for an AI agent.
The agent has been inactive.
Your goal is to provide a helpful, encouraging nudge or a specific instruction based on the recent context to get the agent moving again.
Keep the message short, direct, and professional.
Do not mention that you are a supervisor. Just speak as if you are the user giving a command.`

// Supervisor evaluates debates with a fixed reviewer model.
type Supervisor struct {
	registry     *provider.Registry
	providerName string
	model        string
	apiKey       string
	retry        resilience.RetryConfig
}

// New creates a Supervisor that scores with the given provider/model.
func New(registry *provider.Registry, providerName, modelID, apiKey string) *Supervisor {
	return &Supervisor{
		registry:     registry,
		providerName: providerName,
		model:        modelID,
		apiKey:       apiKey,
		retry:        resilience.DefaultRetryConfig(),
	}
}

// CalculateRiskScore asks the reviewer model for a 0-100 risk estimate
// of the debate's outcome. It never returns an error: an unreachable
// provider or an unparsable answer yields the neutral score of 50, and
// out-of-range answers are clamped. Availability wins over strictness
// here since a score always feeds an approval decision.
func (s *Supervisor) CalculateRiskScore(ctx context.Context, result *model.DebateResult) int {
	adapter, ok := s.registry.Get(s.providerName)
	if !ok {
		zap.L().Warn("risk scorer provider not registered", zap.String("provider", s.providerName))
		return neutralScore
	}

	retryCfg := s.retry
	retryCfg.Operation = "risk score"
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*provider.Response, error) {
		return adapter.Complete(ctx, provider.Request{
			Messages: []provider.ChatMessage{{
				Role:    "user",
				Content: fmt.Sprintf(riskPromptTemplate, result.Topic, result.Summary),
			}},
			APIKey: s.apiKey,
			Model:  s.model,
		})
	})
	if err != nil {
		zap.L().Warn("risk scoring call failed", zap.Error(err))
		return neutralScore
	}

	score, err := strconv.Atoi(strings.TrimSpace(resp.Content))
	if err != nil {
		zap.L().Warn("risk score not numeric", zap.String("response", resp.Content))
		return neutralScore
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// DetermineApprovalStatus maps a risk score onto the approval decision.
// Boundaries are exact: 20 and 50 are pending, 80 is flagged.
func DetermineApprovalStatus(score int) model.ApprovalStatus {
	switch {
	case score < 20:
		return model.ApprovalApproved
	case score > 80:
		return model.ApprovalRejected
	case score > 50:
		return model.ApprovalFlagged
	default:
		return model.ApprovalPending
	}
}

// DecideNextAction produces a short nudge for a stalled agent based on
// recent context. Falls back to a fixed instruction on any failure.
func (s *Supervisor) DecideNextAction(ctx context.Context, recentContext string) string {
	const fallback = "Please continue."

	adapter, ok := s.registry.Get(s.providerName)
	if !ok {
		return fallback
	}

	resp, err := adapter.Complete(ctx, provider.Request{
		Messages: []provider.ChatMessage{{
			Role:    "user",
			Content: recentContext,
		}},
		APIKey:       s.apiKey,
		Model:        s.model,
		SystemPrompt: nudgeSystemPrompt,
	})
	if err != nil || resp.Content == "" {
		return fallback
	}
	return resp.Content
}
