// Package ledger tracks cumulative spend per workspace per billing period.
// The ledger is append-only: spend becomes visible by inserting usage
// records and aggregating at read time, so concurrent writers never race a
// read-modify-write counter.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parleylabs/parley/internal/cost"
	"github.com/parleylabs/parley/internal/model"
	"github.com/parleylabs/parley/internal/store"
)

// BudgetStatus is the read projection exposed for display.
type BudgetStatus struct {
	WorkspaceID   string  `json:"workspace_id"`
	MonthlyBudget float64 `json:"monthly_budget"`
	Spent         float64 `json:"spent"`
	Remaining     float64 `json:"remaining"`
}

// Ledger owns the usage log and the remaining-budget computation.
type Ledger struct {
	store     store.Store
	estimator *cost.Estimator
}

// New creates a Ledger over the given store and estimator.
func New(st store.Store, est *cost.Estimator) *Ledger {
	return &Ledger{store: st, estimator: est}
}

// RecordUsage estimates the cost of one completion call and durably
// appends it to the usage log. This is the single point where spend
// becomes visible to the routing engine. Returns the estimated cost.
func (l *Ledger) RecordUsage(ctx context.Context, workspaceID, provider, modelID string, promptTokens, completionTokens int) (float64, error) {
	estimated := l.estimator.Estimate(provider, modelID, promptTokens, completionTokens)

	rec := model.UsageRecord{
		ID:               uuid.New().String(),
		WorkspaceID:      workspaceID,
		Provider:         provider,
		Model:            modelID,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		EstimatedCostUSD: estimated,
		CreatedAt:        time.Now().UTC(),
	}
	if err := l.store.AppendUsage(ctx, rec); err != nil {
		return 0, eris.Wrap(err, "ledger: record usage")
	}

	zap.L().Info("cost attribution",
		zap.String("workspace_id", workspaceID),
		zap.String("provider", provider),
		zap.String("model", modelID),
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens),
		zap.Float64("estimated_cost_usd", estimated),
	)

	return estimated, nil
}

// RemainingBudget returns the workspace's monthly cap minus all spend in
// the current calendar month, clamped at zero. The billing window starts
// at the first instant of the current month in UTC.
func (l *Ledger) RemainingBudget(ctx context.Context, workspaceID string) (float64, error) {
	status, err := l.Status(ctx, workspaceID)
	if err != nil {
		return 0, err
	}
	return status.Remaining, nil
}

// Status returns the full budget read model for a workspace.
func (l *Ledger) Status(ctx context.Context, workspaceID string) (*BudgetStatus, error) {
	ws, err := l.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: get workspace")
	}
	if ws == nil {
		return nil, eris.Errorf("ledger: workspace %s not found", workspaceID)
	}

	spent, err := l.store.SumUsageSince(ctx, workspaceID, monthStart(time.Now()))
	if err != nil {
		return nil, eris.Wrap(err, "ledger: sum usage")
	}

	remaining := ws.MonthlyBudget - spent
	if remaining < 0 {
		remaining = 0
	}
	return &BudgetStatus{
		WorkspaceID:   workspaceID,
		MonthlyBudget: ws.MonthlyBudget,
		Spent:         spent,
		Remaining:     remaining,
	}, nil
}

// monthStart returns the first instant of now's month in UTC.
func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
