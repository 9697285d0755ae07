// Package monitoring aggregates operational telemetry over the debate
// and usage logs.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/parleylabs/parley/internal/model"
	"github.com/parleylabs/parley/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system activity.
type MetricsSnapshot struct {
	// Debate metrics (within lookback window).
	DebatesTotal    int     `json:"debates_total"`
	DebatesApproved int     `json:"debates_approved"`
	DebatesPending  int     `json:"debates_pending"`
	DebatesFlagged  int     `json:"debates_flagged"`
	DebatesRejected int     `json:"debates_rejected"`
	AvgRiskScore    float64 `json:"avg_risk_score"`

	// Spend metrics (within lookback window).
	SpendUSD         float64 `json:"spend_usd"`
	CallCount        int     `json:"call_count"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`

	// Metadata.
	WorkspaceID   string    `json:"workspace_id,omitempty"`
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

const collectLimit = 10000

// Collect gathers a snapshot over the given lookback window. An empty
// workspaceID covers all workspaces for the debate metrics; spend
// metrics require a workspace since the usage log is keyed by one.
func (c *Collector) Collect(ctx context.Context, workspaceID string, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		WorkspaceID:   workspaceID,
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	debates, err := c.store.ListDebates(ctx, store.DebateFilter{
		WorkspaceID:  workspaceID,
		CreatedAfter: cutoff,
		Limit:        collectLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list debates")
	}

	snap.DebatesTotal = len(debates)
	var totalRisk int
	for _, d := range debates {
		totalRisk += d.RiskScore
		switch d.ApprovalStatus {
		case model.ApprovalApproved:
			snap.DebatesApproved++
		case model.ApprovalPending:
			snap.DebatesPending++
		case model.ApprovalFlagged:
			snap.DebatesFlagged++
		case model.ApprovalRejected:
			snap.DebatesRejected++
		}
	}
	if snap.DebatesTotal > 0 {
		snap.AvgRiskScore = float64(totalRisk) / float64(snap.DebatesTotal)
	}

	if workspaceID != "" {
		records, err := c.store.ListUsage(ctx, workspaceID, cutoff, collectLimit)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list usage")
		}
		snap.CallCount = len(records)
		for _, r := range records {
			snap.SpendUSD += r.EstimatedCostUSD
			snap.PromptTokens += r.PromptTokens
			snap.CompletionTokens += r.CompletionTokens
		}
	}

	return snap, nil
}
