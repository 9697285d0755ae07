package store

import (
	"context"
	"time"

	"github.com/parleylabs/parley/internal/model"
)

// DebateFilter specifies criteria for listing stored debates.
type DebateFilter struct {
	WorkspaceID  string    `json:"workspace_id,omitempty"`
	CreatedAfter time.Time `json:"created_after,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for the control plane core.
type Store interface {
	// Workspaces
	GetWorkspace(ctx context.Context, id string) (*model.Workspace, error)
	UpsertWorkspace(ctx context.Context, ws model.Workspace) error

	// Routing policies (at most one per workspace+task type)
	GetRoutingPolicy(ctx context.Context, workspaceID string, taskType model.TaskType) (*model.RoutingPolicy, error)
	UpsertRoutingPolicy(ctx context.Context, policy model.RoutingPolicy) error
	ListRoutingPolicies(ctx context.Context, workspaceID string) ([]model.RoutingPolicy, error)

	// Usage log (append-only)
	AppendUsage(ctx context.Context, rec model.UsageRecord) error
	SumUsageSince(ctx context.Context, workspaceID string, since time.Time) (float64, error)
	ListUsage(ctx context.Context, workspaceID string, since time.Time, limit int) ([]model.UsageRecord, error)

	// Debates
	SaveDebate(ctx context.Context, result *model.DebateResult) error
	GetDebate(ctx context.Context, id string) (*model.DebateResult, error)
	ListDebates(ctx context.Context, filter DebateFilter) ([]model.DebateResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
