// Package routing selects a provider/model for a task under the
// workspace's live budget constraint.
package routing

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/parleylabs/parley/internal/model"
)

// Selection is one provider/model pair.
type Selection struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	Model    string `yaml:"model" mapstructure:"model"`
}

// TaskDefaults holds the base selection for a task type and its
// cost-efficient fallback.
type TaskDefaults struct {
	Selection `yaml:",inline" mapstructure:",squash"`
	Efficient Selection `yaml:"efficient" mapstructure:"efficient"`
}

// Defaults returns the static per-task-type selection table.
func Defaults() map[model.TaskType]TaskDefaults {
	return map[model.TaskType]TaskDefaults{
		model.TaskCodeReview: {
			Selection: Selection{Provider: "anthropic", Model: "claude-3-5-sonnet"},
			Efficient: Selection{Provider: "anthropic", Model: "claude-3-haiku"},
		},
		model.TaskDeepReasoning: {
			Selection: Selection{Provider: "openai", Model: "gpt-4o"},
			Efficient: Selection{Provider: "google", Model: "gemini-1.5-pro"},
		},
		model.TaskFastChat: {
			Selection: Selection{Provider: "openai", Model: "gpt-4o-mini"},
			Efficient: Selection{Provider: "google", Model: "gemini-1.5-flash"},
		},
		model.TaskDefault: {
			Selection: Selection{Provider: "openai", Model: "gpt-4o-mini"},
			Efficient: Selection{Provider: "openai", Model: "gpt-4o-mini"},
		},
	}
}

// Decision is the routing engine's answer, including the reason the final
// rule fired and the budget figure it was based on.
type Decision struct {
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	Reason          string  `json:"reason"`
	BudgetRemaining float64 `json:"budget_remaining"`
}

// BudgetSource exposes the remaining monthly budget for a workspace.
type BudgetSource interface {
	RemainingBudget(ctx context.Context, workspaceID string) (float64, error)
}

// PolicySource exposes workspace routing-policy lookups.
type PolicySource interface {
	GetRoutingPolicy(ctx context.Context, workspaceID string, taskType model.TaskType) (*model.RoutingPolicy, error)
}

// Config holds the engine's budget thresholds.
type Config struct {
	// LowBudgetThreshold forces the efficient fallback once remaining
	// budget drops below it.
	LowBudgetThreshold float64 `yaml:"low_budget_threshold" mapstructure:"low_budget_threshold"`
	// Epsilon is the remaining budget at or below which routing fails
	// outright with BudgetExceededError.
	Epsilon float64 `yaml:"epsilon" mapstructure:"epsilon"`
}

// DefaultConfig returns the standard thresholds: efficiency mode under
// $10, hard stop under one cent.
func DefaultConfig() Config {
	return Config{LowBudgetThreshold: 10.00, Epsilon: 0.01}
}

// Engine resolves provider/model selections. It holds no mutable state;
// identical inputs always produce identical decisions.
type Engine struct {
	budget   BudgetSource
	policies PolicySource
	defaults map[model.TaskType]TaskDefaults
	cfg      Config
}

// NewEngine creates a routing engine over the given budget and policy
// sources. The defaults table is passed in explicitly rather than read
// from a global so decisions stay reproducible in tests.
func NewEngine(budget BudgetSource, policies PolicySource, defaults map[model.TaskType]TaskDefaults, cfg Config) *Engine {
	return &Engine{budget: budget, policies: policies, defaults: defaults, cfg: cfg}
}

// Resolve selects a provider/model for the task. Rule order is fixed:
// budget check, task-type default, workspace policy override, and
// finally the forced efficiency fallback — cost protection always wins
// over explicit preference.
func (e *Engine) Resolve(ctx context.Context, workspaceID string, taskType model.TaskType) (*Decision, error) {
	remaining, err := e.budget.RemainingBudget(ctx, workspaceID)
	if err != nil {
		return nil, eris.Wrap(err, "routing: remaining budget")
	}

	// Practically bankrupt: block before any provider call is attempted.
	if remaining <= e.cfg.Epsilon {
		return nil, &BudgetExceededError{WorkspaceID: workspaceID, Remaining: remaining}
	}

	taskType = model.ParseTaskType(string(taskType))
	defaults, ok := e.defaults[taskType]
	if !ok {
		defaults = e.defaults[model.TaskDefault]
	}

	selected := defaults.Selection
	reason := fmt.Sprintf("Using default configured model for task type: %s", taskType)

	policy, err := e.policies.GetRoutingPolicy(ctx, workspaceID, taskType)
	if err != nil {
		return nil, eris.Wrap(err, "routing: get policy")
	}
	if policy != nil && policy.PreferredProvider != "" && policy.PreferredModel != "" {
		selected = Selection{Provider: policy.PreferredProvider, Model: policy.PreferredModel}
		reason = fmt.Sprintf("Applied workspace routing policy override for %s", taskType)
	}

	isLowBudget := remaining < e.cfg.LowBudgetThreshold
	if isLowBudget || (policy != nil && policy.CostEfficiencyMode) {
		selected = defaults.Efficient
		if isLowBudget {
			reason = fmt.Sprintf("Forced cost-efficiency fallback. Remaining budget dangerously low ($%.2f).", remaining)
		} else {
			reason = "Cost efficiency mode requested by workspace routing policy."
		}
	}

	return &Decision{
		Provider:        selected.Provider,
		Model:           selected.Model,
		Reason:          reason,
		BudgetRemaining: remaining,
	}, nil
}
