package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleylabs/parley/internal/model"
)

type fakeBudget struct {
	remaining float64
}

func (f fakeBudget) RemainingBudget(ctx context.Context, workspaceID string) (float64, error) {
	return f.remaining, nil
}

type fakePolicies struct {
	policies map[model.TaskType]*model.RoutingPolicy
}

func (f fakePolicies) GetRoutingPolicy(ctx context.Context, workspaceID string, taskType model.TaskType) (*model.RoutingPolicy, error) {
	return f.policies[taskType], nil
}

func newTestEngine(remaining float64, policies map[model.TaskType]*model.RoutingPolicy) *Engine {
	return NewEngine(fakeBudget{remaining: remaining}, fakePolicies{policies: policies}, Defaults(), DefaultConfig())
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(500.0, nil)

	tests := []struct {
		task         model.TaskType
		wantProvider string
		wantModel    string
	}{
		{model.TaskCodeReview, "anthropic", "claude-3-5-sonnet"},
		{model.TaskDeepReasoning, "openai", "gpt-4o"},
		{model.TaskFastChat, "openai", "gpt-4o-mini"},
		{model.TaskDefault, "openai", "gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			t.Parallel()
			d, err := engine.Resolve(context.Background(), "ws-1", tt.task)
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, d.Provider)
			assert.Equal(t, tt.wantModel, d.Model)
			assert.Contains(t, d.Reason, "default configured model")
			assert.InDelta(t, 500.0, d.BudgetRemaining, 1e-9)
		})
	}
}

func TestResolveUnknownTaskTypeFallsBackToDefault(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(500.0, nil)

	d, err := engine.Resolve(context.Background(), "ws-1", model.TaskType("image_generation"))
	require.NoError(t, err)
	assert.Equal(t, "openai", d.Provider)
	assert.Equal(t, "gpt-4o-mini", d.Model)
}

func TestResolveBudgetExceeded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		remaining float64
	}{
		{"zero", 0},
		{"exactly epsilon", 0.01},
		{"below epsilon", 0.005},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			engine := newTestEngine(tt.remaining, nil)

			_, err := engine.Resolve(context.Background(), "ws-1", model.TaskFastChat)
			require.Error(t, err)
			assert.True(t, IsBudgetExceeded(err))
		})
	}
}

func TestResolvePolicyOverride(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(500.0, map[model.TaskType]*model.RoutingPolicy{
		model.TaskCodeReview: {
			WorkspaceID:       "ws-1",
			TaskType:          model.TaskCodeReview,
			PreferredProvider: "openai",
			PreferredModel:    "gpt-4o",
		},
	})

	d, err := engine.Resolve(context.Background(), "ws-1", model.TaskCodeReview)
	require.NoError(t, err)
	assert.Equal(t, "openai", d.Provider)
	assert.Equal(t, "gpt-4o", d.Model)
	assert.Contains(t, d.Reason, "routing policy override")
}

func TestResolvePartialPolicyIgnored(t *testing.T) {
	t.Parallel()
	// A policy naming only a provider does not override the default.
	engine := newTestEngine(500.0, map[model.TaskType]*model.RoutingPolicy{
		model.TaskCodeReview: {
			WorkspaceID:       "ws-1",
			TaskType:          model.TaskCodeReview,
			PreferredProvider: "openai",
		},
	})

	d, err := engine.Resolve(context.Background(), "ws-1", model.TaskCodeReview)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", d.Provider)
	assert.Equal(t, "claude-3-5-sonnet", d.Model)
}

func TestResolveLowBudgetOverridesPolicy(t *testing.T) {
	t.Parallel()
	// deep_reasoning policy prefers openai/gpt-4o, but $3.00 remaining is
	// under the $10 threshold: the efficient fallback must win.
	engine := newTestEngine(3.00, map[model.TaskType]*model.RoutingPolicy{
		model.TaskDeepReasoning: {
			WorkspaceID:       "ws-1",
			TaskType:          model.TaskDeepReasoning,
			PreferredProvider: "openai",
			PreferredModel:    "gpt-4o",
		},
	})

	d, err := engine.Resolve(context.Background(), "ws-1", model.TaskDeepReasoning)
	require.NoError(t, err)
	assert.Equal(t, "google", d.Provider)
	assert.Equal(t, "gemini-1.5-pro", d.Model)
	assert.Equal(t, "Forced cost-efficiency fallback. Remaining budget dangerously low ($3.00).", d.Reason)
	assert.InDelta(t, 3.00, d.BudgetRemaining, 1e-9)
}

func TestResolveCostEfficiencyModeRequested(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(500.0, map[model.TaskType]*model.RoutingPolicy{
		model.TaskFastChat: {
			WorkspaceID:        "ws-1",
			TaskType:           model.TaskFastChat,
			PreferredProvider:  "openai",
			PreferredModel:     "gpt-4o",
			CostEfficiencyMode: true,
		},
	})

	d, err := engine.Resolve(context.Background(), "ws-1", model.TaskFastChat)
	require.NoError(t, err)
	assert.Equal(t, "google", d.Provider)
	assert.Equal(t, "gemini-1.5-flash", d.Model)
	assert.Equal(t, "Cost efficiency mode requested by workspace routing policy.", d.Reason)
}

func TestResolveDeterministic(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(7.42, map[model.TaskType]*model.RoutingPolicy{
		model.TaskCodeReview: {
			WorkspaceID:       "ws-1",
			TaskType:          model.TaskCodeReview,
			PreferredProvider: "openai",
			PreferredModel:    "gpt-4o",
		},
	})

	first, err := engine.Resolve(context.Background(), "ws-1", model.TaskCodeReview)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := engine.Resolve(context.Background(), "ws-1", model.TaskCodeReview)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
