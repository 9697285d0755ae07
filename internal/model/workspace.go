package model

import "time"

// Workspace holds the billing and execution limits for one tenant.
type Workspace struct {
	ID                        string    `json:"id"`
	Name                      string    `json:"name"`
	MonthlyBudget             float64   `json:"monthly_budget"`
	MaxPluginExecutionsPerDay int       `json:"max_plugin_executions_per_day"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// UsageRecord is one append-only entry in the spend log, one per
// completion call. Never mutated, only aggregated.
type UsageRecord struct {
	ID               string    `json:"id"`
	WorkspaceID      string    `json:"workspace_id"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	EstimatedCostUSD float64   `json:"estimated_cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}
