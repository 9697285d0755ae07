package model

import "time"

// TaskType classifies the work a provider selection is being made for.
type TaskType string

const (
	TaskCodeReview    TaskType = "code_review"
	TaskFastChat      TaskType = "fast_chat"
	TaskDeepReasoning TaskType = "deep_reasoning"
	TaskDefault       TaskType = "default"
)

// ParseTaskType maps a raw string onto a known task type. Unknown values
// fall back to TaskDefault rather than erroring; task type is forgiving.
func ParseTaskType(s string) TaskType {
	switch TaskType(s) {
	case TaskCodeReview, TaskFastChat, TaskDeepReasoning, TaskDefault:
		return TaskType(s)
	default:
		return TaskDefault
	}
}

// RoutingPolicy is a workspace-level override for provider selection,
// at most one per (workspace, task type) pair.
type RoutingPolicy struct {
	ID                 string    `json:"id"`
	WorkspaceID        string    `json:"workspace_id"`
	TaskType           TaskType  `json:"task_type"`
	PreferredProvider  string    `json:"preferred_provider,omitempty"`
	PreferredModel     string    `json:"preferred_model,omitempty"`
	CostEfficiencyMode bool      `json:"cost_efficiency_mode"`
	UpdatedAt          time.Time `json:"updated_at"`
}
