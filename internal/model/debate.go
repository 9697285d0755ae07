package model

import "time"

// DebateStatus represents the current state of a debate run.
type DebateStatus string

const (
	DebateStatusPending   DebateStatus = "pending"
	DebateStatusRunning   DebateStatus = "running"
	DebateStatusCompleted DebateStatus = "completed"
	DebateStatusFailed    DebateStatus = "failed"
)

// ApprovalStatus is the supervisor's verdict on a completed debate.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalFlagged  ApprovalStatus = "flagged"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Participant is one provider/model/role identity taking part in a debate.
// Immutable for the life of a single run.
type Participant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Role         string `json:"role"`
	APIKey       string `json:"-"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Message is a single turn in the debate history. The ordered sequence
// across rounds forms the transcript; messages are append-only.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Name identifies the speaking participant, or is empty for seed
	// history and system messages.
	Name string `json:"name,omitempty"`
}

// Turn is one participant's contribution within a round.
type Turn struct {
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
}

// Round is one synchronized pass where every participant produces exactly
// one turn, in participant list order.
type Round struct {
	Number int    `json:"number"`
	Turns  []Turn `json:"turns"`
}

// Usage aggregates token consumption across provider calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage figure into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// DebateResult is the immutable outcome of one debate run.
type DebateResult struct {
	ID             string         `json:"id"`
	WorkspaceID    string         `json:"workspace_id,omitempty"`
	Topic          string         `json:"topic"`
	Rounds         []Round        `json:"rounds"`
	History        []Message      `json:"history"`
	Summary        string         `json:"summary"`
	TotalUsage     Usage          `json:"total_usage"`
	RiskScore      int            `json:"risk_score"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	CreatedAt      time.Time      `json:"created_at"`
}
