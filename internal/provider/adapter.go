// Package provider normalizes a chat-style completion contract across
// heterogeneous LLM vendor APIs. It is the only package that understands
// vendor wire shapes; everything above it works with Request/Response.
package provider

import (
	"context"
	"sort"
)

const (
	// defaultMaxTokens bounds completions when the caller does not set a
	// limit. Debate turns are meant to be short and arguable.
	defaultMaxTokens = 300

	// DefaultSystemPrompt is injected for vendors that require a system
	// message when the caller supplied none.
	DefaultSystemPrompt = "You are a helpful assistant."
)

// ChatMessage is one entry in a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Request is the vendor-neutral completion request.
type Request struct {
	Messages     []ChatMessage
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int
	JSONMode     bool
}

// Usage reports token consumption for a single completion call. Vendors
// that do not report usage leave it nil on the Response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the vendor-neutral completion result.
type Response struct {
	Content string
	Usage   *Usage
}

// Adapter is the per-vendor completion contract. Implementations perform
// exactly one outbound call per Complete invocation and never retry;
// retries, if any, belong to the caller.
type Adapter interface {
	// Name returns the provider id this adapter serves (e.g. "openai").
	Name() string

	// Complete performs a single chat completion.
	Complete(ctx context.Context, req Request) (*Response, error)

	// ListModels returns the sorted model identifiers known for this
	// provider. It never mutates provider state and never fails for an
	// empty list.
	ListModels(ctx context.Context, apiKey string) ([]string, error)
}

// NormalizeRole coerces a role onto the three canonical chat roles. Any
// unrecognized value becomes "assistant".
func NormalizeRole(role string) string {
	switch role {
	case "system", "user", "assistant":
		return role
	default:
		return "assistant"
	}
}

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}

func sortedCopy(models []string) []string {
	out := make([]string, len(models))
	copy(out, models)
	sort.Strings(out)
	return out
}
