// Package debate runs multi-participant, multi-round LLM debates.
// Rounds and turns execute strictly sequentially so every participant
// sees earlier same-round output; the transcript order is the iteration
// order, never arrival order.
package debate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parleylabs/parley/internal/model"
	"github.com/parleylabs/parley/internal/provider"
)

const judgeSystemPrompt = "You are an impartial judge summarizing a debate. " +
	"Provide a concise summary of the key arguments and any resulting consensus."

// Request describes one debate run.
type Request struct {
	WorkspaceID  string              `json:"workspace_id"`
	Topic        string              `json:"topic"`
	Rounds       int                 `json:"rounds"`
	Participants []model.Participant `json:"participants"`
	PriorHistory []model.Message     `json:"prior_history,omitempty"`
	MaxTokens    int                 `json:"max_tokens,omitempty"`
}

// UsageRecorder attributes the cost of one completion call to a
// workspace. Satisfied by *ledger.Ledger.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, workspaceID, provider, model string, promptTokens, completionTokens int) (float64, error)
}

// Orchestrator drives debate runs over the provider registry. It holds
// no per-run state; independent debates may run concurrently.
type Orchestrator struct {
	registry *provider.Registry
	usage    UsageRecorder
}

// NewOrchestrator creates an orchestrator. usage may be nil when cost
// attribution is not wanted (dry runs).
func NewOrchestrator(registry *provider.Registry, usage UsageRecorder) *Orchestrator {
	return &Orchestrator{registry: registry, usage: usage}
}

// Run executes the debate: for each round, each participant speaks once
// in list order, then a judge call compresses the transcript into a
// summary. Any failed turn aborts the run with a TurnError; partial
// progress is discarded, though spend already incurred stays recorded.
// Risk scoring and approval are the supervisor's job, not Run's.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*model.DebateResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}
	rounds := req.Rounds
	if rounds == 0 {
		rounds = 1
	}

	history := make([]model.Message, len(req.PriorHistory))
	copy(history, req.PriorHistory)

	var (
		debateRounds []model.Round
		total        model.Usage
	)

	for r := 1; r <= rounds; r++ {
		turns := make([]model.Turn, 0, len(req.Participants))

		for _, p := range req.Participants {
			// Cancellation point: between calls, never mid-call.
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "debate: canceled")
			}

			resp, err := o.speak(ctx, p, req, history)
			if err != nil {
				zap.L().Warn("debate turn failed",
					zap.Int("round", r),
					zap.String("participant", p.ID),
					zap.String("provider", p.Provider),
					zap.Error(err),
				)
				return nil, &TurnError{Round: r, ParticipantID: p.ID, Provider: p.Provider, Err: err}
			}

			history = append(history, model.Message{
				Role:    "assistant",
				Content: resp.Content,
				Name:    p.ID,
			})
			turns = append(turns, model.Turn{
				ParticipantID:   p.ID,
				ParticipantName: p.Name,
				Role:            p.Role,
				Content:         resp.Content,
				Timestamp:       time.Now().UTC(),
			})
			total.Add(o.record(ctx, req.WorkspaceID, p.Provider, p.Model, resp.Usage))
		}

		debateRounds = append(debateRounds, model.Round{Number: r, Turns: turns})
	}

	summary, summaryUsage, err := o.summarize(ctx, req, history)
	if err != nil {
		judge := req.Participants[0]
		return nil, &TurnError{Round: rounds, ParticipantID: judge.ID, Provider: judge.Provider, Err: err}
	}
	total.Add(summaryUsage)

	return &model.DebateResult{
		ID:          uuid.New().String(),
		WorkspaceID: req.WorkspaceID,
		Topic:       req.Topic,
		Rounds:      debateRounds,
		History:     history,
		Summary:     summary,
		TotalUsage:  total,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (o *Orchestrator) validate(req Request) error {
	if strings.TrimSpace(req.Topic) == "" {
		return &ValidationError{Field: "topic", Reason: "is required"}
	}
	if len(req.Participants) == 0 {
		return &ValidationError{Field: "participants", Reason: "must not be empty"}
	}
	if req.Rounds < 0 {
		return &ValidationError{Field: "rounds", Reason: "must not be negative"}
	}
	for _, p := range req.Participants {
		if _, ok := o.registry.Get(p.Provider); !ok {
			return &ValidationError{Field: "participants", Reason: fmt.Sprintf("unknown provider %q", p.Provider)}
		}
	}
	return nil
}

// speak performs one participant turn over the accumulated history.
func (o *Orchestrator) speak(ctx context.Context, p model.Participant, req Request, history []model.Message) (*provider.Response, error) {
	adapter, _ := o.registry.Get(p.Provider)

	return adapter.Complete(ctx, provider.Request{
		Messages:     toChat(history),
		APIKey:       p.APIKey,
		Model:        p.Model,
		SystemPrompt: turnSystemPrompt(p, req.Topic),
		MaxTokens:    req.MaxTokens,
	})
}

// summarize asks the first participant's provider, acting as an
// impartial judge, to compress the transcript.
func (o *Orchestrator) summarize(ctx context.Context, req Request, history []model.Message) (string, model.Usage, error) {
	judge := req.Participants[0]
	adapter, _ := o.registry.Get(judge.Provider)

	messages := append(toChat(history), provider.ChatMessage{
		Role:    "user",
		Content: "Please summarize the debate above.",
	})

	resp, err := adapter.Complete(ctx, provider.Request{
		Messages:     messages,
		APIKey:       judge.APIKey,
		Model:        judge.Model,
		SystemPrompt: judgeSystemPrompt,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		return "", model.Usage{}, err
	}
	return resp.Content, o.record(ctx, req.WorkspaceID, judge.Provider, judge.Model, resp.Usage), nil
}

// record attributes one call's spend to the workspace and converts the
// adapter usage into the aggregate form. Attribution failures are logged
// rather than aborting the run: the provider call already succeeded.
func (o *Orchestrator) record(ctx context.Context, workspaceID, providerName, modelID string, u *provider.Usage) model.Usage {
	if u == nil {
		return model.Usage{}
	}
	if o.usage != nil && workspaceID != "" {
		if _, err := o.usage.RecordUsage(ctx, workspaceID, providerName, modelID, u.PromptTokens, u.CompletionTokens); err != nil {
			zap.L().Error("usage attribution failed",
				zap.String("workspace_id", workspaceID),
				zap.String("provider", providerName),
				zap.Error(err),
			)
		}
	}
	return model.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func turnSystemPrompt(p model.Participant, topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, acting as a %s.\n", p.Name, p.Role)
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	if p.SystemPrompt != "" {
		fmt.Fprintf(&b, "\nInstructions:\n%s\n", p.SystemPrompt)
	}
	b.WriteString("\nReview the conversation history and provide your input. Be constructive, specific, and concise.")
	return b.String()
}

func toChat(history []model.Message) []provider.ChatMessage {
	out := make([]provider.ChatMessage, len(history))
	for i, m := range history {
		out[i] = provider.ChatMessage{Role: m.Role, Content: m.Content, Name: m.Name}
	}
	return out
}
