package provider

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const anthropicDefaultModel = "claude-3-5-sonnet-20240620"

var anthropicKnownModels = []string{
	"claude-3-5-sonnet-20240620",
	"claude-3-haiku-20240307",
	"claude-3-opus-20240229",
	"claude-3-sonnet-20240229",
}

// AnthropicOption configures the Anthropic adapter.
type AnthropicOption func(*anthropicAdapter)

// WithAnthropicBaseURL overrides the default API base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(a *anthropicAdapter) {
		a.baseURL = url
	}
}

type anthropicAdapter struct {
	baseURL string
	limiter *rate.Limiter
}

// NewAnthropic creates the Anthropic messages adapter, backed by the
// official SDK.
func NewAnthropic(opts ...AnthropicOption) Adapter {
	a := &anthropicAdapter{limiter: newLimiter()}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *anthropicAdapter) Name() string { return "anthropic" }

func (a *anthropicAdapter) client(apiKey string) sdk.Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if a.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(a.baseURL))
	}
	return sdk.NewClient(reqOpts...)
}

func (a *anthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Provider: a.Name(), Err: err}
	}

	model := req.Model
	if model == "" {
		model = anthropicDefaultModel
	}

	// The messages API strictly requires alternating user/assistant
	// roles; system-flavored history (e.g. moderator notes) is mapped to
	// user so the context survives.
	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := sdk.NewTextBlock(m.Content)
		if NormalizeRole(m.Role) == "assistant" {
			msgs = append(msgs, sdk.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, sdk.NewUserMessage(block))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(req.maxTokens()),
		Messages:  msgs,
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	cl := a.client(req.APIKey)
	msg, err := cl.Messages.New(ctx, params)
	if err != nil {
		return nil, a.mapError(err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Response{
		Content: content.String(),
		Usage: &Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func (a *anthropicAdapter) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	return sortedCopy(anthropicKnownModels), nil
}

// mapError translates SDK failures onto the shared error taxonomy.
func (a *anthropicAdapter) mapError(err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		return &ProviderError{
			Provider:      a.Name(),
			StatusCode:    apierr.StatusCode,
			VendorMessage: apierr.Error(),
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransportError{Provider: a.Name(), Err: err}
	}
	return &TransportError{Provider: a.Name(), Err: eris.Wrap(err, "anthropic: create message")}
}
