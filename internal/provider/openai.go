package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	openaiBaseURL      = "https://api.openai.com"
	openaiDefaultModel = "gpt-4o"
)

// OpenAIOption configures the OpenAI adapter.
type OpenAIOption func(*openaiAdapter)

// WithOpenAIBaseURL overrides the default API base URL.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(a *openaiAdapter) {
		a.baseURL = url
	}
}

// WithOpenAIHTTPClient overrides the default http.Client.
func WithOpenAIHTTPClient(hc *http.Client) OpenAIOption {
	return func(a *openaiAdapter) {
		a.http = hc
	}
}

type openaiAdapter struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewOpenAI creates the OpenAI chat-completions adapter.
func NewOpenAI(opts ...OpenAIOption) Adapter {
	a := &openaiAdapter{
		baseURL: openaiBaseURL,
		http:    newHTTPClient(),
		limiter: newLimiter(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *openaiAdapter) Name() string { return "openai" }

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type openaiRequest struct {
	Model          string          `json:"model"`
	Messages       []openaiMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *openaiFormat   `json:"response_format,omitempty"`
}

type openaiFormat struct {
	Type string `json:"type"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *openaiAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Provider: a.Name(), Err: err}
	}

	model := req.Model
	if model == "" {
		model = openaiDefaultModel
	}

	msgs := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openaiMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		om := openaiMessage{Role: NormalizeRole(m.Role), Content: m.Content}
		if m.Name != "" {
			om.Name = SanitizeName(m.Name)
		}
		msgs = append(msgs, om)
	}

	body := openaiRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: req.maxTokens(),
	}
	if req.JSONMode {
		body.ResponseFormat = &openaiFormat{Type: "json_object"}
	}

	respBody, err := a.post(ctx, "/v1/chat/completions", req.APIKey, body)
	if err != nil {
		return nil, err
	}

	var result openaiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "openai: unmarshal response")
	}
	if len(result.Choices) == 0 {
		return nil, eris.New("openai: response has no choices")
	}

	out := &Response{Content: result.Choices[0].Message.Content}
	if result.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (a *openaiAdapter) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, eris.Wrap(err, "openai: create models request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Provider: a.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: a.Name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider:      a.Name(),
			StatusCode:    resp.StatusCode,
			VendorMessage: vendorMessage(respBody, resp.Status),
		}
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "openai: unmarshal models response")
	}

	models := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, m.ID)
	}
	return sortedCopy(models), nil
}

func (a *openaiAdapter) post(ctx context.Context, path, apiKey string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "openai: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "openai: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Provider: a.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: a.Name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider:      a.Name(),
			StatusCode:    resp.StatusCode,
			VendorMessage: vendorMessage(respBody, resp.Status),
		}
	}
	return respBody, nil
}

// vendorMessage extracts the vendor's error message from a failure body,
// falling back to the HTTP status line.
func vendorMessage(body []byte, status string) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return status
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(5), 5)
}
