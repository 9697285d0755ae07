package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	qwenBaseURL      = "https://dashscope.aliyuncs.com"
	qwenGeneratePath = "/api/v1/services/aigc/text-generation/generation"
	qwenDefaultModel = "qwen-turbo"
)

var qwenKnownModels = []string{
	"qwen-coder-plus",
	"qwen-max",
	"qwen-max-longcontext",
	"qwen-plus",
	"qwen-turbo",
}

// QwenOption configures the Qwen adapter.
type QwenOption func(*qwenAdapter)

// WithQwenBaseURL overrides the default API base URL.
func WithQwenBaseURL(url string) QwenOption {
	return func(a *qwenAdapter) {
		a.baseURL = url
	}
}

// WithQwenHTTPClient overrides the default http.Client.
func WithQwenHTTPClient(hc *http.Client) QwenOption {
	return func(a *qwenAdapter) {
		a.http = hc
	}
}

type qwenAdapter struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewQwen creates the Alibaba DashScope text-generation adapter.
func NewQwen(opts ...QwenOption) Adapter {
	a := &qwenAdapter{
		baseURL: qwenBaseURL,
		http:    newHTTPClient(),
		limiter: newLimiter(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *qwenAdapter) Name() string { return "qwen" }

type qwenMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type qwenRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []qwenMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		MaxTokens    int    `json:"max_tokens"`
		ResultFormat string `json:"result_format"`
	} `json:"parameters"`
}

type qwenResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Output  struct {
		Choices []struct {
			Message qwenMessage `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *qwenAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Provider: a.Name(), Err: err}
	}

	model := req.Model
	if model == "" {
		model = qwenDefaultModel
	}

	// DashScope requires a leading system message.
	system := req.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	msgs := make([]qwenMessage, 0, len(req.Messages)+1)
	msgs = append(msgs, qwenMessage{Role: "system", Content: system})
	for _, m := range req.Messages {
		msgs = append(msgs, qwenMessage{Role: NormalizeRole(m.Role), Content: m.Content})
	}

	var body qwenRequest
	body.Model = model
	body.Input.Messages = msgs
	body.Parameters.MaxTokens = req.maxTokens()
	body.Parameters.ResultFormat = "message"

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "qwen: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+qwenGeneratePath, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "qwen: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("X-DashScope-SSE", "disable")

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

	var result qwenResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "qwen: unmarshal response")
	}
	// DashScope reports some failures inside a 200 body.
	if result.Code != "" {
		return nil, &ProviderError{
			Provider:      a.Name(),
			StatusCode:    resp.StatusCode,
			VendorMessage: fmt.Sprintf("%s - %s", result.Code, result.Message),
		}
	}
	if len(result.Output.Choices) == 0 {
		return nil, eris.New("qwen: response has no choices")
	}

	out := &Response{Content: result.Output.Choices[0].Message.Content}
	if result.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (a *qwenAdapter) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	return sortedCopy(qwenKnownModels), nil
}
