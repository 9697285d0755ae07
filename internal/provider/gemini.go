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
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	geminiDefaultModel = "gemini-1.5-flash"
)

var geminiKnownModels = []string{
	"gemini-1.0-pro",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
}

// GeminiOption configures the Gemini adapter.
type GeminiOption func(*geminiAdapter)

// WithGeminiBaseURL overrides the default API base URL.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(a *geminiAdapter) {
		a.baseURL = url
	}
}

// WithGeminiHTTPClient overrides the default http.Client.
func WithGeminiHTTPClient(hc *http.Client) GeminiOption {
	return func(a *geminiAdapter) {
		a.http = hc
	}
}

type geminiAdapter struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewGemini creates the Google Gemini generateContent adapter.
func NewGemini(opts ...GeminiOption) Adapter {
	a := &geminiAdapter{
		baseURL: geminiBaseURL,
		http:    newHTTPClient(),
		limiter: newLimiter(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Name returns "google": routing decisions and participants refer to the
// vendor, not the model family.
func (a *geminiAdapter) Name() string { return "google" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens  int    `json:"maxOutputTokens"`
		ResponseMimeType string `json:"responseMimeType,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (a *geminiAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Provider: a.Name(), Err: err}
	}

	model := req.Model
	if model == "" {
		model = geminiDefaultModel
	}

	var body geminiRequest
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	for _, m := range req.Messages {
		// Gemini only knows "user" and "model".
		role := "model"
		if NormalizeRole(m.Role) == "user" {
			role = "user"
		}
		body.Contents = append(body.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	body.GenerationConfig.MaxOutputTokens = req.maxTokens()
	if req.JSONMode {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: marshal request")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", a.baseURL, model, req.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "gemini: unmarshal response")
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, eris.New("gemini: response has no candidates")
	}

	out := &Response{Content: result.Candidates[0].Content.Parts[0].Text}
	if result.UsageMetadata != nil {
		out.Usage = &Usage{
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      result.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

func (a *geminiAdapter) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	return sortedCopy(geminiKnownModels), nil
}
