package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiComplete(t *testing.T) {
	t.Parallel()

	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "Hello from Gemini"}]}}],
			"usageMetadata": {"promptTokenCount": 11, "candidatesTokenCount": 4, "totalTokenCount": 15}
		}`))
	}))
	defer srv.Close()

	a := NewGemini(WithGeminiBaseURL(srv.URL))
	resp, err := a.Complete(context.Background(), Request{
		Messages: []ChatMessage{
			{Role: "user", Content: "open the debate"},
			{Role: "assistant", Content: "gladly"},
		},
		APIKey:       "g-key",
		SystemPrompt: "Be brief.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello from Gemini", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 11, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "Be brief.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 2)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)
	assert.Equal(t, 300, captured.GenerationConfig.MaxOutputTokens)
}

func TestGeminiCompleteVendorError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "API key not valid"}}`))
	}))
	defer srv.Close()

	a := NewGemini(WithGeminiBaseURL(srv.URL))
	_, err := a.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "google", pe.Provider)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Equal(t, "API key not valid", pe.VendorMessage)
}

func TestGeminiListModels(t *testing.T) {
	t.Parallel()

	a := NewGemini()
	models, err := a.ListModels(context.Background(), "g-key")
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-1.0-pro", "gemini-1.5-flash", "gemini-1.5-pro"}, models)
}
