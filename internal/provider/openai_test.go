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

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	var captured openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "tabs, obviously"}}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
		}`))
	}))
	defer srv.Close()

	a := NewOpenAI(WithOpenAIBaseURL(srv.URL))
	resp, err := a.Complete(context.Background(), Request{
		Messages: []ChatMessage{
			{Role: "moderator", Content: "state your case", Name: "Renée B."},
		},
		APIKey:       "sk-test",
		Model:        "gpt-4o-mini",
		SystemPrompt: "You are a debater.",
	})
	require.NoError(t, err)

	assert.Equal(t, "tabs, obviously", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 42, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)
	assert.Equal(t, 49, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, 300, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, openaiMessage{Role: "system", Content: "You are a debater."}, captured.Messages[0])
	// Unknown role coerced, name folded and sanitized.
	assert.Equal(t, "assistant", captured.Messages[1].Role)
	assert.Equal(t, "Renee_B_", captured.Messages[1].Name)
}

func TestOpenAICompleteJSONMode(t *testing.T) {
	t.Parallel()

	var captured openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{}"}}]}`))
	}))
	defer srv.Close()

	a := NewOpenAI(WithOpenAIBaseURL(srv.URL))
	resp, err := a.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: "user", Content: "emit json"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Usage)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

func TestOpenAICompleteVendorError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	a := NewOpenAI(WithOpenAIBaseURL(srv.URL))
	_, err := a.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "openai", pe.Provider)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, "Incorrect API key provided", pe.VendorMessage)
}

func TestOpenAICompleteTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	a := NewOpenAI(WithOpenAIBaseURL(srv.URL))
	_, err := a.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestOpenAIListModels(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o"}, {"id": "gpt-3.5-turbo"}, {"id": "gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	a := NewOpenAI(WithOpenAIBaseURL(srv.URL))
	models, err := a.ListModels(context.Background(), "sk-test")
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-4o", "gpt-4o-mini"}, models)
}
