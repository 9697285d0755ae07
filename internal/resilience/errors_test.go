package resilience

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/parleylabs/parley/internal/provider"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &provider.ProviderError{Provider: "openai", StatusCode: 429}, true},
		{"server error", &provider.ProviderError{Provider: "google", StatusCode: 500}, true},
		{"gateway timeout", &provider.ProviderError{Provider: "qwen", StatusCode: 504}, true},
		{"bad key", &provider.ProviderError{Provider: "openai", StatusCode: 401}, false},
		{"bad request", &provider.ProviderError{Provider: "anthropic", StatusCode: 400}, false},
		{"transport failure", &provider.TransportError{Provider: "openai", Err: eris.New("dial tcp: refused")}, true},
		{"plain error", eris.New("parse failed"), false},
		{"wrapped transient", eris.Wrap(&provider.ProviderError{Provider: "openai", StatusCode: 503}, "supervisor: score"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
