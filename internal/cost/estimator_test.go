package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		PerModel: map[string]ModelRate{
			"openai:gpt-4o":            {Prompt: 5.0, Completion: 15.0},
			"anthropic:claude-3-haiku": {Prompt: 0.25, Completion: 1.25},
		},
		Default: ModelRate{Prompt: 0.10, Completion: 0.50},
	}
}

func TestEstimate(t *testing.T) {
	t.Parallel()
	est := NewEstimator(testRates())

	tests := []struct {
		name             string
		provider         string
		model            string
		promptTokens     int
		completionTokens int
		want             float64
	}{
		{
			name: "known pair", provider: "openai", model: "gpt-4o",
			promptTokens: 1_000_000, completionTokens: 100_000,
			want: 5.0 + 1.5,
		},
		{
			name: "case insensitive lookup", provider: "OpenAI", model: "GPT-4o",
			promptTokens: 1_000_000, completionTokens: 0,
			want: 5.0,
		},
		{
			name: "cheap model", provider: "anthropic", model: "claude-3-haiku",
			promptTokens: 2_000_000, completionTokens: 400_000,
			want: 0.50 + 0.50,
		},
		{
			name: "unknown pair falls back to default rate", provider: "mistral", model: "mistral-large",
			promptTokens: 1_000_000, completionTokens: 1_000_000,
			want: 0.10 + 0.50,
		},
		{
			name: "zero tokens", provider: "openai", model: "gpt-4o",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := est.Estimate(tt.provider, tt.model, tt.promptTokens, tt.completionTokens)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestEstimateNoRounding(t *testing.T) {
	t.Parallel()
	est := NewEstimator(testRates())

	// 123 prompt tokens at $5/MTok is an awkward fraction; the estimator
	// must not round it away.
	got := est.Estimate("openai", "gpt-4o", 123, 0)
	assert.InDelta(t, 123.0/1e6*5.0, got, 1e-12)
}

func TestDefaultRatesCoverRoutingTable(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	for _, key := range []string{
		"openai:gpt-4o",
		"openai:gpt-4o-mini",
		"anthropic:claude-3-5-sonnet",
		"anthropic:claude-3-haiku",
		"google:gemini-1.5-pro",
		"google:gemini-1.5-flash",
	} {
		assert.Contains(t, rates.PerModel, key)
	}
	assert.Greater(t, rates.Default.Prompt, 0.0)
	assert.Greater(t, rates.Default.Completion, 0.0)
}
