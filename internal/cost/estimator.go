package cost

import (
	"fmt"
	"strings"
)

// ModelRate holds per-million-token pricing in USD for one provider/model
// pair.
type ModelRate struct {
	Prompt     float64 `yaml:"prompt" mapstructure:"prompt"`
	Completion float64 `yaml:"completion" mapstructure:"completion"`
}

// Rates holds the full pricing configuration. PerModel is keyed by
// "provider:model" (lowercase). Default applies to unknown pairs so that
// routing is never blocked on missing pricing.
type Rates struct {
	PerModel map[string]ModelRate `yaml:"per_model" mapstructure:"per_model"`
	Default  ModelRate            `yaml:"default" mapstructure:"default"`
}

// Estimator converts token usage into estimated USD cost.
type Estimator struct {
	rates Rates
}

// NewEstimator creates an Estimator with the given rates.
func NewEstimator(rates Rates) *Estimator {
	lowered := make(map[string]ModelRate, len(rates.PerModel))
	for k, v := range rates.PerModel {
		lowered[strings.ToLower(k)] = v
	}
	rates.PerModel = lowered
	return &Estimator{rates: rates}
}

// Estimate returns the estimated cost in USD for one completion call.
// Lookup is case-insensitive; unknown pairs use the conservative default
// rate. No rounding is applied here; callers round for display only.
func (e *Estimator) Estimate(provider, model string, promptTokens, completionTokens int) float64 {
	key := strings.ToLower(fmt.Sprintf("%s:%s", provider, model))
	rate, ok := e.rates.PerModel[key]
	if !ok {
		rate = e.rates.Default
	}

	promptCost := (float64(promptTokens) / 1e6) * rate.Prompt
	completionCost := (float64(completionTokens) / 1e6) * rate.Completion
	return promptCost + completionCost
}

// DefaultRates returns the default pricing matrix (USD per 1M tokens).
func DefaultRates() Rates {
	return Rates{
		PerModel: map[string]ModelRate{
			"openai:gpt-4o":               {Prompt: 5.0, Completion: 15.0},
			"openai:gpt-4o-mini":          {Prompt: 0.15, Completion: 0.60},
			"anthropic:claude-3-5-sonnet": {Prompt: 3.0, Completion: 15.0},
			"anthropic:claude-3-haiku":    {Prompt: 0.25, Completion: 1.25},
			"google:gemini-1.5-pro":       {Prompt: 3.5, Completion: 10.5},
			"google:gemini-1.5-flash":     {Prompt: 0.075, Completion: 0.30},
		},
		Default: ModelRate{Prompt: 0.10, Completion: 0.50},
	}
}
