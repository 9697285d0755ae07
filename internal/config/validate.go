package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration for the given run mode. Modes map
// onto CLI subcommands: "serve" needs a listenable port and a store;
// "debate" and "supervisor" need at least one provider credential.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		c.validateStore(check)
		c.validateThresholds(check)
	case "debate":
		c.validateStore(check)
		check(c.hasAnyProviderKey(), "at least one providers.*.key is required")
		c.validateThresholds(check)
	case "supervisor":
		check(c.Supervisor.Provider != "", "supervisor.provider is required")
		check(c.Supervisor.Model != "", "supervisor.model is required")
		check(c.Providers.APIKey(c.Supervisor.Provider) != "", "providers."+c.Supervisor.Provider+".key is required")
	case "store":
		c.validateStore(check)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateStore(check func(bool, string)) {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		check(false, "store.driver must be sqlite or postgres")
	}
	check(c.Store.DatabaseURL != "", "store.database_url is required")
}

func (c *Config) validateThresholds(check func(bool, string)) {
	check(c.Routing.Epsilon >= 0, "routing.epsilon must be >= 0")
	check(c.Routing.LowBudgetThreshold >= 0, "routing.low_budget_threshold must be >= 0")
	check(c.Debate.DefaultRounds >= 1 && c.Debate.DefaultRounds <= 20, "debate.default_rounds must be between 1 and 20")
	check(c.Debate.MaxTokens >= 0, "debate.max_tokens must be >= 0")
}

func (c *Config) hasAnyProviderKey() bool {
	return c.Providers.OpenAI.Key != "" ||
		c.Providers.Anthropic.Key != "" ||
		c.Providers.Google.Key != "" ||
		c.Providers.Qwen.Key != ""
}
