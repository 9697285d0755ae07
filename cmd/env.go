package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parleylabs/parley/internal/cost"
	"github.com/parleylabs/parley/internal/debate"
	"github.com/parleylabs/parley/internal/ledger"
	"github.com/parleylabs/parley/internal/monitoring"
	"github.com/parleylabs/parley/internal/provider"
	"github.com/parleylabs/parley/internal/registry"
	"github.com/parleylabs/parley/internal/routing"
	"github.com/parleylabs/parley/internal/store"
	"github.com/parleylabs/parley/internal/supervisor"
)

// appEnv holds the initialized store and domain services shared by the
// serve/debate/route commands.
type appEnv struct {
	Store        store.Store
	Providers    *provider.Registry
	Ledger       *ledger.Ledger
	Engine       *routing.Engine
	Orchestrator *debate.Orchestrator
	Supervisor   *supervisor.Supervisor
	Collector    *monitoring.Collector
	Personas     *registry.PersonaRegistry
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, provider adapters, and the domain services.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	providers := initProviders()

	estimator := cost.NewEstimator(buildRates())
	led := ledger.New(st, estimator)
	engine := routing.NewEngine(led, st, routing.Defaults(), routing.Config{
		LowBudgetThreshold: cfg.Routing.LowBudgetThreshold,
		Epsilon:            cfg.Routing.Epsilon,
	})
	orchestrator := debate.NewOrchestrator(providers, led)
	sup := supervisor.New(providers, cfg.Supervisor.Provider, cfg.Supervisor.Model, cfg.Providers.APIKey(cfg.Supervisor.Provider))

	personas, err := initPersonas()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &appEnv{
		Store:        st,
		Providers:    providers,
		Ledger:       led,
		Engine:       engine,
		Orchestrator: orchestrator,
		Supervisor:   sup,
		Collector:    monitoring.NewCollector(st),
		Personas:     personas,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "parley.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initProviders builds every vendor adapter, honoring configured base
// URL overrides. Adapters for vendors without a configured key are still
// registered: participants may carry their own credentials.
func initProviders() *provider.Registry {
	var openaiOpts []provider.OpenAIOption
	if cfg.Providers.OpenAI.BaseURL != "" {
		openaiOpts = append(openaiOpts, provider.WithOpenAIBaseURL(cfg.Providers.OpenAI.BaseURL))
	}
	var anthropicOpts []provider.AnthropicOption
	if cfg.Providers.Anthropic.BaseURL != "" {
		anthropicOpts = append(anthropicOpts, provider.WithAnthropicBaseURL(cfg.Providers.Anthropic.BaseURL))
	}
	var geminiOpts []provider.GeminiOption
	if cfg.Providers.Google.BaseURL != "" {
		geminiOpts = append(geminiOpts, provider.WithGeminiBaseURL(cfg.Providers.Google.BaseURL))
	}
	var qwenOpts []provider.QwenOption
	if cfg.Providers.Qwen.BaseURL != "" {
		qwenOpts = append(qwenOpts, provider.WithQwenBaseURL(cfg.Providers.Qwen.BaseURL))
	}

	return provider.NewRegistry(
		provider.NewOpenAI(openaiOpts...),
		provider.NewAnthropic(anthropicOpts...),
		provider.NewGemini(geminiOpts...),
		provider.NewQwen(qwenOpts...),
	)
}

// buildRates merges configured pricing overrides over the built-in
// rate table.
func buildRates() cost.Rates {
	rates := cost.DefaultRates()
	for key, mp := range cfg.Pricing.Models {
		rates.PerModel[key] = cost.ModelRate{Prompt: mp.Prompt, Completion: mp.Completion}
	}
	return rates
}

func initPersonas() (*registry.PersonaRegistry, error) {
	if cfg.Personas.Path == "" {
		return registry.BuiltinPersonas(), nil
	}
	personas, err := registry.LoadPersonasFromFile(cfg.Personas.Path)
	if err != nil {
		zap.L().Debug("persona file not loaded, using builtins",
			zap.String("path", cfg.Personas.Path),
			zap.Error(err),
		)
		return registry.BuiltinPersonas(), nil
	}
	return personas, nil
}
