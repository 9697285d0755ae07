package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Routing    RoutingConfig    `yaml:"routing" mapstructure:"routing"`
	Debate     DebateConfig     `yaml:"debate" mapstructure:"debate"`
	Supervisor SupervisorConfig `yaml:"supervisor" mapstructure:"supervisor"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Personas   PersonasConfig   `yaml:"personas" mapstructure:"personas"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProvidersConfig holds per-vendor API credentials and overrides.
type ProvidersConfig struct {
	OpenAI    VendorConfig `yaml:"openai" mapstructure:"openai"`
	Anthropic VendorConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Google    VendorConfig `yaml:"google" mapstructure:"google"`
	Qwen      VendorConfig `yaml:"qwen" mapstructure:"qwen"`
}

// VendorConfig holds one vendor's credential and optional base URL.
type VendorConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// Key returns the configured API key for a provider id, or "".
func (p ProvidersConfig) APIKey(providerName string) string {
	switch providerName {
	case "openai":
		return p.OpenAI.Key
	case "anthropic":
		return p.Anthropic.Key
	case "google":
		return p.Google.Key
	case "qwen":
		return p.Qwen.Key
	default:
		return ""
	}
}

// PricingConfig holds per-model token pricing overrides keyed by
// "provider:model" (USD per million tokens).
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Prompt     float64 `yaml:"prompt" mapstructure:"prompt"`
	Completion float64 `yaml:"completion" mapstructure:"completion"`
}

// RoutingConfig configures the routing engine thresholds.
type RoutingConfig struct {
	LowBudgetThreshold float64 `yaml:"low_budget_threshold" mapstructure:"low_budget_threshold"`
	Epsilon            float64 `yaml:"epsilon" mapstructure:"epsilon"`
}

// DebateConfig configures debate execution.
type DebateConfig struct {
	DefaultRounds int `yaml:"default_rounds" mapstructure:"default_rounds"`
	MaxTokens     int `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SupervisorConfig configures the risk-scoring reviewer model.
type SupervisorConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	Model    string `yaml:"model" mapstructure:"model"`
}

// MonitoringConfig configures background alert checks.
type MonitoringConfig struct {
	Enabled                bool    `yaml:"enabled" mapstructure:"enabled"`
	WorkspaceID            string  `yaml:"workspace_id" mapstructure:"workspace_id"`
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours    int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	RejectionRateThreshold float64 `yaml:"rejection_rate_threshold" mapstructure:"rejection_rate_threshold"`
	RiskScoreThreshold     float64 `yaml:"risk_score_threshold" mapstructure:"risk_score_threshold"`
	CostThresholdUSD       float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// PersonasConfig points at the persona preset file.
type PersonasConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "parley.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("routing.low_budget_threshold", 10.00)
	v.SetDefault("routing.epsilon", 0.01)
	v.SetDefault("debate.default_rounds", 1)
	v.SetDefault("debate.max_tokens", 300)
	v.SetDefault("supervisor.provider", "openai")
	v.SetDefault("supervisor.model", "gpt-4o-mini")
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.rejection_rate_threshold", 0.25)
	v.SetDefault("monitoring.risk_score_threshold", 75.0)
	v.SetDefault("personas.path", "personas.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
