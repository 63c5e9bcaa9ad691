package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Market    MarketConfig    `mapstructure:"market"`
	AI        AIConfig        `mapstructure:"ai"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// MarketConfig controls the data feed and tick cadence.
type MarketConfig struct {
	Symbols          []string      `mapstructure:"symbols"`
	UpdateInterval   time.Duration `mapstructure:"update_interval"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	RatePerSecond    float64       `mapstructure:"rate_per_second"`
}

// AIConfig holds decision provider settings. A vendor without credentials
// is silently disabled; the rule-based fallback is always available.
type AIConfig struct {
	Providers     []string     `mapstructure:"providers"` // priority order
	Timeout       time.Duration `mapstructure:"timeout"`
	MinConfidence float64      `mapstructure:"min_confidence"`
	Mode          string       `mapstructure:"mode"` // conservative|balanced|aggressive
	Claude        ClaudeConfig `mapstructure:"claude"`
	OpenAI        OpenAIConfig `mapstructure:"openai"`
	Gemini        GeminiConfig `mapstructure:"gemini"`
	Ollama        OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// RiskConfig holds trade constraint thresholds.
type RiskConfig struct {
	MaxPositionPct   float64 `mapstructure:"max_position_pct"`
	MaxOpenPositions int     `mapstructure:"max_open_positions"`
	StopLossPct      float64 `mapstructure:"stop_loss_pct"`
}

type PortfolioConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Mode: "release",
		},
		Market: MarketConfig{
			Symbols:          []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "NVDA", "META", "NFLX"},
			UpdateInterval:   30 * time.Second,
			FetchTimeout:     10 * time.Second,
			FetchConcurrency: 4,
			RatePerSecond:    5,
		},
		AI: AIConfig{
			Timeout:       15 * time.Second,
			MinConfidence: 0.6,
			Mode:          "balanced",
		},
		Risk: RiskConfig{
			MaxPositionPct:   20,
			MaxOpenPositions: 5,
			StopLossPct:      10,
		},
		Portfolio: PortfolioConfig{
			InitialCapital: 100000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if len(c.Market.Symbols) == 0 {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("market symbols cannot be empty"))
	}
	if c.Market.UpdateInterval <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("update_interval must be positive, got %v", c.Market.UpdateInterval))
	}
	if c.Market.FetchConcurrency < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fetch_concurrency must be at least 1, got %d", c.Market.FetchConcurrency))
	}

	if c.AI.MinConfidence < 0 || c.AI.MinConfidence > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_confidence must be between 0 and 1, got %f", c.AI.MinConfidence))
	}
	switch c.AI.Mode {
	case "", "conservative", "balanced", "aggressive":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown strategy mode: %s", c.AI.Mode))
	}
	for _, p := range c.AI.Providers {
		switch p {
		case "claude", "openai", "gemini", "ollama", "rulebased":
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown AI provider: %s", p))
		}
	}

	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_position_pct must be in (0, 100], got %f", c.Risk.MaxPositionPct))
	}
	if c.Risk.MaxOpenPositions < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_open_positions must be at least 1, got %d", c.Risk.MaxOpenPositions))
	}
	if c.Risk.StopLossPct < 0 || c.Risk.StopLossPct > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stop_loss_pct must be in [0, 100], got %f", c.Risk.StopLossPct))
	}

	if c.Portfolio.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %f", c.Portfolio.InitialCapital))
	}

	return nil
}

// StrategyMode returns the configured mode as a core type.
func (c *Config) StrategyMode() core.StrategyMode {
	switch c.AI.Mode {
	case "conservative":
		return core.ModeConservative
	case "aggressive":
		return core.ModeAggressive
	default:
		return core.ModeBalanced
	}
}
