// Package config loads runtime configuration from a yaml file and
// MAILMIND_* environment variables, env taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Providers the llm layer supports.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config is the full runtime configuration.
type Config struct {
	// Provider selects the model backend: "anthropic" or "openai".
	Provider string `mapstructure:"provider"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	OpenAIBaseURL   string `mapstructure:"openai_base_url"`

	// Model overrides the provider's default chat model.
	Model string `mapstructure:"model"`

	// EmbeddingModel is used for memory search. Empty selects the
	// deterministic local embedder, which needs no API key.
	EmbeddingModel string `mapstructure:"embedding_model"`

	// Namespace is the default memory namespace for CLI runs.
	Namespace string `mapstructure:"namespace"`

	// DataDir holds the sqlite databases.
	DataDir string `mapstructure:"data_dir"`

	MaxTurns   int `mapstructure:"max_turns"`
	MaxRetries int `mapstructure:"max_retries"`

	// Port is the demo server's listen port. When taken, the server
	// probes upward for a free one.
	Port int `mapstructure:"port"`

	OptimizerInterval  time.Duration `mapstructure:"optimizer_interval"`
	OptimizerBatchSize int           `mapstructure:"optimizer_batch_size"`
	OptimizerQueueSize int           `mapstructure:"optimizer_queue_size"`
}

// Load reads mailmind.yaml (working directory or ~/.mailmind) and the
// environment. A missing config file is fine; missing credentials are
// not.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("mailmind")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.mailmind")

	v.SetEnvPrefix("MAILMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("provider", ProviderAnthropic)
	// Keys without file defaults still need registration so AutomaticEnv
	// values survive Unmarshal.
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("model", "")
	v.SetDefault("embedding_model", "")
	v.SetDefault("namespace", "default")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("max_turns", 20)
	v.SetDefault("max_retries", 3)
	v.SetDefault("port", 8765)
	v.SetDefault("optimizer_interval", time.Minute)
	v.SetDefault("optimizer_batch_size", 8)
	v.SetDefault("optimizer_queue_size", 64)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks provider selection and credentials.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return errors.New("anthropic provider selected but MAILMIND_ANTHROPIC_API_KEY is empty")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("openai provider selected but MAILMIND_OPENAI_API_KEY is empty")
		}
	default:
		return fmt.Errorf("unknown provider %q (want %s or %s)", c.Provider, ProviderAnthropic, ProviderOpenAI)
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", c.MaxTurns)
	}
	return nil
}
