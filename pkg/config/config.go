// Package config loads the broker's YAML configuration file, falling
// back to environment variables for anything secret-shaped (provider
// API keys) that operators would rather not commit to disk.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

// maxConfigSize caps how much of a config file LoadConfig will read,
// matching the "too large" limit TestLoadConfig_FileSizeLimit checks.
const maxConfigSize = 1024 * 1024 // 1MB

// Config is the broker's full runtime configuration: spec.md §6.3's
// enumerated options plus the provider credentials needed to construct
// the provider.Registry at startup.
type Config struct {
	// Cache (internal/llm/cache)
	DefaultCacheTTLSeconds     int64   `yaml:"default_cache_ttl_seconds"`
	SimilarityThresholdDefault float64 `yaml:"similarity_threshold_default"`
	CacheQualityFloor          float64 `yaml:"cache_quality_floor"`

	// Cost tracker (internal/llm/cost)
	TierMonthlyLimitsUSD map[string]float64 `yaml:"tier_monthly_limits_usd"`
	AlertThresholds      AlertThresholds    `yaml:"alert_thresholds"`

	// Router (internal/llm/router)
	HistoryWindow int `yaml:"history_window"`

	// Providers (internal/llm/provider)
	ProviderBaseURLs          map[string]string `yaml:"provider_base_urls"`
	RequestTimeoutSeconds     int               `yaml:"request_timeout_seconds"`
	RateLimitSleepCapSeconds  int               `yaml:"rate_limit_sleep_cap_seconds"`

	DeepSeekAPIKey  string `yaml:"deepseek_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	BedrockRegion   string `yaml:"bedrock_region"`

	// Key-value / durable stores
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"`
}

// AlertThresholds mirrors spec.md §6.3's three named fractions.
type AlertThresholds struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
	Exceeded float64 `yaml:"exceeded"`
}

// LoadConfig reads and parses a YAML config file at path, applying
// defaults for anything left unset and falling back to the
// conventional environment variables for provider credentials.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	loadCredentialsFromEnv(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DefaultCacheTTLSeconds == 0 {
		cfg.DefaultCacheTTLSeconds = 604800
	}
	if cfg.SimilarityThresholdDefault == 0 {
		cfg.SimilarityThresholdDefault = 0.85
	}
	if cfg.CacheQualityFloor == 0 {
		cfg.CacheQualityFloor = 0.7
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = 1000
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = 60
	}
	if cfg.RateLimitSleepCapSeconds == 0 {
		cfg.RateLimitSleepCapSeconds = 60
	}
	if cfg.AlertThresholds == (AlertThresholds{}) {
		cfg.AlertThresholds = AlertThresholds{Warning: 0.75, Critical: 0.90, Exceeded: 1.00}
	}
	if len(cfg.TierMonthlyLimitsUSD) == 0 {
		cfg.TierMonthlyLimitsUSD = map[string]float64{
			string(domain.TierFree):     1.00,
			string(domain.TierCreator):  8.82,
			string(domain.TierBusiness): 23.84,
			string(domain.TierAgency):   131.67,
		}
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}
}

func loadCredentialsFromEnv(cfg *Config) {
	if cfg.DeepSeekAPIKey == "" {
		cfg.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.AnthropicAPIKey == "" {
		cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.RedisPassword == "" {
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.BedrockRegion == "" {
		cfg.BedrockRegion = os.Getenv("AWS_REGION")
	}
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable: at least one
// provider credential must be present, since a broker with none can
// never dispatch a request.
func (c *Config) Validate() error {
	if c.DeepSeekAPIKey == "" && c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" && c.AnthropicAPIKey == "" {
		return fmt.Errorf("at least one provider API key must be configured")
	}
	return nil
}

// TierLimits converts the string-keyed YAML map into the
// domain.Tier-keyed map the cost tracker consumes.
func (c *Config) TierLimits() map[domain.Tier]float64 {
	out := make(map[domain.Tier]float64, len(c.TierMonthlyLimitsUSD))
	for k, v := range c.TierMonthlyLimitsUSD {
		out[domain.Tier(k)] = v
	}
	return out
}
