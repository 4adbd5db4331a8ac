// Package config provides configuration loading and validation for the content engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Known AI provider names accepted in LLM.ProviderOrder.
var knownProviders = map[string]bool{
	"gemini":    true,
	"anthropic": true,
}

// Duration is a time.Duration that unmarshals from JSON strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("duration must be a string like \"30s\": %w", err)
		}
		d.Duration = time.Duration(n) * time.Second
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	LLM       LLMConfig       `json:"llm"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Webhook   WebhookConfig   `json:"webhook"`
	Trends    TrendsConfig    `json:"trends"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int      `json:"port"`
	ReadTimeout     Duration `json:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
	CORSOrigins     []string `json:"cors_origins,omitempty"`
}

// DatabaseConfig configures PostgreSQL access.
type DatabaseConfig struct {
	URL         string `json:"url"`
	AutoMigrate bool   `json:"auto_migrate"`
}

// RedisConfig configures the optional Redis cache. An empty address disables it.
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
}

// LLMConfig configures the AI providers.
type LLMConfig struct {
	GeminiAPIKey    string   `json:"gemini_api_key,omitempty"`
	AnthropicAPIKey string   `json:"anthropic_api_key,omitempty"`
	ProviderOrder   []string `json:"provider_order"`
	RequestTimeout  Duration `json:"request_timeout"`
	MaxAttempts     int      `json:"max_attempts"`
	// Models overrides tier->model mappings per provider, e.g. {"gemini": {"standard": "gemini-2.5-flash"}}.
	Models map[string]map[string]string `json:"models,omitempty"`
}

// SchedulerConfig configures the bulk job scheduler.
type SchedulerConfig struct {
	Enabled                bool     `json:"enabled"`
	Concurrency            int      `json:"concurrency"`
	ReloadInterval         Duration `json:"reload_interval"`
	LockTTL                Duration `json:"lock_ttl"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures"`
}

// WebhookConfig configures outbound webhook delivery.
type WebhookConfig struct {
	Timeout     Duration `json:"timeout"`
	MaxAttempts int      `json:"max_attempts"`
}

// FeedSource describes a JSON trend API.
type FeedSource struct {
	Name         string `json:"name"`
	URLTemplate  string `json:"url_template"`
	AuthHeader   string `json:"auth_header,omitempty"`
	AuthValue    string `json:"auth_value,omitempty"`
	ItemsPath    string `json:"items_path"`
	TitlePath    string `json:"title_path"`
	MentionsPath string `json:"mentions_path,omitempty"`
	ScorePath    string `json:"score_path,omitempty"`
	PricePath    string `json:"price_path,omitempty"`
	URLPath      string `json:"url_path,omitempty"`
}

// PageSource describes an HTML page listing trending products.
type PageSource struct {
	Name          string `json:"name"`
	URLTemplate   string `json:"url_template"`
	ItemSelector  string `json:"item_selector"`
	TitleSelector string `json:"title_selector,omitempty"`
	PriceSelector string `json:"price_selector,omitempty"`
	LinkSelector  string `json:"link_selector,omitempty"`
	UseBrowser    bool   `json:"use_browser,omitempty"`
}

// TrendsConfig configures trend ingestion.
type TrendsConfig struct {
	CacheTTL      Duration     `json:"cache_ttl"`
	RetentionDays int          `json:"retention_days"`
	UseLLM        bool         `json:"use_llm"`
	Feeds         []FeedSource `json:"feeds,omitempty"`
	Pages         []PageSource `json:"pages,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration{30 * time.Second},
			WriteTimeout:    Duration{300 * time.Second},
			ShutdownTimeout: Duration{30 * time.Second},
			CORSOrigins:     []string{"*"},
		},
		LLM: LLMConfig{
			ProviderOrder:  []string{"gemini", "anthropic"},
			RequestTimeout: Duration{90 * time.Second},
			MaxAttempts:    2,
		},
		Scheduler: SchedulerConfig{
			Enabled:                true,
			Concurrency:            4,
			ReloadInterval:         Duration{5 * time.Minute},
			LockTTL:                Duration{30 * time.Minute},
			MaxConsecutiveFailures: 5,
		},
		Webhook: WebhookConfig{
			Timeout:     Duration{15 * time.Second},
			MaxAttempts: 4,
		},
		Trends: TrendsConfig{
			CacheTTL:      Duration{15 * time.Minute},
			RetentionDays: 14,
			UseLLM:        true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional JSON file and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays values from a JSON file onto the receiver.
func (c *Config) mergeFile(path string) error {
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}

// applyEnv overrides fields from environment variables when they are set.
func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	if origins := getEnvString("CORS_ORIGINS", ""); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}

	c.Database.URL = getEnvString("DATABASE_URL", c.Database.URL)
	c.Database.AutoMigrate = getEnvBool("AUTO_MIGRATE", c.Database.AutoMigrate)

	c.Redis.Address = getEnvString("REDIS_ADDRESS", c.Redis.Address)
	c.Redis.Password = getEnvString("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.LLM.GeminiAPIKey = getEnvString("GEMINI_API_KEY", c.LLM.GeminiAPIKey)
	c.LLM.AnthropicAPIKey = getEnvString("ANTHROPIC_API_KEY", c.LLM.AnthropicAPIKey)
	if order := getEnvString("LLM_PROVIDER_ORDER", ""); order != "" {
		c.LLM.ProviderOrder = splitList(order)
	}
	c.LLM.RequestTimeout.Duration = getEnvDuration("LLM_REQUEST_TIMEOUT", c.LLM.RequestTimeout.Duration)
	c.LLM.MaxAttempts = getEnvInt("LLM_MAX_ATTEMPTS", c.LLM.MaxAttempts)

	c.Scheduler.Enabled = getEnvBool("SCHEDULER_ENABLED", c.Scheduler.Enabled)
	c.Scheduler.Concurrency = getEnvInt("SCHEDULER_CONCURRENCY", c.Scheduler.Concurrency)
	c.Scheduler.ReloadInterval.Duration = getEnvDuration("SCHEDULER_RELOAD_INTERVAL", c.Scheduler.ReloadInterval.Duration)
	c.Scheduler.MaxConsecutiveFailures = getEnvInt("SCHEDULER_MAX_FAILURES", c.Scheduler.MaxConsecutiveFailures)

	c.Webhook.Timeout.Duration = getEnvDuration("WEBHOOK_TIMEOUT", c.Webhook.Timeout.Duration)
	c.Webhook.MaxAttempts = getEnvInt("WEBHOOK_MAX_ATTEMPTS", c.Webhook.MaxAttempts)

	c.Trends.CacheTTL.Duration = getEnvDuration("TRENDS_CACHE_TTL", c.Trends.CacheTTL.Duration)
	c.Trends.UseLLM = getEnvBool("TRENDS_USE_LLM", c.Trends.UseLLM)

	c.Logging.Level = getEnvString("LOG_LEVEL", c.Logging.Level)
	c.Logging.Development = getEnvBool("LOG_DEVELOPMENT", c.Logging.Development)
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("config error: DATABASE_URL is required")
	}
	if c.LLM.GeminiAPIKey == "" && c.LLM.AnthropicAPIKey == "" {
		return fmt.Errorf("config error: at least one of GEMINI_API_KEY or ANTHROPIC_API_KEY is required")
	}
	if len(c.LLM.ProviderOrder) == 0 {
		return fmt.Errorf("config error: llm provider order must not be empty")
	}
	for _, p := range c.LLM.ProviderOrder {
		if !knownProviders[p] {
			return fmt.Errorf("config error: unknown llm provider %q", p)
		}
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("config error: llm max_attempts must be at least 1")
	}
	if c.Scheduler.Concurrency < 1 {
		return fmt.Errorf("config error: scheduler concurrency must be at least 1")
	}
	if c.Scheduler.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("config error: scheduler max_consecutive_failures must be non-negative")
	}
	if c.Webhook.MaxAttempts < 1 {
		return fmt.Errorf("config error: webhook max_attempts must be at least 1")
	}
	for i, f := range c.Trends.Feeds {
		if f.Name == "" || f.URLTemplate == "" || f.ItemsPath == "" || f.TitlePath == "" {
			return fmt.Errorf("config error: trends.feeds[%d] needs name, url_template, items_path and title_path", i)
		}
	}
	for i, p := range c.Trends.Pages {
		if p.Name == "" || p.URLTemplate == "" || p.ItemSelector == "" {
			return fmt.Errorf("config error: trends.pages[%d] needs name, url_template and item_selector", i)
		}
	}
	return nil
}

// HasProvider reports whether an API key is configured for the named provider.
func (c *LLMConfig) HasProvider(name string) bool {
	switch name {
	case "gemini":
		return c.GeminiAPIKey != ""
	case "anthropic":
		return c.AnthropicAPIKey != ""
	default:
		return false
	}
}

// splitList splits a comma-separated list, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
