// Package llm provides AI provider clients, model tier selection and
// cross-provider fallback routing.
package llm

import "strings"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for cheap tasks: summaries, keyword angles, trend lookups
	TierLite ModelTier = "lite"
	// TierStandard is for structured copy generation
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form or high-stakes copy
	TierAdvanced ModelTier = "advanced"
)

// ParseTier converts s to a ModelTier, defaulting to TierStandard.
func ParseTier(s string) ModelTier {
	switch ModelTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierLite:
		return TierLite
	case TierAdvanced:
		return TierAdvanced
	default:
		return TierStandard
	}
}

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderAnthropic is the Anthropic Claude provider
	ProviderAnthropic Provider = "anthropic"
)

// Config holds the model configuration for one provider
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// MaxTokens bounds the response length for providers that require it.
	MaxTokens int64
	// Temperature is the sampling temperature used for every request.
	Temperature float32
}

// DefaultConfig returns the default configuration for a provider.
// Unknown providers get an empty model map.
func DefaultConfig(p Provider) *Config {
	switch p {
	case ProviderAnthropic:
		return DefaultAnthropicConfig()
	case ProviderGemini:
		return DefaultGeminiConfig()
	default:
		return &Config{Provider: p, Models: map[ModelTier]string{}, MaxTokens: 2048, Temperature: 0.7}
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// DefaultAnthropicConfig returns the default Anthropic configuration
func DefaultAnthropicConfig() *Config {
	return &Config{
		Provider: ProviderAnthropic,
		Models: map[ModelTier]string{
			TierLite:     "claude-3-5-haiku-latest",
			TierStandard: "claude-sonnet-4-5",
			TierAdvanced: "claude-opus-4-1",
		},
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:    c.Provider,
		Models:      make(map[ModelTier]string, len(c.Models)+1),
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}

// WithOverrides applies tier->model overrides such as {"standard": "gemini-2.5-pro"}.
func (c *Config) WithOverrides(overrides map[string]string) *Config {
	out := c
	for tier, model := range overrides {
		if model == "" {
			continue
		}
		out = out.WithModel(ModelTier(strings.ToLower(tier)), model)
	}
	return out
}
