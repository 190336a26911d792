// Package config holds provider configuration for the engine. A
// ProviderConfig is a plain value: sessions copy it at creation and on
// explicit update, so edits to a store never race a turn in flight.
package config

import (
	"strings"

	"github.com/sidecardev/sidecar/pkg/types"
)

// Supported provider identifiers. The set is closed: dispatch happens
// by exact id and anything else is a configuration error.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderDeepSeek  = "deepseek"
)

// Defaults applied by WithDefaults when the corresponding field is zero.
const (
	DefaultMaxTokens     = 2048
	DefaultTemperature   = 0.7
	DefaultContextTokens = 16384
	DefaultMaxToolCalls  = 8
)

type providerDefaults struct {
	baseURL string
	model   string
}

var defaults = map[string]providerDefaults{
	ProviderOpenAI: {
		baseURL: "https://api.openai.com/v1/chat/completions",
		model:   "gpt-4o",
	},
	ProviderAnthropic: {
		baseURL: "https://api.anthropic.com/v1/messages",
		model:   "claude-3-sonnet",
	},
	ProviderDeepSeek: {
		baseURL: "https://api.deepseek.com/v1/chat/completions",
		model:   "deepseek-chat",
	},
}

// ProviderConfig describes how a session talks to its model provider.
type ProviderConfig struct {
	Provider           string  `yaml:"provider"`
	Model              string  `yaml:"model"`
	BaseURL            string  `yaml:"base_url"`
	APIKey             string  `yaml:"api_key"`
	Stream             bool    `yaml:"stream"`
	Temperature        float64 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
	ContextTokens      int     `yaml:"context_tokens"`
	MaxToolCalls       int     `yaml:"max_tool_calls"`
	MaxHistoryMessages int     `yaml:"max_history_messages"`
}

// New returns a configuration for the given provider with all defaults
// filled in and streaming enabled.
func New(provider string) ProviderConfig {
	cfg := ProviderConfig{Provider: provider, Stream: true}
	return cfg.WithDefaults()
}

// SupportedProviders lists the provider ids the engine can dispatch to.
func SupportedProviders() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek}
}

// IsSupported reports whether the provider id is in the closed set.
func IsSupported(provider string) bool {
	_, ok := defaults[provider]
	return ok
}

// WithDefaults returns a copy with zero fields replaced by the
// provider's defaults. The endpoint and model are only defaulted for
// known providers; Stream is left untouched because false is a valid
// explicit choice.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if d, ok := defaults[c.Provider]; ok {
		if c.BaseURL == "" {
			c.BaseURL = d.baseURL
		}
		if c.Model == "" {
			c.Model = d.model
		}
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.ContextTokens == 0 {
		c.ContextTokens = DefaultContextTokens
	}
	if c.MaxToolCalls == 0 {
		c.MaxToolCalls = DefaultMaxToolCalls
	}
	return c
}

// Validate checks the configuration for values no turn could use.
// An unknown provider is reported here as well, with the same kind the
// dispatcher would produce.
func (c ProviderConfig) Validate() error {
	if strings.TrimSpace(c.Provider) == "" {
		return types.NewError(types.ErrConfiguration, "provider is not set")
	}
	if !IsSupported(c.Provider) {
		return types.NewError(types.ErrConfiguration, "unsupported provider %q", c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return types.NewError(types.ErrConfiguration, "model is not set")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return types.NewError(types.ErrConfiguration, "base URL is not set for provider %q", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return types.NewError(types.ErrConfiguration, "temperature %.2f is outside [0, 2]", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return types.NewError(types.ErrConfiguration, "max_tokens must not be negative")
	}
	return nil
}

// Redacted returns a copy safe for logging: the API key is masked.
func (c ProviderConfig) Redacted() ProviderConfig {
	if c.APIKey != "" {
		c.APIKey = "***"
	}
	return c
}
