// Package llm talks to hosted completion APIs. Provider clients implement
// Completer over raw HTTP; Gateway adds bounded retry with backoff on top.
package llm

import (
	"fmt"
	"net/http"
	"time"
)

// Default models per provider, used when no model is configured.
const (
	defaultGeminiModel    = "gemini-2.5-flash"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
)

// Config selects and configures a provider client. MaxTokens and
// Temperature become the defaults for calls that do not set their own.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// NewCompleter builds the provider client named by cfg.Provider.
func NewCompleter(cfg Config) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key required")
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch Provider(cfg.Provider) {
	case ProviderGemini, "google", "":
		model := cfg.Model
		if model == "" {
			model = defaultGeminiModel
		}
		c := NewGoogleClient(cfg.APIKey, model)
		c.httpClient = httpClient
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.MaxTokens > 0 {
			c.maxTokens = cfg.MaxTokens
		}
		c.temperature = cfg.Temperature
		return c, nil
	case ProviderOpenAI:
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		c := NewOpenAIClient(cfg.APIKey, model)
		c.httpClient = httpClient
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.MaxTokens > 0 {
			c.maxTokens = cfg.MaxTokens
		}
		c.temperature = cfg.Temperature
		return c, nil
	case ProviderAnthropic:
		model := cfg.Model
		if model == "" {
			model = defaultAnthropicModel
		}
		c := NewAnthropicClient(cfg.APIKey, model)
		c.httpClient = httpClient
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.MaxTokens > 0 {
			c.maxTokens = cfg.MaxTokens
		}
		c.temperature = cfg.Temperature
		return c, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
