package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// EnvLLMProvider overrides the completion provider.
	EnvLLMProvider = "LLM_PROVIDER"

	// EnvLLMAPIKey overrides the provider API key.
	EnvLLMAPIKey = "LLM_API_KEY"

	// EnvLLMModel overrides the completion model.
	EnvLLMModel = "LLM_MODEL"

	// EnvLLMBaseURL overrides the base URL for OpenAI-compatible providers.
	EnvLLMBaseURL = "LLM_BASE_URL"

	// EnvLLMTimeout overrides the per-call completion timeout.
	EnvLLMTimeout = "LLM_TIMEOUT"
)

// LLM provider constants. Any provider other than "openai" is treated as an
// OpenAI-compatible endpoint reached through base_url (ollama, vllm, etc.).
const (
	LLMProviderOpenAI = "openai"
	LLMProviderLocal  = "local"
)

// LLMConfig contains completion client configuration.
type LLMConfig struct {
	Provider    string  `toml:"provider"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`

	// FinalizePass enables a second completion pass that rewrites the raw
	// turn result in the assistant's voice before it is returned.
	FinalizePass bool `toml:"finalize_pass"`
}

// TimeoutDuration parses and returns the completion timeout as a time.Duration.
func (c *LLMConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the LLM configuration.
func (c *LLMConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *LLMConfig) Merge(overlay *LLMConfig) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Temperature != 0 {
		c.Temperature = overlay.Temperature
	}
	if overlay.MaxTokens != 0 {
		c.MaxTokens = overlay.MaxTokens
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.FinalizePass {
		c.FinalizePass = true
	}
}

func (c *LLMConfig) loadDefaults() {
	if c.Provider == "" {
		c.Provider = LLMProviderOpenAI
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *LLMConfig) loadEnv() {
	if v := os.Getenv(EnvLLMProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvLLMModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvLLMBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvLLMTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTokens = n
		}
	}
}

func (c *LLMConfig) validate() error {
	if c.Provider != LLMProviderOpenAI && c.BaseURL == "" {
		return fmt.Errorf("base_url required for provider %q", c.Provider)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
