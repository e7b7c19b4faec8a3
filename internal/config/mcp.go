package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

const (
	// EnvMCPBaseURL overrides the tool server endpoint.
	EnvMCPBaseURL = "MCP_BASE_URL"

	// EnvMCPTimeout overrides the per-call tool timeout.
	EnvMCPTimeout = "MCP_TIMEOUT"
)

// MCPConfig contains tool gateway configuration.
type MCPConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// TimeoutDuration parses and returns the tool call timeout as a time.Duration.
func (c *MCPConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the MCP configuration.
func (c *MCPConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *MCPConfig) Merge(overlay *MCPConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *MCPConfig) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:3000/api/mcp"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *MCPConfig) loadEnv() {
	if v := os.Getenv(EnvMCPBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvMCPTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *MCPConfig) validate() error {
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
