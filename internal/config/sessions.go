package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	// EnvSessionsCapacity overrides the session cache capacity.
	EnvSessionsCapacity = "SESSIONS_CAPACITY"

	// EnvSessionsMaxSteps overrides the per-turn step budget.
	EnvSessionsMaxSteps = "SESSIONS_MAX_STEPS"

	// EnvSessionsDefaultAgent overrides the agent that opens each turn.
	EnvSessionsDefaultAgent = "SESSIONS_DEFAULT_AGENT"
)

// SessionsConfig contains agent runtime and session cache configuration.
type SessionsConfig struct {
	Capacity     int    `toml:"capacity"`
	MaxSteps     int    `toml:"max_steps"`
	DefaultAgent string `toml:"default_agent"`

	// ReturnDirect lists gateway tools whose result ends the turn verbatim.
	ReturnDirect []string `toml:"return_direct"`
}

// Finalize applies defaults, loads environment overrides, and validates the sessions configuration.
func (c *SessionsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *SessionsConfig) Merge(overlay *SessionsConfig) {
	if overlay.Capacity != 0 {
		c.Capacity = overlay.Capacity
	}
	if overlay.MaxSteps != 0 {
		c.MaxSteps = overlay.MaxSteps
	}
	if overlay.DefaultAgent != "" {
		c.DefaultAgent = overlay.DefaultAgent
	}
	if len(overlay.ReturnDirect) > 0 {
		c.ReturnDirect = overlay.ReturnDirect
	}
}

func (c *SessionsConfig) loadDefaults() {
	if c.Capacity == 0 {
		c.Capacity = 100
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = 25
	}
}

func (c *SessionsConfig) loadEnv() {
	if v := os.Getenv(EnvSessionsCapacity); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Capacity = n
		}
	}
	if v := os.Getenv(EnvSessionsMaxSteps); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxSteps = n
		}
	}
	if v := os.Getenv(EnvSessionsDefaultAgent); v != "" {
		c.DefaultAgent = v
	}
}

func (c *SessionsConfig) validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1")
	}
	if c.MaxSteps < 2 {
		return fmt.Errorf("max_steps must be at least 2")
	}
	return nil
}
