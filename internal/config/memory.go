package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// EnvMemoryBackend overrides the conversation storage backend.
	EnvMemoryBackend = "MEMORY_BACKEND"

	// EnvMemoryMaxMessages overrides the per-conversation message cap.
	EnvMemoryMaxMessages = "MEMORY_MAX_MESSAGES"

	// EnvMemoryMaxAge overrides the conversation retention age.
	EnvMemoryMaxAge = "MEMORY_MAX_AGE"
)

// Memory backend constants.
const (
	MemoryBackendMemory   = "memory"
	MemoryBackendPostgres = "postgres"
)

// MemoryConfig contains conversation memory configuration.
type MemoryConfig struct {
	Backend         string `toml:"backend"`
	MaxMessages     int    `toml:"max_messages"`
	MaxMessageChars int    `toml:"max_message_chars"`
	ContextMessages int    `toml:"context_messages"`
	CleanupSchedule string `toml:"cleanup_schedule"`
	MaxAge          string `toml:"max_age"`
}

// MaxAgeDuration parses and returns the retention age as a time.Duration.
func (c *MemoryConfig) MaxAgeDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxAge)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the memory configuration.
func (c *MemoryConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *MemoryConfig) Merge(overlay *MemoryConfig) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.MaxMessages != 0 {
		c.MaxMessages = overlay.MaxMessages
	}
	if overlay.MaxMessageChars != 0 {
		c.MaxMessageChars = overlay.MaxMessageChars
	}
	if overlay.ContextMessages != 0 {
		c.ContextMessages = overlay.ContextMessages
	}
	if overlay.CleanupSchedule != "" {
		c.CleanupSchedule = overlay.CleanupSchedule
	}
	if overlay.MaxAge != "" {
		c.MaxAge = overlay.MaxAge
	}
}

func (c *MemoryConfig) loadDefaults() {
	if c.Backend == "" {
		c.Backend = MemoryBackendMemory
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = 100
	}
	if c.MaxMessageChars == 0 {
		c.MaxMessageChars = 2000
	}
	if c.ContextMessages == 0 {
		c.ContextMessages = 10
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = "@every 24h"
	}
	if c.MaxAge == "" {
		c.MaxAge = "720h"
	}
}

func (c *MemoryConfig) loadEnv() {
	if v := os.Getenv(EnvMemoryBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvMemoryMaxMessages); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxMessages = n
		}
	}
	if v := os.Getenv(EnvMemoryMaxAge); v != "" {
		c.MaxAge = v
	}
}

func (c *MemoryConfig) validate() error {
	switch c.Backend {
	case MemoryBackendMemory, MemoryBackendPostgres:
	default:
		return fmt.Errorf("invalid backend: %s (must be memory or postgres)", c.Backend)
	}
	if c.MaxMessages < 2 {
		return fmt.Errorf("max_messages must be at least 2")
	}
	if c.ContextMessages < 1 {
		return fmt.Errorf("context_messages must be at least 1")
	}
	if _, err := time.ParseDuration(c.MaxAge); err != nil {
		return fmt.Errorf("invalid max_age: %w", err)
	}
	return nil
}
