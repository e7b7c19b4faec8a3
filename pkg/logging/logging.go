// Package logging builds the service's slog root logger from the [logging]
// config section.
package logging

import (
	"log/slog"
	"os"
)

// New constructs the root logger writing to stdout. The format selects
// between text output for local runs and JSON for deployed environments.
func New(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.Level.ToSlogLevel(),
	}

	switch cfg.Format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
}
