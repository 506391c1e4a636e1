// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"io"
	"log/slog"
	"os"
)

// Conform to the slog.Leveler interface.
func (c LoggingConfig) Level() slog.Level {
	switch c.LevelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Create a structured logger writing to the given writer as configured.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c}
	var handler slog.Handler
	switch c.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Set the structured logger as given in the config.
func (c LoggingConfig) SetDefaultLogger() {
	slog.SetDefault(c.NewLogger(os.Stdout))
	slog.Info("logging: set default logger", "level", c.LevelStr, "format", c.Format)
}
