package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production always logs JSON; source
// locations are only attached outside production, where the extra cost does
// not matter.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	if cfg == nil || !cfg.IsProduction() {
		opts.AddSource = true
	}
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
