package app

import (
	"io"
	"log/slog"
)

// newLogger builds the session logger from the validated app config. The
// logger is owned by the App rather than installed globally, so parallel
// sessions in tests stay isolated. The CLI layer constrains level and
// format beforehand; anything else degrades to info-level text so a bad
// value still produces readable output.
func newLogger(cfg *Config, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
