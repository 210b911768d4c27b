package cmd

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// newLogger builds the process logger from log.format and log.level.
// --verbose forces debug level.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(viper.GetString("log.format")) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// setupLogging installs the logger as the slog default.
func setupLogging(w io.Writer) {
	slog.SetDefault(newLogger(w))
}
