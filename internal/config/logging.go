package config

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

// Level parses LogLevel. Empty means info.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, ErrBadLogLevel
	}
	return l, nil
}

// Logger builds the process logger: JSON lines in production, colored text
// otherwise.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := c.Level()
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: "15:04:05"}))
}
