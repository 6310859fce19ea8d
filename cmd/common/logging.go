package common

import (
	"io"
	"log/slog"
)

// NewLogger builds a text slog logger writing to w. The returned LevelVar
// lets callers flip between debug and info at runtime.
func NewLogger(w io.Writer, debug bool) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	SetDebug(level, debug)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler), level
}

// SetDebug switches level between debug and info.
func SetDebug(level *slog.LevelVar, debug bool) {
	if level == nil {
		return
	}
	if debug {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}
