package asm

import (
	"context"
	"log/slog"
)

// LevelTrace sits between Info and Warn and carries per-expansion logs.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace logs at LevelTrace through the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
