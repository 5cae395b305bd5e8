// Package obslog wraps the standard library's structured logger with the
// small set of conveniences every component in this module needs:
// construction from a level/format pair, and chained With* helpers that
// attach collection/operation context without every caller repeating
// slog.String/slog.Int boilerplate.
package obslog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler used to render log records.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Logger is a thin façade over *slog.Logger. It exists so call sites in
// this module spell out intent ("collection", "operation") instead of
// repeating slog.String at every call site.
type Logger struct {
	l *slog.Logger
}

// New builds a Logger writing to w at the given level and format. An
// empty levelName defaults to "info"; unrecognized names also default
// to info rather than failing construction, since logging must never be
// the reason a database fails to open.
func New(w io.Writer, levelName string, format Format) *Logger {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Level
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{l: slog.New(handler)}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (lg *Logger) WithCollection(name string) *Logger {
	return &Logger{l: lg.l.With(slog.String("collection", name))}
}

func (lg *Logger) WithOp(op string) *Logger {
	return &Logger{l: lg.l.With(slog.String("op", op))}
}

func (lg *Logger) With(args ...any) *Logger {
	return &Logger{l: lg.l.With(args...)}
}

func (lg *Logger) Debug(msg string, args ...any) { lg.l.Debug(msg, args...) }
func (lg *Logger) Info(msg string, args ...any)  { lg.l.Info(msg, args...) }
func (lg *Logger) Warn(msg string, args ...any)  { lg.l.Warn(msg, args...) }
func (lg *Logger) Error(msg string, args ...any) { lg.l.Error(msg, args...) }

func (lg *Logger) DebugCtx(ctx context.Context, msg string, args ...any) {
	lg.l.DebugContext(ctx, msg, args...)
}
func (lg *Logger) InfoCtx(ctx context.Context, msg string, args ...any) {
	lg.l.InfoContext(ctx, msg, args...)
}
func (lg *Logger) WarnCtx(ctx context.Context, msg string, args ...any) {
	lg.l.WarnContext(ctx, msg, args...)
}
func (lg *Logger) ErrorCtx(ctx context.Context, msg string, args ...any) {
	lg.l.ErrorContext(ctx, msg, args...)
}

// Std returns the underlying *slog.Logger for callers that need to pass
// it to a third-party library expecting one directly (pkg/storage opens
// badger with its logger disabled rather than routing it through here).
func (lg *Logger) Std() *slog.Logger { return lg.l }
