package flatgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with flatgo-specific helpers so index operations
// log consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses the default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))
}

// LogInsert logs one insert operation.
func (l *Logger) LogInsert(ctx context.Context, label uint64, ok bool, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "insert failed", "label", label, "error", err)
	case !ok:
		l.WarnContext(ctx, "insert refused: index full", "label", label)
	default:
		l.DebugContext(ctx, "insert completed", "label", label)
	}
}

// LogSearch logs one search operation.
func (l *Logger) LogSearch(ctx context.Context, k, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "k", k, "error", err)
	} else {
		l.DebugContext(ctx, "search completed", "k", k, "results", found)
	}
}

// LogReorder logs a relabeling pass.
func (l *Logger) LogReorder(ctx context.Context, strategy string, nodes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reorder failed", "strategy", strategy, "error", err)
	} else {
		l.InfoContext(ctx, "reorder completed", "strategy", strategy, "nodes", nodes)
	}
}

// LogSnapshot logs a save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed", "name", name, "error", err)
	} else {
		l.InfoContext(ctx, "snapshot "+op+" completed", "name", name)
	}
}
