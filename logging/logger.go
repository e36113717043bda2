// Package logging wraps log/slog with the field names used across the cache.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/krisalay/optimistic-cache/types"
)

// Logger wraps slog.Logger with cache-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithKey adds the resource key to every record.
func (l *Logger) WithKey(key types.Key) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key.String()),
	}
}

// WithComponent tags records with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogStaleFetch logs a fetch result that arrived after its key was cancelled.
func (l *Logger) LogStaleFetch(ctx context.Context, key types.Key, gen, current uint64) {
	l.DebugContext(ctx, "stale fetch discarded",
		"key", key.String(),
		"fetch_gen", gen,
		"in_flight", current,
	)
}

// LogRollback logs a snapshot being restored.
func (l *Logger) LogRollback(ctx context.Context, key types.Key, seq uint64, superseded int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "rollback failed",
			"key", key.String(),
			"snapshot", seq,
			"error", err,
		)
	case superseded > 0:
		l.WarnContext(ctx, "rollback overwrote newer pending mutations",
			"key", key.String(),
			"snapshot", seq,
			"superseded", superseded,
		)
	default:
		l.DebugContext(ctx, "rollback completed",
			"key", key.String(),
			"snapshot", seq,
		)
	}
}

// LogReconcile logs a temp record being replaced or discarded.
func (l *Logger) LogReconcile(ctx context.Context, op string, key types.Key, tempID string, found bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"key", key.String(),
			"temp_id", tempID,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, op+" completed",
		"key", key.String(),
		"temp_id", tempID,
		"found", found,
	)
}

// LogSettle logs the outcome of a pending mutation. cause is the network failure, if any.
func (l *Logger) LogSettle(ctx context.Context, handles int, tempID string, cause, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "settle failed",
			"handles", handles,
			"temp_id", tempID,
			"error", err,
		)
	case cause != nil:
		l.InfoContext(ctx, "mutation rolled back",
			"handles", handles,
			"temp_id", tempID,
			"cause", cause,
		)
	default:
		l.DebugContext(ctx, "mutation confirmed",
			"handles", handles,
			"temp_id", tempID,
		)
	}
}
