// Package ctxlog carries a slog.Logger through context.Context so that
// per-run and per-unit attributes travel with the call chain.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type so context keys from other packages cannot collide.
type key struct{}

var loggerKey = key{}

// WithLogger returns a child context with the given logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from a context, falling back to the
// process-wide default logger when none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
