// Package contextutil carries request-scoped values through context. At the
// moment that is only the logger: the HTTP middleware attaches one annotated
// with request fields, and handlers pull it back out.
package contextutil

import (
	"context"
	"log/slog"
)

type contextKey string

const loggerKey contextKey = "paperscan.logger"

// LoggerFromContext returns the logger stored in ctx, falling back to
// slog.Default so callers never need a nil check.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// LoggerKey returns the context key under which middleware stores the logger.
func LoggerKey() contextKey {
	return loggerKey
}
