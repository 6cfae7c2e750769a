package http

import (
	"cmp"
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return cmp.Or(logger, slog.Default())
}

// handlerLogger prefers the request scoped logger installed by RequestLogger and
// tags it with the handler and operation names.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := cmp.Or(LoggerFromContext(ctx), fallback, slog.Default())
	return logger.With(append([]any{"handler", handlerName, "operation", operation}, attrs...)...)
}
