package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxLoggerKey struct{}

// WithLogger attaches a zap logger to the context.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, l)
}

// WithSession attaches a logger carrying the automation session identity.
// Every log line emitted through the context during the session carries
// the session id and instruction.
func WithSession(ctx context.Context, sessionID, instruction string) context.Context {
	l := FromContext(ctx).With(
		zap.String("session_id", sessionID),
		zap.String("instruction", instruction),
	)
	return WithLogger(ctx, l)
}

// WithStep derives a child context whose logger carries the step number.
func WithStep(ctx context.Context, step int) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(zap.Int("step", step)))
}

// FromContext retrieves the logger from context, falling back to the
// global zap logger when none is attached.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.L()
}

// L is a shorthand for FromContext.
func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx)
}
