package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// ObservedContext returns a context whose attached logger records every
// entry at debug level and above. Tests inspect the returned logs to
// assert on what a session logged.
func ObservedContext() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return WithLogger(context.Background(), zap.New(core)), logs
}

// NopContext returns a context whose attached logger discards everything.
func NopContext() context.Context {
	return WithLogger(context.Background(), zap.NewNop())
}
