package es

import "context"

// Logger is a minimal structured logging interface for observability.
// It is optional everywhere it appears: components treat a nil Logger as
// disabled with zero overhead. Implement it to plug in a preferred
// logging backend.
type Logger interface {
	// Debug logs verbose operational detail.
	Debug(ctx context.Context, msg string, keyvals ...interface{})

	// Info logs significant events during normal operation.
	Info(ctx context.Context, msg string, keyvals ...interface{})

	// Error logs failures that require attention.
	Error(ctx context.Context, msg string, keyvals ...interface{})
}

// NoOpLogger discards all log output. It can be used as an explicit
// default when no logging is desired.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(_ context.Context, _ string, _ ...interface{}) {}

// Info implements Logger.
func (NoOpLogger) Info(_ context.Context, _ string, _ ...interface{}) {}

// Error implements Logger.
func (NoOpLogger) Error(_ context.Context, _ string, _ ...interface{}) {}
