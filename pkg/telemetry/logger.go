package telemetry

import (
	"context"
	"log"
)

// Logger is the structured logging interface the session controller,
// orchestrator, and HTTP transport log through. The teacher has no dedicated
// logging package of its own (its example binaries call log.Printf
// directly); this is the shape its library code implies instead — a
// small leveled interface with key/value pairs, defaulting to a no-op so
// library code never forces a logging backend on its caller.
type Logger interface {
	Debug(ctx context.Context, msg string, kv ...interface{})
	Info(ctx context.Context, msg string, kv ...interface{})
	Warn(ctx context.Context, msg string, kv ...interface{})
	Error(ctx context.Context, msg string, kv ...interface{})
}

// NoopLogger discards every call. It is the default Logger for a
// session.Controller so telemetry wiring is strictly opt-in.
type NoopLogger struct{}

func (NoopLogger) Debug(context.Context, string, ...interface{}) {}
func (NoopLogger) Info(context.Context, string, ...interface{})  {}
func (NoopLogger) Warn(context.Context, string, ...interface{})  {}
func (NoopLogger) Error(context.Context, string, ...interface{}) {}

var _ Logger = NoopLogger{}

// StdLogger writes every call through the standard library's log
// package, the same log.Printf the teacher's example binaries (e.g.
// examples/chi-server) call directly rather than through a logging
// abstraction. cmd/gateway uses this as its default Logger.
type StdLogger struct{}

// NewStdLogger returns a Logger backed by the standard library logger.
func NewStdLogger() StdLogger {
	return StdLogger{}
}

func (StdLogger) Debug(_ context.Context, msg string, kv ...interface{}) {
	log.Println(append([]interface{}{"DEBUG", msg}, kv...)...)
}

func (StdLogger) Info(_ context.Context, msg string, kv ...interface{}) {
	log.Println(append([]interface{}{"INFO", msg}, kv...)...)
}

func (StdLogger) Warn(_ context.Context, msg string, kv ...interface{}) {
	log.Println(append([]interface{}{"WARN", msg}, kv...)...)
}

func (StdLogger) Error(_ context.Context, msg string, kv ...interface{}) {
	log.Println(append([]interface{}{"ERROR", msg}, kv...)...)
}

var _ Logger = StdLogger{}
