// Package orchestrator executes a tool.call frame with idempotency
// lookup, a per-attempt timeout guard, and fixed linear retry backoff,
// grounded on the teacher's pkg/agent/toolloop.go executeTools (per-call
// dispatch, structured outcome reporting) and pkg/internal/retry.Do
// (attempt loop with backoff), adapted from retry.Do's exponential
// backoff to spec.md's fixed `min(100*(attempt+1), 500)ms` schedule and
// from toolloop's whole-call timeout to an explicit per-attempt
// context.WithTimeout the way pkg/internal/polling wraps a status check.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/frameflow/frameflow/pkg/config"
	"github.com/frameflow/frameflow/pkg/idempotency"
	"github.com/frameflow/frameflow/pkg/telemetry"
	"github.com/frameflow/frameflow/pkg/tools"
)

// ToolCall is everything the orchestrator needs to execute one
// tool.call frame. RetriesOverride implements spec.md §4.4's
// "retries_override?" test-only escape hatch (induced timeout / induced
// one-shot failure paths that disable retries).
type ToolCall struct {
	ID             string
	Name           string
	Args           json.RawMessage // nil when the frame body failed to parse
	IdempotencyKey string
	RetriesOverride *int
}

// ToolResult is the outcome reported back as a single tool.result event.
// Exactly one of Result/Error is meaningful.
type ToolResult struct {
	ID     string
	Name   string
	Result json.RawMessage
	Error  string
}

// Orchestrator executes tool calls against a shared tools.Registry and
// process-wide idempotency.Cache.
type Orchestrator struct {
	registry tools.Registry
	cache    *idempotency.Cache
	cfg      config.Config
	logger   telemetry.Logger
	tracer   trace.Tracer
}

// Option configures optional Orchestrator behavior beyond New's required
// arguments.
type Option func(*Orchestrator)

// WithTracer attaches a tracer so every tool attempt runs inside its own
// span, the per-tool-attempt half of the tracing pair the session
// controller's per-session span completes. Omitting it (the default)
// leaves attempts untraced via a noop tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// New builds an Orchestrator. A nil logger defaults to telemetry.NoopLogger.
func New(registry tools.Registry, cache *idempotency.Cache, cfg config.Config, logger telemetry.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	o := &Orchestrator{registry: registry, cache: cache, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("frameflow/orchestrator")
	}
	return o
}

// Invoke runs call.Name through the Pending -> Running ->
// (Succeeded | TimedOut | Errored) state machine spec.md §4.4 describes,
// returning exactly one terminal ToolResult.
func (o *Orchestrator) Invoke(ctx context.Context, call ToolCall) ToolResult {
	if call.Args == nil {
		return ToolResult{ID: call.ID, Name: call.Name, Error: "malformed tool arguments"}
	}

	key := idempotency.Key(call.IdempotencyKey, call.Name, call.Args)
	if entry, ok := o.cache.Get(key); ok {
		o.logger.Debug(ctx, "tool call served from idempotency cache", "id", call.ID, "name", call.Name)
		return entryToResult(call, entry)
	}

	executor, ok := o.registry.Lookup(call.Name)
	if !ok {
		return ToolResult{ID: call.ID, Name: call.Name, Error: "Unknown tool"}
	}

	retries := o.cfg.ToolRetries
	if call.RetriesOverride != nil {
		retries = *call.RetriesOverride
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		result, err := o.runOnceTraced(ctx, call, executor, attempt)
		if err == nil {
			o.cache.Put(key, idempotency.Entry{Result: result})
			return ToolResult{ID: call.ID, Name: call.Name, Result: result}
		}
		lastErr = err
		o.logger.Warn(ctx, "tool attempt failed", "id", call.ID, "name", call.Name, "attempt", attempt, "err", err)

		if attempt == retries {
			break
		}
		if err := o.sleepBackoff(ctx, attempt); err != nil {
			return ToolResult{ID: call.ID, Name: call.Name, Error: err.Error()}
		}
	}
	return ToolResult{ID: call.ID, Name: call.Name, Error: lastErr.Error()}
}

// runOnceTraced wraps one attempt in its own span (the per-tool-attempt
// half of the tracing pair the session controller's per-session span
// completes), noop by default per telemetry.GetTracer's gating.
func (o *Orchestrator) runOnceTraced(ctx context.Context, call ToolCall, executor tools.Executor, attempt int) (json.RawMessage, error) {
	return telemetry.RecordSpan(ctx, o.tracer, telemetry.SpanOptions{
		Name:        "tool.attempt",
		EndWhenDone: true,
	}, func(ctx context.Context, span trace.Span) (json.RawMessage, error) {
		span.SetAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.ID),
			attribute.Int("tool.attempt", attempt),
		)
		return o.runOnce(ctx, executor, call.Args)
	})
}

func (o *Orchestrator) runOnce(ctx context.Context, executor tools.Executor, args json.RawMessage) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout())
	defer cancel()

	result, err := executor.Execute(attemptCtx, args)
	if err == nil {
		return result, nil
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("tool timed out after %s", o.cfg.ToolTimeout())
	}
	return nil, err
}

// sleepBackoff waits min(100*(attempt+1), 500)ms, or returns early with
// ctx's error if the caller's context ends first (e.g. client
// cancellation mid-retry).
func (o *Orchestrator) sleepBackoff(ctx context.Context, attempt int) error {
	ms := 100 * (attempt + 1)
	if ms > 500 {
		ms = 500
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func entryToResult(call ToolCall, e idempotency.Entry) ToolResult {
	if e.Err != "" {
		return ToolResult{ID: call.ID, Name: call.Name, Error: e.Err}
	}
	return ToolResult{ID: call.ID, Name: call.Name, Result: e.Result}
}
