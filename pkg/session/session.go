// Package session implements the stream session controller (C6): the
// single owner of one request's lifecycle, driving the provider ->
// tokenizer -> validator -> orchestrator -> emitter pipeline to
// completion. Grounded on two sources: the teacher's
// pkg/agent/toolloop.go ExecuteWithMessages step loop (call model, check
// for tool calls, append tool outcomes, continue or break) generalizes
// directly into the provider-round loop below; the frame-silence timer,
// client-cancellation short-circuit, and tool-continuation bookkeeping
// this package also needs come from
// other_examples/…EternisAI-enchanted-proxy…streaming-session.go's
// StreamSession (upstream read goroutine racing a stop context,
// maxContinuations-style round bound), which the teacher's own
// non-streaming agent loop does not model.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/frameflow/frameflow/pkg/artifacts"
	"github.com/frameflow/frameflow/pkg/config"
	"github.com/frameflow/frameflow/pkg/emitter"
	"github.com/frameflow/frameflow/pkg/idempotency"
	"github.com/frameflow/frameflow/pkg/orchestrator"
	"github.com/frameflow/frameflow/pkg/provider"
	"github.com/frameflow/frameflow/pkg/repair"
	"github.com/frameflow/frameflow/pkg/schema"
	"github.com/frameflow/frameflow/pkg/sentinel"
	"github.com/frameflow/frameflow/pkg/telemetry"
	"github.com/frameflow/frameflow/pkg/tools"
)

// MaxRounds bounds how many provider rounds one session may drive,
// spec.md §4.6's literal "loop up to MAX_ROUNDS (5)".
const MaxRounds = 5

// assistantReplySchema is the one schema name the fallback and repair
// paths always address; ordinary Result/Object frames name their own
// schema via the sentinel header.
const assistantReplySchema = "AssistantReply"

// Request is one inbound POST /v1/stream body plus its Idempotency-Key
// header.
type Request struct {
	Prompt         string
	Mode           string
	TestKey        string
	IdempotencyKey string
}

// ValidationCounts tallies every ValidationNote recorded during a
// session, the shape spec.md §3's SessionMetrics.validation names.
type ValidationCounts struct {
	OKJSON    int `json:"okJson"`
	BadJSON   int `json:"badJson"`
	OKResult  int `json:"okResult"`
	BadResult int `json:"badResult"`
}

// Metrics is spec.md §3's SessionMetrics, written to metrics.json at
// session end.
type Metrics struct {
	TotalMS       int64            `json:"totalMs"`
	ToolLatencyMS *int64           `json:"toolLatencyMs,omitempty"`
	Model         string           `json:"model"`
	Validation    ValidationCounts `json:"validation"`
	Degraded      bool             `json:"degraded"`
}

// Deps bundles every collaborator the Controller drives. All fields are
// required except Logger and Tracer, which default to no-ops.
type Deps struct {
	Provider         provider.Client
	Tools            tools.Registry
	SchemaRegistry   *schema.Registry
	IdempotencyCache *idempotency.Cache
	Config           config.Config
	Logger           telemetry.Logger
	Tracer           trace.Tracer
}

// frameMeta tracks an in-flight Object/Result frame's accumulated body
// and declared schema, since the tokenizer only hands back deltas and a
// final length, not the accumulated bytes themselves.
type frameMeta struct {
	kind   sentinel.Kind
	schema string
	body   []byte
}

// Controller owns one request's FrameState set, validator buffers,
// emitter, and artifacts writer, per spec.md §3's ownership rule. It is
// not safe for concurrent use; callers run exactly one Run per instance.
type Controller struct {
	deps      Deps
	tokenizer *sentinel.Tokenizer
	orch      *orchestrator.Orchestrator
	emit      *emitter.Emitter
	artifacts artifacts.Sink
	tracer    trace.Tracer
	logger    telemetry.Logger

	sessionID      string
	idempotencyKey string
	closed         bool

	frames    map[string]*frameMeta
	validate  ValidationCounts
	degraded  bool
	repairBud *repair.Budget

	toolLatencyMS int64
	sawAnyTool    bool
}

// Option customizes a Controller at construction time.
type Option func(*Controller)

// WithSessionID pins the Controller's id instead of letting New mint one,
// so a transport that must open an artifacts.Sink before the Controller
// exists can generate the id first and hand it to both.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// New builds a Controller for one request. sink is the transport's byte
// sink (e.g. an http.ResponseWriter+Flusher); artifactSink persists the
// session's durable record.
func New(sink emitter.ByteSink, artifactSink artifacts.Sink, deps Deps, opts ...Option) *Controller {
	if deps.Logger == nil {
		deps.Logger = telemetry.NoopLogger{}
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("frameflow/session")
	}
	orch := orchestrator.New(deps.Tools, deps.IdempotencyCache, deps.Config, deps.Logger, orchestrator.WithTracer(deps.Tracer))
	c := &Controller{
		deps:      deps,
		tokenizer: sentinel.New(),
		orch:      orch,
		emit:      emitter.New(sink, deps.Config.MaxQueuedChunks),
		artifacts: artifactSink,
		tracer:    deps.Tracer,
		logger:    deps.Logger,
		sessionID: uuid.NewString(),
		frames:    make(map[string]*frameMeta),
		repairBud: repair.NewBudget(repair.Options{MaxAttempts: deps.Config.RepairRetries}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID is the id assigned at New, the same id tagged onto the
// session.run span and the session's log lines — transports use it
// to name the artifact directory so a request's trace and its durable
// record share one key.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// errFrameTimeout and errClientCanceled are driveRound's two distinct
// abnormal-round-end sentinels; they determine how Run unwinds.
var (
	errFrameTimeout  = errors.New("frame timeout")
	errClientCanceled = errors.New("client canceled")
)

// Run drives the full session lifecycle to completion (or to whatever
// terminal condition fires first) and returns the metrics that were
// written to metrics.json. The whole run executes inside one session
// span (noop unless the caller supplied a real tracer), the per-session
// half of the tracing pair the orchestrator's per-tool-attempt spans
// complete.
func (c *Controller) Run(ctx context.Context, req Request) Metrics {
	metrics, _ := telemetry.RecordSpan(ctx, c.tracer, telemetry.SpanOptions{
		Name:        "session.run",
		EndWhenDone: true,
	}, func(ctx context.Context, span trace.Span) (Metrics, error) {
		span.SetAttributes(
			attribute.String("session.id", c.sessionID),
			attribute.String("session.mode", req.Mode),
		)
		return c.run(ctx, req), nil
	})
	return metrics
}

func (c *Controller) run(ctx context.Context, req Request) Metrics {
	start := time.Now()
	c.idempotencyKey = req.IdempotencyKey

	_ = c.artifacts.WritePrompt(map[string]interface{}{
		"prompt":      req.Prompt,
		"mode":        req.Mode,
		"testKey":     req.TestKey,
		"modelId":     c.deps.Config.ModelID,
		"temperature": c.deps.Config.Temperature,
		"seed":        c.deps.Config.Seed,
		"maxTokens":   c.deps.Config.MaxTokens,
	})

	messages := c.initialMessages(req)

	resultSeen := false
roundLoop:
	for round := 0; round < MaxRounds; round++ {
		if ctx.Err() != nil {
			c.closed = true
			break roundLoop
		}

		preq := provider.Request{
			Messages:    messages,
			ModelID:     c.deps.Config.ModelID,
			Temperature: c.deps.Config.Temperature,
			Seed:        c.deps.Config.Seed,
			MaxTokens:   c.deps.Config.MaxTokens,
		}
		stream, err := c.deps.Provider.Stream(ctx, preq)
		if err != nil {
			c.sendError("internal_error", err.Error())
			c.closed = true
			break roundLoop
		}

		pendingTool, roundErr := c.driveRound(ctx, stream, &resultSeen)
		stream.Close()

		switch {
		case errors.Is(roundErr, errFrameTimeout):
			c.logger.Warn(ctx, "frame-silence timeout, closing session", "session_id", c.sessionID, "round", round)
			c.sendError("frame_timeout", fmt.Sprintf("no frame activity within %s", c.deps.Config.FrameTimeout()))
			c.closed = true
			break roundLoop
		case errors.Is(roundErr, errClientCanceled):
			c.logger.Debug(ctx, "client disconnected, closing session", "session_id", c.sessionID, "round", round)
			c.closed = true
			break roundLoop
		}

		if resultSeen {
			break roundLoop
		}
		if pendingTool == nil {
			break roundLoop
		}

		toolStart := time.Now()
		res := c.orch.Invoke(ctx, *pendingTool)
		c.toolLatencyMS += time.Since(toolStart).Milliseconds()
		c.sawAnyTool = true

		c.sendToolResult(res)
		messages = append(messages, provider.Message{
			Role:    "tool",
			Content: fmt.Sprintf("TOOL_RESULT id=%s name=%s\n%s", res.ID, res.Name, toolResultJSON(res)),
		})
	}

	if !c.closed && !resultSeen {
		c.emitFallback()
		resultSeen = true
	}

	return c.finish(start, resultSeen)
}

func (c *Controller) initialMessages(req Request) []provider.Message {
	var messages []provider.Message
	if req.Mode != "" {
		messages = append(messages, provider.Message{Role: "system", Content: "mode=" + req.Mode})
	}
	messages = append(messages, provider.Message{Role: "user", Content: req.Prompt})
	return messages
}

// driveRound reads stream until it ends (EOF/error), a tool.call frame
// closes (the round is aborted to run the tool), the frame-silence
// timer expires, or the client disconnects. resultSeen is set to true
// the moment a successful (or repaired) terminal reply is emitted.
func (c *Controller) driveRound(ctx context.Context, stream provider.TokenStream, resultSeen *bool) (*orchestrator.ToolCall, error) {
	deadline := time.Now().Add(c.deps.Config.FrameTimeout())

	for {
		waitCtx, cancel := context.WithDeadline(ctx, deadline)
		chunk, err := stream.Next(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, errClientCanceled
			}
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return nil, errFrameTimeout
			}
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			// Any other provider error ends the round normally; the
			// fallback path (no result.end observed) takes over.
			return nil, nil
		}

		deadline = time.Now().Add(c.deps.Config.FrameTimeout())

		events := c.tokenizer.Feed([]byte(chunk))
		for _, ev := range events {
			if ctx.Err() != nil {
				return nil, errClientCanceled
			}
			toolCall, done := c.handleEvent(ev, resultSeen)
			if toolCall != nil || done {
				return toolCall, nil
			}
		}
	}
}

// handleEvent dispatches one tokenizer event to the wire, to the
// artifact log, and to validation bookkeeping. It returns a non-nil
// ToolCall the moment a tool.call frame closes (the caller must abort
// the round), or done=true the moment a terminal reply is emitted.
func (c *Controller) handleEvent(ev sentinel.Event, resultSeen *bool) (toolCall *orchestrator.ToolCall, done bool) {
	switch ev.Type {
	case sentinel.EventTextDelta:
		// Discardable by upstream; recorded only for the frame log.
		c.appendFrame("text.delta", map[string]string{"chunk": ev.Chunk})

	case sentinel.EventJSONBegin:
		c.frames[ev.ID] = &frameMeta{kind: sentinel.KindObject, schema: ev.Schema}
		c.send("json.begin", beginPayload{ID: ev.ID, Schema: ev.Schema})

	case sentinel.EventJSONDelta:
		if f := c.frames[ev.ID]; f != nil {
			f.body = append(f.body, ev.Chunk...)
		}
		c.send("json.delta", deltaPayload{ID: ev.ID, Chunk: ev.Chunk})

	case sentinel.EventJSONEnd:
		f := c.frames[ev.ID]
		delete(c.frames, ev.ID)
		c.send("json.end", endPayload{ID: ev.ID, Length: ev.Length})
		if f != nil {
			ok, _ := c.validateBody(f.schema, f.body)
			if ok {
				c.validate.OKJSON++
			} else {
				c.validate.BadJSON++
			}
		}

	case sentinel.EventToolCall:
		c.send("tool.call", toolCallPayload{ID: ev.ID, Name: ev.Name, Args: ev.Args})
		return &orchestrator.ToolCall{ID: ev.ID, Name: ev.Name, Args: ev.Args, IdempotencyKey: c.idempotencyKey}, false

	case sentinel.EventResultBegin:
		c.frames[ev.ID] = &frameMeta{kind: sentinel.KindResult, schema: ev.Schema}
		c.send("result.begin", beginPayload{ID: ev.ID, Schema: ev.Schema})

	case sentinel.EventResultDelta:
		if f := c.frames[ev.ID]; f != nil {
			f.body = append(f.body, ev.Chunk...)
		}
		c.send("result.delta", deltaPayload{ID: ev.ID, Chunk: ev.Chunk})

	case sentinel.EventResultEnd:
		f := c.frames[ev.ID]
		delete(c.frames, ev.ID)
		c.send("result.end", endPayload{ID: ev.ID, Length: ev.Length})
		if f == nil {
			return nil, false
		}
		ok, errs := c.validateBody(f.schema, f.body)
		if ok {
			c.validate.OKResult++
			*resultSeen = true
			return nil, true
		}
		c.validate.BadResult++
		c.repairResult(errs)
		*resultSeen = true
		return nil, true
	}
	return nil, false
}

func (c *Controller) validateBody(schemaName string, body []byte) (bool, []string) {
	v, ok := c.deps.SchemaRegistry.Lookup(schemaName)
	if !ok {
		return false, []string{"unknown schema: " + schemaName}
	}
	return v.Validate(body)
}

// repairResult runs the repair module once per budget and emits its
// minimal reply as a fresh Result frame with a new id, per spec.md
// §4.3's "no second-order repair." If the budget is already exhausted
// (a prior reply frame in this same session already consumed it), the
// failing frame's content stands as emitted and the session is simply
// marked degraded.
func (c *Controller) repairResult(validatorErrors []string) {
	c.degraded = true
	if !c.repairBud.TryConsume() {
		return
	}
	id := uuid.NewString()
	body, err := repair.BuildJSON(validatorErrors)
	if err != nil {
		return
	}
	c.send("result.begin", beginPayload{ID: id, Schema: assistantReplySchema})
	c.send("result.delta", deltaPayload{ID: id, Chunk: string(body)})
	c.send("result.end", endPayload{ID: id, Length: len(body)})
}

// emitFallback emits spec.md §4.6 step 3's degraded reply when no
// result.end was observed across every round.
func (c *Controller) emitFallback() {
	c.degraded = true
	id := uuid.NewString()
	reply := map[string]interface{}{
		"answer":    "",
		"citations": []string{},
		"diagnostics": map[string]string{
			"error": "provider_no_result",
			"model": c.deps.Config.ModelID,
		},
	}
	body, err := json.Marshal(reply)
	if err != nil {
		return
	}
	c.send("result.begin", beginPayload{ID: id, Schema: assistantReplySchema})
	c.send("result.delta", deltaPayload{ID: id, Chunk: string(body)})
	c.send("result.end", endPayload{ID: id, Length: len(body)})
}

func (c *Controller) sendToolResult(res orchestrator.ToolResult) {
	var result interface{} = res.Result
	if res.Error != "" {
		result = toolErrorResult{Error: res.Error}
	}
	c.send("tool.result", toolResultPayload{ID: res.ID, Name: res.Name, Result: result})
}

func (c *Controller) sendError(code, message string) {
	c.send("error", errorPayload{Code: code, Message: message})
}

// send is the single chokepoint for every wire event: once the session
// is closed (client disconnect, frame timeout), all further production
// paths short-circuit per spec.md §4.6's cancellation rule.
func (c *Controller) send(name string, payload interface{}) {
	if c.closed {
		return
	}
	c.emit.Send(name, payload)
	c.appendFrame(name, payload)
}

func (c *Controller) appendFrame(event string, data interface{}) {
	_ = c.artifacts.AppendFrame(artifacts.FrameLogEntry{
		T:     time.Now().UnixMilli(),
		Event: event,
		Data:  data,
	})
}

// finish emits done{} (unless the session was closed by cancellation or
// timeout, which forbid it), writes metrics, and closes the emitter and
// artifact sink.
func (c *Controller) finish(start time.Time, resultSeen bool) Metrics {
	if !c.closed {
		c.send("done", struct{}{})
	}

	metrics := Metrics{
		TotalMS:    time.Since(start).Milliseconds(),
		Model:      c.deps.Config.ModelID,
		Validation: c.validate,
		Degraded:   c.degraded || !resultSeen,
	}
	if c.sawAnyTool {
		latency := c.toolLatencyMS
		metrics.ToolLatencyMS = &latency
	}
	_ = c.artifacts.WriteMetrics(metrics)

	c.emit.Close()
	_ = c.artifacts.Close()
	return metrics
}

func toolResultJSON(res orchestrator.ToolResult) string {
	if res.Error != "" {
		b, _ := json.Marshal(toolErrorResult{Error: res.Error})
		return string(b)
	}
	if len(res.Result) == 0 {
		return "{}"
	}
	return string(res.Result)
}
