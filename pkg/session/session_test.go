package session

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frameflow/frameflow/pkg/artifacts"
	"github.com/frameflow/frameflow/pkg/config"
	"github.com/frameflow/frameflow/pkg/idempotency"
	"github.com/frameflow/frameflow/pkg/provider/fakeprovider"
	"github.com/frameflow/frameflow/pkg/schema"
	"github.com/frameflow/frameflow/pkg/tools"
	"github.com/frameflow/frameflow/pkg/tools/faketools"
)

// fakeSink is an emitter.ByteSink over an in-memory buffer, the same
// role pkg/emitter's own test double plays.
type fakeSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (f *fakeSink) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Write(p)
}

func (f *fakeSink) Flush() {}

func (f *fakeSink) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.String()
}

func baseConfig() config.Config {
	c := config.Default()
	c.ModelID = "test-model"
	c.FrameTimeoutMS = 500
	c.MaxQueuedChunks = 128
	return c
}

func baseRegistry() tools.MapRegistry {
	return tools.MapRegistry{
		"places.search":   faketools.PlacesSearch(),
		"bookings.create": faketools.BookingsCreate(),
		"flaky.op":        faketools.NewFlakyOp(),
		"slow.op":         faketools.SlowOp(),
	}
}

func newController(sink *fakeSink, reg tools.Registry, cfg config.Config) *Controller {
	return New(sink, artifacts.NullSink{}, Deps{
		Provider:         fakeprovider.New(),
		Tools:            reg,
		SchemaRegistry:   schema.NewBuiltinRegistry(),
		IdempotencyCache: idempotency.New(),
		Config:           cfg,
	})
}

func TestController_HappyPath(t *testing.T) {
	sink := &fakeSink{}
	c := newController(sink, baseRegistry(), baseConfig())

	metrics := c.Run(context.Background(), Request{Prompt: "book a table", Mode: fakeprovider.ModeHappy})

	out := sink.String()
	require.Contains(t, out, `"name":"places.search"`)
	require.Contains(t, out, `"name":"bookings.create"`)
	require.Contains(t, out, `event: result.end`)
	require.Contains(t, out, `\"answer\":\"Booked at 7pm\"`)
	require.Contains(t, out, "event: done\n")
	require.False(t, metrics.Degraded)
	require.Equal(t, 1, metrics.Validation.OKResult)
	require.NotNil(t, metrics.ToolLatencyMS)
}

func TestController_RetryScenario(t *testing.T) {
	sink := &fakeSink{}
	cfg := baseConfig()
	cfg.ToolRetries = 1
	c := newController(sink, baseRegistry(), cfg)

	metrics := c.Run(context.Background(), Request{Prompt: "retry please", Mode: fakeprovider.ModeRetry})

	out := sink.String()
	require.Contains(t, out, `"attempt":2`)
	require.Contains(t, out, `\"answer\":\"Retry attempts 2\"`)
	require.Contains(t, out, "event: done\n")
	require.False(t, metrics.Degraded)
}

func TestController_TimeoutScenario(t *testing.T) {
	sink := &fakeSink{}
	cfg := baseConfig()
	cfg.ToolTimeoutMS = 20
	cfg.ToolRetries = 0
	c := newController(sink, baseRegistry(), cfg)

	metrics := c.Run(context.Background(), Request{Prompt: "this will time out", Mode: fakeprovider.ModeTimeout})

	out := sink.String()
	require.Contains(t, out, "event: tool.result")
	require.Contains(t, out, `"error":"tool timed out after 20ms"`)
	require.Contains(t, out, `\"answer\":\"Operation timed out\"`)
	require.False(t, metrics.Degraded)
}

func TestController_BackpressureScenario(t *testing.T) {
	sink := &fakeSink{}
	cfg := baseConfig()
	cfg.MaxQueuedChunks = 2 // tiny queue forces the emitter's overflow/yield path
	c := newController(sink, baseRegistry(), cfg)

	metrics := c.Run(context.Background(), Request{Prompt: "long answer please", Mode: fakeprovider.ModeBackpressure})

	out := sink.String()
	require.Equal(t, 12, strings.Count(out, "chunk-of-a-long-answer"))
	require.Contains(t, out, "event: result.end")
	require.Contains(t, out, "event: done\n")
	require.False(t, metrics.Degraded)
}

func TestController_RepairScenario(t *testing.T) {
	sink := &fakeSink{}
	cfg := baseConfig()
	cfg.RepairRetries = 1
	c := newController(sink, baseRegistry(), cfg)

	metrics := c.Run(context.Background(), Request{Prompt: "give me something invalid", Mode: fakeprovider.ModeRepair})

	out := sink.String()
	require.Equal(t, 2, strings.Count(out, "event: result.begin"), "the failing reply plus the one repair reply")
	require.Contains(t, out, `"error":"schema_repair_failed"`)
	require.Contains(t, out, "event: done\n")
	require.True(t, metrics.Degraded)
	require.Equal(t, 1, metrics.Validation.BadResult)
}

func TestController_SilenceScenario(t *testing.T) {
	sink := &fakeSink{}
	cfg := baseConfig()
	cfg.FrameTimeoutMS = 30
	c := newController(sink, baseRegistry(), cfg)

	metrics := c.Run(context.Background(), Request{Prompt: "go silent", Mode: fakeprovider.ModeSilence})

	out := sink.String()
	require.Contains(t, out, "event: error")
	require.Contains(t, out, `"code":"frame_timeout"`)
	require.NotContains(t, out, "event: done\n")
	require.True(t, metrics.Degraded)
}

func TestController_ProviderFallbackScenario(t *testing.T) {
	sink := &fakeSink{}
	c := newController(sink, baseRegistry(), baseConfig())

	metrics := c.Run(context.Background(), Request{Prompt: "nothing comes back", Mode: fakeprovider.ModeProviderFallback})

	out := sink.String()
	require.Contains(t, out, `\"error\":\"provider_no_result\"`)
	require.Contains(t, out, `\"model\":\"test-model\"`)
	require.Contains(t, out, "event: done\n")
	require.True(t, metrics.Degraded)
}

func TestController_ClientCancellationNeverEmitsDone(t *testing.T) {
	sink := &fakeSink{}
	c := newController(sink, baseRegistry(), baseConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.Run(ctx, Request{Prompt: "already canceled", Mode: fakeprovider.ModeHappy})

	out := sink.String()
	require.NotContains(t, out, "event: done\n")
}

// countingExecutor wraps a tools.Executor and tallies how many times
// Execute actually ran, distinguishing a genuine invocation from an
// idempotency-cache hit.
type countingExecutor struct {
	inner tools.Executor
	n     int64
}

func (e *countingExecutor) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	atomic.AddInt64(&e.n, 1)
	return e.inner.Execute(ctx, args)
}

func TestController_IdempotencyAcrossSessionsSharingACache(t *testing.T) {
	cache := idempotency.New()
	places := &countingExecutor{inner: faketools.PlacesSearch()}
	bookings := &countingExecutor{inner: faketools.BookingsCreate()}
	reg := tools.MapRegistry{
		"places.search":   places,
		"bookings.create": bookings,
	}
	cfg := baseConfig()

	run := func(key string) string {
		sink := &fakeSink{}
		c := New(sink, artifacts.NullSink{}, Deps{
			Provider:         fakeprovider.New(),
			Tools:            reg,
			SchemaRegistry:   schema.NewBuiltinRegistry(),
			IdempotencyCache: cache,
			Config:           cfg,
		})
		c.Run(context.Background(), Request{Prompt: "book a table", Mode: fakeprovider.ModeHappy, IdempotencyKey: key})
		return sink.String()
	}

	first := run("idem-key-1")
	second := run("idem-key-1")

	require.Equal(t, int64(1), atomic.LoadInt64(&places.n))
	require.Equal(t, int64(1), atomic.LoadInt64(&bookings.n))
	require.Contains(t, first, `"hits":1`)
	require.Contains(t, second, `"hits":1`)

	third := run("idem-key-2")
	require.Equal(t, int64(2), atomic.LoadInt64(&places.n))
	require.Contains(t, third, `"hits":1`)
}

func TestController_WritesPromptAndMetricsArtifacts(t *testing.T) {
	dir := t.TempDir()
	fs, err := artifacts.NewFSSink(dir, "test-session")
	require.NoError(t, err)

	sink := &fakeSink{}
	c := New(sink, fs, Deps{
		Provider:         fakeprovider.New(),
		Tools:            baseRegistry(),
		SchemaRegistry:   schema.NewBuiltinRegistry(),
		IdempotencyCache: idempotency.New(),
		Config:           baseConfig(),
	})

	metrics := c.Run(context.Background(), Request{Prompt: "book a table", Mode: fakeprovider.ModeHappy})
	require.False(t, metrics.Degraded)

	promptB, err := readFile(dir, "test-session", "prompt.json")
	require.NoError(t, err)
	require.Contains(t, string(promptB), `"book a table"`)

	metricsB, err := readFile(dir, "test-session", "metrics.json")
	require.NoError(t, err)
	require.Contains(t, string(metricsB), `"okResult"`)
}

func readFile(baseDir, sessionID, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(baseDir, sessionID, name))
}
