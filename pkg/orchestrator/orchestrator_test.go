package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameflow/frameflow/pkg/config"
	"github.com/frameflow/frameflow/pkg/idempotency"
	"github.com/frameflow/frameflow/pkg/tools"
	"github.com/frameflow/frameflow/pkg/tools/faketools"
)

func testConfig() config.Config {
	c := config.Default()
	c.ToolTimeoutMS = 50
	c.ToolRetries = 1
	return c
}

func TestInvoke_UnknownTool(t *testing.T) {
	o := New(tools.MapRegistry{}, idempotency.New(), testConfig(), nil)
	res := o.Invoke(context.Background(), ToolCall{ID: "t1", Name: "nope", Args: json.RawMessage(`{}`)})
	assert.Equal(t, "Unknown tool", res.Error)
}

func TestInvoke_MalformedArgs(t *testing.T) {
	o := New(tools.MapRegistry{}, idempotency.New(), testConfig(), nil)
	res := o.Invoke(context.Background(), ToolCall{ID: "t1", Name: "nope", Args: nil})
	assert.Equal(t, "malformed tool arguments", res.Error)
}

func TestInvoke_Success(t *testing.T) {
	reg := tools.MapRegistry{"places.search": faketools.PlacesSearch()}
	o := New(reg, idempotency.New(), testConfig(), nil)

	res := o.Invoke(context.Background(), ToolCall{ID: "t1", Name: "places.search", Args: json.RawMessage(`{"q":"pizza"}`)})
	require.Empty(t, res.Error)
	assert.JSONEq(t, `{"hits":1,"name":"Luigi's"}`, string(res.Result))
}

func TestInvoke_RetrySucceedsOnSecondAttempt(t *testing.T) {
	flaky := faketools.NewFlakyOp()
	reg := tools.MapRegistry{"flaky.op": flaky}
	o := New(reg, idempotency.New(), testConfig(), nil)

	res := o.Invoke(context.Background(), ToolCall{ID: "t1", Name: "flaky.op", Args: json.RawMessage(`{"key":"rt-1"}`)})
	require.Empty(t, res.Error)
	assert.JSONEq(t, `{"attempt":2}`, string(res.Result))
}

func TestInvoke_ExhaustsRetriesAndReportsError(t *testing.T) {
	cfg := testConfig()
	cfg.ToolRetries = 0 // flaky.op needs 2 attempts; with 0 retries it never succeeds
	flaky := faketools.NewFlakyOp()
	reg := tools.MapRegistry{"flaky.op": flaky}
	o := New(reg, idempotency.New(), cfg, nil)

	res := o.Invoke(context.Background(), ToolCall{ID: "t1", Name: "flaky.op", Args: json.RawMessage(`{"key":"rt-2"}`)})
	assert.NotEmpty(t, res.Error)
}

func TestInvoke_TimeoutProducesErrorResult(t *testing.T) {
	cfg := testConfig()
	cfg.ToolTimeoutMS = 10
	cfg.ToolRetries = 0
	reg := tools.MapRegistry{"slow.op": faketools.SlowOp()}
	o := New(reg, idempotency.New(), cfg, nil)

	start := time.Now()
	res := o.Invoke(context.Background(), ToolCall{ID: "t1", Name: "slow.op", Args: json.RawMessage(`{}`)})
	assert.NotEmpty(t, res.Error)
	assert.Less(t, time.Since(start), time.Second)
}

func TestInvoke_RetriesOverrideDisablesRetry(t *testing.T) {
	cfg := testConfig()
	cfg.ToolRetries = 5
	zero := 0
	flaky := faketools.NewFlakyOp()
	reg := tools.MapRegistry{"flaky.op": flaky}
	o := New(reg, idempotency.New(), cfg, nil)

	res := o.Invoke(context.Background(), ToolCall{
		ID: "t1", Name: "flaky.op", Args: json.RawMessage(`{"key":"rt-override"}`), RetriesOverride: &zero,
	})
	assert.NotEmpty(t, res.Error)
}

func TestInvoke_IdempotentCallsShareCachedResult(t *testing.T) {
	reg := tools.MapRegistry{"places.search": faketools.PlacesSearch()}
	cache := idempotency.New()
	o := New(reg, cache, testConfig(), nil)

	args := json.RawMessage(`{"q":"pizza"}`)
	res1 := o.Invoke(context.Background(), ToolCall{ID: "t1", Name: "places.search", Args: args, IdempotencyKey: "idem-1"})
	res2 := o.Invoke(context.Background(), ToolCall{ID: "t2", Name: "places.search", Args: args, IdempotencyKey: "idem-1"})

	assert.JSONEq(t, string(res1.Result), string(res2.Result))
}

func TestInvoke_DifferentIdempotencyKeyStillSucceeds(t *testing.T) {
	flaky := faketools.NewFlakyOp()
	reg := tools.MapRegistry{"flaky.op": flaky}
	o := New(reg, idempotency.New(), testConfig(), nil)

	res := o.Invoke(context.Background(), ToolCall{
		ID: "t3", Name: "flaky.op", Args: json.RawMessage(`{"key":"rt-3"}`), IdempotencyKey: "idem-2",
	})
	assert.Empty(t, res.Error)
}
