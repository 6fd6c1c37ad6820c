// Package faketools provides canned tool.Executor implementations used
// only by tests and by pkg/provider/fakeprovider-driven scenarios: the
// same role testutil.MockLanguageModel plays for provider streaming.
package faketools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/frameflow/frameflow/pkg/tools"
)

// PlacesSearch always succeeds, for the happy-path scenario.
func PlacesSearch() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(map[string]interface{}{"hits": 1, "name": "Luigi's"})
	})
}

// BookingsCreate always succeeds, for the happy-path scenario.
func BookingsCreate() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(map[string]interface{}{"confirmation": "OK"})
	})
}

// FlakyOp fails on its first attempt per distinct "key" argument and
// succeeds from the second attempt on, reporting how many attempts it
// took — the retry_test scenario's tool.
type FlakyOp struct {
	mu       sync.Mutex
	attempts map[string]int
}

func NewFlakyOp() *FlakyOp {
	return &FlakyOp{attempts: make(map[string]int)}
}

func (f *FlakyOp) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Key string `json:"key"`
	}
	_ = json.Unmarshal(args, &in)

	f.mu.Lock()
	f.attempts[in.Key]++
	attempt := f.attempts[in.Key]
	f.mu.Unlock()

	if attempt < 2 {
		return nil, errors.New("transient failure")
	}
	return json.Marshal(map[string]interface{}{"attempt": attempt})
}

// SlowOp never returns on its own; it only unblocks when ctx is canceled,
// modeling a tool whose wall-clock exceeds TOOL_TIMEOUT_MS — the
// timeout_test scenario's tool.
func SlowOp() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}
