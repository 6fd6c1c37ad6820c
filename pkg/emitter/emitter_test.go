package emitter

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink is a ByteSink over an in-memory buffer, safe for concurrent
// Write/Flush from the flusher goroutine and inspection from the test
// goroutine after Close has returned.
type fakeSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	flushN int
}

func (f *fakeSink) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Write(p)
}

func (f *fakeSink) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushN++
}

func (f *fakeSink) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.String()
}

func TestEmitter_SendWritesFramedEvent(t *testing.T) {
	sink := &fakeSink{}
	e := New(sink, 8)

	e.Send("token.delta", map[string]string{"delta": "hi"})
	e.Close()

	out := sink.String()
	assert.Contains(t, out, "event: token.delta\n")
	assert.Contains(t, out, `data: {"delta":"hi"}`)
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}

func TestEmitter_PreservesFIFOOrder(t *testing.T) {
	sink := &fakeSink{}
	e := New(sink, 128)

	for i := 0; i < 50; i++ {
		e.Send("seq", map[string]int{"i": i})
	}
	e.Close()

	out := sink.String()
	lastIdx := -1
	for i := 0; i < 50; i++ {
		want := `data: {"i":` + itoa(i) + `}`
		idx := strings.Index(out, want)
		require.GreaterOrEqual(t, idx, 0, "missing event %d", i)
		require.Greater(t, idx, lastIdx, "event %d out of order", i)
		lastIdx = idx
	}
}

func TestEmitter_SendBeyondCapacityStillDelivers(t *testing.T) {
	sink := &fakeSink{}
	e := New(sink, 2) // tiny queue forces the overflow/yield path

	for i := 0; i < 20; i++ {
		e.Send("x", i)
	}
	e.Close()

	out := sink.String()
	for i := 0; i < 20; i++ {
		assert.Contains(t, out, "data: "+itoa(i))
	}
}

func TestEmitter_SendAfterCloseIsNoop(t *testing.T) {
	sink := &fakeSink{}
	e := New(sink, 4)
	e.Close()

	done := make(chan struct{})
	go func() {
		e.Send("late", map[string]int{"n": 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send after Close blocked")
	}
	assert.NotContains(t, sink.String(), "late")
}

func TestEmitter_CloseIsIdempotentAndWaits(t *testing.T) {
	sink := &fakeSink{}
	e := New(sink, 4)
	e.Send("a", 1)

	e.Close()
	e.Close() // must not panic or block forever

	assert.Contains(t, sink.String(), "event: a\n")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
