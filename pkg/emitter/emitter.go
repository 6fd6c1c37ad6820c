// Package emitter is the backpressured SSE queue: a single ordered
// outbound queue per session, drained by one flusher goroutine, adapted
// directly from the teacher's pkg/providerutils/streaming.SSEWriter (the
// "event: / data: / blank line" framing itself is reused verbatim) plus
// the bounded-queue, drain-then-resume backpressure, and heartbeat
// concerns SSEWriter left to its caller.
package emitter

import (
	"encoding/json"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/frameflow/frameflow/pkg/providerutils/streaming"
)

// ByteSink is the underlying transport the flusher writes framed events
// to. Flush pushes buffered bytes out immediately (e.g. http.Flusher).
//
// spec.md's "when the byte sink signals not drained, the flusher
// suspends until drained" describes a non-blocking-I/O runtime (Node's
// fetch/http writable streams). Go's net/http ResponseWriter.Write is
// synchronous: it already blocks the calling goroutine until the
// platform accepts the bytes, so there is no separate "drained" signal
// to wait for — the flusher goroutine's blocking Write call is the
// suspension point this spec describes.
type ByteSink interface {
	io.Writer
	Flush()
}

// Event is one item sent through the queue before wire serialization.
type Event struct {
	Name string
	Data interface{}
}

type queuedEvent struct {
	name string
	data string
}

const heartbeatInterval = 15 * time.Second

// Emitter owns one session's outbound SSE queue. It is safe to call Send
// from multiple goroutines (though in practice the session controller is
// its sole caller, per spec.md §5's single cooperative schedule per
// session); Close is idempotent.
type Emitter struct {
	sink   ByteSink
	writer *streaming.SSEWriter

	queue chan queuedEvent
	done  chan struct{}

	closeOnce sync.Once
	closed    sync.WaitGroup
}

// New starts an Emitter's flusher goroutine immediately. maxQueued is
// spec.md §6's MAX_QUEUED_CHUNKS.
func New(sink ByteSink, maxQueued int) *Emitter {
	if maxQueued <= 0 {
		maxQueued = 128
	}
	e := &Emitter{
		sink:   sink,
		writer: streaming.NewSSEWriter(sink),
		queue:  make(chan queuedEvent, maxQueued),
		done:   make(chan struct{}),
	}
	e.closed.Add(1)
	go e.run()
	return e
}

// Send enqueues name/data for delivery. The queue push is attempted
// non-blockingly first; on overflow the caller yields the scheduler once
// via runtime.Gosched (spec.md §4.5's "soft backpressure") and then
// pushes with a normal blocking send, which waits until the concurrently
// draining flusher frees a slot (or the Emitter is closed). Send on a
// closed Emitter is a no-op.
func (e *Emitter) Send(name string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte(`{}`)
	}
	qe := queuedEvent{name: name, data: string(raw)}

	select {
	case e.queue <- qe:
		return
	case <-e.done:
		return
	default:
	}

	runtime.Gosched()

	select {
	case e.queue <- qe:
	case <-e.done:
	}
}

// Close drains whatever is already queued, writes it to the sink, and
// returns once the flusher goroutine has exited. The ByteSink itself is
// not closed; it stays with its owner. Sends after Close are no-ops.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	e.closed.Wait()
}

func (e *Emitter) run() {
	defer e.closed.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case qe := <-e.queue:
			e.write(qe)
		case <-ticker.C:
			e.write(queuedEvent{name: "ping", data: "{}"})
		case <-e.done:
			e.drain()
			return
		}
	}
}

// drain flushes whatever is already sitting in the queue, in FIFO order,
// without waiting for new sends (Close has already been requested).
func (e *Emitter) drain() {
	for {
		select {
		case qe := <-e.queue:
			e.write(qe)
		default:
			return
		}
	}
}

func (e *Emitter) write(qe queuedEvent) {
	_ = e.writer.WriteEvent(streaming.SSEEvent{Event: qe.name, Data: qe.data})
	e.sink.Flush()
}
