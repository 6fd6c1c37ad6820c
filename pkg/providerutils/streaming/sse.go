// Package streaming writes the wire-level Server-Sent Events framing the
// emitter's flusher goroutine sends to the client, adapted from the
// teacher's pkg/providerutils/streaming.SSEWriter down to the writer
// half only: this gateway only ever produces an SSE stream, it never
// consumes one, so the teacher's SSEParser/ParseSSEStream reader half
// has nothing in this repo to read from.
package streaming

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// SSEEvent is one Server-Sent Event: an event name plus its (possibly
// multi-line) data payload.
type SSEEvent struct {
	Event string
	Data  string
}

// SSEWriter writes Server-Sent Events to a writer.
type SSEWriter struct {
	writer io.Writer
}

// NewSSEWriter creates a new SSE writer.
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{writer: w}
}

// WriteEvent writes an SSE event to the stream.
func (w *SSEWriter) WriteEvent(event SSEEvent) error {
	var buf bytes.Buffer

	if event.Event != "" {
		buf.WriteString(fmt.Sprintf("event: %s\n", event.Event))
	}

	if event.Data != "" {
		lines := strings.Split(event.Data, "\n")
		for _, line := range lines {
			buf.WriteString(fmt.Sprintf("data: %s\n", line))
		}
	}

	buf.WriteString("\n")

	_, err := w.writer.Write(buf.Bytes())
	return err
}
