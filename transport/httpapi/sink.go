// Package httpapi wires the stream session controller (pkg/session) to
// the network: a chi.Router exposing POST /v1/stream and GET /health,
// grounded on the teacher's examples/chi-server (router setup, CORS,
// middleware stack) and examples/http-server's handleStream (SSE header
// set, flusher-driven chunk delivery).
package httpapi

import "net/http"

// responseSink adapts an http.ResponseWriter+http.Flusher pair to
// emitter.ByteSink, the same role examples/http-server's inline
// `flusher.Flush()` calls play, just behind an interface the emitter's
// flusher goroutine can call without knowing it is talking to HTTP.
type responseSink struct {
	w http.ResponseWriter
	f http.Flusher
}

func newResponseSink(w http.ResponseWriter) (*responseSink, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &responseSink{w: w, f: f}, true
}

func (s *responseSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *responseSink) Flush() {
	s.f.Flush()
}
