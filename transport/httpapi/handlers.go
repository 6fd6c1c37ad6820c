package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/frameflow/frameflow/pkg/artifacts"
	"github.com/frameflow/frameflow/pkg/session"
)

// streamRequest is POST /v1/stream's JSON body.
type streamRequest struct {
	Prompt  string `json:"prompt"`
	Mode    string `json:"mode,omitempty"`
	TestKey string `json:"testKey,omitempty"`
}

// handleStream drives one session.Controller per request, the way
// examples/http-server's handleStream drives one provider stream per
// request: decode body, set the exact SSE headers spec.md §6 names,
// hijack the ResponseWriter as the emitter's byte sink, and run to
// completion. The controller itself writes the metrics into the artifact
// record, so the Metrics Run returns are not used here; this handler's
// job ends once Run returns.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, `{"error":"prompt is required"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sink, ok := newResponseSink(w)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	// Minted here, before the Controller exists, so the artifact
	// directory and the Controller's own sessionID (tracing spans, log
	// lines) name the same session.
	sessionID := uuid.NewString()
	artifactSink := s.newArtifactSink(r.Context(), sessionID)
	ctrl := session.New(sink, artifactSink, s.sessionDeps(), session.WithSessionID(sessionID))

	ctrl.Run(r.Context(), session.Request{
		Prompt:         req.Prompt,
		Mode:           req.Mode,
		TestKey:        req.TestKey,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
}

// handleHealth reports process liveness; it does not touch the
// provider or any shared resource, so it never blocks on upstream
// health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":    true,
		"model": s.Config.ModelID,
	})
}

func (s *Server) newArtifactSink(ctx context.Context, sessionID string) artifacts.Sink {
	if s.Config.ArtifactsDir == "" {
		return artifacts.NullSink{}
	}
	sink, err := artifacts.NewFSSink(s.Config.ArtifactsDir, sessionID)
	if err != nil {
		s.Logger.Error(ctx, "failed to open artifact sink, falling back to NullSink", "err", err)
		return artifacts.NullSink{}
	}
	return sink
}
