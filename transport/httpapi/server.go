package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"

	"github.com/frameflow/frameflow/pkg/config"
	"github.com/frameflow/frameflow/pkg/idempotency"
	"github.com/frameflow/frameflow/pkg/provider"
	"github.com/frameflow/frameflow/pkg/schema"
	"github.com/frameflow/frameflow/pkg/session"
	"github.com/frameflow/frameflow/pkg/telemetry"
	"github.com/frameflow/frameflow/pkg/tools"
)

// Server holds the collaborators every request's session.Controller is
// built from, the same "construct once, hand a Deps-shaped bundle to
// each request" shape the teacher's chi-server keeps in its package-level
// `model`, generalized from a single *provider.LanguageModel to the
// gateway's full dependency set.
type Server struct {
	Provider         provider.Client
	Tools            tools.Registry
	SchemaRegistry   *schema.Registry
	IdempotencyCache *idempotency.Cache
	Config           config.Config
	Logger           telemetry.Logger
	Tracer           trace.Tracer
}

// sessionDeps builds the session.Deps bundle a fresh Controller needs,
// reusing the Server's long-lived collaborators for every request.
func (s *Server) sessionDeps() session.Deps {
	return session.Deps{
		Provider:         s.Provider,
		Tools:            s.Tools,
		SchemaRegistry:   s.SchemaRegistry,
		IdempotencyCache: s.IdempotencyCache,
		Config:           s.Config,
		Logger:           s.Logger,
		Tracer:           s.Tracer,
	}
}

// Router assembles the chi.Router spec.md §6's wire contract is served
// on: POST /v1/stream (rate-limited, one session per call) and GET
// /health. Middleware stack and CORS setup are grounded directly on
// examples/chi-server/main.go; rate limiting wraps only the stream
// route, since health checks must never be throttled away from a load
// balancer.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
	}))

	limiter := newRateLimiter(s.Config.RateLimitRPS, s.Config.RateLimitBurst)

	r.Get("/health", s.handleHealth)
	r.With(limiter.Middleware).Post("/v1/stream", s.handleStream)

	return r
}
