// Command gateway runs the frame-aware streaming gateway's HTTP server,
// the same shape as the teacher's examples/chi-server/main.go: read
// config from the environment, build the long-lived collaborators once,
// hand them to a chi.Router, and listen.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frameflow/frameflow/pkg/config"
	"github.com/frameflow/frameflow/pkg/idempotency"
	"github.com/frameflow/frameflow/pkg/provider/fakeprovider"
	"github.com/frameflow/frameflow/pkg/schema"
	"github.com/frameflow/frameflow/pkg/telemetry"
	"github.com/frameflow/frameflow/pkg/tools"
	"github.com/frameflow/frameflow/transport/httpapi"
)

func main() {
	cfg := config.FromEnv()
	logger := telemetry.NewStdLogger()

	tracer := telemetry.GetTracer(nil)
	if cfg.OTLPEndpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		otlp, err := telemetry.NewProvider(ctx, telemetry.ExporterConfig{
			Endpoint: cfg.OTLPEndpoint,
			Insecure: cfg.OTLPInsecure,
		})
		cancel()
		if err != nil {
			log.Fatalf("gateway: telemetry setup: %v", err)
		}
		defer otlp.Shutdown(context.Background())
		tracer = otlp.Tracer()
	}

	// No production provider.Client ships in this repo: wiring a real LLM
	// backend is out of scope, so the gateway runs against the same
	// scripted fakeprovider.Client the test suite drives. Operators
	// deploying this gateway must swap in a provider.Client adapter for
	// their own model backend.
	srv := &httpapi.Server{
		Provider:         fakeprovider.New(),
		Tools:            tools.MapRegistry{},
		SchemaRegistry:   schema.NewBuiltinRegistry(),
		IdempotencyCache: idempotency.New(),
		Config:           cfg,
		Logger:           logger,
		Tracer:           tracer,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Printf("frameflow gateway listening on :%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway: listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("gateway: shutdown: %v", err)
	}
}
