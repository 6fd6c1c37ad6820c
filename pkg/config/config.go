// Package config holds the gateway's deterministic and operational
// parameters, generalizing the teacher's default-then-override merge
// pattern (pkg/middleware/default_settings.go's mergeGenerateOptions:
// start from defaults, apply a sparse set of overrides field-by-field)
// from per-call GenerateOptions to process-wide, environment-sourced
// Config.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full set of parameters spec.md §6's "Configuration" table
// names.
type Config struct {
	FrameTimeoutMS int
	ToolTimeoutMS  int
	ToolRetries    int
	RepairRetries  int

	ModelID     string
	Temperature float64
	Seed        int
	MaxTokens   int

	ProviderBaseURL string
	ProviderAPIKey  string

	MaxQueuedChunks int

	// RateLimitRPS/RateLimitBurst bound the inbound POST /v1/stream rate,
	// ambient protection for the wire contract transport/httpapi serves;
	// spec.md itself is silent on inbound throttling.
	RateLimitRPS   float64
	RateLimitBurst int

	// ArtifactsDir is where transport/httpapi persists each session's
	// durable record. Empty disables persistence (artifacts.NullSink).
	ArtifactsDir string

	// OTLPEndpoint, if set, enables exporting session/tool-attempt spans
	// to an OTLP/HTTP collector at that host:port. Empty leaves tracing
	// fully off (telemetry.Settings.IsEnabled stays false).
	OTLPEndpoint string
	OTLPInsecure bool
}

// Default returns spec.md §6's literal default values.
func Default() Config {
	return Config{
		FrameTimeoutMS:  15000,
		ToolTimeoutMS:   8000,
		ToolRetries:     1,
		RepairRetries:   1,
		ModelID:         "default",
		Temperature:     0.2,
		Seed:            42,
		MaxTokens:       384,
		MaxQueuedChunks: 128,
		RateLimitRPS:    5,
		RateLimitBurst:  10,
	}
}

// FrameTimeout is FrameTimeoutMS as a time.Duration, for direct use with
// time.Timer/time.After.
func (c Config) FrameTimeout() time.Duration {
	return time.Duration(c.FrameTimeoutMS) * time.Millisecond
}

// ToolTimeout is ToolTimeoutMS as a time.Duration.
func (c Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutMS) * time.Millisecond
}

// Overrides is a sparse set of field overrides: a nil pointer/empty
// string leaves the corresponding Config field untouched, mirroring the
// teacher's *int/*float64-pointer override fields in GenerateOptions.
type Overrides struct {
	FrameTimeoutMS *int
	ToolTimeoutMS  *int
	ToolRetries    *int
	RepairRetries  *int

	ModelID     *string
	Temperature *float64
	Seed        *int
	MaxTokens   *int

	ProviderBaseURL *string
	ProviderAPIKey  *string

	MaxQueuedChunks *int

	RateLimitRPS   *float64
	RateLimitBurst *int

	ArtifactsDir *string

	OTLPEndpoint *string
	OTLPInsecure *bool
}

// Merge applies o on top of c, returning a new Config. Unset fields in o
// leave the base value untouched — the same default-then-override shape
// as mergeGenerateOptions.
func (c Config) Merge(o Overrides) Config {
	out := c
	if o.FrameTimeoutMS != nil {
		out.FrameTimeoutMS = *o.FrameTimeoutMS
	}
	if o.ToolTimeoutMS != nil {
		out.ToolTimeoutMS = *o.ToolTimeoutMS
	}
	if o.ToolRetries != nil {
		out.ToolRetries = *o.ToolRetries
	}
	if o.RepairRetries != nil {
		out.RepairRetries = *o.RepairRetries
	}
	if o.ModelID != nil {
		out.ModelID = *o.ModelID
	}
	if o.Temperature != nil {
		out.Temperature = *o.Temperature
	}
	if o.Seed != nil {
		out.Seed = *o.Seed
	}
	if o.MaxTokens != nil {
		out.MaxTokens = *o.MaxTokens
	}
	if o.ProviderBaseURL != nil {
		out.ProviderBaseURL = *o.ProviderBaseURL
	}
	if o.ProviderAPIKey != nil {
		out.ProviderAPIKey = *o.ProviderAPIKey
	}
	if o.MaxQueuedChunks != nil {
		out.MaxQueuedChunks = *o.MaxQueuedChunks
	}
	if o.RateLimitRPS != nil {
		out.RateLimitRPS = *o.RateLimitRPS
	}
	if o.RateLimitBurst != nil {
		out.RateLimitBurst = *o.RateLimitBurst
	}
	if o.ArtifactsDir != nil {
		out.ArtifactsDir = *o.ArtifactsDir
	}
	if o.OTLPEndpoint != nil {
		out.OTLPEndpoint = *o.OTLPEndpoint
	}
	if o.OTLPInsecure != nil {
		out.OTLPInsecure = *o.OTLPInsecure
	}
	return out
}

// FromEnv merges Default() with whatever of spec.md §6's environment
// variable names are set in the process environment.
func FromEnv() Config {
	o := Overrides{}
	if v, ok := envInt("FRAME_TIMEOUT_MS"); ok {
		o.FrameTimeoutMS = &v
	}
	if v, ok := envInt("TOOL_TIMEOUT_MS"); ok {
		o.ToolTimeoutMS = &v
	}
	if v, ok := envInt("TOOL_RETRIES"); ok {
		o.ToolRetries = &v
	}
	if v, ok := envInt("REPAIR_RETRIES"); ok {
		o.RepairRetries = &v
	}
	if v, ok := os.LookupEnv("MODEL_ID"); ok {
		o.ModelID = &v
	}
	if v, ok := envFloat("TEMPERATURE"); ok {
		o.Temperature = &v
	}
	if v, ok := envInt("SEED"); ok {
		o.Seed = &v
	}
	if v, ok := envInt("MAX_TOKENS"); ok {
		o.MaxTokens = &v
	}
	if v, ok := os.LookupEnv("PROVIDER_BASE_URL"); ok {
		o.ProviderBaseURL = &v
	}
	if v, ok := os.LookupEnv("PROVIDER_API_KEY"); ok {
		o.ProviderAPIKey = &v
	}
	if v, ok := envInt("MAX_QUEUED_CHUNKS"); ok {
		o.MaxQueuedChunks = &v
	}
	if v, ok := envFloat("RATE_LIMIT_RPS"); ok {
		o.RateLimitRPS = &v
	}
	if v, ok := envInt("RATE_LIMIT_BURST"); ok {
		o.RateLimitBurst = &v
	}
	if v, ok := os.LookupEnv("ARTIFACTS_DIR"); ok {
		o.ArtifactsDir = &v
	}
	if v, ok := os.LookupEnv("OTLP_ENDPOINT"); ok {
		o.OTLPEndpoint = &v
	}
	if v, ok := envBool("OTLP_INSECURE"); ok {
		o.OTLPInsecure = &v
	}
	return Default().Merge(o)
}

func envInt(name string) (int, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat(name string) (float64, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(name string) (bool, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
