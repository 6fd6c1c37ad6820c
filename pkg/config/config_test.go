package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_MatchesSpecValues(t *testing.T) {
	c := Default()
	assert.Equal(t, 15000, c.FrameTimeoutMS)
	assert.Equal(t, 8000, c.ToolTimeoutMS)
	assert.Equal(t, 1, c.ToolRetries)
	assert.Equal(t, 1, c.RepairRetries)
	assert.Equal(t, 0.2, c.Temperature)
	assert.Equal(t, 42, c.Seed)
	assert.Equal(t, 384, c.MaxTokens)
	assert.Equal(t, 128, c.MaxQueuedChunks)
	assert.Equal(t, 5.0, c.RateLimitRPS)
	assert.Equal(t, 10, c.RateLimitBurst)
	assert.Empty(t, c.ArtifactsDir)
	assert.Empty(t, c.OTLPEndpoint)
}

func TestMerge_OnlySetFieldsOverride(t *testing.T) {
	base := Default()
	retries := 3
	merged := base.Merge(Overrides{ToolRetries: &retries})

	assert.Equal(t, 3, merged.ToolRetries)
	assert.Equal(t, base.FrameTimeoutMS, merged.FrameTimeoutMS)
	assert.Equal(t, base.Temperature, merged.Temperature)
}

func TestMerge_EmptyOverridesIsIdentity(t *testing.T) {
	base := Default()
	assert.Equal(t, base, base.Merge(Overrides{}))
}

func TestFromEnv_UsesDefaultsWhenUnset(t *testing.T) {
	c := FromEnv()
	assert.Equal(t, Default().FrameTimeoutMS, c.FrameTimeoutMS)
}

func TestFromEnv_ReadsOverrides(t *testing.T) {
	t.Setenv("TOOL_RETRIES", "5")
	t.Setenv("MODEL_ID", "custom-model")
	t.Setenv("TEMPERATURE", "0.9")

	c := FromEnv()
	assert.Equal(t, 5, c.ToolRetries)
	assert.Equal(t, "custom-model", c.ModelID)
	assert.Equal(t, 0.9, c.Temperature)
}

func TestFrameTimeout_ConvertsToDuration(t *testing.T) {
	c := Default()
	assert.Equal(t, int64(15000), c.FrameTimeout().Milliseconds())
}

func TestFromEnv_ReadsTransportOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "4")
	t.Setenv("ARTIFACTS_DIR", "/tmp/frameflow-artifacts")
	t.Setenv("OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTLP_INSECURE", "true")

	c := FromEnv()
	assert.Equal(t, 2.5, c.RateLimitRPS)
	assert.Equal(t, 4, c.RateLimitBurst)
	assert.Equal(t, "/tmp/frameflow-artifacts", c.ArtifactsDir)
	assert.Equal(t, "collector:4318", c.OTLPEndpoint)
	assert.True(t, c.OTLPInsecure)
}
