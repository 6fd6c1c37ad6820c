package repair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ContainsRepairMarker(t *testing.T) {
	r := Build([]string{"answer: required field missing"})
	assert.Equal(t, "", r.Answer)
	assert.Equal(t, []string{}, r.Citations)
	require.NotNil(t, r.Diagnostics)
	assert.Equal(t, "schema_repair_failed", r.Diagnostics.Error)
	assert.Equal(t, []string{"answer: required field missing"}, r.Diagnostics.LastValidatorErrors)
}

func TestBuild_NilErrorsBecomeEmptySlice(t *testing.T) {
	r := Build(nil)
	assert.Equal(t, []string{}, r.Diagnostics.LastValidatorErrors)
}

func TestBuildJSON_RoundTrips(t *testing.T) {
	raw, err := BuildJSON([]string{"x"})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "", out["answer"])
	diag := out["diagnostics"].(map[string]interface{})
	assert.Equal(t, "schema_repair_failed", diag["error"])
}

func TestBudget_OneShotThenExhausted(t *testing.T) {
	b := NewBudget(DefaultOptions())
	assert.True(t, b.TryConsume())
	assert.False(t, b.TryConsume())
}

func TestBudget_ZeroMaxAttemptsNeverAllows(t *testing.T) {
	b := NewBudget(Options{MaxAttempts: 0})
	assert.False(t, b.TryConsume())
}
