// Package repair produces the one-shot minimal valid fallback for a reply
// frame that failed schema validation, generalizing the teacher's
// pkg/ai/repair.go (a bounded-attempt RepairFunc loop for malformed tool
// calls) from "repair a tool call" to "repair a failed AssistantReply."
package repair

import "encoding/json"

// Options bounds how many times a session may invoke a repair, mirroring
// the teacher's RepairOptions.MaxAttempts shape.
type Options struct {
	MaxAttempts int
}

// DefaultOptions matches spec.md's REPAIR_RETRIES default of 1: a reply
// frame gets exactly one repair attempt.
func DefaultOptions() Options {
	return Options{MaxAttempts: 1}
}

// Budget tracks repair attempts consumed by a single session. It is not
// safe for concurrent use; a session's controller owns it exclusively,
// the same way it owns its FrameState set.
type Budget struct {
	remaining int
}

// NewBudget returns a Budget seeded from opts.
func NewBudget(opts Options) *Budget {
	return &Budget{remaining: opts.MaxAttempts}
}

// TryConsume reports whether a repair attempt is still available and, if
// so, consumes it. Once exhausted it always returns false: there is no
// second-order repair.
func (b *Budget) TryConsume() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// MinimalReply is the shape spec.md §4.3 names for a failed repair
// fallback: an empty answer, empty citations, and a diagnostics object
// naming the validator errors that caused the repair.
type MinimalReply struct {
	Answer      string       `json:"answer"`
	Citations   []string     `json:"citations"`
	Diagnostics *Diagnostics `json:"diagnostics"`
}

// Diagnostics carries the repair reason and the validator errors that
// triggered it.
type Diagnostics struct {
	Error               string   `json:"error"`
	LastValidatorErrors []string `json:"last_validator_errors"`
}

// Build renders the minimal valid AssistantReply for a failed validation,
// given the ValidationNote's recorded errors.
func Build(validatorErrors []string) MinimalReply {
	if validatorErrors == nil {
		validatorErrors = []string{}
	}
	return MinimalReply{
		Answer:    "",
		Citations: []string{},
		Diagnostics: &Diagnostics{
			Error:               "schema_repair_failed",
			LastValidatorErrors: validatorErrors,
		},
	}
}

// MarshalJSON-friendly helper: BuildJSON returns Build's result already
// serialized, since the session controller splices it straight into a
// fresh Result frame body.
func BuildJSON(validatorErrors []string) ([]byte, error) {
	return json.Marshal(Build(validatorErrors))
}
