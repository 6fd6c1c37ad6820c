package schema

import (
	"encoding/json"
	"sync"
)

// Validator binds a name (as carried in frame headers, e.g.
// ⟦BEGIN_RESULT id=r1 schema=AssistantReply⟧) to the FieldSet that shape
// must satisfy.
type Validator struct {
	Name   string
	Fields *FieldSet
}

// Validate parses raw as a JSON object and checks it against v's field
// table. ok is false both for malformed JSON and for any field violation;
// errs carries every problem found (empty when ok is true).
func (v *Validator) Validate(raw []byte) (ok bool, errs []string) {
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return false, []string{"invalid JSON: " + err.Error()}
	}
	errs = v.Fields.Validate("", data)
	return len(errs) == 0, errs
}

// Registry is a concurrent-safe name -> Validator lookup. The schema
// registry is process-wide shared state (spec.md §5's "shared-resource
// policy"), alongside the idempotency cache.
type Registry struct {
	mu    sync.RWMutex
	byName map[string]*Validator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Validator)}
}

// Register adds or replaces the validator for v.Name.
func (r *Registry) Register(v *Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[v.Name] = v
}

// Lookup resolves a schema name to its Validator. A miss means the frame
// named an unknown schema, which callers must record as a validation
// failure rather than silently skip.
func (r *Registry) Lookup(name string) (*Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byName[name]
	return v, ok
}

// NewBuiltinRegistry returns a Registry pre-populated with the terminal
// reply schema (AssistantReply) plus a couple of demonstration schemas
// exercising every declarative feature: enums, numeric bounds,
// array minimum-length, and a discriminated union.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.Register(assistantReplySchema())
	r.Register(actionSchema())
	r.Register(recommendationSchema())
	return r
}
