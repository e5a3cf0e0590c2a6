package primitives

import (
	"fmt"

	"github.com/google/uuid"
)

// Context is the immutable, per-invocation input to a single admission.
// Construction fails closed: a Context whose confidence is missing or
// outside [0,1] cannot exist (spec §3). There is no setter anywhere on
// this type; every field is fixed at NewContext time.
type Context struct {
	id          string
	confidence  float64
	intentName  string
	fields      map[string]any
	principalID string
	createdAt   int64 // unix nanoseconds, from a Clock
}

// ContextParams is the input to NewContext. Confidence has no default:
// a caller must supply it explicitly, and NewContext returns an error
// rather than silently defaulting to zero.
type ContextParams struct {
	ContextID   string // optional; generated if empty
	Confidence  *float64
	IntentName  string
	Fields      map[string]any
	PrincipalID string
}

// NewContext constructs a Context, or returns the exact reason
// construction failed. Construction failures are Failure Events at
// phase 0 — the caller is expected to convert a non-nil error into one
// via the failure package.
func NewContext(p ContextParams, clock Clock) (Context, error) {
	if p.Confidence == nil {
		return Context{}, ErrMissingConfidence
	}
	if *p.Confidence < 0 || *p.Confidence > 1 {
		return Context{}, ErrInvalidConfidence
	}
	if p.IntentName == "" {
		return Context{}, ErrMissingIntent
	}

	id := p.ContextID
	if id == "" {
		id = uuid.NewString()
	}

	fields := make(map[string]any, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}

	return Context{
		id:          id,
		confidence:  *p.Confidence,
		intentName:  p.IntentName,
		fields:      fields,
		principalID: p.PrincipalID,
		createdAt:   clock.Now().UnixNano(),
	}, nil
}

func (c Context) ID() string             { return c.id }
func (c Context) Confidence() float64    { return c.confidence }
func (c Context) IntentName() string     { return c.intentName }
func (c Context) PrincipalID() string    { return c.principalID }
func (c Context) CreatedAt() int64       { return c.createdAt }

// Field returns the value of an explicit field and whether it was set.
func (c Context) Field(key string) (any, bool) {
	v, ok := c.fields[key]
	return v, ok
}

// Fields returns a defensive copy of the explicit-fields map. Callers
// cannot mutate a Context through the returned map.
func (c Context) Fields() map[string]any {
	out := make(map[string]any, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}

// canonical is the JSON shape hashed for Snapshots and Evidence. Field
// order here does not matter for the hash (canonicalize.JCS sorts map
// keys and struct fields are addressed by name), but it does matter
// that every field the spec calls load-bearing is present.
type canonicalContext struct {
	ContextID   string         `json:"context_id"`
	Confidence  float64        `json:"confidence"`
	IntentName  string         `json:"intent_name"`
	Fields      map[string]any `json:"fields"`
	PrincipalID string         `json:"principal_id"`
	CreatedAt   int64          `json:"created_at"`
}

func (c Context) Canonical() canonicalContext {
	return canonicalContext{
		ContextID:   c.id,
		Confidence:  c.confidence,
		IntentName:  c.intentName,
		Fields:      c.Fields(),
		PrincipalID: c.principalID,
		CreatedAt:   c.createdAt,
	}
}

var (
	ErrMissingConfidence = fmt.Errorf("primitives: confidence is required")
	ErrInvalidConfidence = fmt.Errorf("primitives: confidence must be in [0,1]")
	ErrMissingIntent     = fmt.Errorf("primitives: intent_name is required")
)
