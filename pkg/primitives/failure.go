package primitives

import "encoding/json"

// AuthorityContext carries the principal and, if known, the grant that
// an admission was evaluated against — attached to every Failure Event
// so a refusal can be traced back to who tried what without leaking the
// full Context.
type AuthorityContext struct {
	PrincipalID PrincipalID
	GrantID     string // empty if no grant was resolved yet
}

// FailureEvent is a single, immutable refusal record. There is no
// explanation, remediation, or severity ranking field anywhere on this
// type — the spec is explicit that failures are structured data, not
// narrative (§3, §7).
type FailureEvent struct {
	FailureID          string
	FailurePhase       Phase
	FailureKind        FailureType
	ViolatedInvariant  string // empty if not applicable
	TriggeringCondition string // closed-vocabulary token, never free text
	AuthorityContext   AuthorityContext
	SnapshotID         string // empty if no snapshot existed yet
	Timestamp          int64
}

// FailureComposition is an ordered, non-deduplicated, non-summarized
// list of Failure Events preserving occurrence order. It is built only
// by appending — there is deliberately no API to remove, reorder, or
// merge entries (P11).
type FailureComposition struct {
	events []FailureEvent
}

// NewFailureComposition returns an empty composition.
func NewFailureComposition() *FailureComposition {
	return &FailureComposition{}
}

// Append adds an event to the end of the composition and returns the
// same composition for chaining. It never inspects or dedupes existing
// entries.
func (fc *FailureComposition) Append(e FailureEvent) *FailureComposition {
	fc.events = append(fc.events, e)
	return fc
}

// Events returns a defensive copy in occurrence order.
func (fc *FailureComposition) Events() []FailureEvent {
	out := make([]FailureEvent, len(fc.events))
	copy(out, fc.events)
	return out
}

func (fc *FailureComposition) Len() int { return len(fc.events) }

// MarshalJSON/UnmarshalJSON serialize the ordered event list directly
// (rather than {} for the unexported events field) so a composition
// round-trips intact through Evidence Bundle export/import — the only
// reason this type exposes a JSON shape at all.
func (fc *FailureComposition) MarshalJSON() ([]byte, error) {
	if fc == nil {
		return []byte("null"), nil
	}
	return json.Marshal(fc.events)
}

func (fc *FailureComposition) UnmarshalJSON(data []byte) error {
	var events []FailureEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return err
	}
	fc.events = events
	return nil
}

// Result is either a terminal FailureComposition or success data —
// never both, enforced by construction (spec §3, §4.8: "mutually
// exclusive at the type level").
type Result struct {
	ok      bool
	data    any
	failure *FailureComposition
}

// Success constructs a successful Result carrying data.
func Success(data any) Result {
	return Result{ok: true, data: data}
}

// Failed constructs a terminal, failed Result. fc must be non-nil and
// non-empty — a Failed Result with no events would hide the very cause
// it exists to report.
func Failed(fc *FailureComposition) Result {
	return Result{ok: false, failure: fc}
}

func (r Result) OK() bool                        { return r.ok }
func (r Result) Data() any                       { return r.data }
func (r Result) Failure() *FailureComposition     { return r.failure }
