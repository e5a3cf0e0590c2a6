// Package negcap implements the Negative-Capability Assertions (spec
// §4.10, C10): a fixed set of operation names that exist only to panic
// with ProhibitedBehaviorError when called. Their entire purpose is to
// turn a tempting misuse ("just let the kernel learn from this") into a
// discoverable footgun at the call site rather than a silent behavior
// someone adds later.
package negcap

import "fmt"

// ProhibitedBehaviorError is raised by every function in this package.
// It is never recovered from inside the kernel — a caller importing
// this package and invoking one of these is making a programming
// error, not triggering a runtime-recoverable condition.
type ProhibitedBehaviorError struct {
	Operation string
}

func (e *ProhibitedBehaviorError) Error() string {
	return fmt.Sprintf("negcap: %q is a prohibited behavior and has no implementation", e.Operation)
}

func prohibit(operation string) {
	panic(&ProhibitedBehaviorError{Operation: operation})
}

// Learn would let the kernel adapt its own admission behavior from
// past outcomes. There is no such code path; calling this panics.
func Learn(...any) { prohibit("learn") }

// Adapt would let a capability or the Guard change its own rules at
// runtime based on observed conditions. There is no such code path.
func Adapt(...any) { prohibit("adapt") }

// Retry would let the Guard silently re-attempt a refused admission.
// Refusal is terminal (spec §4.6); there is no retry path.
func Retry(...any) { prohibit("retry") }

// Escalate would let a capability or composition step request broader
// authority than its Context's grant carries. There is no such path —
// authority only ever narrows from what a Grant states (P8).
func Escalate(...any) { prohibit("escalate") }

// UrgencyBypass would let a caller skip the Friction Engine's wait by
// claiming urgency. Friction cannot be skipped, overridden, or
// short-circuited by any client-supplied flag (spec §4.5, P3).
func UrgencyBypass(...any) { prohibit("urgency_bypass") }

// Optimize would let the kernel reorder or collapse admission steps
// for performance. The admission sequence is a fixed total order; no
// step is reorderable (spec §4.6).
func Optimize(...any) { prohibit("optimize") }

// InferIntent would let the kernel guess intent_name from context
// fields rather than require it declared. There is no inference path
// (spec §3: Intent is never synthesized from Context).
func InferIntent(...any) { prohibit("infer_intent") }
