// Package composition implements the Composition Engine (spec §4.7,
// C7): an ordered list of independent Guard admissions under a STRICT
// halt policy. No Context, grant, snapshot, or authority fact carries
// between steps — success of step N grants zero authority to step N+1
// (P8, Composition non-escalation).
package composition

import (
	"fmt"

	"github.com/mek-labs/kernel/pkg/guard"
	"github.com/mek-labs/kernel/pkg/primitives"
)

// FailurePolicy's only admissible value is STRICT (spec §4.7): the
// field exists on Composition to name the policy explicitly rather
// than hard-coding STRICT's behavior with no visible knob, matching the
// spec's insistence that the policy be an explicit, checked field.
type FailurePolicy string

const PolicyStrict FailurePolicy = "STRICT"

// Step is one independent admission within a Composition: a
// (capability_name, Context) pair evaluated against a fresh Guard call.
type Step struct {
	Order          int
	CapabilityName string
	Context        primitives.Context
}

// Composition is an ordered, gapless, non-branching list of Steps.
type Composition struct {
	Steps         []Step
	FailurePolicy FailurePolicy
}

// New validates step ordering at construction time (sequential, from
// zero, no gaps, no branching) rather than at Run time, so a malformed
// Composition never enters the engine at all.
func New(steps []Step, policy FailurePolicy) (*Composition, error) {
	if policy != PolicyStrict {
		return nil, fmt.Errorf("composition: failure_policy must be STRICT, got %q", policy)
	}
	for i, s := range steps {
		if s.Order != i {
			return nil, fmt.Errorf("composition: step ordering must be sequential with no gaps: step %d has order %d", i, s.Order)
		}
	}
	return &Composition{Steps: steps, FailurePolicy: policy}, nil
}

// Result is the composite outcome of running a Composition: either the
// ordered list of every step's success data, or a Failure Composition
// containing only the events up to and including the halting step.
type Result struct {
	OK      bool
	Results []any
	Failure *primitives.FailureComposition
}

// Run executes every Step through g in order. On the first step
// refusal, the composition halts immediately: no later step is
// attempted, and the returned Failure Composition carries only events
// through the halting step (spec §4.7, S4).
func Run(g Guard, c *Composition) Result {
	results := make([]any, 0, len(c.Steps))
	for _, step := range c.Steps {
		r := g.Execute(step.CapabilityName, step.Context)
		if !r.OK() {
			return Result{OK: false, Failure: r.Failure()}
		}
		results = append(results, r.Data())
	}
	return Result{OK: true, Results: results}
}

// Guard is the minimal surface Run needs from pkg/guard.Guard, kept as
// an interface so composition tests can supply a fake without standing
// up a full authority/snapshot/friction stack.
type Guard interface {
	Execute(capabilityName string, ctx primitives.Context) primitives.Result
}

var _ Guard = (*guard.Guard)(nil)
