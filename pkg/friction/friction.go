// Package friction implements the Friction Engine (spec §4.5, C5): a
// deterministic, blocking delay computed from consequence × confidence.
// The wait happens inside the admission pipeline as step 9, between
// step 8 (confidence gate) and step 10 (snapshot creation), and cannot be
// skipped, overridden, or shortened by any client-supplied flag.
//
// golang.org/x/time/rate's token-bucket reservation was considered
// (grounded on the teacher's kernel/limiter.go backpressure style) and
// rejected: a reservation's delay is a function of bucket occupancy at
// call time, which is exactly the kind of context-dependent smoothing
// the spec forbids here ("no flag removes this", §8 P3 — the bound must
// hold for *every* call, not on average). The wait itself is therefore
// a direct time.Sleep of an exactly computed duration.
package friction

import (
	"time"

	"github.com/mek-labs/kernel/pkg/primitives"
)

// Table is the canonical base-delay ladder from §4.5. It is a value,
// not a global, so a client can hold multiple kernels with different
// tables in the same test process (Design Notes §9: explicit handles
// over singletons).
type Table struct {
	Base map[primitives.Consequence]time.Duration
	// LowConfidenceThreshold and Penalty implement "+5 if confidence <
	// 0.6, else 0".
	LowConfidenceThreshold float64
	Penalty                time.Duration
}

// DefaultTable is the ladder the spec's own test suite and execution
// guard assume (§9's Open Question resolves to the 10/3 table, not the
// alternate 3/1 table referenced elsewhere in the source).
func DefaultTable() Table {
	return Table{
		Base: map[primitives.Consequence]time.Duration{
			primitives.ConsequenceHigh:   10 * time.Second,
			primitives.ConsequenceMedium: 3 * time.Second,
			primitives.ConsequenceLow:    0,
		},
		LowConfidenceThreshold: 0.6,
		Penalty:                5 * time.Second,
	}
}

// Compute returns the exact, deterministic delay for a given
// consequence level and confidence value.
func (t Table) Compute(consequence primitives.Consequence, confidence float64) time.Duration {
	d := t.Base[consequence]
	if confidence < t.LowConfidenceThreshold {
		d += t.Penalty
	}
	return d
}

// Sleeper abstracts the blocking wait so tests can substitute a
// no-op/instant sleeper while still exercising the duration math.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper blocks the calling goroutine for the full duration, per
// spec: "a real, blocking sleep executed within the admission
// pipeline... it cannot be skipped, overridden, or short-circuited."
type RealSleeper struct{}

func (RealSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Engine ties a Table to a Sleeper.
type Engine struct {
	Table   Table
	Sleeper Sleeper
}

func New(table Table, sleeper Sleeper) *Engine {
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	return &Engine{Table: table, Sleeper: sleeper}
}

// Wait blocks for the computed duration and returns it, so the caller
// (the Guard) can attach it to observer events / evidence without
// recomputing.
func (e *Engine) Wait(consequence primitives.Consequence, confidence float64) time.Duration {
	d := e.Table.Compute(consequence, confidence)
	if d > 0 {
		e.Sleeper.Sleep(d)
	}
	return d
}
