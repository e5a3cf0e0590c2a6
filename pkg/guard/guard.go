// Package guard implements the Guard (spec §4.6, C6): the single
// non-bypassable execution gateway. Guard.Execute is the only exported
// path that can ever run a capability's private implementation — the
// function itself lives only in an unexported registry entry, never on
// primitives.CapabilityContract, so no caller holding a contract value
// can invoke it directly (P1, Unified authority).
//
// The admission sequence below is a fixed total order; every step is a
// hard gate and refusal at any step halts immediately with exactly one
// Failure Event. This mirrors the teacher's guardian.Guardian.Evaluate
// chain-of-checks shape, generalized from ReBAC relation checks to the
// twelve load-bearing steps this spec names.
package guard

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mek-labs/kernel/pkg/authority"
	"github.com/mek-labs/kernel/pkg/canonicalize"
	"github.com/mek-labs/kernel/pkg/evidence"
	"github.com/mek-labs/kernel/pkg/failure"
	"github.com/mek-labs/kernel/pkg/friction"
	"github.com/mek-labs/kernel/pkg/observer"
	"github.com/mek-labs/kernel/pkg/primitives"
	"github.com/mek-labs/kernel/pkg/scope"
	"github.com/mek-labs/kernel/pkg/snapshotstore"
)

// EvidenceSink receives the Evidence Bundle built after every halted
// admission (success or refusal), mirroring the "Evidence Bundle built
// post-halt and offered to Observer Hub" step of the spec's Data Flow.
// Guard never persists bundles itself — a sink backed by an
// append-only store, the Observer Hub, or both is the caller's choice.
type EvidenceSink interface {
	Capture(*primitives.EvidenceBundle)
}

// ExecuteFunc is a capability's private implementation. It is supplied
// only at Register time and is never exposed back out of the guard
// package — there is no accessor that returns one.
type ExecuteFunc func(primitives.Context) (any, error)

type registryEntry struct {
	contract *primitives.CapabilityContract
	execute  ExecuteFunc
}

// ConfidenceThreshold is the consequence-level gate from step 8.
func ConfidenceThreshold(c primitives.Consequence) float64 {
	switch c {
	case primitives.ConsequenceHigh:
		return 0.7
	case primitives.ConsequenceMedium:
		return 0.5
	default:
		return 0
	}
}

// Guard is the admission pipeline. Zero value is not usable; construct
// with New.
type Guard struct {
	authority *authority.Store
	snapshots *snapshotstore.Store
	hub       *observer.Hub
	friction  *friction.Engine
	scopeEval scope.Evaluator
	clock     primitives.Clock
	threshold func(primitives.Consequence) float64
	registry  map[string]registryEntry
	evidence  EvidenceSink
}

// Config bundles the Guard's collaborators. All fields are required
// except Hub, which may be nil (event emission is then skipped),
// Threshold, which defaults to
// the spec's own HIGH≥0.7/MEDIUM≥0.5/LOW≥0 ladder when nil — a
// deployment supplying kernelconfig.Config.Threshold overrides it
// without touching the Guard's code — and Evidence, which may be nil
// (evidence capture then becomes a no-op, matching Hub's own
// nil-is-permitted shape).
type Config struct {
	Authority *authority.Store
	Snapshots *snapshotstore.Store
	Hub       *observer.Hub
	Friction  *friction.Engine
	Scope     scope.Evaluator
	Clock     primitives.Clock
	Threshold func(primitives.Consequence) float64
	Evidence  EvidenceSink
}

func New(cfg Config) *Guard {
	threshold := cfg.Threshold
	if threshold == nil {
		threshold = ConfidenceThreshold
	}
	return &Guard{
		authority: cfg.Authority,
		snapshots: cfg.Snapshots,
		hub:       cfg.Hub,
		friction:  cfg.Friction,
		scopeEval: cfg.Scope,
		clock:     cfg.Clock,
		threshold: threshold,
		registry:  make(map[string]registryEntry),
		evidence:  cfg.Evidence,
	}
}

// ErrCapabilityRedefinition is returned by Register when an existing
// capability is replaced with an incompatible contract (§6).
var ErrCapabilityRedefinition = fmt.Errorf("guard: capability redefinition is incompatible with the existing contract")

// Register binds a Capability Contract to its private execute function.
// Re-registering an existing capability name is permitted only if the
// new contract is a CompatibleRedefinition of the old one; otherwise
// Register refuses and the existing registration is left untouched.
func (g *Guard) Register(contract *primitives.CapabilityContract, execute ExecuteFunc) error {
	if existing, ok := g.registry[contract.Name()]; ok {
		if !existing.contract.CompatibleRedefinition(contract) {
			return ErrCapabilityRedefinition
		}
	}
	g.registry[contract.Name()] = registryEntry{contract: contract, execute: execute}
	return nil
}

func (g *Guard) emit(eventType string, details map[string]any) {
	if g.hub == nil {
		return
	}
	g.hub.Emit(observer.Event{Type: eventType, Details: details})
}

// admissionCtx carries the state a halt point has accumulated so far,
// so both refuse and the success path can seal an Evidence Bundle with
// whatever of Grant/Snapshots was actually resolved before the halt.
type admissionCtx struct {
	capabilityName string
	ctx            primitives.Context
	grant          *primitives.Grant
	snapshots      []primitives.Snapshot
}

func (g *Guard) refuse(ac admissionCtx, fc *primitives.FailureComposition) primitives.Result {
	g.emit("admission.refused", map[string]any{
		"kind": fc.Events()[fc.Len()-1].FailureKind,
	})
	g.captureEvidence(ac, fc, nil)
	return primitives.Failed(fc)
}

// captureEvidence builds and offers an Evidence Bundle for one terminal
// admission, success or refusal (spec's Data Flow: "Evidence Bundle
// built post-halt and offered to Observer Hub"). A nil sink (the
// default) makes this a no-op, so constructing a Guard without an
// Evidence Sink costs nothing per admission.
func (g *Guard) captureEvidence(ac admissionCtx, fc *primitives.FailureComposition, results any) {
	if g.evidence == nil {
		return
	}
	if fc == nil && results == nil {
		// A capability may legitimately return a nil result; Build's
		// exactly-one-of-Failure-or-Results check can't tell that apart
		// from "no result was ever set", so a successful admission with
		// a nil result is recorded with an empty result set instead.
		results = map[string]any{}
	}
	intent := primitives.NewIntent(ac.capabilityName, ac.ctx.Fields())
	bundle, err := evidence.Build(evidence.BuildParams{
		BundleID:           uuid.NewString(),
		CreatedAt:          g.clock.Now().UnixNano(),
		Context:            ac.ctx,
		Intent:             intent,
		PrincipalID:        primitives.PrincipalID(ac.ctx.PrincipalID()),
		Grant:              ac.grant,
		ExecutionSnapshots: ac.snapshots,
		Failure:            fc,
		Results:            results,
		AuthorityVersion:   g.authority.AuthorityVersion(),
	})
	if err != nil {
		// A bundle that fails to seal (e.g. an un-canonicalizable
		// Context) must not itself become a second failure mode for an
		// admission that has already reached a terminal outcome.
		return
	}
	g.evidence.Capture(bundle)
}

// Execute runs the full twelve-step admission pipeline for one
// (capability_name, Context) pair (spec §4.6). It is the sole path to
// a capability's private execute function.
func (g *Guard) Execute(capabilityName string, ctx primitives.Context) primitives.Result {
	auth := primitives.AuthorityContext{PrincipalID: primitives.PrincipalID(ctx.PrincipalID())}
	ac := admissionCtx{capabilityName: capabilityName, ctx: ctx}

	// Step 1: context validity. NewContext already enforced confidence
	// presence and range and a non-empty intent_name at construction;
	// here we additionally require a well-formed context_id. The field
	// set is checked against the contract at step 2.
	if ctx.ID() == "" {
		return g.refuse(ac, failure.New(primitives.FailureMissingContext, "context_id required", auth, "", g.clock))
	}
	if ctx.Confidence() < 0 || ctx.Confidence() > 1 {
		return g.refuse(ac, failure.New(primitives.FailureInvalidConfidence, "confidence in [0,1]", auth, "", g.clock))
	}

	// Step 2: intent declaration resolves to a registered contract, and
	// the context's explicit fields match that contract's required set
	// exactly.
	entry, ok := g.registry[capabilityName]
	if !ok {
		return g.refuse(ac, failure.New(primitives.FailureUnknownCapability, "intent must resolve to a registered capability", auth, "", g.clock))
	}
	if !entry.contract.MatchesFieldSet(ctx.Fields()) {
		return g.refuse(ac, failure.New(primitives.FailureInvalidContext, "context fields must exactly match contract's required set", auth, "", g.clock))
	}
	if err := entry.contract.ValidateSchema(ctx.Fields()); err != nil {
		return g.refuse(ac, failure.New(primitives.FailureInvalidContext, "context fields failed schema validation", auth, "", g.clock))
	}

	// Step 3: principal presence.
	if ctx.PrincipalID() == "" {
		return g.refuse(ac, failure.New(primitives.FailureMissingPrincipal, "principal_id non-empty", auth, "", g.clock))
	}

	// Step 4: grant existence (and scope match against this context).
	grant, ok := g.authority.Lookup(primitives.PrincipalID(ctx.PrincipalID()), capabilityName)
	if !ok {
		return g.refuse(ac, failure.New(primitives.FailureMissingGrant, "authority store must yield a grant for (principal, capability)", auth, "", g.clock))
	}
	ac.grant = grant
	auth.GrantID = grant.GrantID
	allowed, err := g.scopeEval.Evaluate(grant.Scope, ctx.Fields())
	if err != nil || !allowed {
		return g.refuse(ac, failure.New(primitives.FailureInvalidGrantScope, "grant scope predicate must admit the context", auth, "", g.clock))
	}

	// Step 5: not expired.
	now := g.clock.Now()
	if grant.IsExpired(now) {
		return g.refuse(ac, failure.New(primitives.FailureExpiredGrant, "now < grant.expires_at", auth, "", g.clock))
	}

	// Step 6: not revoked.
	if g.authority.IsRevoked(grant.GrantID) {
		return g.refuse(ac, failure.New(primitives.FailureRevokedGrant, "grant must be live", auth, "", g.clock))
	}

	// Step 7: remaining uses, atomically reserved.
	remaining, consumed := g.authority.Consume(grant.GrantID)
	if !consumed {
		return g.refuse(ac, failure.New(primitives.FailureExhaustedGrant, "remaining_uses must be positive", auth, "", g.clock))
	}

	// Step 8: confidence gate.
	threshold := g.threshold(entry.contract.ConsequenceLevel())
	if ctx.Confidence() < threshold {
		return g.refuse(ac, failure.New(primitives.FailureConfidenceThresholdExceeded, "confidence below consequence threshold", auth, "", g.clock))
	}

	// Step 9: friction gate. A real, blocking, non-cancellable wait.
	g.friction.Wait(entry.contract.ConsequenceLevel(), ctx.Confidence())

	// Step 10: snapshot creation.
	snapshotID := uuid.NewString()
	contextHash, err := canonicalize.CanonicalHash(ctx.Canonical())
	if err != nil {
		return g.refuse(ac, failure.New(primitives.FailureInvalidContext, "context must canonicalize", auth, "", g.clock))
	}
	scopeHash := canonicalize.HashBytes([]byte(grant.Scope))
	capturedGrant, revokedAtCapture, versionAtCapture := g.authority.SnapshotAuthorityState(grant.GrantID)
	snap := primitives.Snapshot{
		SnapshotID:                  snapshotID,
		CapturedAt:                  now.UnixNano(),
		PrincipalID:                 primitives.PrincipalID(ctx.PrincipalID()),
		GrantID:                     grant.GrantID,
		CapabilityName:              capabilityName,
		CapabilityScopeHash:         scopeHash,
		ContextHash:                 contextHash,
		IntentHash:                  canonicalize.HashBytes([]byte(capabilityName)),
		ConfidenceValue:             ctx.Confidence(),
		AuthorityVersion:            versionAtCapture,
		GrantExpiresAt:              capturedGrant.ExpiresAt.UnixNano(),
		GrantRemainingUsesAtCapture: remaining,
	}
	ac.snapshots = []primitives.Snapshot{snap}
	if err := g.snapshots.Put(snap); err != nil {
		return g.refuse(ac, failure.New(primitives.FailureSnapshotReuseAttempt, "snapshot_id must be fresh", auth, snapshotID, g.clock))
	}

	// Step 11: snapshot re-validation. Recompute every hashed input and
	// compare bit-for-bit against what was captured at step 10; a
	// revocation or exhaustion landing during friction (step 9) is
	// observed here, never by preempting the sleep.
	recomputedGrant, revokedNow, versionNow := g.authority.SnapshotAuthorityState(grant.GrantID)
	if revokedNow {
		return g.refuse(ac, failure.New(primitives.FailureRevokedGrant, "grant must be live", auth, snapshotID, g.clock))
	}
	recomputed := primitives.Snapshot{
		SnapshotID:                  snapshotID,
		CapturedAt:                  snap.CapturedAt,
		PrincipalID:                 snap.PrincipalID,
		GrantID:                     snap.GrantID,
		CapabilityName:              snap.CapabilityName,
		CapabilityScopeHash:         scopeHash,
		ContextHash:                 contextHash,
		IntentHash:                  snap.IntentHash,
		ConfidenceValue:             ctx.Confidence(),
		AuthorityVersion:            versionNow,
		GrantExpiresAt:              recomputedGrant.ExpiresAt.UnixNano(),
		GrantRemainingUsesAtCapture: recomputedGrant.RemainingUses(),
	}
	if revokedNow != revokedAtCapture || !snap.Matches(recomputed) {
		return g.refuse(ac, failure.New(primitives.FailureTOCTOUViolation, "recomputed snapshot must match captured snapshot", auth, snapshotID, g.clock))
	}

	// Step 12: execute. Any panic from the capability's private function
	// is converted to an EXECUTION_ERROR Failure Event rather than
	// propagating across the Guard boundary.
	data, execErr := g.safeExecute(entry.execute, ctx)
	if execErr != nil {
		return g.refuse(ac, failure.New(primitives.FailureExecutionError, "capability execution must not error", auth, snapshotID, g.clock))
	}

	g.emit("admission.succeeded", map[string]any{
		"capability":  capabilityName,
		"snapshot_id": snapshotID,
	})
	g.captureEvidence(ac, nil, data)
	return primitives.Success(data)
}

func (g *Guard) safeExecute(fn ExecuteFunc, ctx primitives.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("guard: capability execution panicked: %v", r)
		}
	}()
	return fn(ctx)
}
