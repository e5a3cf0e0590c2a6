// Package failure provides smart constructors over primitives.FailureEvent
// and primitives.FailureComposition (spec §4.8, C8): every refusal the
// Guard raises goes through one of these constructors rather than
// building a FailureEvent literal inline, so the triggering_condition
// vocabulary stays closed and every event carries a Phase consistent
// with its kind.
package failure

import (
	"github.com/google/uuid"

	"github.com/mek-labs/kernel/pkg/primitives"
)

// Closed triggering_condition vocabulary (spec §4.8: "a closed
// vocabulary token, never free text"). conditionByKind below associates
// each FailureType with exactly one of these.
const (
	CondMissingContext         = "missing_context"
	CondInvalidContext         = "invalid_context_shape"
	CondMissingIntent          = "missing_intent"
	CondInvalidIntent          = "invalid_intent_shape"
	CondIntentInference        = "intent_inference_attempted"
	CondMissingConfidence      = "confidence_not_supplied"
	CondInvalidConfidence      = "confidence_out_of_range"
	CondConfidenceBelowThreshold = "confidence_below_threshold"
	CondMissingPrincipal       = "principal_not_supplied"
	CondMissingGrant           = "no_matching_grant"
	CondGrantExpired           = "grant_expired"
	CondGrantRevoked           = "grant_revoked"
	CondGrantExhausted         = "grant_remaining_uses_zero"
	CondScopeDenied            = "grant_scope_denied_context"
	CondUnknownCapability      = "capability_not_registered"
	CondSelfInvocation         = "capability_invoked_outside_guard"
	CondUnifiedAuthority       = "execution_path_bypassed_guard"
	CondDirectExecution        = "execute_fn_called_directly"
	CondFrictionSkipped        = "friction_wait_not_observed"
	CondConsequenceMismatch    = "capability_consequence_changed_since_registration"
	CondSnapshotHashMismatch   = "recomputed_hash_differs_from_snapshot"
	CondSnapshotReuse          = "snapshot_id_already_admitted"
	CondTOCTOU                 = "world_state_changed_between_capture_and_execute"
	CondCompositionStep        = "composition_step_failed"
	CondCompositionOrder       = "composition_step_out_of_order"
	CondExecutionError         = "capability_execution_returned_error"
	CondGuardRefusal           = "guard_refused_admission"
	CondCapabilityRedefinition = "capability_redefinition_incompatible"
)

var conditionByKind = map[primitives.FailureType]string{
	primitives.FailureMissingContext:                     CondMissingContext,
	primitives.FailureInvalidContext:                     CondInvalidContext,
	primitives.FailureMissingIntent:                      CondMissingIntent,
	primitives.FailureInvalidIntent:                       CondInvalidIntent,
	primitives.FailureIntentInferenceAttempt:              CondIntentInference,
	primitives.FailureMissingConfidence:                  CondMissingConfidence,
	primitives.FailureInvalidConfidence:                   CondInvalidConfidence,
	primitives.FailureConfidenceThresholdExceeded:         CondConfidenceBelowThreshold,
	primitives.FailureMissingPrincipal:                    CondMissingPrincipal,
	primitives.FailureMissingGrant:                        CondMissingGrant,
	primitives.FailureExpiredGrant:                        CondGrantExpired,
	primitives.FailureRevokedGrant:                        CondGrantRevoked,
	primitives.FailureExhaustedGrant:                      CondGrantExhausted,
	primitives.FailureInvalidGrantScope:                   CondScopeDenied,
	primitives.FailureUnknownCapability:                   CondUnknownCapability,
	primitives.FailureCapabilitySelfInvocation:            CondSelfInvocation,
	primitives.FailureUnifiedExecutionAuthorityViolation:  CondUnifiedAuthority,
	primitives.FailureDirectExecutionAttempt:              CondDirectExecution,
	primitives.FailureFrictionViolation:                   CondFrictionSkipped,
	primitives.FailureConsequenceLevelMismatch:            CondConsequenceMismatch,
	primitives.FailureSnapshotHashMismatch:                CondSnapshotHashMismatch,
	primitives.FailureSnapshotReuseAttempt:                CondSnapshotReuse,
	primitives.FailureTOCTOUViolation:                     CondTOCTOU,
	primitives.FailureCompositionStepFailure:              CondCompositionStep,
	primitives.FailureCompositionOrderViolation:           CondCompositionOrder,
	primitives.FailureExecutionError:                      CondExecutionError,
	primitives.FailureGuardRefusal:                        CondGuardRefusal,
	primitives.FailureCapabilityRedefinition:               CondCapabilityRedefinition,
}

// phaseByKind pins most refusal kinds to the MEK phase they can only
// arise from; callers may still override via NewAt for kinds that can
// legitimately fire from more than one phase (composition-level
// refusals raised while replaying a single step's own Guard call).
var phaseByKind = map[primitives.FailureType]primitives.Phase{
	primitives.FailureMissingContext:                    primitives.PhaseMEK2,
	primitives.FailureInvalidContext:                    primitives.PhaseMEK2,
	primitives.FailureMissingIntent:                     primitives.PhaseMEK2,
	primitives.FailureInvalidIntent:                      primitives.PhaseMEK2,
	primitives.FailureIntentInferenceAttempt:             primitives.PhaseMEK2,
	primitives.FailureMissingConfidence:                 primitives.PhaseMEK2,
	primitives.FailureInvalidConfidence:                  primitives.PhaseMEK2,
	primitives.FailureConfidenceThresholdExceeded:        primitives.PhaseMEK2,
	primitives.FailureMissingPrincipal:                   primitives.PhaseMEK2,
	primitives.FailureMissingGrant:                       primitives.PhaseMEK2,
	primitives.FailureExpiredGrant:                       primitives.PhaseMEK2,
	primitives.FailureRevokedGrant:                       primitives.PhaseMEK2,
	primitives.FailureExhaustedGrant:                     primitives.PhaseMEK2,
	primitives.FailureInvalidGrantScope:                  primitives.PhaseMEK2,
	primitives.FailureUnknownCapability:                  primitives.PhaseMEK2,
	primitives.FailureCapabilitySelfInvocation:           primitives.PhaseMEK6,
	primitives.FailureUnifiedExecutionAuthorityViolation: primitives.PhaseMEK6,
	primitives.FailureDirectExecutionAttempt:             primitives.PhaseMEK6,
	primitives.FailureFrictionViolation:                  primitives.PhaseMEK5,
	primitives.FailureConsequenceLevelMismatch:           primitives.PhaseMEK2,
	primitives.FailureSnapshotHashMismatch:               primitives.PhaseMEK3,
	primitives.FailureSnapshotReuseAttempt:               primitives.PhaseMEK3,
	primitives.FailureTOCTOUViolation:                    primitives.PhaseMEK3,
	primitives.FailureCompositionStepFailure:             primitives.PhaseMEK4,
	primitives.FailureCompositionOrderViolation:          primitives.PhaseMEK4,
	primitives.FailureExecutionError:                     primitives.PhaseMEK6,
	primitives.FailureGuardRefusal:                       primitives.PhaseMEK2,
	primitives.FailureCapabilityRedefinition:              primitives.PhaseMEK2,
}

// New constructs a single-element FailureComposition for kind, at its
// canonical phase, with the given authority context and (possibly
// empty) snapshot id.
func New(kind primitives.FailureType, violatedInvariant string, auth primitives.AuthorityContext, snapshotID string, clock primitives.Clock) *primitives.FailureComposition {
	return NewAt(phaseByKind[kind], kind, violatedInvariant, auth, snapshotID, clock)
}

// NewAt is New with an explicit phase override, for the rare kinds that
// can legitimately be raised from more than one phase.
func NewAt(phase primitives.Phase, kind primitives.FailureType, violatedInvariant string, auth primitives.AuthorityContext, snapshotID string, clock primitives.Clock) *primitives.FailureComposition {
	event := primitives.FailureEvent{
		FailureID:           uuid.NewString(),
		FailurePhase:        phase,
		FailureKind:         kind,
		ViolatedInvariant:   violatedInvariant,
		TriggeringCondition: conditionByKind[kind],
		AuthorityContext:    auth,
		SnapshotID:          snapshotID,
		Timestamp:           clock.Now().UnixNano(),
	}
	return primitives.NewFailureComposition().Append(event)
}

// Append adds one more event of kind, at its canonical phase, to an
// existing composition; the events already in it are kept unchanged.
// The Guard itself halts on its first refusal and never calls Append.
func Append(fc *primitives.FailureComposition, kind primitives.FailureType, violatedInvariant string, auth primitives.AuthorityContext, snapshotID string, clock primitives.Clock) *primitives.FailureComposition {
	event := primitives.FailureEvent{
		FailureID:           uuid.NewString(),
		FailurePhase:        phaseByKind[kind],
		FailureKind:         kind,
		ViolatedInvariant:   violatedInvariant,
		TriggeringCondition: conditionByKind[kind],
		AuthorityContext:    auth,
		SnapshotID:          snapshotID,
		Timestamp:           clock.Now().UnixNano(),
	}
	return fc.Append(event)
}
