package primitives

// Snapshot is the immutable record of the world-slice a given execution
// was admitted against (spec §3, §4.3). Once captured it is never
// updated; re-validation (admission step 11) recomputes fresh hashes
// and compares them against the values captured here, it never mutates
// the Snapshot itself.
type Snapshot struct {
	SnapshotID                  string
	CapturedAt                  int64
	PrincipalID                 PrincipalID
	GrantID                     string
	CapabilityName              string
	CapabilityScopeHash         string
	ContextHash                 string
	IntentHash                  string
	ConfidenceValue             float64
	AuthorityVersion            int64
	GrantExpiresAt              int64
	GrantRemainingUsesAtCapture int64
}

// Matches reports whether a freshly recomputed set of inputs is
// bit-identical to what this Snapshot captured. Any divergence — a
// changed hash, a stale authority_version, a moved expiry — is the
// TOCTOU signal admission step 11 exists to catch.
func (s Snapshot) Matches(recomputed Snapshot) bool {
	return s.CapabilityScopeHash == recomputed.CapabilityScopeHash &&
		s.ContextHash == recomputed.ContextHash &&
		s.IntentHash == recomputed.IntentHash &&
		s.ConfidenceValue == recomputed.ConfidenceValue &&
		s.AuthorityVersion == recomputed.AuthorityVersion &&
		s.GrantExpiresAt == recomputed.GrantExpiresAt &&
		s.GrantRemainingUsesAtCapture == recomputed.GrantRemainingUsesAtCapture
}
