package primitives

// GrantSnapshot is the frozen view of a Grant captured into an Evidence
// Bundle. It intentionally omits the live atomic counter — the bundle
// records the remaining uses at seal time as a plain integer, since a bundle
// is immutable after sealing and must never observe further mutation.
type GrantSnapshot struct {
	GrantID              string
	PrincipalID          PrincipalID
	CapabilityName       string
	ScopeHash            string
	IssuedAt             int64
	ExpiresAt            int64
	MaxUses              *int64
	RemainingUsesAtSeal  int64
	Revocable            bool
}

// EvidenceBundle is the immutable, post-halt container the Evidence
// Subsystem (C9) builds after every terminal admission — success or
// failure, never both (spec §3, §4.9).
type EvidenceBundle struct {
	BundleID          string
	CreatedAt         int64
	ContextSnapshot   canonicalContext
	IntentSnapshot    canonicalIntent
	PrincipalSnapshot PrincipalID
	GrantSnapshot     *GrantSnapshot // nil if no grant was resolved
	Snapshots         []Snapshot
	Failure           *FailureComposition // exactly one of Failure/Results is non-nil
	Results           any
	AuthorityVersion  int64
	HashChainRoot     string
}
