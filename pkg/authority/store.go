// Package authority implements the Authority Store (spec §4.2, C2): the
// single in-memory registry of grants, revocations, and the global
// authority-version counter the Guard consults during admission.
//
// The locking discipline mirrors the teacher's guarded singletons
// (guardian.Guardian's embedded state, authz.Engine's sync.RWMutex map)
// generalized to grant/version semantics: a single RWMutex protects the
// grant table and its secondary index; RemainingUses is the one field
// that escapes the mutex entirely, via Grant's own atomic counter, so a
// hot consume() never blocks a concurrent lookup().
package authority

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mek-labs/kernel/pkg/primitives"
)

// Store is the Authority Store. Zero value is not usable; construct
// with New.
type Store struct {
	mu       sync.RWMutex
	grants   map[string]*primitives.Grant
	index    map[string]map[string]struct{} // "principal|capability" -> set of grant_id
	revoked  map[string]*primitives.RevocationEvent
	version  atomic.Int64
	clock    primitives.Clock
}

func New(clock primitives.Clock) *Store {
	return &Store{
		grants:  make(map[string]*primitives.Grant),
		index:   make(map[string]map[string]struct{}),
		revoked: make(map[string]*primitives.RevocationEvent),
		clock:   clock,
	}
}

func indexKey(principal primitives.PrincipalID, capability string) string {
	return string(principal) + "|" + capability
}

// AuthorityVersion returns the current monotonic counter. Any Snapshot
// whose captured value differs from this is stale (§4.2, §4.9).
func (s *Store) AuthorityVersion() int64 {
	return s.version.Load()
}

func (s *Store) bumpVersion() int64 {
	return s.version.Add(1)
}

// Admit registers a Grant that was issued by an external authority
// (§6). The Guard never calls this on its own behalf — it is invoked by
// whatever client-side issuance flow validated the issuer's authority
// before minting the grant.
func (s *Store) Admit(g *primitives.Grant) error {
	if g.GrantID == "" {
		return fmt.Errorf("authority: grant_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grants[g.GrantID]; exists {
		return fmt.Errorf("authority: grant %s already admitted", g.GrantID)
	}

	s.grants[g.GrantID] = g
	key := indexKey(g.PrincipalID, g.CapabilityName)
	if s.index[key] == nil {
		s.index[key] = make(map[string]struct{})
	}
	s.index[key][g.GrantID] = struct{}{}

	s.bumpVersion()
	return nil
}

// Lookup returns the single strongest matching live grant for
// (principal, capability), tie-breaking on earliest expires_at
// (fail-fast on soonest-dying authority, per §4.2). "Live" here means
// present and not yet revoked; expiry and exhaustion are checked by the
// Guard at steps 5 and 7 respectively, against the returned grant.
func (s *Store) Lookup(principal primitives.PrincipalID, capability string) (*primitives.Grant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := indexKey(principal, capability)
	var best *primitives.Grant
	for id := range s.index[key] {
		g, ok := s.grants[id]
		if !ok {
			continue
		}
		if _, isRevoked := s.revoked[id]; isRevoked {
			continue
		}
		if best == nil || g.ExpiresAt.Before(best.ExpiresAt) {
			best = g
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// IsRevoked reports whether a grant_id has a Revocation Event on file.
func (s *Store) IsRevoked(grantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[grantID]
	return ok
}

// Consume atomically reserves one use of the grant if bounded. Zero
// transitions (remaining_uses hits zero) bump authority_version so any
// outstanding Snapshot for that grant becomes stale at re-validation
// (step 11). The decrement and the bump are not one critical section:
// the decrement is atomic on the grant's own counter, and the bump
// follows under the store's write lock, so a reader in between can see
// a zero count with the version from before the bump.
func (s *Store) Consume(grantID string) (remaining int64, ok bool) {
	s.mu.RLock()
	g, exists := s.grants[grantID]
	s.mu.RUnlock()
	if !exists {
		return 0, false
	}

	remaining, consumed := g.TryConsume()
	if consumed && g.MaxUses != nil && remaining == 0 {
		s.mu.Lock()
		s.bumpVersion()
		s.mu.Unlock()
	}
	return remaining, consumed
}

// Revoke appends a Revocation Event. Idempotent: revoking an
// already-revoked grant is a no-op, not an error (§4.2).
func (s *Store) Revoke(grantID string, by primitives.PrincipalID, reason primitives.RevocationReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, already := s.revoked[grantID]; already {
		return
	}

	s.revoked[grantID] = &primitives.RevocationEvent{
		GrantID:            grantID,
		RevokedByPrincipal: by,
		Reason:             reason,
		RevokedAt:          s.clock.Now(),
	}
	s.bumpVersion()
}

// Get returns a grant by id regardless of revocation/expiry state, for
// snapshot re-validation (step 11) where the Guard needs the raw
// current state to compare against what was captured.
func (s *Store) Get(grantID string) (*primitives.Grant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantID]
	return g, ok
}

// SnapshotAuthorityState returns a coherent (grant-state, version) pair
// for use when capturing a Snapshot (step 10): it must be read under
// the same lock as the version counter so a concurrent Consume/Revoke
// cannot land between the two reads and produce a Snapshot that never
// existed.
func (s *Store) SnapshotAuthorityState(grantID string) (grant *primitives.Grant, revoked bool, version int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := s.grants[grantID]
	_, isRevoked := s.revoked[grantID]
	return g, isRevoked, s.version.Load()
}
