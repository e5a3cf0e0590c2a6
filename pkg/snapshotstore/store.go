// Package snapshotstore implements the Snapshot Store (spec §4.3, C3):
// an append-only record of every world-slice an admission was captured
// against, keyed by snapshot_id, used to detect reuse and to supply the
// execution Snapshots list an Evidence Bundle attaches.
package snapshotstore

import (
	"fmt"
	"sync"

	"github.com/mek-labs/kernel/pkg/primitives"
)

// Store is append-only: Put refuses a second write for the same id
// (SNAPSHOT_REUSE_ATTEMPT, §4.3), and there is no Delete or Update
// method anywhere on this type.
type Store struct {
	mu   sync.RWMutex
	byID map[string]primitives.Snapshot
	// order preserves admission order for a single run's evidence bundle
	// construction (C9's "execution snapshots in admission order").
	order []string
}

func New() *Store {
	return &Store{byID: make(map[string]primitives.Snapshot)}
}

// ErrReuse is returned when a snapshot_id has already been admitted.
var ErrReuse = fmt.Errorf("snapshotstore: snapshot id already exists")

// Put appends a new Snapshot. Reuse of an existing snapshot_id is
// refused rather than silently overwritten.
func (s *Store) Put(snap primitives.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[snap.SnapshotID]; exists {
		return ErrReuse
	}
	s.byID[snap.SnapshotID] = snap
	s.order = append(s.order, snap.SnapshotID)
	return nil
}

func (s *Store) Get(id string) (primitives.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.byID[id]
	return snap, ok
}

// InOrder returns every stored Snapshot in the order it was admitted.
func (s *Store) InOrder() []primitives.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]primitives.Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
