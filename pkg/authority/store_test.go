package authority_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mek-labs/kernel/pkg/authority"
	"github.com/mek-labs/kernel/pkg/primitives"
)

func TestStore_AdmitAndLookup(t *testing.T) {
	store := authority.New(primitives.WallClock{})
	now := time.Now()
	g := primitives.NewGrant("g1", "alice", "file.read", "", now, now.Add(time.Hour), nil, true)

	require.NoError(t, store.Admit(g))

	found, ok := store.Lookup("alice", "file.read")
	require.True(t, ok)
	assert.Equal(t, "g1", found.GrantID)
}

func TestStore_Admit_RefusesDuplicateGrantID(t *testing.T) {
	store := authority.New(primitives.WallClock{})
	now := time.Now()
	g := primitives.NewGrant("g1", "alice", "file.read", "", now, now.Add(time.Hour), nil, true)
	require.NoError(t, store.Admit(g))
	assert.Error(t, store.Admit(g))
}

func TestStore_Revoke_IsIdempotent(t *testing.T) {
	store := authority.New(primitives.WallClock{})
	now := time.Now()
	g := primitives.NewGrant("g1", "alice", "file.read", "", now, now.Add(time.Hour), nil, true)
	require.NoError(t, store.Admit(g))

	vBefore := store.AuthorityVersion()
	store.Revoke("g1", "bob", primitives.RevocationManualOverride)
	vAfterFirst := store.AuthorityVersion()
	assert.Greater(t, vAfterFirst, vBefore)

	store.Revoke("g1", "bob", primitives.RevocationManualOverride)
	vAfterSecond := store.AuthorityVersion()
	assert.Equal(t, vAfterFirst, vAfterSecond, "revoking an already-revoked grant must not bump the version again")

	assert.True(t, store.IsRevoked("g1"))
}

func TestStore_Lookup_SkipsRevoked(t *testing.T) {
	store := authority.New(primitives.WallClock{})
	now := time.Now()
	g := primitives.NewGrant("g1", "alice", "file.read", "", now, now.Add(time.Hour), nil, true)
	require.NoError(t, store.Admit(g))
	store.Revoke("g1", "bob", primitives.RevocationCompromised)

	_, ok := store.Lookup("alice", "file.read")
	assert.False(t, ok, "a revoked grant must not be returned by Lookup")
}

func TestStore_Lookup_TieBreaksOnEarliestExpiry(t *testing.T) {
	store := authority.New(primitives.WallClock{})
	now := time.Now()
	later := primitives.NewGrant("g-later", "alice", "file.read", "", now, now.Add(2*time.Hour), nil, true)
	sooner := primitives.NewGrant("g-sooner", "alice", "file.read", "", now, now.Add(time.Hour), nil, true)
	require.NoError(t, store.Admit(later))
	require.NoError(t, store.Admit(sooner))

	found, ok := store.Lookup("alice", "file.read")
	require.True(t, ok)
	assert.Equal(t, "g-sooner", found.GrantID)
}

// TestStore_Consume_ExactlyNSucceed is the Authority Store's half of
// S6: exactly one concurrent Consume of a max_uses=1 grant succeeds,
// and the version bumps exactly once on the zero-transition.
func TestStore_Consume_ExactlyNSucceed(t *testing.T) {
	store := authority.New(primitives.WallClock{})
	now := time.Now()
	max := int64(1)
	g := primitives.NewGrant("g1", "alice", "file.read", "", now, now.Add(time.Hour), &max, true)
	require.NoError(t, store.Admit(g))

	versionBefore := store.AuthorityVersion()

	const concurrency = 10
	var wg sync.WaitGroup
	oks := make([]bool, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, ok := store.Consume("g1")
			oks[idx] = ok
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, ok := range oks {
		if ok {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount)
	assert.Equal(t, versionBefore+1, store.AuthorityVersion(), "version must bump exactly once on consumption-to-zero")
}
