package evidence_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mek-labs/kernel/pkg/evidence"
	"github.com/mek-labs/kernel/pkg/failure"
	"github.com/mek-labs/kernel/pkg/primitives"
)

func confidencePtr(v float64) *float64 { return &v }

func buildSuccessBundle(t *testing.T) *primitives.EvidenceBundle {
	t.Helper()
	clock := primitives.WallClock{}
	ctx, err := primitives.NewContext(primitives.ContextParams{
		Confidence:  confidencePtr(0.9),
		IntentName:  "file.read",
		Fields:      map[string]any{"path": "/tmp/x"},
		PrincipalID: "alice",
	}, clock)
	require.NoError(t, err)

	now := time.Now()
	max := int64(1)
	grant := primitives.NewGrant("g1", "alice", "file.read", "", now, now.Add(time.Hour), &max, true)
	grant.TryConsume()

	snap := primitives.Snapshot{SnapshotID: "s1", CapturedAt: now.UnixNano(), PrincipalID: "alice", GrantID: "g1", CapabilityName: "file.read"}

	b, err := evidence.Build(evidence.BuildParams{
		BundleID:           "b1",
		CreatedAt:          now.UnixNano(),
		Context:            ctx,
		Intent:             primitives.NewIntent("file.read", nil),
		PrincipalID:        "alice",
		Grant:              grant,
		ExecutionSnapshots: []primitives.Snapshot{snap},
		Results:            map[string]any{"path": "/tmp/x"},
		AuthorityVersion:   1,
	})
	require.NoError(t, err)
	return b
}

func buildFailureBundle(t *testing.T) *primitives.EvidenceBundle {
	t.Helper()
	clock := primitives.WallClock{}
	ctx, err := primitives.NewContext(primitives.ContextParams{
		Confidence:  confidencePtr(0.9),
		IntentName:  "file.read",
		Fields:      map[string]any{"path": "/tmp/x"},
		PrincipalID: "alice",
	}, clock)
	require.NoError(t, err)

	fc := failure.New(primitives.FailureMissingGrant, "no grant", primitives.AuthorityContext{PrincipalID: "alice"}, "", clock)

	b, err := evidence.Build(evidence.BuildParams{
		BundleID:         "b2",
		CreatedAt:        time.Now().UnixNano(),
		Context:          ctx,
		Intent:           primitives.NewIntent("file.read", nil),
		PrincipalID:      "alice",
		Failure:          fc,
		AuthorityVersion: 0,
	})
	require.NoError(t, err)
	return b
}

func TestBuild_RefusesBothFailureAndResultsNil(t *testing.T) {
	clock := primitives.WallClock{}
	ctx, err := primitives.NewContext(primitives.ContextParams{
		Confidence:  confidencePtr(0.9),
		IntentName:  "file.read",
		Fields:      map[string]any{},
		PrincipalID: "alice",
	}, clock)
	require.NoError(t, err)

	_, err = evidence.Build(evidence.BuildParams{
		BundleID:  "b3",
		CreatedAt: time.Now().UnixNano(),
		Context:   ctx,
		Intent:    primitives.NewIntent("file.read", nil),
	})
	assert.Error(t, err, "exactly one of Failure/Results must be set")
}

func TestBuild_RefusesBothFailureAndResultsSet(t *testing.T) {
	clock := primitives.WallClock{}
	ctx, err := primitives.NewContext(primitives.ContextParams{
		Confidence:  confidencePtr(0.9),
		IntentName:  "file.read",
		Fields:      map[string]any{},
		PrincipalID: "alice",
	}, clock)
	require.NoError(t, err)
	fc := failure.New(primitives.FailureMissingGrant, "no grant", primitives.AuthorityContext{PrincipalID: "alice"}, "", clock)

	_, err = evidence.Build(evidence.BuildParams{
		BundleID:  "b4",
		CreatedAt: time.Now().UnixNano(),
		Context:   ctx,
		Intent:    primitives.NewIntent("file.read", nil),
		Failure:   fc,
		Results:   "both set",
	})
	assert.Error(t, err)
}

// TestExportVerify_RoundTripsSuccessBundle exercises the full
// Build -> Export -> Verify cycle for a successful admission, including
// the FailureComposition's absence (Results set instead).
func TestExportVerify_RoundTripsSuccessBundle(t *testing.T) {
	b := buildSuccessBundle(t)
	exported, err := evidence.Export(b)
	require.NoError(t, err)

	result, err := evidence.Verify(exported)
	require.NoError(t, err)
	assert.True(t, result.HashChainConsistent)
	assert.True(t, result.RequiredFieldsPresent)
	assert.True(t, result.OK())
}

// TestExportVerify_RoundTripsFailureBundle is the counterpart covering a
// bundle whose Failure Composition carries events — this is the case
// that depends on FailureComposition's custom JSON (un)marshaling to
// round-trip at all.
func TestExportVerify_RoundTripsFailureBundle(t *testing.T) {
	b := buildFailureBundle(t)
	exported, err := evidence.Export(b)
	require.NoError(t, err)

	result, err := evidence.Verify(exported)
	require.NoError(t, err)
	require.True(t, result.OK())
	require.NotNil(t, result.Bundle.Failure)
	assert.Len(t, result.Bundle.Failure.Events(), 1, "the failure event must survive the export/verify round trip")
	assert.Equal(t, primitives.FailureMissingGrant, result.Bundle.Failure.Events()[0].FailureKind)
}

// TestVerify_DetectsTampering mirrors S5: flipping a byte of the
// exported payload must make Verify report a hash-chain mismatch rather
// than silently accepting altered evidence.
func TestVerify_DetectsTampering(t *testing.T) {
	b := buildSuccessBundle(t)
	_, err := evidence.Export(b)
	require.NoError(t, err)

	// zstd-compressed bytes don't tolerate raw corruption (they usually
	// just fail to decompress), so tamper with the decompressed+recompressed
	// plaintext isn't available here; instead corrupt the bundle's stored
	// hash directly, which is what a verifier must catch if an attacker
	// controlled the uncompressed JSON before compression.
	b.HashChainRoot = "0000000000000000000000000000000000000000000000000000000000000000"
	tampered, err := evidence.Export(b)
	require.NoError(t, err)

	result, err := evidence.Verify(tampered)
	require.NoError(t, err)
	assert.False(t, result.HashChainConsistent)
	assert.False(t, result.OK())
}

func TestInclusionProofFor_VerifiesAgainstRoot(t *testing.T) {
	b := buildSuccessBundle(t)
	proof, err := evidence.InclusionProofFor(b, "principal", b.PrincipalSnapshot)
	require.NoError(t, err)
	assert.NotEmpty(t, proof.MerkleRoot)
	assert.Equal(t, "principal", proof.LeafPath)
}
