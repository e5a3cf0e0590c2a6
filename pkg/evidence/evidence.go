// Package evidence implements the Evidence Subsystem (spec §4.9, C9):
// construction of hash-chained, immutable Evidence Bundles after every
// terminal admission, plus export/verify over the sealed byte form.
//
// Verify is intentionally inert: it recomputes the hash chain and
// checks required-field presence, nothing else. It never evaluates
// whether the admission it describes was "correct" and never touches
// the Authority Store, Snapshot Store, or Guard — mirroring the
// teacher's own read-only audit verifiers (receipts/verify.go) rather
// than its stateful replay engine (replay/).
package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/mek-labs/kernel/pkg/canonicalize"
	"github.com/mek-labs/kernel/pkg/merkle"
	"github.com/mek-labs/kernel/pkg/primitives"
)

// BuildParams is everything Build needs to seal one terminal admission
// into a Bundle. Exactly one of Failure/Results must be set (spec:
// "never both").
type BuildParams struct {
	BundleID          string
	CreatedAt         int64
	Context           primitives.Context
	Intent            primitives.Intent
	PrincipalID       primitives.PrincipalID
	Grant             *primitives.Grant // nil if no grant was resolved
	ExecutionSnapshots []primitives.Snapshot
	Failure           *primitives.FailureComposition
	Results           any
	AuthorityVersion  int64
}

// Build seals a terminal admission into an immutable EvidenceBundle and
// computes its hash_chain_root over the fixed element ordering the spec
// documents: context, intent, principal, grant (or empty tag),
// execution snapshots in admission order, failure-or-results, then
// authority_version.
func Build(p BuildParams) (*primitives.EvidenceBundle, error) {
	if (p.Failure == nil) == (p.Results == nil) {
		return nil, fmt.Errorf("evidence: exactly one of Failure or Results must be set")
	}

	var grantSnap *primitives.GrantSnapshot
	if p.Grant != nil {
		scopeHash := canonicalize.HashBytes([]byte(p.Grant.Scope))
		grantSnap = &primitives.GrantSnapshot{
			GrantID:             p.Grant.GrantID,
			PrincipalID:         p.Grant.PrincipalID,
			CapabilityName:      p.Grant.CapabilityName,
			ScopeHash:           scopeHash,
			IssuedAt:            p.Grant.IssuedAt.UnixNano(),
			ExpiresAt:           p.Grant.ExpiresAt.UnixNano(),
			MaxUses:             p.Grant.MaxUses,
			RemainingUsesAtSeal: p.Grant.RemainingUses(),
			Revocable:           p.Grant.Revocable,
		}
	}

	bundle := &primitives.EvidenceBundle{
		BundleID:          p.BundleID,
		CreatedAt:         p.CreatedAt,
		ContextSnapshot:   p.Context.Canonical(),
		IntentSnapshot:    p.Intent.Canonical(),
		PrincipalSnapshot: p.PrincipalID,
		GrantSnapshot:     grantSnap,
		Snapshots:         p.ExecutionSnapshots,
		Failure:           p.Failure,
		Results:           p.Results,
		AuthorityVersion:  p.AuthorityVersion,
	}

	root, err := hashChain(bundle)
	if err != nil {
		return nil, fmt.Errorf("evidence: hash chain construction failed: %w", err)
	}
	bundle.HashChainRoot = root
	return bundle, nil
}

// hashChain implements H_0 = hash(bundle_id||created_at), H_i =
// hash(H_{i-1}||canonical_serialization(element_i)) over the fixed
// element order from §4.9. created_at enters H_0 in its canonical
// form, the same form Export writes, so a decoded bundle recomputes
// the same H_0.
func hashChain(b *primitives.EvidenceBundle) (string, error) {
	createdAt, err := canonicalize.JCS(b.CreatedAt)
	if err != nil {
		return "", err
	}
	h := canonicalize.HashBytes([]byte(fmt.Sprintf("%s|%s", b.BundleID, createdAt)))

	elements := []any{b.ContextSnapshot, b.IntentSnapshot, b.PrincipalSnapshot}
	if b.GrantSnapshot != nil {
		elements = append(elements, b.GrantSnapshot)
	} else {
		elements = append(elements, "EMPTY_GRANT")
	}
	for _, snap := range b.Snapshots {
		elements = append(elements, snap)
	}
	if b.Failure != nil {
		for _, ev := range b.Failure.Events() {
			elements = append(elements, ev)
		}
	} else {
		elements = append(elements, b.Results)
	}
	elements = append(elements, b.AuthorityVersion)

	for _, el := range elements {
		canon, err := canonicalize.JCS(el)
		if err != nil {
			return "", err
		}
		h = canonicalize.HashBytes([]byte(h + string(canon)))
	}
	return h, nil
}

// InclusionProofFor builds a Merkle inclusion proof for one named
// element of the bundle (e.g. "failure.0" or "snapshot.0"), letting a
// verifier check a single element against hash_chain_root-adjacent
// data without holding the entire bundle. This supplements the spec's
// bare hash-chain-root scheme with the per-element proof machinery
// the merkle package already provides for multi-leaf structures.
func InclusionProofFor(b *primitives.EvidenceBundle, elementKey string, elementValue any) (*merkle.InclusionProof, error) {
	leaves, err := bundleLeaves(b)
	if err != nil {
		return nil, err
	}
	tree, err := merkle.BuildMerkleTree(leaves)
	if err != nil {
		return nil, fmt.Errorf("evidence: merkle tree construction failed: %w", err)
	}
	return tree.Prove(elementKey)
}

func bundleLeaves(b *primitives.EvidenceBundle) (map[string]interface{}, error) {
	leaves := map[string]interface{}{
		"context":           b.ContextSnapshot,
		"intent":            b.IntentSnapshot,
		"principal":         b.PrincipalSnapshot,
		"authority_version": b.AuthorityVersion,
	}
	if b.GrantSnapshot != nil {
		leaves["grant"] = b.GrantSnapshot
	}
	for i, snap := range b.Snapshots {
		leaves[fmt.Sprintf("snapshot.%d", i)] = snap
	}
	if b.Failure != nil {
		for i, ev := range b.Failure.Events() {
			leaves[fmt.Sprintf("failure.%d", i)] = ev
		}
	} else {
		leaves["results"] = b.Results
	}
	return leaves, nil
}

// Export serializes a Bundle to its canonical form and compresses it
// with zstd, producing the opaque byte sequence the spec's export()
// operation returns.
func Export(b *primitives.EvidenceBundle) ([]byte, error) {
	canon, err := canonicalize.JCS(b)
	if err != nil {
		return nil, fmt.Errorf("evidence: export canonicalization failed: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("evidence: zstd writer construction failed: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(canon, nil), nil
}

// VerificationResult is Verify's entire output surface: integrity and
// completeness only, never a correctness judgment (spec §4.9).
type VerificationResult struct {
	HashChainConsistent bool
	RequiredFieldsPresent bool
	Bundle              *primitives.EvidenceBundle
}

// OK reports whether both integrity checks passed.
func (v VerificationResult) OK() bool {
	return v.HashChainConsistent && v.RequiredFieldsPresent
}

// Verify decompresses and decodes exported bytes, recomputes the hash
// chain, and checks required-field presence. It has no side effects:
// no execution is triggered and no mutable state (Authority Store,
// Snapshot Store) is touched.
func Verify(exported []byte) (VerificationResult, error) {
	dec, err := zstd.NewReader(bytes.NewReader(exported))
	if err != nil {
		return VerificationResult{}, fmt.Errorf("evidence: zstd reader construction failed: %w", err)
	}
	defer dec.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(dec); err != nil {
		return VerificationResult{}, fmt.Errorf("evidence: decompression failed: %w", err)
	}

	var b primitives.EvidenceBundle
	if err := json.Unmarshal(buf.Bytes(), &b); err != nil {
		return VerificationResult{}, fmt.Errorf("evidence: decode failed: %w", err)
	}

	expectedRoot, err := hashChain(&b)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("evidence: recompute failed: %w", err)
	}

	requiredPresent := b.BundleID != "" && b.CreatedAt != 0 &&
		(b.Failure != nil) != (b.Results != nil)

	return VerificationResult{
		HashChainConsistent:   expectedRoot == b.HashChainRoot,
		RequiredFieldsPresent: requiredPresent,
		Bundle:                &b,
	}, nil
}

// Log is an append-only, in-process Evidence Bundle sink: every call to
// Capture (wired from pkg/guard as the post-halt Evidence step) appends
// one bundle, never replacing or removing an earlier one: an "append
// under a lock, read back a snapshot slice" shape.
type Log struct {
	mu      sync.Mutex
	bundles []*primitives.EvidenceBundle
}

// NewLog constructs an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Capture appends b. Satisfies guard.EvidenceSink.
func (l *Log) Capture(b *primitives.EvidenceBundle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bundles = append(l.bundles, b)
}

// Bundles returns a snapshot of every bundle captured so far, oldest
// first. The returned slice is owned by the caller; mutating it does
// not affect the Log.
func (l *Log) Bundles() []*primitives.EvidenceBundle {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*primitives.EvidenceBundle, len(l.bundles))
	copy(out, l.bundles)
	return out
}

// Last returns the most recently captured bundle, or nil if none has
// been captured yet.
func (l *Log) Last() *primitives.EvidenceBundle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.bundles) == 0 {
		return nil
	}
	return l.bundles[len(l.bundles)-1]
}
