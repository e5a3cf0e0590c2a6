// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// compliant serialization for deterministic hashing of MEK primitives.
//
// Every entity in the kernel's data model (§3 of the spec) is hashed for
// use in Snapshots and Evidence Bundles. Hashing two semantically equal
// values must always produce the same bytes regardless of map iteration
// order, struct field order, or how the value was constructed — that is
// the entire purpose of this package, and the reason the Evidence
// Subsystem and the Guard's snapshot hashing both delegate to it rather
// than calling encoding/json directly.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// v is first marshaled with the standard library (so struct `json` tags
// are respected), every string leaf is then NFC-normalized so two
// semantically identical strings built from different Unicode
// decompositions hash identically, and the result is transformed by
// gowebpki/jcs into canonical form: object members sorted by UTF-16
// code unit, no insignificant whitespace, numbers in the shortest
// round-trippable form. This is the "fixed algorithm, no
// observer-visible data" serialization the spec's Snapshot and
// Evidence sections require.
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}

	normalized, err := normalizeUnicode(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: unicode normalization failed: %w", err)
	}

	canonical, err := jcs.Transform(normalized)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}

	return canonical, nil
}

// normalizeUnicode decodes JSON into generic values, applies Unicode
// NFC normalization (norm.NFC) to every string leaf, and re-encodes.
// Grounded on the teacher's own CSNF transform (csnf.go's
// transformString), which normalizes string leaves for the same
// reason: a context field, grant scope, or capability name typed with
// a combining-character sequence must hash identically to its
// precomposed form, or two Contexts a human would consider identical
// produce different hash_chain_root values.
func normalizeUnicode(data []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeValue(v))
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return norm.NFC.String(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[norm.NFC.String(k)] = normalizeValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}

// JCSString returns the JCS canonical form as a string.
func JCSString(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HashBytes computes the SHA-256 hex digest of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v. This is the primitive every hash field in §3
// (capability_scope_hash, context_hash, intent_hash, hash_chain_root
// elements, ...) is built from.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}
