package primitives

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Grant is a time- and use-bounded authorization for (principal,
// capability). Every field is frozen at issuance except RemainingUses,
// which is the one deliberately mutable field in the entire system
// (spec §3, §9) — it is realized as an atomic counter so consumption is
// linearizable across concurrent admissions without a mutex around the
// rest of the (otherwise pure) struct.
type Grant struct {
	GrantID        string
	PrincipalID    PrincipalID
	CapabilityName string
	// Scope is capability-defined and opaque to the Guard beyond
	// hashing; MEK's concrete choice (see pkg/scope) is a CEL boolean
	// expression evaluated against the admitting Context's fields.
	Scope         string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	MaxUses       *int64
	Revocable     bool
	remainingUses *atomic.Int64
}

// NewGrant constructs a Grant. If maxUses is nil the grant is unbounded
// (remaining_uses is never consulted at step 7).
func NewGrant(id string, principal PrincipalID, capability, scope string, issuedAt, expiresAt time.Time, maxUses *int64, revocable bool) *Grant {
	g := &Grant{
		GrantID:        id,
		PrincipalID:    principal,
		CapabilityName: capability,
		Scope:          scope,
		IssuedAt:       issuedAt,
		ExpiresAt:      expiresAt,
		MaxUses:        maxUses,
		Revocable:      revocable,
		remainingUses:  &atomic.Int64{},
	}
	if maxUses != nil {
		g.remainingUses.Store(*maxUses)
	}
	return g
}

// RemainingUses returns the current use counter. Meaningless (always 0)
// for unbounded grants; callers must check MaxUses first.
func (g *Grant) RemainingUses() int64 {
	return g.remainingUses.Load()
}

// TryConsume atomically decrements the remaining-uses counter by one if
// and only if it is currently positive. It reports the post-decrement
// value and whether the consumption succeeded. Unbounded grants (nil
// MaxUses) always succeed without touching the counter.
func (g *Grant) TryConsume() (remaining int64, ok bool) {
	if g.MaxUses == nil {
		return 0, true
	}
	for {
		cur := g.remainingUses.Load()
		if cur <= 0 {
			return 0, false
		}
		if g.remainingUses.CompareAndSwap(cur, cur-1) {
			return cur - 1, true
		}
	}
}

func (g *Grant) IsExpired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

func (g *Grant) IsExhausted() bool {
	if g.MaxUses == nil {
		return false
	}
	return g.remainingUses.Load() <= 0
}

// GrantClaims is the JWT claim set an external issuance authority signs
// when it issues a Grant over the wire (spec §6: "the kernel exposes
// issue_grant... issuance occurs outside the Guard path"). The Guard
// never mints or reads one of these; DecodeGrantToken is the verifying
// counterpart of EncodeGrantToken.
type GrantClaims struct {
	jwt.RegisteredClaims
	GrantID        string `json:"grant_id"`
	PrincipalID    string `json:"principal_id"`
	CapabilityName string `json:"capability_name"`
	Scope          string `json:"scope"`
	MaxUses        *int64 `json:"max_uses,omitempty"`
	Revocable      bool   `json:"revocable"`
}

// EncodeGrantToken signs a Grant as a JWT using the issuer's key. This
// is the concrete wire format for the external issuance authority's
// issue_grant() call (§6); DecodeGrantToken verifies and decodes tokens
// produced by this function.
func EncodeGrantToken(g *Grant, signingKey any) (string, error) {
	claims := GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(g.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(g.ExpiresAt),
		},
		GrantID:        g.GrantID,
		PrincipalID:    string(g.PrincipalID),
		CapabilityName: g.CapabilityName,
		Scope:          g.Scope,
		MaxUses:        g.MaxUses,
		Revocable:      g.Revocable,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("primitives: grant token signing failed: %w", err)
	}
	return signed, nil
}

// DecodeGrantToken verifies and decodes a JWT produced by
// EncodeGrantToken, returning a fresh Grant with a zeroed use counter
// (the Authority Store, not the token, is the source of truth for
// remaining_uses once a grant is admitted).
func DecodeGrantToken(tokenStr string, verifyKey any) (*Grant, error) {
	var claims GrantClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return verifyKey, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		return nil, fmt.Errorf("primitives: grant token invalid: %w", err)
	}

	var issuedAt, expiresAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return NewGrant(claims.GrantID, PrincipalID(claims.PrincipalID), claims.CapabilityName, claims.Scope, issuedAt, expiresAt, claims.MaxUses, claims.Revocable), nil
}

// RevocationEvent is terminal and irreversible: once appended for a
// grant_id there is no un-revoke operation anywhere in this module.
type RevocationEvent struct {
	GrantID            string
	RevokedByPrincipal PrincipalID
	Reason             RevocationReason
	RevokedAt          time.Time
}
