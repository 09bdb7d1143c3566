// Package token produces and validates the single-use secrets behind
// account invitations and password resets. Only a digest of a token is
// ever persisted; the raw value exists exactly once, inside the email
// link handed to the user.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Kind selects the token slot a secret belongs to.
type Kind string

const (
	// KindInvite activates a freshly created account.
	KindInvite Kind = "invite"
	// KindReset authorizes a single password change.
	KindReset Kind = "reset"
)

const (
	// rawBytes is the entropy carried by a token.
	rawBytes = 6
	// RawLength is the transport length: rawBytes hex-encoded.
	RawLength = rawBytes * 2

	// InviteTTL bounds how long an invitation stays redeemable.
	InviteTTL = 7 * 24 * time.Hour
	// ResetTTL bounds how long a password reset stays redeemable.
	ResetTTL = time.Hour
)

// Issued is the result of generating a token. Raw goes into the email
// link; Hash and ExpiresAt go into the user's token slot.
type Issued struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// Issue generates a cryptographically random token of the given kind.
func Issue(kind Kind, now time.Time) (Issued, error) {
	buf := make([]byte, rawBytes)
	if _, err := rand.Read(buf); err != nil {
		return Issued{}, fmt.Errorf("token: generate: %w", err)
	}
	raw := hex.EncodeToString(buf)
	return Issued{
		Raw:       raw,
		Hash:      HashRaw(raw),
		ExpiresAt: now.Add(TTL(kind)),
	}, nil
}

// TTL returns the validity window for a token kind.
func TTL(kind Kind) time.Duration {
	if kind == KindReset {
		return ResetTTL
	}
	return InviteTTL
}

// HashRaw computes the stored digest of a raw token. SHA-256 keeps the
// lookup deterministic; the 48 bits of entropy live in the raw value.
func HashRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ValidFormat reports whether a caller-supplied value even looks like
// a token: fixed length, lowercase hex alphabet. Anything else is
// rejected before the store is consulted.
func ValidFormat(raw string) bool {
	if len(raw) != RawLength {
		return false
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
