// Package session mints and verifies the signed bearer credential
// issued after a successful login.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/helixhealth/helix-portal/internal/shared"
)

// DefaultTTL is the fixed validity window of a session credential.
// There is no refresh; expiry forces re-authentication.
const DefaultTTL = time.Hour

// Issuer signs and verifies session credentials with a server-held
// secret loaded once at startup.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer. An empty secret is a configuration
// defect and must abort startup, never degrade per-request.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("session: signing secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed credential for the given user id.
func (i *Issuer) Issue(userID string) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign: %w", err)
	}
	return signed, nil
}

// Verify validates signature and expiry and returns the user id the
// credential was issued for. Every failure mode collapses to ErrAuth.
func (i *Issuer) Verify(credential string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(credential, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", shared.ErrAuth
	}
	if claims.Subject == "" {
		return "", shared.ErrAuth
	}
	return claims.Subject, nil
}

// TTL exposes the configured credential lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}
