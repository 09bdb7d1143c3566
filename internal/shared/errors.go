package shared

import "errors"

var (
	// ErrValidation indicates malformed input rejected before any I/O.
	ErrValidation = errors.New("invalid input")
	// ErrConflict indicates a duplicate username or email on creation.
	ErrConflict = errors.New("already exists")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAuth indicates bad credentials or an invalid/expired session.
	ErrAuth = errors.New("unauthorized")
	// ErrToken indicates an invalid, expired, or already-consumed token.
	// Callers are deliberately not told which of the three it was.
	ErrToken = errors.New("invalid or expired token")
	// ErrAccessDenied indicates a resource outside the caller's reach.
	ErrAccessDenied = errors.New("access denied")
	// ErrPayment indicates a rejected brand, network failure, or a
	// non-2xx settlement response.
	ErrPayment = errors.New("payment failed")
	// ErrRateLimited indicates too many attempts in the current window.
	ErrRateLimited = errors.New("too many attempts")
)
