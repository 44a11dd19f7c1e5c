package session

import "errors"

var (
	// ErrInvalidCredentials is returned when issue-time authentication fails.
	// It never reveals whether the identity exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for malformed tokens, bad signatures, or a
	// token of the wrong kind.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned for a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token expired")

	// ErrTokenReuseOrRevoked is returned when a valid, unexpired refresh
	// token is not present in the session set: it was already rotated,
	// explicitly logged out, or never existed. Repeated occurrences are a
	// signal of possible token theft.
	ErrTokenReuseOrRevoked = errors.New("refresh token reused or revoked")

	// ErrStoreUnavailable wraps infrastructure faults from the session store
	// so callers can distinguish attacker/stale-client outcomes from
	// infrastructure problems.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
