package session

import (
	"context"
	"time"
)

// Store is the authoritative record of live refresh sessions: per identity,
// the set of refresh-token digests currently valid for rotation. Stores see
// only digests, never raw tokens.
//
// Any infrastructure fault must be reported wrapped in ErrStoreUnavailable
// so callers can map it to a retryable failure instead of an auth failure.
type Store interface {
	// Add registers a digest for the identity. Re-adding the same digest is
	// a no-op. expiresAt bounds how long backends must retain the entry.
	Add(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// Consume atomically removes tokenHash from the identity's set and
	// reports whether this call performed the removal. For any number of
	// concurrent calls with the same digest, at most one observes true;
	// absent or expired digests yield false without error.
	Consume(ctx context.Context, userID, tokenHash string) (bool, error)

	// RemoveOne unconditionally removes a single digest. Removing an absent
	// digest succeeds (idempotent logout).
	RemoveOne(ctx context.Context, userID, tokenHash string) error

	// ClearAll drops every session the identity has, across all devices.
	ClearAll(ctx context.Context, userID string) error
}
