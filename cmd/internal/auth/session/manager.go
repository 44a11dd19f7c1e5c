package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/security/token"
)

// CredentialVerifier answers whether a presented secret matches the stored
// credential for an identity. A lookup miss or wrong secret is (false, nil);
// errors are reserved for infrastructure faults. Implementations must take
// comparable time for unknown and known identities.
type CredentialVerifier interface {
	VerifyPassword(ctx context.Context, userID, presented string) (bool, error)
}

// TokenPair is the result of a successful issue or rotation.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Manager ties the codec, the credential verifier, and the session store
// into the full lifecycle: Issue, Rotate, RevokeOne, RevokeAll.
type Manager struct {
	codec         *Codec
	verifier      CredentialVerifier
	store         Store
	revokeOnReuse bool
	log           *slog.Logger
}

// NewManager constructs a Manager. log may be nil.
func NewManager(cfg Config, codec *Codec, verifier CredentialVerifier, store Store, log *slog.Logger) (*Manager, error) {
	if codec == nil || verifier == nil || store == nil {
		return nil, fmt.Errorf("%w: nil codec, verifier, or store", ErrConfig)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		codec:         codec,
		verifier:      verifier,
		store:         store,
		revokeOnReuse: cfg.RevokeOnReuse,
		log:           log,
	}, nil
}

// Issue authenticates the identity against its stored credential and, on
// success, mints a fresh pair and registers the refresh digest. Each call
// adds a session; it never disturbs the identity's other sessions.
//
// A failed authentication is always ErrInvalidCredentials, whether the
// identity is unknown or the secret is wrong.
func (m *Manager) Issue(ctx context.Context, now time.Time, userID, presentedSecret string) (TokenPair, error) {
	ok, err := m.verifier.VerifyPassword(ctx, userID, presentedSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: credential check: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		m.log.InfoContext(ctx, "auth.issue.fail")
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, err := m.issuePair(ctx, now, userID)
	if err != nil {
		return TokenPair{}, err
	}
	m.log.InfoContext(ctx, "auth.issue.ok", slog.String("user_id", userID))
	return pair, nil
}

// Rotate exchanges a live refresh token for a fresh pair, consuming the old
// token in the same step. Exactly one of any number of concurrent calls with
// the same token succeeds; the rest get ErrTokenReuseOrRevoked.
//
// When reuse revocation is enabled, presenting an already-consumed or
// revoked token clears the identity's entire session set before failing.
func (m *Manager) Rotate(ctx context.Context, now time.Time, presentedRefresh string) (TokenPair, error) {
	claims, err := m.codec.Verify(presentedRefresh, KindRefresh, now)
	if err != nil {
		// Forged, malformed, or expired input never touches the store.
		return TokenPair{}, err
	}

	hash := token.HashRefreshTokenHex(presentedRefresh)
	won, err := m.store.Consume(ctx, claims.Subject, hash)
	if err != nil {
		return TokenPair{}, err
	}
	if !won {
		if !now.Before(claims.ExpiresAt) {
			// Verification admits a token up to ClockSkew past its expiry,
			// but the store entry lapses exactly at ExpiresAt. A miss here is
			// expiry, not reuse, and must not trip the theft response.
			return TokenPair{}, ErrExpiredToken
		}
		if m.revokeOnReuse {
			m.log.WarnContext(ctx, "auth.rotate.reuse",
				slog.String("user_id", claims.Subject))
			if err := m.store.ClearAll(ctx, claims.Subject); err != nil {
				return TokenPair{}, err
			}
		}
		return TokenPair{}, ErrTokenReuseOrRevoked
	}

	pair, err := m.issuePair(ctx, now, claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}
	m.log.InfoContext(ctx, "auth.rotate.ok", slog.String("user_id", claims.Subject))
	return pair, nil
}

// RevokeOne invalidates a single refresh session. Idempotent: revoking an
// already-absent token succeeds, and the token is not required to verify;
// logout with an expired refresh token still clears its entry.
func (m *Manager) RevokeOne(ctx context.Context, userID, presentedRefresh string) error {
	if presentedRefresh == "" {
		return nil
	}
	hash := token.HashRefreshTokenHex(presentedRefresh)
	if err := m.store.RemoveOne(ctx, userID, hash); err != nil {
		return err
	}
	m.log.InfoContext(ctx, "auth.revoke_one.ok", slog.String("user_id", userID))
	return nil
}

// RevokeAll invalidates every refresh session the identity has. Outstanding
// access tokens keep working until they expire on their own.
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	if err := m.store.ClearAll(ctx, userID); err != nil {
		return err
	}
	m.log.InfoContext(ctx, "auth.revoke_all.ok", slog.String("user_id", userID))
	return nil
}

// VerifyAccess statelessly validates an access token.
func (m *Manager) VerifyAccess(raw string, now time.Time) (Claims, error) {
	return m.codec.Verify(raw, KindAccess, now)
}

func (m *Manager) issuePair(ctx context.Context, now time.Time, userID string) (TokenPair, error) {
	access, accessExp, err := m.codec.IssueAccess(userID, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := m.codec.IssueRefresh(userID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := m.store.Add(ctx, userID, token.HashRefreshTokenHex(refresh), refreshExp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
