package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/security/password"
)

// Verifier checks a presented secret against the stored credential hash for
// an identity.
//
// Security contract:
//   - Fails closed: a missing user, empty identity, or malformed stored hash
//     all yield (false, nil), indistinguishable from a wrong password.
//   - A dummy verification is performed on lookup misses so response timing
//     does not reveal whether the identity exists.
//   - Only infrastructure faults (store unreachable, invalid configuration)
//     surface as errors.
type Verifier struct {
	store Store
	cfg   password.Config

	// dummyHash is burned on lookup misses for timing resistance.
	dummyHash string
}

// NewVerifier constructs a Verifier over the given identity store.
func NewVerifier(store Store) (*Verifier, error) {
	if store == nil {
		return nil, errors.New("identity: nil store")
	}
	cfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	dummy, err := cfg.Hash("dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}

	return &Verifier{store: store, cfg: cfg, dummyHash: dummy}, nil
}

// VerifyPassword reports whether presented matches the stored hash for userID.
func (v *Verifier) VerifyPassword(ctx context.Context, userID, presented string) (bool, error) {
	if strings.TrimSpace(userID) == "" || presented == "" {
		v.burnDummy(presented)
		return false, nil
	}

	ua, err := v.store.GetUserAuthByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			v.burnDummy(presented)
			return false, nil
		}
		return false, err
	}

	ok, err := v.cfg.Verify(ua.PasswordHash, presented)
	if err != nil {
		// Malformed stored hash: fail closed rather than leaking a distinct
		// error path to the caller.
		return false, nil
	}
	return ok, nil
}

func (v *Verifier) burnDummy(presented string) {
	_, _ = v.cfg.Verify(v.dummyHash, presented)
}
