package app

import (
	"errors"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/security/token"
)

// ValidateSecurityConfig enforces the token-hashing policy at startup.
// Fail-fast: a production deployment must never silently fall back to
// unkeyed digests for stored refresh tokens.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// 32 bytes minimum for an HMAC-SHA256 secret, measured in bytes because
	// the key is used as raw bytes. Hash a sample through the enforced-mode
	// path so the policy exercises the same code the stores depend on.
	const sample = "hmac-policy-check"
	enforced, err := token.HashRefreshTokenHexRequireHMAC(sample, 32)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: VIDTUBE_REQUIRE_TOKEN_HMAC=true but VIDTUBE_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: VIDTUBE_REQUIRE_TOKEN_HMAC=true but VIDTUBE_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	// The runtime hasher must agree with the enforced digest; a disagreement
	// means it would fall back to unkeyed SHA-256 for stored tokens.
	if enforced != token.HashRefreshTokenHex(sample) {
		return errors.New("security policy: VIDTUBE_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
