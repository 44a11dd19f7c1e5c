package session

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment keys for the session lifecycle configuration.
const (
	EnvIssuer        = "VIDTUBE_AUTH_ISSUER"
	EnvAccessTTL     = "VIDTUBE_AUTH_ACCESS_TTL"
	EnvRefreshTTL    = "VIDTUBE_AUTH_REFRESH_TTL"
	EnvClockSkew     = "VIDTUBE_AUTH_CLOCK_SKEW"
	EnvRevokeOnReuse = "VIDTUBE_AUTH_REVOKE_ON_REUSE"

	// #nosec G101 -- env var names, not credentials.
	EnvAccessSecret = "VIDTUBE_ACCESS_TOKEN_SECRET"
	// #nosec G101
	EnvRefreshSecret = "VIDTUBE_REFRESH_TOKEN_SECRET"
)

// Config controls token shape and lifecycle policy.
type Config struct {
	// Issuer is stamped into every token and enforced on verification.
	Issuer string

	// AccessTTL is the access-token lifetime. Short: access tokens cannot
	// be revoked individually before expiry.
	AccessTTL time.Duration

	// RefreshTTL is the refresh-token lifetime and the horizon for stored
	// session-set entries.
	RefreshTTL time.Duration

	// ClockSkew is the leeway granted when validating time claims.
	ClockSkew time.Duration

	// AccessSecret and RefreshSecret are the HS256 signing keys. They must
	// be at least MinSecretBytes long and must differ from each other so a
	// refresh token can never pass as an access token.
	AccessSecret  []byte
	RefreshSecret []byte

	// RevokeOnReuse clears an identity's entire session set when a
	// consumed/revoked refresh token is presented again (theft signal).
	RevokeOnReuse bool
}

// MinSecretBytes is the minimum accepted HS256 key length (256 bits).
const MinSecretBytes = 32

// DefaultConfig returns production-leaning lifecycle defaults.
// Secrets have no default and must be set explicitly.
func DefaultConfig() Config {
	return Config{
		Issuer:        "vidtube",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		ClockSkew:     30 * time.Second,
		RevokeOnReuse: true,
	}
}

// FromEnv builds a Config from VIDTUBE_* environment variables on top of
// DefaultConfig. Both signing secrets are required.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv(EnvIssuer)); v != "" {
		cfg.Issuer = v
	}

	var err error
	if cfg.AccessTTL, err = envDuration(EnvAccessTTL, cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration(EnvRefreshTTL, cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.ClockSkew, err = envDuration(EnvClockSkew, cfg.ClockSkew); err != nil {
		return Config{}, err
	}
	if cfg.RevokeOnReuse, err = envBool(EnvRevokeOnReuse, cfg.RevokeOnReuse); err != nil {
		return Config{}, err
	}

	cfg.AccessSecret = []byte(strings.TrimSpace(os.Getenv(EnvAccessSecret)))
	cfg.RefreshSecret = []byte(strings.TrimSpace(os.Getenv(EnvRefreshSecret)))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would weaken the token scheme.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%w: issuer is empty", ErrConfig)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("%w: token TTLs must be positive", ErrConfig)
	}
	if c.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("%w: access TTL must be shorter than refresh TTL", ErrConfig)
	}
	if c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute {
		return fmt.Errorf("%w: clock skew out of range [0, 5m]", ErrConfig)
	}
	if len(c.AccessSecret) < MinSecretBytes {
		return fmt.Errorf("%w: %s must be at least %d bytes", ErrConfig, EnvAccessSecret, MinSecretBytes)
	}
	if len(c.RefreshSecret) < MinSecretBytes {
		return fmt.Errorf("%w: %s must be at least %d bytes", ErrConfig, EnvRefreshSecret, MinSecretBytes)
	}
	if bytes.Equal(c.AccessSecret, c.RefreshSecret) {
		return fmt.Errorf("%w: access and refresh secrets must differ", ErrConfig)
	}
	return nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrConfig, key, raw)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a bool", ErrConfig, key, raw)
	}
	return b, nil
}
