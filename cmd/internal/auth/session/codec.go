package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two token roles. Each kind is signed with its
// own secret and carries an explicit kind claim, so a token of one kind can
// never verify as the other.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims is the decoded, validated content of a token.
type Claims struct {
	// Subject is the identity the token was issued for.
	Subject string
	// TokenID is the per-token unique id (jti). Two tokens issued for the
	// same subject in the same instant still differ by TokenID.
	TokenID   string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	Kind string `json:"tkn"`
	jwt.RegisteredClaims
}

// Codec mints and verifies HS256-signed tokens. Verification is stateless;
// it answers only "authentic, unexpired, right kind" and knows nothing about
// rotation or revocation.
type Codec struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clockSkew  time.Duration

	accessSecret  []byte
	refreshSecret []byte
}

// NewCodec builds a Codec from a validated Config.
func NewCodec(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Codec{
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		clockSkew:     cfg.ClockSkew,
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
	}, nil
}

// IssueAccess mints a short-lived access token for subject.
func (c *Codec) IssueAccess(subject string, now time.Time) (string, time.Time, error) {
	return c.issue(KindAccess, subject, now, c.accessTTL, c.accessSecret)
}

// IssueRefresh mints a refresh token for subject. The caller is responsible
// for registering its digest in the session store.
func (c *Codec) IssueRefresh(subject string, now time.Time) (string, time.Time, error) {
	return c.issue(KindRefresh, subject, now, c.refreshTTL, c.refreshSecret)
}

func (c *Codec) issue(kind TokenKind, subject string, now time.Time, ttl time.Duration, secret []byte) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", ErrConfig)
	}
	now = now.UTC()
	exp := now.Add(ttl)

	claims := jwtClaims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

// Verify checks signature, issuer, time claims (against now, with configured
// leeway), and that the token is of the expected kind.
//
// Error mapping: expiry -> ErrExpiredToken; every other failure, including a
// kind mismatch, -> ErrInvalidToken. Malformed input never reaches the store.
func (c *Codec) Verify(raw string, kind TokenKind, now time.Time) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return Claims{}, ErrInvalidToken
	}

	secret := c.accessSecret
	if kind == KindRefresh {
		secret = c.refreshSecret
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims jwtClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}

	if claims.Kind != string(kind) {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Subject: claims.Subject,
		TokenID: claims.ID,
		Kind:    kind,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
