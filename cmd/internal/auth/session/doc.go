// Package session implements VidTube's credential and session-token lifecycle.
//
// It provides a multi-device session model with refresh-token rotation,
// reuse detection, and per-session/per-user revocation.
//
// Both token kinds are self-contained signed JWTs carrying subject and
// expiry. Access tokens are short-lived and verified statelessly on every
// request. Refresh tokens are additionally subject to membership in the
// per-user session set: a cryptographically valid refresh token that is
// absent from the store is invalid. Only digests of refresh tokens are
// stored (HMAC-SHA256 when VIDTUBE_TOKEN_HMAC_KEY is set; otherwise SHA-256
// for dev/back-compat).
//
// Transport (HTTP cookies, bearer headers) is intentionally out of scope here.
package session
