// Package token provides digest primitives for refresh-token storage.
//
// The session store never persists a bearer refresh token verbatim; it keeps
// a 64-char hex digest produced here and compares digests on lookup.
//
// Modes:
// - Default dev/back-compat mode: SHA-256(token) when no HMAC key is configured.
// - Production-enforced mode: HMAC-SHA256(token, key) when policy requires it.
//
// Environment:
// - VIDTUBE_TOKEN_HMAC_KEY: when set, enables HMAC mode.
// Policy:
//   - If RequireTokenHMAC=true, callers MUST enforce a minimum key size (>= 32 bytes)
//     and MUST use HMAC (no SHA fallback).
package token
