// Package identity is the user-record collaborator boundary for the session
// subsystem. It owns user rows (opaque ULID ids, normalized username/email,
// Argon2id credential hash) and credential verification.
//
// The session core treats a user id as an opaque key; everything else about
// a VidTube account (profile, channels, uploads) lives outside this package.
package identity
