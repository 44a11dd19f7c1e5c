// Package password implements Argon2id credential hashing for VidTube.
//
// Hashes are PHC-formatted strings ($argon2id$v=19$...), self-describing so
// parameters can be raised over time without invalidating stored credentials.
// Verification is constant-time and refuses attacker-supplied hashes whose
// parameters exceed the configured cost bounds.
package password
