package password

import (
	"errors"
	"strings"
	"testing"
)

func fastTestConfig() Config {
	cfg := DefaultConfig()
	// Keep unit tests quick; production cost is exercised by defaults elsewhere.
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	return cfg
}

func TestHashAndVerifyRoundTrip(t *testing.T) {
	cfg := fastTestConfig()

	enc, err := cfg.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(enc, "$argon2id$v=19$") {
		t.Fatalf("unexpected PHC prefix: %q", enc)
	}

	ok, err := cfg.Verify(enc, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}

	ok, err = cfg.Verify(enc, "wrong password")
	if err != nil {
		t.Fatalf("Verify mismatch: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHashesAreSalted(t *testing.T) {
	cfg := fastTestConfig()

	a, err := cfg.Hash("same password here")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := cfg.Hash("same password here")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatalf("two hashes of the same password must differ (random salt)")
	}
}

func TestPolicyBounds(t *testing.T) {
	cfg := fastTestConfig()

	if _, err := cfg.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := cfg.Hash(strings.Repeat("x", cfg.Policy.MaxLength+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	cfg := fastTestConfig()

	cases := []string{
		"",
		"not-a-phc-string",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	}
	for _, enc := range cases {
		if _, err := cfg.Verify(enc, "whatever"); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("hash %q: expected ErrInvalidHash, got %v", enc, err)
		}
	}
}

func TestVerifyRejectsOversizedParams(t *testing.T) {
	cfg := fastTestConfig()

	// A syntactically valid hash claiming pathological memory cost.
	enc := "$argon2id$v=19$m=1048576,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	if _, err := cfg.Verify(enc, "whatever"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash for oversized params, got %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("VIDTUBE_PASSWORD_MIN_LEN", "10")
	t.Setenv("VIDTUBE_ARGON2_ITERATIONS", "2")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Policy.MinLength != 10 {
		t.Fatalf("min length override not applied: %d", cfg.Policy.MinLength)
	}
	if cfg.Params.Iterations != 2 {
		t.Fatalf("iterations override not applied: %d", cfg.Params.Iterations)
	}

	t.Setenv("VIDTUBE_PASSWORD_MIN_LEN", "not-a-number")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for invalid env value")
	}
}
