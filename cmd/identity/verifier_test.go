package identity

import (
	"context"
	"testing"
	"time"
)

func fastPasswordEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VIDTUBE_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("VIDTUBE_ARGON2_ITERATIONS", "1")
}

func newTestUser(t *testing.T, store *MemoryStore, username, pw string) User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: pw,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestVerifyPasswordMatch(t *testing.T) {
	fastPasswordEnv(t)
	store := NewMemoryStore()
	u := newTestUser(t, store, "alice", "correct-password-123")

	v, err := NewVerifier(store)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	ok, err := v.VerifyPassword(context.Background(), u.ID, "correct-password-123")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}

	ok, err = v.VerifyPassword(context.Background(), u.ID, "wrong-password-456")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestVerifyPasswordFailsClosed(t *testing.T) {
	fastPasswordEnv(t)
	store := NewMemoryStore()
	newTestUser(t, store, "alice", "correct-password-123")

	v, err := NewVerifier(store)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	// Unknown identity and empty identity are indistinguishable from a wrong
	// password: (false, nil) in every case.
	for _, userID := range []string{"01J00000000000000000000000", ""} {
		ok, err := v.VerifyPassword(context.Background(), userID, "correct-password-123")
		if err != nil {
			t.Fatalf("userID %q: unexpected error %v", userID, err)
		}
		if ok {
			t.Fatalf("userID %q: expected false", userID)
		}
	}
}

func TestMemoryStoreConflictsAndUpdates(t *testing.T) {
	fastPasswordEnv(t)
	store := NewMemoryStore()
	u := newTestUser(t, store, "alice", "correct-password-123")

	_, err := store.CreateUser(context.Background(), CreateUserInput{
		Username: "ALICE", // normalization collides
		Email:    "other@example.com",
		Password: "another-password-123",
	})
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	newHash, err := HashPassword("rotated-password-456")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := store.UpdatePasswordHash(context.Background(), u.ID, newHash); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}

	v, err := NewVerifier(store)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	ok, err := v.VerifyPassword(context.Background(), u.ID, "rotated-password-456")
	if err != nil || !ok {
		t.Fatalf("expected rotated password to verify, ok=%v err=%v", ok, err)
	}
	ok, _ = v.VerifyPassword(context.Background(), u.ID, "correct-password-123")
	if ok {
		t.Fatalf("old password must no longer verify")
	}
}
