package identity

import (
	"context"
	"sync"
	"time"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/identity/ids"
)

// MemoryStore is a dev/test fallback when no database is configured.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[string]*memUser // user id -> record
	byUsername map[string]string   // normalized username -> user id
	byEmail    map[string]string   // normalized email -> user id
}

type memUser struct {
	user         User
	passwordHash string
}

// NewMemoryStore constructs an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*memUser),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// CreateUser registers a user, hashing the password before storage.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	usernameNorm := NormalizeUsername(in.Username)
	emailNorm := NormalizeEmail(in.Email)
	if usernameNorm == "" && emailNorm == "" {
		return User{}, ErrInvalidInput
	}
	if in.Password == "" {
		return User{}, ErrInvalidInput
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if usernameNorm != "" {
		if _, exists := s.byUsername[usernameNorm]; exists {
			return User{}, ErrConflict
		}
	}
	if emailNorm != "" {
		if _, exists := s.byEmail[emailNorm]; exists {
			return User{}, ErrConflict
		}
	}

	u := User{ID: id, Username: in.Username, Email: in.Email, CreatedAt: now}
	s.users[id] = &memUser{user: u, passwordHash: hash}
	if usernameNorm != "" {
		s.byUsername[usernameNorm] = id
	}
	if emailNorm != "" {
		s.byEmail[emailNorm] = id
	}

	return u, nil
}

// GetUserByID loads a user by its opaque id.
func (s *MemoryStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return rec.user, nil
}

// GetUserAuthByID loads a user plus its credential hash.
func (s *MemoryStore) GetUserAuthByID(ctx context.Context, userID string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return UserAuth{}, ErrNotFound
	}
	return UserAuth{User: rec.user, PasswordHash: rec.passwordHash}, nil
}

// GetUserAuthByUsername resolves a raw username to user + credential hash.
func (s *MemoryStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[NormalizeUsername(username)]
	if !ok {
		return UserAuth{}, ErrNotFound
	}
	rec := s.users[id]
	return UserAuth{User: rec.user, PasswordHash: rec.passwordHash}, nil
}

// GetUserAuthByEmail resolves a raw email to user + credential hash.
func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, ErrNotFound
	}
	rec := s.users[id]
	return UserAuth{User: rec.user, PasswordHash: rec.passwordHash}, nil
}

// UpdatePasswordHash replaces the stored credential hash for a user.
func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if newHash == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	rec.passwordHash = newHash
	return nil
}
