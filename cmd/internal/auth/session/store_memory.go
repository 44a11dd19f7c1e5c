package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps session sets in process memory. Dev/test fallback when
// neither Postgres nor Redis is configured; sessions do not survive restarts.
type MemoryStore struct {
	mu   sync.Mutex
	sets map[string]map[string]time.Time // user id -> digest -> expiry
	now  func() time.Time
}

// NewMemoryStore constructs an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets: make(map[string]map[string]time.Time),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Add registers a digest under the identity.
func (s *MemoryStore) Add(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return storeErr("add", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[userID]
	if !ok {
		set = make(map[string]time.Time)
		s.sets[userID] = set
	}
	set[tokenHash] = expiresAt
	s.pruneLocked(userID)
	return nil
}

// Consume removes the digest if live and reports whether this call did it.
func (s *MemoryStore) Consume(ctx context.Context, userID, tokenHash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeErr("consume", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[userID]
	if !ok {
		return false, nil
	}
	exp, ok := set[tokenHash]
	if !ok {
		return false, nil
	}
	delete(set, tokenHash)
	if len(set) == 0 {
		delete(s.sets, userID)
	}
	if !exp.After(s.now()) {
		// Entry had already lapsed; do not count it as a live consumption.
		return false, nil
	}
	return true, nil
}

// RemoveOne drops a single digest. No-op when absent.
func (s *MemoryStore) RemoveOne(ctx context.Context, userID, tokenHash string) error {
	if err := ctx.Err(); err != nil {
		return storeErr("remove", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.sets[userID]; ok {
		delete(set, tokenHash)
		if len(set) == 0 {
			delete(s.sets, userID)
		}
	}
	return nil
}

// ClearAll drops the identity's whole session set.
func (s *MemoryStore) ClearAll(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return storeErr("clear", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sets, userID)
	return nil
}

func (s *MemoryStore) pruneLocked(userID string) {
	set := s.sets[userID]
	now := s.now()
	for h, exp := range set {
		if !exp.After(now) {
			delete(set, h)
		}
	}
	if len(set) == 0 {
		delete(s.sets, userID)
	}
}
