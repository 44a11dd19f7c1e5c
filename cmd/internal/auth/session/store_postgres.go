package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists session sets in a single table keyed by digest.
//
// Consume is a single conditional DELETE; Postgres row-level semantics
// guarantee that concurrent deletes of the same row succeed for exactly one
// caller, so no explicit locking or transaction is needed.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
	now    func() time.Time
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the session store (default "vidtube").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("%w: invalid schema identifier", ErrConfig)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore. The pool is owned by the
// caller; this store must NOT close it.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "vidtube",
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("%w: nil pool", ErrConfig)
	}
	return st, nil
}

// EnsureSchema creates the session_tokens table if it does not exist.
// Intended for dev and test bootstrap; production schema management can run
// the same DDL through its migration tooling.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, s.schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.session_tokens (
				token_hash TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL
			)
		`, s.schema),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS session_tokens_user_id_idx
			ON %s.session_tokens (user_id)
		`, s.schema),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return storeErr("ensure schema", err)
		}
	}
	return nil
}

// Add inserts the digest and lazily prunes the identity's lapsed entries.
func (s *PostgresStore) Add(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	now := s.now()

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s.session_tokens
		WHERE user_id = $1 AND expires_at <= $2
	`, s.schema), userID, now)
	if err != nil {
		return storeErr("prune", err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.session_tokens (token_hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO NOTHING
	`, s.schema), tokenHash, userID, now, expiresAt)
	if err != nil {
		return storeErr("add", err)
	}
	return nil
}

// Consume deletes the digest if live; the affected-row count arbitrates the
// single winner among concurrent callers.
func (s *PostgresStore) Consume(ctx context.Context, userID, tokenHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s.session_tokens
		WHERE token_hash = $1 AND user_id = $2 AND expires_at > $3
	`, s.schema), tokenHash, userID, s.now())
	if err != nil {
		return false, storeErr("consume", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RemoveOne drops a single digest. No-op when absent.
func (s *PostgresStore) RemoveOne(ctx context.Context, userID, tokenHash string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s.session_tokens
		WHERE token_hash = $1 AND user_id = $2
	`, s.schema), tokenHash, userID)
	if err != nil {
		return storeErr("remove", err)
	}
	return nil
}

// ClearAll drops every session row for the identity.
func (s *PostgresStore) ClearAll(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s.session_tokens
		WHERE user_id = $1
	`, s.schema), userID)
	if err != nil {
		return storeErr("clear", err)
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
