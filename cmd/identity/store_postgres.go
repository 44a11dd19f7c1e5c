package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/identity/ids"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Schema/table identifiers are validated to avoid SQL injection via identifiers.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "vidtube").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "vidtube"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// EnsureSchema creates the users table if it does not exist.
// Intended for dev and test bootstrap; production schema management can run
// the same DDL through its migration tooling.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, s.schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.users (
				id            TEXT PRIMARY KEY,
				username      TEXT,
				username_norm TEXT UNIQUE,
				email         TEXT,
				email_norm    TEXT UNIQUE,
				password_hash TEXT NOT NULL,
				created_at    TIMESTAMPTZ NOT NULL
			)
		`, s.schema),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser creates a new user with a freshly hashed credential.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	usernameNorm := NormalizeUsername(in.Username)
	emailNorm := NormalizeEmail(in.Email)
	if usernameNorm == "" && emailNorm == "" {
		return User{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, ErrInvalidInput
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.users (id, username, username_norm, email, email_norm, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.schema),
		id,
		nullIfEmpty(in.Username), nullIfEmpty(usernameNorm),
		nullIfEmpty(in.Email), nullIfEmpty(emailNorm),
		hash, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrConflict
		}
		return User{}, err
	}

	return User{ID: id, Username: in.Username, Email: in.Email, CreatedAt: now}, nil
}

// GetUserByID loads a user by its opaque id.
func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	ua, err := s.GetUserAuthByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return ua.User, nil
}

// GetUserAuthByID loads a user plus its credential hash.
func (s *PostgresStore) GetUserAuthByID(ctx context.Context, userID string) (UserAuth, error) {
	return s.getUserAuth(ctx, "id = $1", userID)
}

// GetUserAuthByUsername resolves a raw username (normalized here).
func (s *PostgresStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	return s.getUserAuth(ctx, "username_norm = $1", NormalizeUsername(username))
}

// GetUserAuthByEmail resolves a raw email (normalized here).
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	return s.getUserAuth(ctx, "email_norm = $1", NormalizeEmail(email))
}

func (s *PostgresStore) getUserAuth(ctx context.Context, where string, arg any) (UserAuth, error) {
	var (
		ua       UserAuth
		username *string
		email    *string
	)

	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, username, email, password_hash, created_at
		FROM %s.users
		WHERE %s
	`, s.schema, where), arg).Scan(
		&ua.User.ID,
		&username,
		&email,
		&ua.PasswordHash,
		&ua.User.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, ErrNotFound
	}
	if err != nil {
		return UserAuth{}, err
	}

	if username != nil {
		ua.User.Username = *username
	}
	if email != nil {
		ua.User.Email = *email
	}
	return ua, nil
}

// UpdatePasswordHash replaces the stored credential hash for a user.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	if strings.TrimSpace(newHash) == "" {
		return ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s.users
		SET password_hash = $2
		WHERE id = $1
	`, s.schema), userID, newHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
