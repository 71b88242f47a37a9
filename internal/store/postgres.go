package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/summary"
)

// Schema creates the tables used by PostgresStore. Summary snapshots are a
// single JSONB document per user; money inside it is kept as decimal strings.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	id       TEXT PRIMARY KEY,
	email    TEXT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	is_admin BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS user_data (
	user_id    TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadSummaries(ctx context.Context, userID string) (summary.Store, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT data::TEXT FROM user_data WHERE user_id = $1`, userID).
		Scan(&raw)
	if err != nil {
		return summary.Store{}, fmt.Errorf("load summaries %s: %w", userID, mapErr(err))
	}

	var doc userData
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return summary.Store{}, fmt.Errorf("decode summaries %s: %w", userID, err)
	}
	return doc.Summaries, nil
}

func (s *PostgresStore) SaveSummaries(ctx context.Context, userID string, snap summary.Store) error {
	data, err := json.Marshal(userData{Summaries: snap})
	if err != nil {
		return fmt.Errorf("encode summaries %s: %w", userID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_data (user_id, data, updated_at)
		 VALUES ($1, $2::JSONB, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		userID, string(data),
	)
	if err != nil {
		return fmt.Errorf("save summaries %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, is_admin FROM profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Email, &p.Name, &p.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, mapErr(err))
	}
	return &p, nil
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, email, name, is_admin) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Email, p.Name, p.IsAdmin,
	)
	if err != nil {
		return fmt.Errorf("create profile %s: %w", p.ID, mapErr(err))
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at)
		 VALUES ($1, lower($2), $3, $4, $5)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Email, mapErr(err))
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at
		 FROM users WHERE email = lower($1)`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", email, mapErr(err))
	}
	return &u, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (token, user_id, created_at) VALUES ($1, $2, $3)`,
		sess.Token, sess.UserID, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", mapErr(err))
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	err := s.pool.QueryRow(ctx,
		`SELECT token, user_id, created_at FROM sessions WHERE token = $1`, token).
		Scan(&sess.Token, &sess.UserID, &sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", mapErr(err))
	}
	return &sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// mapErr translates pgx errors into the package sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
