// Package store defines the remote persistence interface of the daybook.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and single-process use).
//
// The store holds one summary snapshot per user plus the account tables
// (users, profiles, bearer sessions). The core never talks to it directly;
// the sync layer loads and saves whole snapshots.
package store

import (
	"context"
	"errors"

	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/summary"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a record violates a uniqueness rule.
	ErrConflict = errors.New("store: already exists")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Per-user summary snapshots ---

	// LoadSummaries returns the user's saved snapshot, or ErrNotFound.
	LoadSummaries(ctx context.Context, userID string) (summary.Store, error)

	// SaveSummaries upserts the user's whole snapshot.
	SaveSummaries(ctx context.Context, userID string, s summary.Store) error

	// --- Profiles ---

	// GetProfile returns the profile for a user ID, or ErrNotFound.
	GetProfile(ctx context.Context, id string) (*model.Profile, error)

	// CreateProfile inserts a profile; ErrConflict if the ID exists.
	CreateProfile(ctx context.Context, p *model.Profile) error

	// --- Accounts ---

	// CreateUser inserts an account; ErrConflict if the email is taken.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUserByEmail looks an account up by email, or ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// DeleteUser removes an account by ID. Deleting an unknown ID is not an
	// error.
	DeleteUser(ctx context.Context, id string) error

	// --- Bearer sessions ---

	// CreateSession stores an issued token.
	CreateSession(ctx context.Context, s *model.Session) error

	// GetSession resolves a token, or ErrNotFound.
	GetSession(ctx context.Context, token string) (*model.Session, error)

	// DeleteSession revokes a token. Revoking an unknown token is not an error.
	DeleteSession(ctx context.Context, token string) error
}

// userData is the JSON document stored per user.
type userData struct {
	Summaries summary.Store `json:"summaries"`
}
