// Package local keeps the device-side state of the daybook in SQLite: the
// theme preference, the last summary snapshot and an optional autosave of
// the open trading day. Values are stored under the same keys the browser
// client used, scoped per user.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/session"
	"github.com/atmx/daybook/internal/summary"
)

// Keys of the stored values.
const (
	KeyTheme     = "po_theme"
	KeySummaries = "po_day_summaries_v6"
	KeyOpenDay   = "po_open_day"
)

// Schema is applied when the database is opened.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	user_id    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, key)
);
`

// ErrMissing is returned by Get when no value is stored.
var ErrMissing = errors.New("local: no value stored")

// State is a SQLite-backed key-value store.
type State struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies Schema.
func Open(path string) (*State, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Get returns the raw value for key, or ErrMissing.
func (s *State) Get(ctx context.Context, userID, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE user_id = ? AND key = ?`, userID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMissing
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// Put stores value under key, replacing any previous value.
func (s *State) Put(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (user_id, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, key) DO UPDATE
		SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *State) Remove(ctx context.Context, userID, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE user_id = ? AND key = ?`, userID, key)
	return err
}

// Theme returns the stored theme, light when none is stored.
func (s *State) Theme(ctx context.Context, userID string) (model.Theme, error) {
	v, err := s.Get(ctx, userID, KeyTheme)
	if errors.Is(err, ErrMissing) {
		return model.ThemeLight, nil
	}
	if err != nil {
		return "", err
	}
	if t := model.Theme(v); t.Valid() {
		return t, nil
	}
	return model.ThemeLight, nil
}

// SetTheme stores the theme preference.
func (s *State) SetTheme(ctx context.Context, userID string, t model.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("local: invalid theme %q", t)
	}
	return s.Put(ctx, userID, KeyTheme, string(t))
}

// Summaries returns the stored snapshot, empty when none is stored.
func (s *State) Summaries(ctx context.Context, userID string) (summary.Store, error) {
	v, err := s.Get(ctx, userID, KeySummaries)
	if errors.Is(err, ErrMissing) {
		return summary.Store{}, nil
	}
	if err != nil {
		return summary.Store{}, err
	}
	var snap summary.Store
	if err := json.Unmarshal([]byte(v), &snap); err != nil {
		return summary.Store{}, fmt.Errorf("decode %s: %w", KeySummaries, err)
	}
	return snap, nil
}

// SaveSummaries stores the whole snapshot.
func (s *State) SaveSummaries(ctx context.Context, userID string, snap summary.Store) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeySummaries, err)
	}
	return s.Put(ctx, userID, KeySummaries, string(data))
}

// OpenDay returns the autosaved open day, if any.
func (s *State) OpenDay(ctx context.Context, userID string) (session.OpenDay, bool, error) {
	v, err := s.Get(ctx, userID, KeyOpenDay)
	if errors.Is(err, ErrMissing) {
		return session.OpenDay{}, false, nil
	}
	if err != nil {
		return session.OpenDay{}, false, err
	}
	var od session.OpenDay
	if err := json.Unmarshal([]byte(v), &od); err != nil {
		return session.OpenDay{}, false, fmt.Errorf("decode %s: %w", KeyOpenDay, err)
	}
	return od, true, nil
}

// SaveOpenDay autosaves the open day.
func (s *State) SaveOpenDay(ctx context.Context, userID string, od session.OpenDay) error {
	data, err := json.Marshal(od)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyOpenDay, err)
	}
	return s.Put(ctx, userID, KeyOpenDay, string(data))
}

// Users lists the user IDs that have stored state.
func (s *State) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM kv ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
