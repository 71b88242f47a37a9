package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/summary"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	summaries map[string]summary.Store
	profiles  map[string]model.Profile
	users     map[string]model.User // keyed by lower-cased email
	sessions  map[string]model.Session
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		summaries: make(map[string]summary.Store),
		profiles:  make(map[string]model.Profile),
		users:     make(map[string]model.User),
		sessions:  make(map[string]model.Session),
	}
}

func (s *MemoryStore) LoadSummaries(_ context.Context, userID string) (summary.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.summaries[userID]
	if !ok {
		return summary.Store{}, fmt.Errorf("summaries for %s: %w", userID, ErrNotFound)
	}
	// summary.Store is immutable, so handing out the stored value is safe.
	return snap, nil
}

func (s *MemoryStore) SaveSummaries(_ context.Context, userID string, snap summary.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[userID] = snap
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (s *MemoryStore) CreateProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return fmt.Errorf("profile %s: %w", p.ID, ErrConflict)
	}
	s.profiles[p.ID] = *p
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := s.users[key]; ok {
		return fmt.Errorf("user %s: %w", u.Email, ErrConflict)
	}
	// Store a copy to avoid external mutation.
	copy := *u
	copy.PasswordHash = append([]byte(nil), u.PasswordHash...)
	s.users[key] = copy
	return nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return &u, nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, u := range s.users {
		if u.ID == id {
			delete(s.users, key)
		}
	}
	return nil
}

func (s *MemoryStore) CreateSession(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.Token] = *sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, token string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	return &sess, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}
