package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/summary"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) SaveSummaries(ctx context.Context, userID string, snap summary.Store) error {
	if err := s.primary.SaveSummaries(ctx, userID, snap); err != nil {
		return err
	}
	// Invalidate; next read will re-populate.
	s.rdb.Del(ctx, summariesKey(userID))
	return nil
}

func (s *CachedStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	if err := s.primary.CreateProfile(ctx, p); err != nil {
		return err
	}
	s.cacheJSON(ctx, profileKey(p.ID), p)
	return nil
}

func (s *CachedStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.primary.DeleteSession(ctx, token); err != nil {
		return err
	}
	s.rdb.Del(ctx, sessionKey(token))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) LoadSummaries(ctx context.Context, userID string) (summary.Store, error) {
	data, err := s.rdb.Get(ctx, summariesKey(userID)).Bytes()
	if err == nil {
		var snap summary.Store
		if json.Unmarshal(data, &snap) == nil {
			return snap, nil
		}
	}

	// Cache miss: read from primary.
	snap, err := s.primary.LoadSummaries(ctx, userID)
	if err != nil {
		return summary.Store{}, err
	}

	s.cacheJSON(ctx, summariesKey(userID), snap)
	return snap, nil
}

func (s *CachedStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	data, err := s.rdb.Get(ctx, profileKey(id)).Bytes()
	if err == nil {
		var p model.Profile
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, profileKey(id), p)
	return p, nil
}

func (s *CachedStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if err == nil {
		var sess model.Session
		if json.Unmarshal(data, &sess) == nil {
			return &sess, nil
		}
	}

	sess, err := s.primary.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, sessionKey(token), sess)
	return sess, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.primary.CreateUser(ctx, u)
}

func (s *CachedStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.primary.GetUserByEmail(ctx, email)
}

func (s *CachedStore) DeleteUser(ctx context.Context, id string) error {
	return s.primary.DeleteUser(ctx, id)
}

func (s *CachedStore) CreateSession(ctx context.Context, sess *model.Session) error {
	return s.primary.CreateSession(ctx, sess)
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func summariesKey(uid string) string { return fmt.Sprintf("user_data:%s", uid) }
func profileKey(id string) string    { return fmt.Sprintf("profile:%s", id) }
func sessionKey(tok string) string   { return fmt.Sprintf("session:%s", tok) }
