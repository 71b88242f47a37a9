// Package desk provides the HTTP handlers that drive a user's trading day:
// the open session, saved day summaries, calendar and chart views, theme
// preference, sync status and account endpoints.
//
// Each user gets a workspace (one session plus one summary store). Mutations
// on a workspace are serialised by its mutex; every change is written to
// local state immediately and handed to the sync scheduler for the remote
// store.
package desk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/atmx/daybook/internal/account"
	"github.com/atmx/daybook/internal/calendar"
	"github.com/atmx/daybook/internal/cloudsync"
	"github.com/atmx/daybook/internal/local"
	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/session"
	"github.com/atmx/daybook/internal/summary"
)

// Syncer loads remote snapshots and schedules writes back.
// *cloudsync.Debouncer implements it.
type Syncer interface {
	cloudsync.Scheduler
	Load(ctx context.Context, userID string) (summary.Store, bool, error)
	Status(userID string) model.SyncStatus
}

// Service holds the per-user workspaces.
type Service struct {
	local    *local.State
	sync     Syncer           // optional
	accounts *account.Service // optional; auth routes are not mounted without it
	hub      *Hub             // optional
	defaults session.Config
	now      func() time.Time

	mu     sync.Mutex
	spaces map[string]*workspace
	loads  singleflight.Group
}

type workspace struct {
	mu     sync.Mutex
	userID string
	sess   *session.Session
	days   summary.Store
	synced bool // remote snapshot applied, or local edits made since
}

// NewService creates a desk service. defaults seeds new sessions and hard
// resets. Pass nil for sy, acc or hub to disable remote sync, accounts or
// WebSocket broadcasting.
func NewService(ls *local.State, sy Syncer, acc *account.Service, hub *Hub, defaults session.Config) *Service {
	return &Service{
		local:    ls,
		sync:     sy,
		accounts: acc,
		hub:      hub,
		defaults: defaults,
		now:      time.Now,
		spaces:   make(map[string]*workspace),
	}
}

// Routes mounts the API under r. authRequired rejects requests without a
// bearer token; otherwise they run as the anonymous local user.
func (s *Service) Routes(r chi.Router, authRequired bool) {
	if s.accounts != nil {
		r.Post("/auth/signup", s.SignUp)
		r.Post("/auth/signin", s.SignIn)
		r.Post("/auth/signout", s.SignOut)
		r.Post("/admin/users", s.CreateUser)
	}

	r.Group(func(r chi.Router) {
		if s.accounts != nil {
			r.Use(account.Middleware(s.accounts, authRequired))
		} else {
			r.Use(anonymous)
		}

		r.Get("/session", s.GetSession)
		r.Put("/session/config", s.Configure)
		r.Post("/session/trades", s.RecordTrade)
		r.Post("/session/reset", s.ResetDay)
		r.Post("/session/hard-reset", s.HardReset)
		r.Post("/session/save", s.SaveDay)
		r.Post("/session/close", s.CloseDay)

		r.Get("/summaries", s.ListSummaries)
		r.Get("/summaries/{date}", s.GetSummary)
		r.Post("/summaries/{date}/edit", s.EditSummary)
		r.Delete("/summaries/{date}", s.DeleteSummary)
		r.Post("/summaries/{date}/recalc", s.RecalcSummary)
		r.Post("/details/close", s.CloseDetails)

		r.Get("/calendar/{year}/{month}", s.Calendar)
		r.Get("/series", s.Series)

		r.Get("/preferences/theme", s.GetTheme)
		r.Put("/preferences/theme", s.SetTheme)

		r.Get("/sync/status", s.SyncStatus)
		if s.hub != nil {
			r.Get("/ws", s.hub.HandleWS)
		}
	})
}

func anonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(account.WithUser(r.Context(), account.AnonymousUser)))
	})
}

// open returns the user's workspace, building it from local state on first
// use. s.mu guards only the map; concurrent first requests for one user share
// a single load through loads.
func (s *Service) open(ctx context.Context, userID string) (*workspace, error) {
	s.mu.Lock()
	ws, ok := s.spaces[userID]
	s.mu.Unlock()
	if ok {
		return ws, nil
	}

	v, err, _ := s.loads.Do(userID, func() (any, error) {
		s.mu.Lock()
		ws, ok := s.spaces[userID]
		s.mu.Unlock()
		if ok {
			return ws, nil
		}

		ws, err := s.loadLocal(ctx, userID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.spaces[userID]; ok {
			return existing, nil
		}
		s.spaces[userID] = ws
		slog.Info("workspace opened", "user", userID, "days", ws.days.Len(), "trading_date", ws.sess.Config().TradingDate)
		return ws, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*workspace), nil
}

func (s *Service) loadLocal(ctx context.Context, userID string) (*workspace, error) {
	days, err := s.local.Summaries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load local summaries: %w", err)
	}

	var sess *session.Session
	od, ok, err := s.local.OpenDay(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load open day: %w", err)
	}
	if ok {
		sess = session.Restore(od)
	} else {
		cfg := s.defaults
		cfg.TradingDate = calendar.Today(s.now())
		sess = session.New(cfg)
	}

	return &workspace{userID: userID, sess: sess, days: days, synced: s.sync == nil}, nil
}

// reconcile pulls the remote snapshot into ws. The remote copy wins when
// present; otherwise existing local days are pushed up. A failed load leaves
// ws unsynced so the next request tries again. Caller holds ws.mu.
func (s *Service) reconcile(ctx context.Context, ws *workspace) {
	remote, found, err := s.sync.Load(ctx, ws.userID)
	if err != nil {
		slog.Warn("remote load failed, using local state", "user", ws.userID, "err", err)
		return
	}
	ws.synced = true

	switch {
	case found:
		ws.days = remote
		if err := s.local.SaveSummaries(ctx, ws.userID, remote); err != nil {
			slog.Error("local write failed", "user", ws.userID, "err", err)
		}
	case ws.days.Len() > 0:
		s.sync.Schedule(ws.userID, ws.days)
	}
}

// persistOpenDay autosaves the open session.
func (s *Service) persistOpenDay(ctx context.Context, ws *workspace) {
	if err := s.local.SaveOpenDay(ctx, ws.userID, ws.sess.Export()); err != nil {
		slog.Error("open day autosave failed", "user", ws.userID, "err", err)
	}
}

// commit installs a new summary store, writes it locally, schedules the
// remote write and notifies clients. Persistence failures are logged and
// never roll back the in-memory state.
func (s *Service) commit(ctx context.Context, ws *workspace, days summary.Store, date string) {
	ws.days = days
	ws.synced = true
	if err := s.local.SaveSummaries(ctx, ws.userID, days); err != nil {
		slog.Error("local write failed", "user", ws.userID, "err", err)
	}
	s.persistOpenDay(ctx, ws)
	if s.sync != nil {
		s.sync.Schedule(ws.userID, days)
	}
	if s.hub != nil {
		s.hub.SummariesChanged(ws.userID, date)
	}
}

// withWorkspace resolves the caller's workspace and runs fn under its lock.
func (s *Service) withWorkspace(w http.ResponseWriter, r *http.Request, fn func(ws *workspace)) {
	userID, ok := account.UserID(r.Context())
	if !ok {
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ws, err := s.open(r.Context(), userID)
	if err != nil {
		slog.Error("open workspace", "user", userID, "err", err)
		writeError(w, "failed to load workspace", http.StatusInternalServerError)
		return
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if !ws.synced {
		s.reconcile(r.Context(), ws)
	}
	fn(ws)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
