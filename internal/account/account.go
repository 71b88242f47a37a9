// Package account manages sign-up, sign-in, bearer tokens, profiles and
// admin user provisioning on top of the store.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/store"
)

var (
	// ErrMissingFields is returned when email or password is blank.
	ErrMissingFields = errors.New("account: email and password required")

	// ErrEmailTaken is returned when signing up an existing email.
	ErrEmailTaken = errors.New("account: email already registered")

	// ErrInvalidCredentials is returned for a wrong email/password pair.
	ErrInvalidCredentials = errors.New("account: invalid email or password")

	// ErrUnauthorized is returned for a missing or unknown bearer token.
	ErrUnauthorized = errors.New("account: invalid token")

	// ErrNotAdmin is returned when a non-admin calls an admin operation.
	ErrNotAdmin = errors.New("account: not an admin")
)

// Service implements account operations.
type Service struct {
	store store.Store
	cost  int
	now   func() time.Time
}

// NewService creates an account service. cost is the bcrypt cost; 0 uses
// bcrypt.DefaultCost.
func NewService(st store.Store, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{store: st, cost: cost, now: time.Now}
}

// NewUser describes an account to create.
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"is_admin"`
}

// Create registers an account and its profile and returns the profile.
func (s *Service) Create(ctx context.Context, nu NewUser) (*model.Profile, error) {
	email := strings.TrimSpace(nu.Email)
	if email == "" || nu.Password == "" {
		return nil, ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	name := strings.TrimSpace(nu.Name)
	if name == "" {
		name = defaultName(email)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	p := &model.Profile{ID: u.ID, Email: u.Email, Name: name, IsAdmin: nu.IsAdmin}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		// Remove the account so the email can be registered again.
		if derr := s.store.DeleteUser(ctx, u.ID); derr != nil {
			slog.Error("orphaned account left behind", "user_id", u.ID, "email", u.Email, "err", derr)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	slog.Info("account created", "user_id", u.ID, "email", u.Email, "is_admin", nu.IsAdmin)
	return p, nil
}

// SignIn checks credentials and issues a bearer token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	sess := &model.Session{
		Token:     uuid.New().String(),
		UserID:    u.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if _, err := s.EnsureProfile(ctx, u.ID, u.Email, u.Name); err != nil {
		return nil, err
	}
	return sess, nil
}

// SignOut revokes a token.
func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to a user ID.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	sess, err := s.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	return sess.UserID, nil
}

// EnsureProfile returns the user's profile, creating a non-admin one when
// none exists. A blank name falls back to the local part of the email.
func (s *Service) EnsureProfile(ctx context.Context, userID, email, name string) (*model.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if name == "" {
		name = defaultName(email)
	}
	p = &model.Profile{ID: userID, Email: email, Name: name}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// Profile returns the profile of userID.
func (s *Service) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// ProvisionAsAdmin creates an account on behalf of callerID, who must have
// an admin profile.
func (s *Service) ProvisionAsAdmin(ctx context.Context, callerID string, nu NewUser) (*model.Profile, error) {
	caller, err := s.store.GetProfile(ctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotAdmin
		}
		return nil, fmt.Errorf("caller profile: %w", err)
	}
	if !caller.IsAdmin {
		return nil, ErrNotAdmin
	}
	return s.Create(ctx, nu)
}

// Bootstrap makes sure an admin account exists for email. An existing
// account is left untouched.
func (s *Service) Bootstrap(ctx context.Context, email, password string) error {
	_, err := s.Create(ctx, NewUser{Email: email, Password: password, IsAdmin: true})
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}

func defaultName(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
