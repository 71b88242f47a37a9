package desk

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atmx/daybook/internal/account"
)

// CredentialsRequest is the JSON body for sign-up and sign-in.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SignUp handles POST /api/v1/auth/signup
func (s *Service) SignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.accounts.Create(r.Context(), account.NewUser{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// SignIn handles POST /api/v1/auth/signin
func (s *Service) SignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := s.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": sess.Token, "user_id": sess.UserID})
}

// SignOut handles POST /api/v1/auth/signout
func (s *Service) SignOut(w http.ResponseWriter, r *http.Request) {
	token := account.BearerToken(r)
	if token == "" {
		writeError(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	if err := s.accounts.SignOut(r.Context(), token); err != nil {
		writeError(w, "failed to sign out", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateUser handles POST /api/v1/admin/users
// The caller must present a bearer token for an admin profile.
func (s *Service) CreateUser(w http.ResponseWriter, r *http.Request) {
	token := account.BearerToken(r)
	if token == "" {
		writeError(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	callerID, err := s.accounts.Authenticate(r.Context(), token)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	var req account.NewUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.accounts.ProvisionAsAdmin(r.Context(), callerID, req)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user_id": p.ID})
}

// writeAccountError maps account errors to HTTP status codes.
func writeAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, account.ErrMissingFields):
		writeError(w, "email and password required", http.StatusBadRequest)
	case errors.Is(err, account.ErrEmailTaken):
		writeError(w, "email already registered", http.StatusBadRequest)
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, "invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, account.ErrUnauthorized):
		writeError(w, "invalid token", http.StatusUnauthorized)
	case errors.Is(err, account.ErrNotAdmin):
		writeError(w, "not an admin", http.StatusForbidden)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}
