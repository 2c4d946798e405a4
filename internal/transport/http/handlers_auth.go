package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"libris/internal/activity"
	"libris/internal/identity"
	"libris/internal/platform/metrics"
	dErrors "libris/pkg/domainerrors"
	"libris/pkg/httputil"
	"libris/pkg/requestcontext"
)

type AuthHandler struct {
	identity *identity.Service
	activity *activity.Logger
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func (h *AuthHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.identity.Signup(ctx, req.Email, req.Password, req.Name)
	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "invalid signup", err))
		return
	case errors.Is(err, identity.ErrDuplicateEmail):
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "email already registered"))
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "signup failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.metrics.IncrementUsersCreated()
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	session, err := h.identity.Login(ctx, req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		h.activity.LogLogin(ctx, false, req.Email, "", "", "invalid credentials")
		h.metrics.ObserveLogin(false)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "login failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.activity.LogLogin(ctx, true, session.User.Email, session.User.ID, string(session.User.Role), "")
	h.metrics.ObserveLogin(true)
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toUserResponse(session.User),
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.activity.LogLogout(ctx, requestcontext.UserID(ctx), requestcontext.UserRole(ctx))
	w.WriteHeader(http.StatusNoContent)
}

func toUserResponse(user identity.User) userResponse {
	return userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  string(user.Role),
	}
}
