package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixhealth/helix-portal/internal/observability"
	"github.com/helixhealth/helix-portal/internal/platform/httpx"
	"github.com/helixhealth/helix-portal/internal/session"
	"github.com/helixhealth/helix-portal/internal/shared"
)

// Handler wires HTTP endpoints for registration and authentication.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *session.Issuer
	limiter  *shared.LoginLimiter
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *session.Issuer, limiter *shared.LoginLimiter, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		limiter:  limiter,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// MountPublicRoutes registers the unauthenticated endpoints.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/users", h.handleCreateUser)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/set-password", h.handleSetPassword)
	r.Post("/auth/send-reset-email", h.handleSendResetEmail)
	r.Post("/auth/reset-password", h.handleResetPassword)
}

// MountUserRoutes registers the endpoints behind the session middleware.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/users/{id}", h.handleGetUser)
	r.Put("/users/{id}", h.handleUpdateUser)
}

type createUserRequest struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

type updateUserRequest struct {
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type sendResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Activated bool   `json:"activated"`
}

func toUserResponse(u *User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Activated: u.Activated,
	}
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	user, err := h.service.CreateUser(r.Context(), CreateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	if err := h.limiter.Allow(r.Context(), req.Username, r.RemoteAddr); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.RecordLoginFailure()
		httpx.RespondError(w, err)
		return
	}
	h.limiter.Reset(r.Context(), req.Username, r.RemoteAddr)

	credential, err := h.sessions.Issue(user.ID)
	if err != nil {
		h.logger.Error("issue session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"token":      credential,
		"expires_in": int(h.sessions.TTL() / time.Second),
	})
}

func (h *Handler) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req tokenPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.Activate(r.Context(), req.Token, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (h *Handler) handleSendResetEmail(w http.ResponseWriter, r *http.Request) {
	var req sendResetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	// Accepted either way: whether an email is registered is not
	// disclosed to the caller.
	if err := h.service.SendPasswordReset(r.Context(), req.Email); err != nil && !isQuietResetError(err) {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req tokenPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if shared.UserFromContext(r.Context()) != id {
		httpx.RespondError(w, shared.ErrAccessDenied)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if shared.UserFromContext(r.Context()) != id {
		httpx.RespondError(w, shared.ErrAccessDenied)
		return
	}

	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, UpdateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func isQuietResetError(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
