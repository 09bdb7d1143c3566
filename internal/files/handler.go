package files

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixhealth/helix-portal/internal/platform/httpx"
	"github.com/helixhealth/helix-portal/internal/shared"
)

const maxUploadBytes = 5 << 20

// Handler wires the profile picture endpoints. All of them require an
// authenticated session and only the owner may touch their picture.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountUserRoutes registers the picture endpoints behind the session
// middleware.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/users/{id}/picture", h.handleGetPicture)
	r.Put("/users/{id}/picture", h.handlePutPicture)
	r.Delete("/users/{id}/picture", h.handleDeletePicture)
}

func (h *Handler) ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if shared.UserFromContext(r.Context()) != id {
		httpx.RespondError(w, shared.ErrAccessDenied)
		return "", false
	}
	return id, true
}

func (h *Handler) handleGetPicture(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	f, contentType, err := h.service.OpenProfilePicture(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("stream picture", slog.Any("error", err))
	}
}

func (h *Handler) handlePutPicture(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	file, header, err := r.FormFile("picture")
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	defer file.Close()

	name, err := h.service.SaveProfilePicture(r.Context(), id, header.Filename, file)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"picture": name})
}

func (h *Handler) handleDeletePicture(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteProfilePicture(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
