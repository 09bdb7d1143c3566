package billing

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixhealth/helix-portal/internal/observability"
	"github.com/helixhealth/helix-portal/internal/platform/httpx"
	"github.com/helixhealth/helix-portal/internal/shared"
)

// Handler wires the invoice endpoints. Every route requires a session;
// invoices are only ever scoped to the authenticated owner.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountUserRoutes registers the invoice endpoints behind the session
// middleware.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/invoices", h.handleList)
	r.Get("/invoices/{id}", h.handleGet)
	r.Post("/invoices/{id}/payment", h.handlePayment)
	r.Get("/invoices/{id}/receipt", h.handleReceipt)
}

type invoiceResponse struct {
	ID      string    `json:"id"`
	Amount  float64   `json:"amount"`
	DueDate time.Time `json:"due_date"`
	Status  string    `json:"status"`
}

func toInvoiceResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:      inv.ID,
		Amount:  inv.Amount,
		DueDate: inv.DueDate,
		Status:  string(inv.Status),
	}
}

type paymentRequest struct {
	Brand      string `json:"paymentBrand" validate:"required"`
	Number     string `json:"ccNumber" validate:"required"`
	CCV        string `json:"ccv" validate:"required"`
	Expiration string `json:"expirationDate" validate:"required"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserFromContext(r.Context())
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	invoices, pagination, err := h.service.ListInvoices(r.Context(), userID,
		q.Get("status"), q.Get("operator"), page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices": out,
		"pagination": map[string]int{
			"page":        pagination.Page,
			"per_page":    pagination.PerPage,
			"total":       pagination.Total,
			"total_pages": pagination.TotalPages,
		},
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserFromContext(r.Context())
	inv, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(*inv))
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserFromContext(r.Context())

	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	err := h.service.SettlePayment(r.Context(), chi.URLParam(r, "id"), userID, req.Brand, CardDetails{
		Number:     req.Number,
		CCV:        req.CCV,
		Expiration: req.Expiration,
	})
	if err != nil {
		h.metrics.RecordPayment("rejected")
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordPayment("accepted")
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusPaid)})
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserFromContext(r.Context())

	f, contentType, err := h.service.Receipt(r.Context(), chi.URLParam(r, "id"), userID, r.URL.Query().Get("name"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("stream receipt", slog.Any("error", err))
	}
}
