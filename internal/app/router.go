package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/helixhealth/helix-portal/internal/accounts"
	"github.com/helixhealth/helix-portal/internal/billing"
	"github.com/helixhealth/helix-portal/internal/files"
	"github.com/helixhealth/helix-portal/internal/observability"
	"github.com/helixhealth/helix-portal/internal/session"
	"github.com/helixhealth/helix-portal/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Sessions        *session.Issuer
	AccountsHandler *accounts.Handler
	FilesHandler    *files.Handler
	BillingHandler  *billing.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AccountsHandler.MountPublicRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(params.Sessions))
		params.AccountsHandler.MountUserRoutes(r)
		if params.FilesHandler != nil {
			params.FilesHandler.MountUserRoutes(r)
		}
		if params.BillingHandler != nil {
			params.BillingHandler.MountUserRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
