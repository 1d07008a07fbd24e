package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-his/meridian/internal/assets"
	"github.com/meridian-his/meridian/internal/audit"
	"github.com/meridian-his/meridian/internal/ledger"
	"github.com/meridian-his/meridian/internal/periods"
	"github.com/meridian-his/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	LedgerHandler  *ledger.Handler
	PeriodsHandler *periods.Handler
	AssetsHandler  *assets.Handler
	AuditHandler   *audit.Handler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/ledger", func(sub chi.Router) {
			params.LedgerHandler.MountRoutes(sub)
		})
		api.Route("/periods", func(sub chi.Router) {
			params.PeriodsHandler.MountRoutes(sub)
		})
		api.Route("/assets", func(sub chi.Router) {
			params.AssetsHandler.MountRoutes(sub)
		})
		api.Route("/audit", func(sub chi.Router) {
			params.AuditHandler.MountRoutes(sub)
		})
		if params.JobHandler != nil {
			api.Route("/jobs", func(sub chi.Router) {
				params.JobHandler.MountRoutes(sub)
			})
		}
	})

	return r
}
