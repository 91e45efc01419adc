package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	analytichttp "github.com/wecare-insurance/portal/internal/analytics/http"
	"github.com/wecare-insurance/portal/internal/auth"
	"github.com/wecare-insurance/portal/internal/observability"
	"github.com/wecare-insurance/portal/internal/payouts"
	recordshttp "github.com/wecare-insurance/portal/internal/records/http"
	"github.com/wecare-insurance/portal/internal/renewals"
	"github.com/wecare-insurance/portal/internal/search"
	"github.com/wecare-insurance/portal/internal/shared"
	"github.com/wecare-insurance/portal/jobs"
	"github.com/wecare-insurance/portal/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthMiddleware   auth.Middleware
	AuthHandler      *auth.Handler
	RecordsHandler   *recordshttp.Handler
	SearchHandler    *search.Handler
	RenewalsHandler  *renewals.Handler
	RenewalsStore    *renewals.Store
	PayoutsHandler   *payouts.Handler
	AnalyticsHandler *analytichttp.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
	// RequestLogging toggles chi's access log.
	RequestLogging   bool
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwCfg := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
		Auth:           params.AuthMiddleware,
	}
	if params.RenewalsStore != nil {
		mwCfg.Badge = params.RenewalsStore.BadgeMiddleware
	}
	for _, mw := range MiddlewareStack(mwCfg) {
		r.Use(mw)
	}
	if params.RequestLogging {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireAuth)
		params.RecordsHandler.MountRoutes(r)
		if params.SearchHandler != nil {
			params.SearchHandler.MountRoutes(r)
		}
		if params.RenewalsHandler != nil {
			params.RenewalsHandler.MountRoutes(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireAdmin)
			if params.PayoutsHandler != nil {
				params.PayoutsHandler.MountRoutes(r)
			}
			params.AnalyticsHandler.MountRoutes(r)
			if params.JobsHandler != nil {
				r.Route("/admin/jobs", params.JobsHandler.MountRoutes)
			}
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers cache embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
