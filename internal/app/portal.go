package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wecare-insurance/portal/internal/analytics"
	analytichttp "github.com/wecare-insurance/portal/internal/analytics/http"
	"github.com/wecare-insurance/portal/internal/auth"
	"github.com/wecare-insurance/portal/internal/observability"
	"github.com/wecare-insurance/portal/internal/payouts"
	"github.com/wecare-insurance/portal/internal/records"
	recordshttp "github.com/wecare-insurance/portal/internal/records/http"
	"github.com/wecare-insurance/portal/internal/recordsapi"
	"github.com/wecare-insurance/portal/internal/renewals"
	"github.com/wecare-insurance/portal/internal/search"
	"github.com/wecare-insurance/portal/internal/shared"
	"github.com/wecare-insurance/portal/internal/view"
	"github.com/wecare-insurance/portal/jobs"
	"github.com/wecare-insurance/portal/report"
)

const (
	sessionCookieName = "wecare_session"
	registrySize      = 1024
	reportTimeout     = 30 * time.Second
)

// Deps are the process-wide clients the portal is assembled from.
type Deps struct {
	Logger     *slog.Logger
	Config     *Config
	Redis      *redis.Client
	Metrics    *observability.Metrics
	// APIOptions are appended when building the records API client.
	APIOptions []recordsapi.Option
	// Jobs serves the queue health endpoint when set.
	Jobs       *jobs.Handler
}

// Portal is the assembled web application.
type Portal struct {
	Handler   http.Handler
	API       *recordsapi.Client
	Analytics *analytics.Service
	Renewals  *renewals.Store
	Sessions  *shared.SessionManager
}

// NewPortal builds every handler and mounts them on the router.
func NewPortal(deps Deps) (*Portal, error) {
	if deps.Config == nil {
		return nil, errors.New("app: config required")
	}
	if deps.Redis == nil {
		return nil, errors.New("app: redis client required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, err := view.NewEngine()
	if err != nil {
		return nil, err
	}

	opts := append([]recordsapi.Option(nil), deps.APIOptions...)
	if deps.Metrics != nil {
		opts = append(opts, recordsapi.WithObserver(deps.Metrics))
	}
	client := recordsapi.New(cfg.RecordsAPIURL, cfg.RecordsAPITimeout, logger, opts...)

	sessionManager := shared.NewSessionManager(deps.Redis, sessionCookieName, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	registry := records.NewRegistry(registrySize, cfg.SessionTTL)
	source := recordshttp.NewSource(registry, client)

	analyticsService := analytics.NewService(analytics.NewCache(deps.Redis, cfg.AnalyticsCacheTTL))
	renewalsStore := renewals.NewStore(deps.Redis)

	analyticsHandler := analytichttp.NewHandler(logger, analyticsService, func(token string) analytichttp.API {
		return client.WithToken(token)
	}, renewalsStore, cfg.ExpiringWindowDays)

	searchHandler := search.NewHandler(logger, cfg.SearchDebounce, cfg.SessionTTL, func(token string) search.FetchFunc {
		return client.WithToken(token).List
	})

	authHandler := auth.NewHandler(logger, auth.NewService(auth.APIGateway{Client: client}), templates, sessionManager, csrfManager, func(sessionID string) {
		registry.Forget(sessionID)
		searchHandler.Forget(sessionID)
	})

	recordsHandler := recordshttp.NewHandler(logger, source, templates, csrfManager, analyticsHandler.Dashboard)

	var pdf renewals.PDFRenderer
	if cfg.GotenbergURL != "" {
		pdf = report.NewClient(cfg.GotenbergURL, reportTimeout, report.CallSheetPage)
	}
	renewalsHandler := renewals.NewHandler(logger,
		renewals.NewSource(registry, client, cfg.ExpiringWindowDays),
		templates, csrfManager, renewalsStore, pdf, cfg.ExpiringWindowDays)

	payoutsHandler := payouts.NewHandler(logger, source, func(token string) payouts.AdminAPI {
		return client.WithToken(token)
	}, templates, csrfManager, func(ctx context.Context) {
		if err := analyticsService.Invalidate(ctx); err != nil {
			logger.Warn("invalidate analytics cache", slog.Any("error", err))
		}
	})

	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthMiddleware:   auth.Middleware{Logger: logger},
		AuthHandler:      authHandler,
		RecordsHandler:   recordsHandler,
		SearchHandler:    searchHandler,
		RenewalsHandler:  renewalsHandler,
		RenewalsStore:    renewalsStore,
		PayoutsHandler:   payoutsHandler,
		AnalyticsHandler: analyticsHandler,
		JobsHandler:      deps.Jobs,
		Metrics:          deps.Metrics,
		RequestLogging:   !cfg.IsProduction(),
	})

	return &Portal{
		Handler:   router,
		API:       client,
		Analytics: analyticsService,
		Renewals:  renewalsStore,
		Sessions:  sessionManager,
	}, nil
}
