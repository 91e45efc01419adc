package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wecare-insurance/portal/internal/analytics"
	"github.com/wecare-insurance/portal/internal/analytics/export"
	"github.com/wecare-insurance/portal/internal/analytics/svg"
	"github.com/wecare-insurance/portal/internal/auth"
	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/recordsapi"
	"github.com/wecare-insurance/portal/internal/renewals"
	"github.com/wecare-insurance/portal/internal/shared"
)

const requestTimeout = 5 * time.Second

// API is the records service as seen by the dashboard.
type API interface {
	analytics.Source
	GetExpiring(ctx context.Context, days int) (records.ListResult, error)
}

// SummaryStore returns the last renewal scan.
type SummaryStore interface {
	Load(ctx context.Context) (renewals.Summary, bool, error)
}

// Handler builds the home dashboard and serves the analytics exports.
type Handler struct {
	logger     *slog.Logger
	service    *analytics.Service
	api        func(token string) API
	store      SummaryStore
	windowDays int
	csvPool    sync.Pool
	now        func() time.Time
}

// NewHandler constructs the analytics handler. store may be nil, in which
// case the expiring count always comes from the API.
func NewHandler(logger *slog.Logger, service *analytics.Service, api func(token string) API, store SummaryStore, windowDays int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if windowDays <= 0 {
		windowDays = renewals.DefaultWindowDays
	}
	h := &Handler{
		logger:     logger,
		service:    service,
		api:        api,
		store:      store,
		windowDays: windowDays,
		now:        time.Now,
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// Dashboard is the view model of the home dashboard.
type Dashboard struct {
	TotalPolicies int64
	PoliciesError bool
	WindowDays    int
	Expiring      int
	ExpiringKnown bool
	Admin         *AdminPanel
}

// AdminPanel is the monthly performance section shown to admins.
type AdminPanel struct {
	Year   int
	Years  []int
	Error  string
	Empty  bool
	Totals analytics.Totals
	Chart  template.HTML
	Trend  template.HTML
}

// Dashboard loads the figures for the current user. Each figure fails on its
// own so one slow endpoint never blanks the page.
func (h *Handler) Dashboard(r *http.Request) any {
	sc, ok := auth.FromContext(r.Context())
	if !ok {
		return nil
	}
	api := h.api(sc.Token)
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	now := h.now()
	dash := &Dashboard{WindowDays: h.windowDays}
	var g errgroup.Group

	if sc.IsAdmin() {
		panel := &AdminPanel{Years: analytics.Years(now), Year: now.Year()}
		if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && slices.Contains(panel.Years, y) {
			panel.Year = y
		}
		dash.Admin = panel
		g.Go(func() error {
			perf, err := h.service.MonthlyPerformance(ctx, api, panel.Year)
			if err != nil {
				h.logger.Warn("monthly performance", slog.Int("year", panel.Year), slog.Any("error", err))
				dash.PoliciesError = true
				panel.Error = shared.UserMessage(err, "Failed to load monthly performance")
				return nil
			}
			dash.TotalPolicies = perf.TotalPolicies
			panel.Totals = analytics.Summarize(perf)
			h.renderCharts(panel, perf)
			return nil
		})
	} else {
		g.Go(func() error {
			count, err := h.service.PoliciesCount(ctx, api)
			if err != nil {
				h.logger.Warn("policies count", slog.Any("error", err))
				dash.PoliciesError = true
				return nil
			}
			dash.TotalPolicies = count
			return nil
		})
	}

	g.Go(func() error {
		n, err := h.expiringCount(ctx, api)
		if err != nil {
			h.logger.Warn("expiring count", slog.Any("error", err))
			return nil
		}
		dash.Expiring = n
		dash.ExpiringKnown = true
		return nil
	})

	_ = g.Wait()
	return dash
}

// expiringCount prefers the stored scan and falls back to the live window.
func (h *Handler) expiringCount(ctx context.Context, api API) (int, error) {
	if h.store != nil {
		summary, found, err := h.store.Load(ctx)
		if err != nil {
			h.logger.Warn("load renewal summary", slog.Any("error", err))
		}
		if found && summary.WindowDays == h.windowDays {
			return summary.Total, nil
		}
	}
	res, err := api.GetExpiring(ctx, h.windowDays)
	if err != nil {
		return 0, err
	}
	return len(res.Records), nil
}

func (h *Handler) renderCharts(panel *AdminPanel, perf recordsapi.MonthlyPerformance) {
	if len(perf.Data) == 0 {
		panel.Empty = true
		return
	}
	policies := make([]svg.Point, 0, len(perf.Data))
	revenue := make([]svg.Point, 0, len(perf.Data))
	for _, p := range perf.Data {
		policies = append(policies, svg.Point{Label: p.Month, Value: float64(p.Policies)})
		revenue = append(revenue, svg.Point{Label: p.Month, Value: p.Revenue})
	}
	year := strconv.Itoa(panel.Year)
	chart, err := svg.Bars(svg.DefaultWidth, svg.DefaultHeight, policies, svg.BarOpts{
		Title:       "Policies " + year,
		Description: "Policies issued per month in " + year,
		SeriesLabel: "Policies",
		ShowValues:  true,
	})
	if err != nil {
		h.logger.Warn("render policies chart", slog.Any("error", err))
	}
	panel.Chart = chart
	trend, err := svg.Line(svg.DefaultWidth, svg.DefaultHeight, revenue, svg.LineOpts{
		Title:       "Revenue " + year,
		Description: "Revenue per month in " + year,
		ShowDots:    true,
		FormatTick:  shared.FormatINRShort,
	})
	if err != nil {
		h.logger.Warn("render revenue chart", slog.Any("error", err))
	}
	panel.Trend = trend
}

// handleMonthlyCSV exports the monthly series of the requested year.
func (h *Handler) handleMonthlyCSV(w http.ResponseWriter, r *http.Request) {
	sc, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || !slices.Contains(analytics.Years(h.now()), y) {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = y
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	perf, err := h.service.MonthlyPerformance(ctx, h.api(sc.Token), year)
	if err != nil {
		if recordsapi.IsAuthError(err) {
			auth.Expire(w, r)
			return
		}
		h.logger.Error("monthly csv", slog.Any("error", err))
		http.Error(w, shared.UserMessage(err, "Failed to load monthly performance"), http.StatusBadGateway)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteMonthlyCSV(buf, perf); err != nil {
		h.logger.Error("write monthly csv", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.MonthlyFilename(year)))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

// HandleMonthlyCSVForTest exposes the CSV handler for tests.
func (h *Handler) HandleMonthlyCSVForTest(w http.ResponseWriter, r *http.Request) {
	h.handleMonthlyCSV(w, r)
}
