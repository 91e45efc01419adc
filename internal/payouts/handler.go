package payouts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/wecare-insurance/portal/internal/analytics/export"
	"github.com/wecare-insurance/portal/internal/auth"
	"github.com/wecare-insurance/portal/internal/records"
	recordshttp "github.com/wecare-insurance/portal/internal/records/http"
	"github.com/wecare-insurance/portal/internal/recordsapi"
	"github.com/wecare-insurance/portal/internal/shared"
	"github.com/wecare-insurance/portal/internal/view"
)

// AdminAPI is the admin slice of the records service used by this screen.
type AdminAPI interface {
	FinancialSummary(ctx context.Context) (recordsapi.FinancialSummary, error)
	ExportExcel(ctx context.Context) (recordsapi.Export, error)
}

// Handler serves the admin payouts screen and its exports.
type Handler struct {
	logger    *slog.Logger
	source    recordshttp.Source
	admin     func(token string) AdminAPI
	templates *view.Engine
	csrf      *shared.CSRFManager
	validate  *validator.Validate
	onChange  func(ctx context.Context)
	rateLimit func(http.Handler) http.Handler
	now       func() time.Time
}

// NewHandler constructs the payouts handler. onChange runs after a
// successful financial update and may be nil.
func NewHandler(logger *slog.Logger, source recordshttp.Source, admin func(token string) AdminAPI, templates *view.Engine, csrf *shared.CSRFManager, onChange func(ctx context.Context)) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger.With("screen", records.ScreenPayouts),
		source:    source,
		admin:     admin,
		templates: templates,
		csrf:      csrf,
		validate:  newValidator(),
		onChange:  onChange,
		rateLimit: httprate.Limit(10, time.Minute,
			httprate.WithKeyFuncs(rateLimitKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			}),
		),
		now: time.Now,
	}
}

// MountRoutes registers the payouts endpoints. Callers guard them with the
// admin role check.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/admin/payouts", h.showList)
	r.Get("/admin/payouts/{id}/edit", h.showEdit)
	r.Post("/admin/payouts/{id}/edit", h.handleEdit)
	r.Group(func(gr chi.Router) {
		gr.Use(h.rateLimit)
		gr.Get("/admin/export.xlsx", h.handleExcel)
		gr.Get("/admin/export.csv", h.handleCSV)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if user := strings.TrimSpace(sess.User()); user != "" {
			return "user:" + user, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

// Stats are the completion counts over every record, not just the page.
type Stats struct {
	Total     int
	Pending   int
	Completed int
}

// Tally counts records by admin status.
func Tally(recs []records.Record) Stats {
	stats := Stats{Total: len(recs)}
	for _, rec := range recs {
		if records.IsCompleted(rec) {
			stats.Completed++
		} else {
			stats.Pending++
		}
	}
	return stats
}

type listPage struct {
	records.View
	Stats     Stats
	Summary   *recordsapi.FinancialSummary
	PageSizes []int
	Pager     view.Pager
	Error     string
}

type editPage struct {
	Record records.Record
	Form   financialForm
	Errors map[string]string
	Back   string
}

func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*records.Controller, bool) {
	ctrl, err := h.source.For(r, records.ScreenPayouts, records.DefaultPageSize)
	if err != nil {
		auth.Expire(w, r)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) adminAPI(r *http.Request) AdminAPI {
	sc, _ := auth.FromContext(r.Context())
	return h.admin(sc.Token)
}

// showList renders the payouts table. Paging and size changes reuse the
// fetched collection; a plain visit re-fetches it.
func (h *Handler) showList(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	_, hasPage := query["page"]
	_, hasSize := query["size"]

	var loadErr error
	if hasPage || hasSize {
		loadErr = ctrl.EnsureLoaded(r.Context())
	} else {
		loadErr = ctrl.Refresh(r.Context())
	}
	if loadErr != nil && recordsapi.IsAuthError(loadErr) {
		auth.Expire(w, r)
		return
	}
	if n, err := strconv.Atoi(query.Get("size")); err == nil && slices.Contains(records.PayoutPageSizes, n) {
		ctrl.SetPageSize(n)
	}
	if n, err := strconv.Atoi(query.Get("page")); err == nil {
		ctrl.SetPage(n)
	}

	snap := ctrl.Snapshot()
	page := listPage{
		View:      snap,
		Stats:     Tally(ctrl.Records()),
		PageSizes: records.PayoutPageSizes,
		Pager: view.Pager{
			Path:       "/admin/payouts",
			SizeParam:  true,
			Pagination: snap.Pagination,
		},
	}
	status := http.StatusOK
	if loadErr != nil {
		h.logger.Error("load payouts", slog.Any("error", loadErr))
		page.Error = shared.UserMessage(loadErr, "Failed to load records")
		status = http.StatusBadGateway
	} else if summary, err := h.adminAPI(r).FinancialSummary(r.Context()); err != nil {
		h.logger.Warn("financial summary", slog.Any("error", err))
	} else {
		page.Summary = &summary
	}
	h.render(w, r, status, "pages/payouts.html", "Payout details", page)
}

func (h *Handler) recordFor(w http.ResponseWriter, r *http.Request) (*records.Controller, records.Record, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, records.Record{}, false
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return nil, records.Record{}, false
	}
	if err := ctrl.EnsureLoaded(r.Context()); err != nil {
		recordshttp.Fail(w, r, h.logger, err, "Failed to load records", "/admin/payouts")
		return nil, records.Record{}, false
	}
	rec, found := ctrl.Find(id)
	if !found {
		http.NotFound(w, r)
		return nil, records.Record{}, false
	}
	return ctrl, rec, true
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	ctrl, rec, ok := h.recordFor(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "pages/payout_edit.html", "Financial details", editPage{
		Record: rec,
		Form:   formFromRecord(rec),
		Errors: map[string]string{},
		Back:   listPath(ctrl),
	})
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctrl, rec, ok := h.recordFor(w, r)
	if !ok {
		return
	}
	form, err := parseFinancialForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	page := editPage{Record: rec, Form: form, Errors: check(h.validate, form), Back: listPath(ctrl)}
	if len(page.Errors) > 0 {
		h.render(w, r, http.StatusBadRequest, "pages/payout_edit.html", "Financial details", page)
		return
	}
	if _, err := ctrl.SetAdminFinancials(r.Context(), rec.ID, form.financials()); err != nil {
		var verr *shared.ValidationError
		if errors.As(err, &verr) {
			for field, msg := range verr.Fields() {
				if field == "" {
					field = "general"
				}
				page.Errors[field] = msg
			}
			h.render(w, r, http.StatusBadRequest, "pages/payout_edit.html", "Financial details", page)
			return
		}
		recordshttp.Fail(w, r, h.logger, err, "Failed to update financial details", editPath(rec.ID))
		return
	}
	if h.onChange != nil {
		h.onChange(r.Context())
	}
	h.logger.Info("financials updated", slog.Int64("id", rec.ID))
	shared.Flash(shared.SessionFromContext(r.Context()), shared.FlashSuccess, "Financial details updated successfully!")
	http.Redirect(w, r, listPath(ctrl), http.StatusSeeOther)
}

// handleExcel proxies the spreadsheet export of the records service.
func (h *Handler) handleExcel(w http.ResponseWriter, r *http.Request) {
	out, err := h.adminAPI(r).ExportExcel(r.Context())
	if err != nil {
		recordshttp.Fail(w, r, h.logger, err, "Failed to export to Excel", "/admin/payouts")
		return
	}
	h.logger.Info("excel exported", slog.Int("bytes", len(out.Body)))
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

// handleCSV writes the payout table of every loaded record.
func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.EnsureLoaded(r.Context()); err != nil {
		recordshttp.Fail(w, r, h.logger, err, "Failed to load records", "/admin/payouts")
		return
	}
	var buf bytes.Buffer
	if err := export.WritePayoutsCSV(&buf, ctrl.Records()); err != nil {
		h.logger.Error("payouts csv", slog.Any("error", err))
		http.Error(w, "failed to build csv", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.PayoutsFilename(h.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := view.Page(r, h.csrf, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render", slog.String("template", name), slog.Any("error", err))
	}
}

func listPath(ctrl *records.Controller) string {
	return "/admin/payouts?" + url.Values{
		"page": {strconv.Itoa(ctrl.CurrentPage())},
		"size": {strconv.Itoa(ctrl.PageSize())},
	}.Encode()
}

func editPath(id int64) string {
	return "/admin/payouts/" + strconv.FormatInt(id, 10) + "/edit"
}

// financialForm holds the raw amounts so a rejected submission can be shown
// back unchanged.
type financialForm struct {
	TotalPremium              string `form:"totalPremium" validate:"omitempty,numeric"`
	TotalCommission           string `form:"totalCommission" validate:"omitempty,numeric"`
	CustomerDiscountedPremium string `form:"customerDiscountedPremium" validate:"omitempty,numeric"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

func parseFinancialForm(r *http.Request) (financialForm, error) {
	if err := r.ParseForm(); err != nil {
		return financialForm{}, err
	}
	return financialForm{
		TotalPremium:              strings.TrimSpace(r.PostFormValue("totalPremium")),
		TotalCommission:           strings.TrimSpace(r.PostFormValue("totalCommission")),
		CustomerDiscountedPremium: strings.TrimSpace(r.PostFormValue("customerDiscountedPremium")),
	}, nil
}

func formFromRecord(rec records.Record) financialForm {
	f := records.FinancialsOf(rec)
	return financialForm{
		TotalPremium:              formatAmount(f.TotalPremium),
		TotalCommission:           formatAmount(f.TotalCommission),
		CustomerDiscountedPremium: formatAmount(f.CustomerDiscountedPremium),
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func check(v *validator.Validate, form financialForm) map[string]string {
	errs := map[string]string{}
	var fieldErrs validator.ValidationErrors
	if errors.As(v.Struct(form), &fieldErrs) {
		for _, fe := range fieldErrs {
			errs[fe.Field()] = "Enter a number"
		}
	}
	return errs
}

// financials converts the checked form. Blank amounts count as zero.
func (f financialForm) financials() records.Financials {
	parse := func(s string) float64 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	return records.Financials{
		TotalPremium:              parse(f.TotalPremium),
		TotalCommission:           parse(f.TotalCommission),
		CustomerDiscountedPremium: parse(f.CustomerDiscountedPremium),
	}
}
