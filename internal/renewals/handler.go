package renewals

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wecare-insurance/portal/internal/auth"
	"github.com/wecare-insurance/portal/internal/records"
	recordshttp "github.com/wecare-insurance/portal/internal/records/http"
	"github.com/wecare-insurance/portal/internal/recordsapi"
	"github.com/wecare-insurance/portal/internal/shared"
	"github.com/wecare-insurance/portal/internal/view"
)

const maxNotesLength = 500

// Handler serves the expiring policies screen.
type Handler struct {
	logger     *slog.Logger
	source     recordshttp.Source
	templates  *view.Engine
	csrf       *shared.CSRFManager
	store      *Store
	pdf        PDFRenderer
	windowDays int
	now        func() time.Time
}

// NewHandler constructs the renewals handler. pdf may be nil, which disables
// the call sheet download.
func NewHandler(logger *slog.Logger, source recordshttp.Source, templates *view.Engine, csrf *shared.CSRFManager, store *Store, pdf PDFRenderer, windowDays int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Handler{
		logger:     logger.With("screen", records.ScreenRenewals),
		source:     source,
		templates:  templates,
		csrf:       csrf,
		store:      store,
		pdf:        pdf,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// MountRoutes registers the renewals routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/renewals", func(r chi.Router) {
		r.Get("/", h.showList)
		r.Get("/call-sheet.pdf", h.downloadCallSheet)
		r.Post("/{id}/notify", h.handleNotify)
		r.Post("/{id}/unnotify", h.handleUnnotify)
	})
}

type listPage struct {
	Summary Summary
	Rows    []Row
	Error   string
	CanPDF  bool
}

func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*records.Controller, bool) {
	ctrl, err := h.source.For(r, records.ScreenRenewals, records.FetchAllLimit)
	if err != nil {
		auth.Expire(w, r)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) showList(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	page := listPage{CanPDF: h.pdf != nil}
	status := http.StatusOK
	if err := ctrl.Refresh(r.Context()); err != nil {
		if recordsapi.IsAuthError(err) {
			auth.Expire(w, r)
			return
		}
		h.logger.Error("load expiring policies", slog.Any("error", err))
		page.Error = shared.UserMessage(err, "Failed to load expiring policies. Please try again.")
		status = http.StatusBadGateway
	}

	now := h.now()
	recs := ctrl.Records()
	page.Rows = Rows(recs, now)
	page.Summary = Summarize(recs, now, h.windowDays)
	if page.Error == "" {
		if err := h.store.Save(r.Context(), page.Summary); err != nil {
			h.logger.Warn("store renewal summary", slog.Any("error", err))
		}
	}

	viewData := view.Page(r, h.csrf, "Expiring policies", page)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/renewals.html", viewData); err != nil {
		h.logger.Error("render renewals", slog.Any("error", err))
	}
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	notes := strings.TrimSpace(r.PostFormValue("notes"))
	if len(notes) > maxNotesLength {
		recordshttp.Fail(w, r, h.logger, shared.NewValidationError("notes", fmt.Sprintf("Notes must be at most %d characters", maxNotesLength)), "", "/renewals")
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.MarkNotified(r.Context(), id, notes); err != nil {
		recordshttp.Fail(w, r, h.logger, err, "Failed to mark as notified. Please try again.", "/renewals")
		return
	}
	h.logger.Info("renewal notified", slog.Int64("id", id))
	shared.Flash(shared.SessionFromContext(r.Context()), shared.FlashSuccess, "Customer marked as notified!")
	http.Redirect(w, r, "/renewals", http.StatusSeeOther)
}

func (h *Handler) handleUnnotify(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.UnmarkNotified(r.Context(), id); err != nil {
		recordshttp.Fail(w, r, h.logger, err, "Failed to unmark. Please try again.", "/renewals")
		return
	}
	h.logger.Info("renewal unnotified", slog.Int64("id", id))
	shared.Flash(shared.SessionFromContext(r.Context()), shared.FlashSuccess, "Customer marked as pending again!")
	http.Redirect(w, r, "/renewals", http.StatusSeeOther)
}

func (h *Handler) downloadCallSheet(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		http.Error(w, "PDF rendering is not configured", http.StatusServiceUnavailable)
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.EnsureLoaded(r.Context()); err != nil {
		recordshttp.Fail(w, r, h.logger, err, "Failed to load expiring policies. Please try again.", "/renewals")
		return
	}
	now := h.now()
	sheet := BuildCallSheet(ctrl.Records(), now, h.windowDays)
	pdf, err := RenderCallSheet(r.Context(), h.templates, h.pdf, sheet)
	if err != nil {
		h.logger.Error("call sheet", slog.Any("error", err))
		http.Error(w, "Failed to generate call sheet", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", CallSheetFilename(now)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}
