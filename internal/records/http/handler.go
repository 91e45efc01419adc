package recordshttp

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wecare-insurance/portal/internal/auth"
	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/recordsapi"
	"github.com/wecare-insurance/portal/internal/shared"
	"github.com/wecare-insurance/portal/internal/view"
)

// DashboardFunc loads the dashboard shown next to the intake form.
type DashboardFunc func(r *http.Request) any

// Handler serves the intake form and the records screen.
type Handler struct {
	logger    *slog.Logger
	source    Source
	templates *view.Engine
	csrf      *shared.CSRFManager
	validate  *validator.Validate
	dashboard DashboardFunc
}

// NewHandler constructs the records screen handler. dashboard may be nil.
func NewHandler(logger *slog.Logger, source Source, templates *view.Engine, csrf *shared.CSRFManager, dashboard DashboardFunc) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger.With("screen", records.ScreenRecords),
		source:    source,
		templates: templates,
		csrf:      csrf,
		validate:  newValidator(),
		dashboard: dashboard,
	}
}

// MountRoutes registers the intake and records routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showHome)
	r.Post("/", h.handleCreate)
	r.Route("/records", func(r chi.Router) {
		r.Get("/", h.showList)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}/edit", h.handleEdit)
		r.Get("/{id}/delete", h.showDelete)
		r.Post("/{id}/delete", h.handleDelete)
		r.Post("/{id}/delete/cancel", h.handleCancelDelete)
	})
}

type homePage struct {
	Form      recordForm
	Errors    map[string]string
	Dashboard any
}

type listPage struct {
	records.View
	Pager view.Pager
	Error string
}

type editPage struct {
	Record records.Record
	Form   recordForm
	Errors map[string]string
}

func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*records.Controller, bool) {
	ctrl, err := h.source.For(r, records.ScreenRecords, records.DefaultPageSize)
	if err != nil {
		auth.Expire(w, r)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) showHome(w http.ResponseWriter, r *http.Request) {
	h.renderHome(w, r, http.StatusOK, homePage{})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	form, err := parseRecordForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	errs := check(h.validate, form)
	if len(errs) > 0 {
		h.renderHome(w, r, http.StatusBadRequest, homePage{Form: form, Errors: errs})
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	created, err := ctrl.Create(r.Context(), form.draft())
	if err != nil {
		if fieldErrors(err, errs) {
			h.renderHome(w, r, http.StatusBadRequest, homePage{Form: form, Errors: errs})
			return
		}
		if created.ID == 0 {
			Fail(w, r, h.logger, err, "Failed to add record", "/")
			return
		}
		// The record exists; only the follow-up refresh failed.
		h.logger.Warn("refresh after create", slog.Any("error", err))
	}
	h.logger.Info("record created", slog.Int64("id", created.ID))
	shared.Flash(shared.SessionFromContext(r.Context()), shared.FlashSuccess, "Record added successfully")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderHome(w http.ResponseWriter, r *http.Request, status int, page homePage) {
	if page.Errors == nil {
		page.Errors = map[string]string{}
	}
	if h.dashboard != nil {
		page.Dashboard = h.dashboard(r)
	}
	h.render(w, r, status, "pages/home.html", "Add record", page)
}

// showList renders the records screen. A plain visit re-fetches the
// collection; search and paging reuse the fetched one.
func (h *Handler) showList(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	_, hasQ := query["q"]
	_, hasPage := query["page"]

	var loadErr error
	if hasQ || hasPage {
		loadErr = ctrl.EnsureLoaded(r.Context())
	} else {
		loadErr = ctrl.Refresh(r.Context())
	}
	if loadErr != nil && recordsapi.IsAuthError(loadErr) {
		auth.Expire(w, r)
		return
	}
	if hasQ && query.Get("q") != ctrl.SearchTerm() {
		ctrl.SetSearchTerm(query.Get("q"))
	}
	if hasPage {
		if n, err := strconv.Atoi(query.Get("page")); err == nil {
			ctrl.SetPage(n)
		}
	}

	snap := ctrl.Snapshot()
	page := listPage{
		View: snap,
		Pager: view.Pager{
			Path:       "/records",
			Query:      snap.SearchTerm,
			Pagination: snap.Pagination,
		},
	}
	status := http.StatusOK
	if loadErr != nil {
		h.logger.Error("load records", slog.Any("error", loadErr))
		page.Error = shared.UserMessage(loadErr, "Failed to load records")
		status = http.StatusBadGateway
	}
	h.render(w, r, status, "pages/records.html", "Records", page)
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
		Fail(w, r, h.logger, err, "Failed to load records", "/records")
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
	_, rec, ok := h.recordFor(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "pages/record_edit.html", "Edit record", editPage{
		Record: rec,
		Form:   formFromRecord(rec),
		Errors: map[string]string{},
	})
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctrl, rec, ok := h.recordFor(w, r)
	if !ok {
		return
	}
	form, err := parseRecordForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	page := editPage{Record: rec, Form: form, Errors: check(h.validate, form)}
	if len(page.Errors) > 0 {
		h.render(w, r, http.StatusBadRequest, "pages/record_edit.html", "Edit record", page)
		return
	}
	if _, err := ctrl.Update(r.Context(), rec.ID, form.patch()); err != nil {
		switch {
		case fieldErrors(err, page.Errors):
			h.render(w, r, http.StatusBadRequest, "pages/record_edit.html", "Edit record", page)
		case errors.Is(err, shared.ErrNotFound) && !recordsapi.IsAuthError(err):
			Fail(w, r, h.logger, err, "Record no longer exists", "/records")
		default:
			Fail(w, r, h.logger, err, "Failed to update record", editPath(rec.ID))
		}
		return
	}
	h.logger.Info("record updated", slog.Int64("id", rec.ID))
	shared.Flash(shared.SessionFromContext(r.Context()), shared.FlashSuccess, "Record updated successfully")
	http.Redirect(w, r, pagePath(ctrl.CurrentPage()), http.StatusSeeOther)
}

func (h *Handler) showDelete(w http.ResponseWriter, r *http.Request) {
	ctrl, rec, ok := h.recordFor(w, r)
	if !ok {
		return
	}
	if err := ctrl.SelectForDelete(rec.ID); err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, http.StatusOK, "pages/record_delete.html", "Delete record", rec)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if pending, selected := ctrl.PendingDelete(); !selected || pending != id {
		Fail(w, r, h.logger, shared.NewValidationError("", "No record selected for deletion"), "", "/records?page=1")
		return
	}
	if err := ctrl.ConfirmDelete(r.Context()); err != nil {
		Fail(w, r, h.logger, err, "Failed to delete record", pagePath(ctrl.CurrentPage()))
		return
	}
	h.logger.Info("record deleted", slog.Int64("id", id))
	shared.Flash(shared.SessionFromContext(r.Context()), shared.FlashSuccess, "Record deleted successfully")
	http.Redirect(w, r, pagePath(ctrl.CurrentPage()), http.StatusSeeOther)
}

func (h *Handler) handleCancelDelete(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.CancelDelete()
	http.Redirect(w, r, pagePath(ctrl.CurrentPage()), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := view.Page(r, h.csrf, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render", slog.String("template", name), slog.Any("error", err))
	}
}

func pagePath(page int) string {
	return "/records?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
}

func editPath(id int64) string {
	return "/records/" + strconv.FormatInt(id, 10) + "/edit"
}
