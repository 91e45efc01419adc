package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wecare-insurance/portal/internal/shared"
	"github.com/wecare-insurance/portal/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	onLogout       func(sessionID string)
}

// NewHandler constructs a Handler instance. onLogout, when set, is called with
// the id of every session that signs out.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, onLogout func(string)) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		onLogout:       onLogout,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

var loginFieldMessages = map[string]string{
	"Username": "Username is required",
	"Password": "Password is required",
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := FromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = loginFieldMessages[fieldErr.Field()]
			}
		}
	}
	if len(errs) > 0 {
		h.renderLogin(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{Username: form.Username}, Errors: errs})
		return
	}

	res, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		status := http.StatusBadRequest
		msg := "Invalid username or password"
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("login", slog.Any("error", err))
			status = http.StatusBadGateway
			msg = shared.UserMessage(err, "Login failed, please try again")
		}
		errs["general"] = msg
		h.renderLogin(w, r, status, loginPageData{Form: loginForm{Username: form.Username}, Errors: errs})
		return
	}

	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessionManager.Renew(sess)
	if _, err := h.csrfManager.Rotate(r.Context(), sess); err != nil {
		h.logger.Warn("rotate csrf", slog.Any("error", err))
	}
	sc := Init(sess, res.Token, res.User.Role, res.User.Username)
	shared.Flash(sess, shared.FlashSuccess, "Welcome back, "+sc.Username)
	h.logger.Info("login", slog.String("user", sc.Username), slog.String("role", sc.Role))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sc, ok := Restore(sess); ok {
		// Best effort; the local session is cleared regardless.
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		if err := h.service.Logout(ctx, sc.Token); err != nil {
			h.logger.Warn("remote logout", slog.Any("error", err))
		}
		cancel()
	}
	if sess != nil {
		if h.onLogout != nil {
			h.onLogout(sess.ID)
		}
		Clear(sess)
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	if data.Errors == nil {
		data.Errors = map[string]string{}
	}
	viewData := view.Page(r, h.csrfManager, "Sign in", data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
