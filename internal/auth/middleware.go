package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/wecare-insurance/portal/internal/platform/httpx"
	"github.com/wecare-insurance/portal/internal/shared"
)

// Middleware restores the SessionContext and guards routes.
type Middleware struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (m Middleware) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Load restores the SessionContext from the session. An expired token is
// cleared from the session and the request continues anonymously.
func (m Middleware) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		sc, ok := Restore(sess)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if sc.Expired(m.now()) {
			if m.Logger != nil {
				m.Logger.Info("api token expired", slog.String("user", sc.Username))
			}
			Clear(sess)
			shared.Flash(sess, shared.FlashInfo, "Your session has expired, please sign in again")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWith(r.Context(), sc)))
	})
}

// RequireAuth sends anonymous browsers to the login page and answers JSON
// clients with 401.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			if httpx.WantsJSON(r) {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Sign in required")
				return
			}
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects sessions without the admin role.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, ok := FromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		if !sc.IsAdmin() {
			if m.Logger != nil {
				m.Logger.Warn("admin route denied", slog.String("user", sc.Username), slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Expire clears the credentials after the records API rejected the token and
// sends the browser to the login page.
func Expire(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	Clear(sess)
	shared.Flash(sess, shared.FlashInfo, "Your session has expired, please sign in again")
	if httpx.WantsJSON(r) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Session expired, please sign in again")
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}
