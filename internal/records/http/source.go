package recordshttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/wecare-insurance/portal/internal/auth"
	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/recordsapi"
	"github.com/wecare-insurance/portal/internal/shared"
)

// Source hands out the controller owned by the current session for a screen.
type Source struct {
	Registry *records.Registry
	// NewAPI scopes the records API to a bearer token.
	NewAPI func(token string) records.API
}

// NewSource binds the registry to the records API client.
func NewSource(registry *records.Registry, client *recordsapi.Client) Source {
	return Source{
		Registry: registry,
		NewAPI: func(token string) records.API {
			return client.WithToken(token)
		},
	}
}

// For returns the controller for screen, creating it on first use.
func (s Source) For(r *http.Request, screen string, pageSize int) (*records.Controller, error) {
	sess := shared.SessionFromContext(r.Context())
	sc, ok := auth.FromContext(r.Context())
	if sess == nil || !ok {
		return nil, shared.ErrUnauthorized
	}
	return s.Registry.Controller(sess.ID, screen, pageSize, func() records.API {
		return s.NewAPI(sc.Token)
	}), nil
}

// Fail reports err to a browser. A rejected token signs the user out,
// anything else becomes an error flash and a redirect to back.
func Fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback, back string) {
	if recordsapi.IsAuthError(err) {
		auth.Expire(w, r)
		return
	}
	if !errors.Is(err, shared.ErrValidation) {
		logger.Error("records request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	shared.Flash(shared.SessionFromContext(r.Context()), shared.FlashError, shared.UserMessage(err, fallback))
	http.Redirect(w, r, back, http.StatusSeeOther)
}
