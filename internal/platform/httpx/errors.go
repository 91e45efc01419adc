// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/wecare-insurance/portal/internal/shared"
)

// RespondError maps portal errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserMessage(err, err.Error()))
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "Session expired, please sign in again")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", shared.UserMessage(err, ""))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserMessage(err, ""))
	case errors.Is(err, shared.ErrNetwork):
		Problem(w, http.StatusBadGateway, "Records Service Unreachable", shared.UserMessage(err, ""))
	case errors.Is(err, shared.ErrServer):
		Problem(w, http.StatusBadGateway, "Records Service Error", shared.UserMessage(err, ""))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
