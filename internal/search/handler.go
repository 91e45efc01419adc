package search

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/wecare-insurance/portal/internal/auth"
	"github.com/wecare-insurance/portal/internal/platform/httpx"
	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/shared"
)

// Handler serves /search for the live search box. Each session gets its own
// debouncer.
type Handler struct {
	logger *slog.Logger
	delay  time.Duration
	fetch  func(token string) FetchFunc

	mu         sync.Mutex
	debouncers *expirable.LRU[string, *Debouncer]
}

// NewHandler builds the search endpoint. fetch scopes the list call to the
// session token.
func NewHandler(logger *slog.Logger, delay time.Duration, ttl time.Duration, fetch func(token string) FetchFunc) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger.With("component", "search"),
		delay:      delay,
		fetch:      fetch,
		debouncers: expirable.NewLRU[string, *Debouncer](4096, nil, ttl),
	}
}

// MountRoutes registers the search endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/search", h.handleSearch)
}

// Forget drops the debouncer of a signed-out session.
func (h *Handler) Forget(sessionID string) {
	h.debouncers.Remove(sessionID)
}

type hit struct {
	ID            int64         `json:"id"`
	CustomerName  string        `json:"customerName"`
	VehicleNumber string        `json:"vehicleNumber"`
	PhoneNumber   string        `json:"phoneNumber"`
	ExpiryDate    *records.Date `json:"expiryDate"`
}

type response struct {
	Query   string `json:"query"`
	Records []hit  `json:"records"`
	Total   int    `json:"total"`
}

func (h *Handler) debouncerFor(sessionID string) *Debouncer {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.debouncers.Get(sessionID); ok {
		return d
	}
	d := NewDebouncer(h.delay)
	h.debouncers.Add(sessionID, d)
	return d
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	sc, ok := auth.FromContext(r.Context())
	if sess == nil || !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Sign in required")
		return
	}

	res, err := h.debouncerFor(sess.ID).Search(r.Context(), r.URL.Query().Get("q"), h.fetch(sc.Token))
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if errors.Is(err, r.Context().Err()) {
			return
		}
		h.logger.Warn("search failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := response{Query: res.Query, Total: res.Total, Records: make([]hit, 0, len(res.Records))}
	for _, rec := range res.Records {
		out.Records = append(out.Records, hit{
			ID:            rec.ID,
			CustomerName:  rec.CustomerName,
			VehicleNumber: rec.VehicleNumber,
			PhoneNumber:   rec.PhoneNumber,
			ExpiryDate:    rec.ExpiryDate,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}
