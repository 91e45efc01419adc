package recordshttp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wecare-insurance/portal/internal/auth"
	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/shared"
	"github.com/wecare-insurance/portal/internal/view"
)

type stubAPI struct {
	mu      sync.Mutex
	records []records.Record
	nextID  int64
	listErr error
	created []records.Draft
	updated map[int64]records.Patch
	deleted []int64
	lists   int
}

func newStubAPI(n int) *stubAPI {
	api := &stubAPI{updated: map[int64]records.Patch{}}
	for i := 1; i <= n; i++ {
		api.records = append(api.records, records.Record{
			ID:            int64(i),
			CustomerName:  fmt.Sprintf("Customer %d", i),
			PhoneNumber:   fmt.Sprintf("98450%05d", i),
			VehicleNumber: fmt.Sprintf("KA01AB%04d", i),
			ExpiryDate:    records.NewDate(2026, time.December, 1),
		})
	}
	api.nextID = int64(n + 1)
	return api
}

func (s *stubAPI) List(ctx context.Context, q records.ListQuery) (records.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return records.ListResult{}, s.listErr
	}
	out := append([]records.Record(nil), s.records...)
	return records.ListResult{Records: out, Total: len(out)}, nil
}

func (s *stubAPI) Create(ctx context.Context, d records.Draft) (records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, d)
	rec := records.Record{ID: s.nextID, CustomerName: d.CustomerName, VehicleNumber: d.VehicleNumber}
	s.nextID++
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *stubAPI) Update(ctx context.Context, id int64, p records.Patch) (records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated[id] = p
	for i := range s.records {
		if s.records[i].ID == id && p.CustomerName != nil {
			s.records[i].CustomerName = *p.CustomerName
		}
	}
	return records.Record{ID: id}, nil
}

func (s *stubAPI) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	return nil
}

func (s *stubAPI) SetFinancials(ctx context.Context, id int64, f records.Financials) (records.Record, error) {
	return records.Record{ID: id}, nil
}

func (s *stubAPI) MarkNotified(ctx context.Context, id int64, notes string) (records.Record, error) {
	return records.Record{ID: id}, nil
}

func (s *stubAPI) UnmarkNotified(ctx context.Context, id int64) (records.Record, error) {
	return records.Record{ID: id}, nil
}

type harness struct {
	api    *stubAPI
	sess   *shared.Session
	router chi.Router
}

func newHarness(t *testing.T, n int, role string) *harness {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)

	h := &harness{api: newStubAPI(n), sess: &shared.Session{ID: "sess-1"}}
	auth.Init(h.sess, "token-1", role, "staff")
	source := Source{
		Registry: records.NewRegistry(16, time.Hour),
		NewAPI:   func(token string) records.API { return h.api },
	}
	handler := NewHandler(nil, source, templates, shared.NewCSRFManager("secret"), nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithSession(req.Context(), h.sess)
			if sc, ok := auth.Restore(h.sess); ok {
				ctx = auth.ContextWith(ctx, sc)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	handler.MountRoutes(r)
	h.router = r
	return h
}

func (h *harness) get(path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func (h *harness) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func TestListRendersFirstPage(t *testing.T) {
	h := newHarness(t, 150, "staff")
	rr := h.get("/records")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Showing 100 of 150 records")
	assert.Contains(t, body, "Page 1 of 2")
	assert.NotContains(t, body, "Pending")
	assert.Equal(t, 1, h.api.lists)
}

func TestListSearchAndPagingReuseCollection(t *testing.T) {
	h := newHarness(t, 150, "admin")
	require.Equal(t, http.StatusOK, h.get("/records").Code)

	rr := h.get("/records?q=customer+1&page=1")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	// Customer 1, 10-19 and 100-150.
	assert.Contains(t, body, "Showing 62 of 62 records (filtered from 150 total)")
	assert.Contains(t, body, "Pending")

	rr = h.get("/records?page=2")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, h.api.lists)
}

func TestListRefreshFailureKeepsPage(t *testing.T) {
	h := newHarness(t, 3, "staff")
	h.api.listErr = &shared.ServerError{Op: "list", Status: http.StatusInternalServerError, Message: "database offline"}

	rr := h.get("/records")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "database offline")
}

func TestListExpiredTokenSignsOut(t *testing.T) {
	h := newHarness(t, 3, "staff")
	h.api.listErr = &shared.ServerError{Op: "list", Status: http.StatusUnauthorized}

	rr := h.get("/records")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
	_, ok := auth.Restore(h.sess)
	assert.False(t, ok)
}

func TestCreateValidationSkipsAPI(t *testing.T) {
	h := newHarness(t, 0, "staff")
	rr := h.post("/", url.Values{"customerName": {"  "}, "vehicleNumber": {"ka01"}})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Customer name is required")
	assert.Empty(t, h.api.created)
}

func TestCreateRejectsMalformedDate(t *testing.T) {
	h := newHarness(t, 0, "staff")
	rr := h.post("/", url.Values{"customerName": {"Asha"}, "vehicleNumber": {"ka01"}, "expiryDate": {"01/12/2026"}})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Use the YYYY-MM-DD format")
	assert.Empty(t, h.api.created)
}

func TestCreateSubmitsNormalizedDraft(t *testing.T) {
	h := newHarness(t, 0, "staff")
	rr := h.post("/", url.Values{
		"customerName":  {" Asha Rao "},
		"vehicleNumber": {" ka01ab1234 "},
		"expiryDate":    {"2026-12-01"},
	})

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	require.Len(t, h.api.created, 1)
	assert.Equal(t, "Asha Rao", h.api.created[0].CustomerName)
	assert.Equal(t, "KA01AB1234", h.api.created[0].VehicleNumber)
	require.NotNil(t, h.api.created[0].ExpiryDate)
	assert.Equal(t, "2026-12-01", h.api.created[0].ExpiryDate.String())

	flash := h.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Record added successfully", flash.Message)
}

func TestEditRedirectsToRecordPage(t *testing.T) {
	h := newHarness(t, 150, "staff")
	rr := h.get("/records/120/edit")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "KA01AB0120")

	rr = h.post("/records/120/edit", url.Values{"customerName": {"Customer 120 Renamed"}, "vehicleNumber": {"ka01ab0120"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/records?page=2", rr.Header().Get("Location"))

	patch := h.api.updated[120]
	require.NotNil(t, patch.CustomerName)
	assert.Equal(t, "Customer 120 Renamed", *patch.CustomerName)
	assert.Equal(t, "KA01AB0120", *patch.VehicleNumber)
}

func TestEditEmptySubmissionIsRejected(t *testing.T) {
	h := newHarness(t, 5, "staff")
	rr := h.post("/records/2/edit", url.Values{})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "At least one field must be provided")
	assert.Empty(t, h.api.updated)
}

func TestEditUnknownRecord(t *testing.T) {
	h := newHarness(t, 5, "staff")
	assert.Equal(t, http.StatusNotFound, h.get("/records/99/edit").Code)
	assert.Equal(t, http.StatusNotFound, h.get("/records/abc/edit").Code)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	h := newHarness(t, 5, "staff")
	rr := h.post("/records/3/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Empty(t, h.api.deleted)
	flash := h.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashError, flash.Kind)

	rr = h.get("/records/3/delete")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Customer 3")

	rr = h.post("/records/3/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/records?page=1", rr.Header().Get("Location"))
	assert.Equal(t, []int64{3}, h.api.deleted)
}

func TestDeleteCancel(t *testing.T) {
	h := newHarness(t, 5, "staff")
	require.Equal(t, http.StatusOK, h.get("/records/4/delete").Code)

	rr := h.post("/records/4/delete/cancel", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	rr = h.post("/records/4/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Empty(t, h.api.deleted)
}
