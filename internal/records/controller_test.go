package records

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wecare-insurance/portal/internal/shared"
)

type fakeAPI struct {
	records []Record
	nextID  int64

	listErr   error
	listCalls int
	calls     []string

	failListAfter int
}

func newFakeAPI(records ...Record) *fakeAPI {
	api := &fakeAPI{records: records, nextID: 1000}
	return api
}

func (f *fakeAPI) List(ctx context.Context, q ListQuery) (ListResult, error) {
	f.listCalls++
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return ListResult{}, f.listErr
	}
	if f.failListAfter > 0 && f.listCalls > f.failListAfter {
		return ListResult{}, &shared.NetworkError{Op: "list", Err: errors.New("connection refused")}
	}
	out := Filter(f.records, q.Search)
	return ListResult{Records: out, Total: len(out)}, nil
}

func (f *fakeAPI) Create(ctx context.Context, d Draft) (Record, error) {
	f.calls = append(f.calls, "create")
	f.nextID++
	r := Record{ID: f.nextID, CustomerName: d.CustomerName, VehicleNumber: d.VehicleNumber, PhoneNumber: d.PhoneNumber}
	f.records = append(f.records, r)
	return r, nil
}

func (f *fakeAPI) Update(ctx context.Context, id int64, p Patch) (Record, error) {
	f.calls = append(f.calls, "update")
	i := IndexOf(f.records, id)
	if i < 0 {
		return Record{}, &shared.ServerError{Op: "update", Status: 404}
	}
	if p.CustomerName != nil {
		f.records[i].CustomerName = *p.CustomerName
	}
	if p.VehicleNumber != nil {
		f.records[i].VehicleNumber = *p.VehicleNumber
	}
	return f.records[i], nil
}

func (f *fakeAPI) Delete(ctx context.Context, id int64) error {
	f.calls = append(f.calls, "delete")
	i := IndexOf(f.records, id)
	if i < 0 {
		return &shared.ServerError{Op: "delete", Status: 404}
	}
	f.records = append(f.records[:i], f.records[i+1:]...)
	return nil
}

func (f *fakeAPI) SetFinancials(ctx context.Context, id int64, fin Financials) (Record, error) {
	f.calls = append(f.calls, "financials")
	i := IndexOf(f.records, id)
	if i < 0 {
		return Record{}, &shared.ServerError{Op: "financials", Status: 404}
	}
	f.records[i].TotalPremium = &fin.TotalPremium
	f.records[i].TotalCommission = &fin.TotalCommission
	f.records[i].CustomerDiscountedPremium = &fin.CustomerDiscountedPremium
	return f.records[i], nil
}

func (f *fakeAPI) MarkNotified(ctx context.Context, id int64, notes string) (Record, error) {
	f.calls = append(f.calls, "notify")
	i := IndexOf(f.records, id)
	if i < 0 {
		return Record{}, &shared.ServerError{Op: "notify", Status: 404}
	}
	f.records[i].RenewalNotified = true
	f.records[i].NotifiedNotes = notes
	return f.records[i], nil
}

func (f *fakeAPI) UnmarkNotified(ctx context.Context, id int64) (Record, error) {
	f.calls = append(f.calls, "unnotify")
	i := IndexOf(f.records, id)
	if i < 0 {
		return Record{}, &shared.ServerError{Op: "unnotify", Status: 404}
	}
	f.records[i].RenewalNotified = false
	f.records[i].NotifiedNotes = ""
	return f.records[i], nil
}

func seqRecords(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{ID: int64(i + 1), CustomerName: fmt.Sprintf("Customer %03d", i+1), VehicleNumber: fmt.Sprintf("KA01AB%04d", i+1)}
	}
	return out
}

func TestRefreshReplacesCollection(t *testing.T) {
	api := newFakeAPI(seqRecords(3)...)
	ctrl := NewController(api, DefaultPageSize)

	require.NoError(t, ctrl.Refresh(context.Background()))
	assert.Len(t, ctrl.Records(), 3)

	api.records = seqRecords(5)
	require.NoError(t, ctrl.Refresh(context.Background()))
	assert.Len(t, ctrl.Records(), 5)
}

func TestRefreshFailureKeepsRecords(t *testing.T) {
	api := newFakeAPI(seqRecords(2)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))

	api.listErr = &shared.NetworkError{Op: "list", Err: errors.New("dial tcp: refused")}
	err := ctrl.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrNetwork)
	assert.Len(t, ctrl.Records(), 2)
}

func TestEnsureLoadedFetchesOnce(t *testing.T) {
	api := newFakeAPI(seqRecords(2)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.EnsureLoaded(context.Background()))
	require.NoError(t, ctrl.EnsureLoaded(context.Background()))
	assert.Equal(t, 1, api.listCalls)
}

func TestPaginationReconstructsFilteredList(t *testing.T) {
	api := newFakeAPI(seqRecords(250)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))

	require.Equal(t, 3, ctrl.TotalPages())
	var joined []Record
	for p := 1; p <= ctrl.TotalPages(); p++ {
		ctrl.SetPage(p)
		joined = append(joined, ctrl.VisiblePage()...)
	}
	assert.Equal(t, ctrl.Filtered(), joined)

	ctrl.SetPage(3)
	assert.Len(t, ctrl.VisiblePage(), 50)
	ctrl.SetPage(9)
	assert.Empty(t, ctrl.VisiblePage())
}

func TestTotalPagesEdgeCases(t *testing.T) {
	ctrl := NewController(newFakeAPI(), DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	assert.Equal(t, 0, ctrl.TotalPages())

	ctrl = NewController(newFakeAPI(seqRecords(7)...), DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	assert.Equal(t, 1, ctrl.TotalPages())

	ctrl = NewController(newFakeAPI(seqRecords(100)...), DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	assert.Equal(t, 1, ctrl.TotalPages())
}

func TestSetSearchTermResetsPage(t *testing.T) {
	ctrl := NewController(newFakeAPI(seqRecords(250)...), DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	ctrl.SetPage(3)

	ctrl.SetSearchTerm("customer 01")
	assert.Equal(t, 1, ctrl.CurrentPage())
	assert.Len(t, ctrl.Filtered(), 10)
}

func TestCreateValidationSkipsNetwork(t *testing.T) {
	api := newFakeAPI()
	ctrl := NewController(api, DefaultPageSize)

	_, err := ctrl.Create(context.Background(), Draft{CustomerName: "  ", VehicleNumber: ""})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "customerName")
	assert.Contains(t, verr.Fields(), "vehicleNumber")
	assert.Empty(t, api.calls)
}

func TestCreateNormalizesAndRefreshes(t *testing.T) {
	api := newFakeAPI()
	ctrl := NewController(api, DefaultPageSize)

	created, err := ctrl.Create(context.Background(), Draft{CustomerName: "Ravi", VehicleNumber: " ka01ab1234 "})
	require.NoError(t, err)
	assert.Equal(t, "KA01AB1234", created.VehicleNumber)
	assert.Equal(t, []string{"create", "list"}, api.calls)
	assert.Len(t, ctrl.Records(), 1)
}

func TestUpdateMovesToRecordPage(t *testing.T) {
	api := newFakeAPI(seqRecords(250)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))

	target := ctrl.Records()[150]
	name := "Updated Name"
	_, err := ctrl.Update(context.Background(), target.ID, Patch{CustomerName: &name})
	require.NoError(t, err)
	assert.Equal(t, 2, ctrl.CurrentPage())

	rec, ok := ctrl.Find(target.ID)
	require.True(t, ok)
	assert.Equal(t, "Updated Name", rec.CustomerName)
}

func TestUpdateUnknownRecord(t *testing.T) {
	api := newFakeAPI(seqRecords(2)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	api.calls = nil

	name := "x"
	_, err := ctrl.Update(context.Background(), 999, Patch{CustomerName: &name})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, api.calls)
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	api := newFakeAPI(seqRecords(2)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	api.calls = nil

	blank := " "
	_, err := ctrl.Update(context.Background(), 1, Patch{CustomerName: &blank})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, api.calls)
}

func TestUpdateRefreshFailureKeepsStaleState(t *testing.T) {
	api := newFakeAPI(seqRecords(250)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	ctrl.SetPage(3)
	api.failListAfter = 1

	name := "Changed"
	_, err := ctrl.Update(context.Background(), 10, Patch{CustomerName: &name})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrNetwork)
	assert.Equal(t, 3, ctrl.CurrentPage())
	rec, ok := ctrl.Find(10)
	require.True(t, ok)
	assert.Equal(t, "Customer 010", rec.CustomerName)
}

func TestConfirmDeleteWithoutSelection(t *testing.T) {
	api := newFakeAPI(seqRecords(2)...)
	ctrl := NewController(api, DefaultPageSize)

	err := ctrl.ConfirmDelete(context.Background())
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, api.calls)
}

func TestCancelDeleteClearsSelection(t *testing.T) {
	ctrl := NewController(newFakeAPI(seqRecords(2)...), DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	require.NoError(t, ctrl.SelectForDelete(2))

	id, ok := ctrl.PendingDelete()
	require.True(t, ok)
	assert.Equal(t, int64(2), id)

	ctrl.CancelDelete()
	_, ok = ctrl.PendingDelete()
	assert.False(t, ok)
	assert.ErrorIs(t, ctrl.SelectForDelete(42), shared.ErrNotFound)
}

func TestDeleteLastRecordOfLastPageResetsPage(t *testing.T) {
	api := newFakeAPI(seqRecords(101)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	ctrl.SetPage(2)
	require.Len(t, ctrl.VisiblePage(), 1)

	require.NoError(t, ctrl.SelectForDelete(101))
	require.NoError(t, ctrl.ConfirmDelete(context.Background()))

	assert.Equal(t, 1, ctrl.CurrentPage())
	assert.Equal(t, 1, ctrl.TotalPages())
	_, pending := ctrl.PendingDelete()
	assert.False(t, pending)
}

func TestSearchThenDeleteScenario(t *testing.T) {
	api := newFakeAPI(
		Record{ID: 1, CustomerName: "John Smith", VehicleNumber: "KA01AB1234", PhoneNumber: "9876543210"},
		Record{ID: 2, CustomerName: "Jane Doe", VehicleNumber: "KA02CD5678", PhoneNumber: "9123456780"},
		Record{ID: 3, CustomerName: "Sam Smithers", VehicleNumber: "MH12EF0001", PhoneNumber: "9000000000"},
	)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))

	ctrl.SetSearchTerm("smith")
	assert.Equal(t, []int64{1, 3}, ids(ctrl.VisiblePage()))

	ctrl.SetSearchTerm("ka-0")
	assert.Empty(t, ctrl.VisiblePage())
	assert.Equal(t, 0, ctrl.TotalPages())

	ctrl.SetSearchTerm("ka0")
	assert.Equal(t, []int64{1, 2}, ids(ctrl.VisiblePage()))

	require.NoError(t, ctrl.SelectForDelete(2))
	require.NoError(t, ctrl.ConfirmDelete(context.Background()))
	assert.Equal(t, []int64{1}, ids(ctrl.VisiblePage()))
	assert.Len(t, ctrl.Records(), 2)
}

func TestSetAdminFinancials(t *testing.T) {
	api := newFakeAPI(seqRecords(1)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))

	_, err := ctrl.SetAdminFinancials(context.Background(), 1, Financials{TotalPremium: 10000, TotalCommission: 2000, CustomerDiscountedPremium: 500})
	require.NoError(t, err)

	rec, ok := ctrl.Find(1)
	require.True(t, ok)
	payout, ok := Payout(rec)
	require.True(t, ok)
	assert.InDelta(t, 1500, payout, 0.0001)
	assert.Equal(t, StatusCompleted, AdminStatus(rec))
}

func TestSetAdminFinancialsRejectsNegative(t *testing.T) {
	api := newFakeAPI(seqRecords(1)...)
	ctrl := NewController(api, DefaultPageSize)

	_, err := ctrl.SetAdminFinancials(context.Background(), 1, Financials{TotalPremium: 100, TotalCommission: -1})
	require.Error(t, err)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "totalCommission")
	assert.Empty(t, api.calls)
}

func TestNotifyToggles(t *testing.T) {
	api := newFakeAPI(seqRecords(1)...)
	ctrl := NewController(api, DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))

	require.NoError(t, ctrl.MarkNotified(context.Background(), 1, "called, will renew"))
	require.NoError(t, ctrl.MarkNotified(context.Background(), 1, "called, will renew"))
	rec, _ := ctrl.Find(1)
	assert.True(t, rec.RenewalNotified)
	assert.Equal(t, "called, will renew", rec.NotifiedNotes)

	require.NoError(t, ctrl.UnmarkNotified(context.Background(), 1))
	rec, _ = ctrl.Find(1)
	assert.False(t, rec.RenewalNotified)
}

func TestSetPageSizeResetsPage(t *testing.T) {
	ctrl := NewController(newFakeAPI(seqRecords(300)...), DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	ctrl.SetPage(3)

	ctrl.SetPageSize(200)
	assert.Equal(t, 1, ctrl.CurrentPage())
	assert.Equal(t, 2, ctrl.TotalPages())
}

func TestSnapshot(t *testing.T) {
	ctrl := NewController(newFakeAPI(seqRecords(120)...), DefaultPageSize)
	require.NoError(t, ctrl.Refresh(context.Background()))
	ctrl.SetSearchTerm("customer 1")
	require.NoError(t, ctrl.SelectForDelete(100))

	view := ctrl.Snapshot()
	assert.Equal(t, 120, view.Total)
	assert.Equal(t, 21, view.Filtered)
	assert.Equal(t, 1, view.Pagination.TotalPages)
	require.NotNil(t, view.PendingDelete)
	assert.Equal(t, int64(100), view.PendingDelete.ID)
}

func ids(records []Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
