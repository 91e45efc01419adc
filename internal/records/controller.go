package records

import (
	"context"
	"sync"

	"github.com/wecare-insurance/portal/internal/shared"
)

const (
	// DefaultPageSize is the records screen page size.
	DefaultPageSize = 100
	// FetchAllLimit is the page size used to pull the whole collection.
	FetchAllLimit = 10000
)

// PayoutPageSizes lists the page sizes offered on the payouts screen.
var PayoutPageSizes = []int{50, 100, 200, 500}

// API is the subset of the records service the controller depends on.
type API interface {
	List(ctx context.Context, q ListQuery) (ListResult, error)
	Create(ctx context.Context, d Draft) (Record, error)
	Update(ctx context.Context, id int64, p Patch) (Record, error)
	Delete(ctx context.Context, id int64) error
	SetFinancials(ctx context.Context, id int64, f Financials) (Record, error)
	MarkNotified(ctx context.Context, id int64, notes string) (Record, error)
	UnmarkNotified(ctx context.Context, id int64) (Record, error)
}

// Controller holds the fetched collection and the list state for one screen
// of one browser session. Operations are serialised by an internal mutex.
type Controller struct {
	api API

	mu            sync.Mutex
	all           []Record
	loaded        bool
	searchTerm    string
	currentPage   int
	pageSize      int
	pendingDelete *int64
}

// NewController builds a controller with the given page size.
func NewController(api API, pageSize int) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Controller{api: api, currentPage: 1, pageSize: pageSize}
}

// View is a consistent snapshot of the controller for rendering.
type View struct {
	Records       []Record
	Pagination    shared.Pagination
	Filtered      int
	Total         int
	SearchTerm    string
	PendingDelete *Record
}

// Refresh replaces the collection with a fresh fetch of every record.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// EnsureLoaded fetches the collection unless it has been fetched before.
func (c *Controller) EnsureLoaded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	return c.refreshLocked(ctx)
}

func (c *Controller) refreshLocked(ctx context.Context) error {
	res, err := c.api.List(ctx, ListQuery{Page: 1, Limit: FetchAllLimit})
	if err != nil {
		return err
	}
	c.all = append([]Record(nil), res.Records...)
	c.loaded = true
	return nil
}

// SetSearchTerm stores the term and returns to the first page.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchTerm = term
	c.currentPage = 1
}

// SearchTerm returns the active search term.
func (c *Controller) SearchTerm() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchTerm
}

// SetPage moves to page n. Values below one select the first page.
func (c *Controller) SetPage(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 {
		n = 1
	}
	c.currentPage = n
}

// CurrentPage returns the selected page.
func (c *Controller) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentPage
}

// SetPageSize changes the page size and returns to the first page.
func (c *Controller) SetPageSize(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if size <= 0 || size == c.pageSize {
		return
	}
	c.pageSize = size
	c.currentPage = 1
}

// PageSize returns the number of rows per page.
func (c *Controller) PageSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageSize
}

// Records returns a copy of the full fetched collection.
func (c *Controller) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.all...)
}

// Find looks a record up in the fetched collection.
func (c *Controller) Find(id int64) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := IndexOf(c.all, id); i >= 0 {
		return c.all[i], true
	}
	return Record{}, false
}

// Filtered returns the records matching the active search term.
func (c *Controller) Filtered() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Filter(c.all, c.searchTerm)
}

// VisiblePage returns the rows of the current page of the filtered list.
func (c *Controller) VisiblePage() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pageSlice(Filter(c.all, c.searchTerm), c.currentPage, c.pageSize)
}

// TotalPages returns the page count of the filtered list.
func (c *Controller) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPagesLocked()
}

func (c *Controller) totalPagesLocked() int {
	return shared.NewPagination(1, c.pageSize, len(Filter(c.all, c.searchTerm))).TotalPages
}

// Snapshot captures everything a list page renders.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	filtered := Filter(c.all, c.searchTerm)
	v := View{
		Records:    pageSlice(filtered, c.currentPage, c.pageSize),
		Pagination: shared.NewPagination(c.currentPage, c.pageSize, len(filtered)),
		Filtered:   len(filtered),
		Total:      len(c.all),
		SearchTerm: c.searchTerm,
	}
	if c.pendingDelete != nil {
		if i := IndexOf(c.all, *c.pendingDelete); i >= 0 {
			r := c.all[i]
			v.PendingDelete = &r
		}
	}
	return v
}

func pageSlice(filtered []Record, page, size int) []Record {
	start := (page - 1) * size
	if start < 0 {
		start = 0
	}
	if start >= len(filtered) {
		return []Record{}
	}
	end := start + size
	if end > len(filtered) {
		end = len(filtered)
	}
	return append([]Record(nil), filtered[start:end]...)
}

// Create validates and submits a new record, then refreshes.
func (c *Controller) Create(ctx context.Context, draft Draft) (Record, error) {
	draft = draft.Normalize()
	verr := &shared.ValidationError{}
	if draft.CustomerName == "" {
		verr.Add("customerName", "Customer name is required")
	}
	if draft.VehicleNumber == "" {
		verr.Add("vehicleNumber", "Vehicle number is required")
	}
	if verr.HasErrors() {
		return Record{}, verr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	created, err := c.api.Create(ctx, draft)
	if err != nil {
		return Record{}, err
	}
	return created, c.refreshLocked(ctx)
}

// Update submits an edit for a fetched record, refreshes, and moves to the
// page now holding the record.
func (c *Controller) Update(ctx context.Context, id int64, patch Patch) (Record, error) {
	patch = patch.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	if IndexOf(c.all, id) < 0 {
		return Record{}, shared.ErrNotFound
	}
	if patch.Empty() {
		return Record{}, shared.NewValidationError("", "At least one field must be provided")
	}
	updated, err := c.api.Update(ctx, id, patch)
	if err != nil {
		return Record{}, err
	}
	if err := c.refreshLocked(ctx); err != nil {
		return updated, err
	}
	if i := IndexOf(Filter(c.all, c.searchTerm), id); i >= 0 {
		c.currentPage = shared.PageOf(i, c.pageSize)
	}
	return updated, nil
}

// SelectForDelete marks a record as awaiting delete confirmation.
func (c *Controller) SelectForDelete(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if IndexOf(c.all, id) < 0 {
		return shared.ErrNotFound
	}
	c.pendingDelete = &id
	return nil
}

// PendingDelete returns the id awaiting confirmation, if any.
func (c *Controller) PendingDelete() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingDelete == nil {
		return 0, false
	}
	return *c.pendingDelete, true
}

// CancelDelete clears the delete selection.
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = nil
}

// ConfirmDelete deletes the selected record and refreshes. The current page
// falls back to the first when it no longer exists.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingDelete == nil {
		return shared.NewValidationError("", "No record selected for deletion")
	}
	if err := c.api.Delete(ctx, *c.pendingDelete); err != nil {
		return err
	}
	c.pendingDelete = nil
	if err := c.refreshLocked(ctx); err != nil {
		return err
	}
	if c.currentPage > c.totalPagesLocked() {
		c.currentPage = 1
	}
	return nil
}

// SetAdminFinancials stores the admin amounts for a record and refreshes.
func (c *Controller) SetAdminFinancials(ctx context.Context, id int64, f Financials) (Record, error) {
	if verr := ValidateFinancials(f); verr != nil {
		return Record{}, verr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	updated, err := c.api.SetFinancials(ctx, id, f)
	if err != nil {
		return Record{}, err
	}
	return updated, c.refreshLocked(ctx)
}

// ValidateFinancials rejects negative or non-numeric amounts.
func ValidateFinancials(f Financials) error {
	verr := &shared.ValidationError{}
	check := func(field string, v float64) {
		if !(v >= 0) {
			verr.Add(field, "Amount cannot be negative")
		}
	}
	check("totalPremium", f.TotalPremium)
	check("totalCommission", f.TotalCommission)
	check("customerDiscountedPremium", f.CustomerDiscountedPremium)
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// MarkNotified records that the customer was called about renewal.
func (c *Controller) MarkNotified(ctx context.Context, id int64, notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.api.MarkNotified(ctx, id, notes); err != nil {
		return err
	}
	return c.refreshLocked(ctx)
}

// UnmarkNotified clears the renewal notification flag.
func (c *Controller) UnmarkNotified(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.api.UnmarkNotified(ctx, id); err != nil {
		return err
	}
	return c.refreshLocked(ctx)
}
