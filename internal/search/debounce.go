// Package search implements the debounced global record search.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wecare-insurance/portal/internal/records"
)

// ErrSuperseded is returned to a caller whose query was replaced by a newer
// one before its result could be delivered.
var ErrSuperseded = errors.New("search: superseded by a newer query")

const (
	// DefaultDelay is the quiet window before a query is sent.
	DefaultDelay = 300 * time.Millisecond
	// MinLength is the shortest query that reaches the API.
	MinLength = 2
	// ResultLimit caps the number of results per query.
	ResultLimit = 50
)

// FetchFunc runs one search against the records API.
type FetchFunc func(ctx context.Context, q records.ListQuery) (records.ListResult, error)

// Result is the outcome of a delivered query.
type Result struct {
	Query   string
	Records []records.Record
	Total   int
}

// Debouncer delivers only the latest of a burst of queries. Every submission
// bumps the generation; a waiting submission is released with ErrSuperseded
// when a newer one arrives, and a fetched result is dropped if the generation
// moved on while the request was in flight.
type Debouncer struct {
	delay time.Duration

	mu         sync.Mutex
	generation uint64
	waiting    chan struct{}
}

// NewDebouncer returns a debouncer with the given quiet window.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay}
}

// Search submits term and blocks until it is either delivered or superseded.
// Terms shorter than MinLength clear the results without a fetch.
func (d *Debouncer) Search(ctx context.Context, term string, fetch FetchFunc) (Result, error) {
	term = strings.TrimSpace(term)
	gen, released := d.submit()

	if utf8.RuneCountInString(term) < MinLength {
		return Result{Query: term, Records: []records.Record{}}, nil
	}

	timer := time.NewTimer(d.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-released:
		return Result{}, ErrSuperseded
	case <-timer.C:
	}

	res, err := fetch(ctx, records.ListQuery{Search: term, Page: 1, Limit: ResultLimit})
	if !d.current(gen) {
		return Result{}, ErrSuperseded
	}
	if err != nil {
		return Result{}, err
	}
	out := res.Records
	if out == nil {
		out = []records.Record{}
	}
	if len(out) > ResultLimit {
		out = out[:ResultLimit]
	}
	return Result{Query: term, Records: out, Total: res.Total}, nil
}

// Generation returns the number of submissions seen so far.
func (d *Debouncer) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

func (d *Debouncer) submit() (uint64, <-chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	if d.waiting != nil {
		close(d.waiting)
	}
	d.waiting = make(chan struct{})
	return d.generation, d.waiting
}

func (d *Debouncer) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation == gen
}
