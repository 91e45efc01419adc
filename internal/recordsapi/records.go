package recordsapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wecare-insurance/portal/internal/records"
)

var _ records.API = (*Client)(nil)

type notifyRequest struct {
	Notes string `json:"notes"`
}

func recordPath(id int64) string {
	return "/insurance-records/" + strconv.FormatInt(id, 10)
}

// List fetches a page of records matching q.
func (c *Client) List(ctx context.Context, q records.ListQuery) (records.ListResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = records.FetchAllLimit
	}
	query := url.Values{}
	query.Set("search", q.Search)
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var res records.ListResult
	if err := c.do(ctx, "list", http.MethodGet, "/insurance-records", query, nil, &res); err != nil {
		return records.ListResult{}, err
	}
	if res.Records == nil {
		res.Records = []records.Record{}
	}
	return res, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, id int64) (records.Record, error) {
	var rec records.Record
	err := c.do(ctx, "get", http.MethodGet, recordPath(id), nil, nil, &rec)
	return rec, err
}

// GetExpiring lists records expiring within the next days days.
func (c *Client) GetExpiring(ctx context.Context, days int) (records.ListResult, error) {
	query := url.Values{}
	query.Set("days", strconv.Itoa(days))
	var res records.ListResult
	if err := c.do(ctx, "expiring", http.MethodGet, "/insurance-records/expiring", query, nil, &res); err != nil {
		return records.ListResult{}, err
	}
	if res.Records == nil {
		res.Records = []records.Record{}
	}
	return res, nil
}

// Create submits a new record.
func (c *Client) Create(ctx context.Context, d records.Draft) (records.Record, error) {
	var rec records.Record
	err := c.doEnvelope(ctx, "create", http.MethodPost, "/insurance-records", d, &rec)
	return rec, err
}

// Update applies an edit to a record.
func (c *Client) Update(ctx context.Context, id int64, p records.Patch) (records.Record, error) {
	var rec records.Record
	err := c.doEnvelope(ctx, "update", http.MethodPut, recordPath(id), p, &rec)
	return rec, err
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.doEnvelope(ctx, "delete", http.MethodDelete, recordPath(id), nil, nil)
}

// MarkNotified flags the record as contacted about renewal.
func (c *Client) MarkNotified(ctx context.Context, id int64, notes string) (records.Record, error) {
	var rec records.Record
	err := c.doEnvelope(ctx, "notify", http.MethodPut, recordPath(id)+"/notify", notifyRequest{Notes: notes}, &rec)
	return rec, err
}

// UnmarkNotified reverts the renewal notification flag.
func (c *Client) UnmarkNotified(ctx context.Context, id int64) (records.Record, error) {
	var rec records.Record
	err := c.doEnvelope(ctx, "unnotify", http.MethodPut, recordPath(id)+"/unnotify", nil, &rec)
	return rec, err
}
