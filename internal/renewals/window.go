package renewals

import (
	"context"

	"github.com/wecare-insurance/portal/internal/records"
	recordshttp "github.com/wecare-insurance/portal/internal/records/http"
	"github.com/wecare-insurance/portal/internal/recordsapi"
)

// WindowAPI lists the renewal window instead of the whole collection, so a
// controller built on it refreshes the call list after every notification.
type WindowAPI struct {
	*recordsapi.Client
	Days int
}

// List returns the policies expiring within the window.
func (w WindowAPI) List(ctx context.Context, _ records.ListQuery) (records.ListResult, error) {
	days := w.Days
	if days <= 0 {
		days = DefaultWindowDays
	}
	return w.Client.GetExpiring(ctx, days)
}

var _ records.API = WindowAPI{}

// NewSource builds controllers that list only the renewal window.
func NewSource(registry *records.Registry, client *recordsapi.Client, days int) recordshttp.Source {
	return recordshttp.Source{
		Registry: registry,
		NewAPI: func(token string) records.API {
			return WindowAPI{Client: client.WithToken(token), Days: days}
		},
	}
}
