package recordsapi

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/shared"
)

// FinancialSummary is the API's aggregate over admin financials.
type FinancialSummary struct {
	TotalRevenue     float64 `json:"totalRevenue"`
	TotalRecords     int     `json:"totalRecords"`
	CompletedRecords int     `json:"completedRecords"`
	PendingRecords   int     `json:"pendingRecords"`
}

// MonthPoint is one month of the performance series.
type MonthPoint struct {
	Month    string  `json:"month"`
	Policies int64   `json:"policies"`
	Revenue  float64 `json:"revenue"`
}

// MonthlyPerformance is the per-month policy count and revenue for a year.
type MonthlyPerformance struct {
	Year          int          `json:"year"`
	Data          []MonthPoint `json:"data"`
	TotalPolicies int64        `json:"totalPolicies"`
}

// Export is a downloaded spreadsheet.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SetFinancials stores the admin amounts for a record.
func (c *Client) SetFinancials(ctx context.Context, id int64, f records.Financials) (records.Record, error) {
	var rec records.Record
	path := "/admin/insurance-records/" + strconv.FormatInt(id, 10) + "/financials"
	err := c.doEnvelope(ctx, "financials", http.MethodPut, path, f, &rec)
	return rec, err
}

// FinancialSummary fetches the admin totals.
func (c *Client) FinancialSummary(ctx context.Context) (FinancialSummary, error) {
	var summary FinancialSummary
	err := c.do(ctx, "financial_summary", http.MethodGet, "/admin/financial-summary", nil, nil, &summary)
	return summary, err
}

// MonthlyPerformance fetches the per-month series for year.
func (c *Client) MonthlyPerformance(ctx context.Context, year int) (MonthlyPerformance, error) {
	query := url.Values{}
	query.Set("year", strconv.Itoa(year))
	var perf MonthlyPerformance
	err := c.do(ctx, "monthly_performance", http.MethodGet, "/analytics/monthly-performance", query, nil, &perf)
	return perf, err
}

// PoliciesCount returns the number of live policies.
func (c *Client) PoliciesCount(ctx context.Context) (int64, error) {
	var res struct {
		TotalPolicies int64 `json:"totalPolicies"`
	}
	err := c.do(ctx, "policies_count", http.MethodGet, "/analytics/policies-count", nil, nil, &res)
	return res.TotalPolicies, err
}

// ExportExcel downloads the full spreadsheet export.
func (c *Client) ExportExcel(ctx context.Context) (Export, error) {
	resp, err := c.send(ctx, "export_excel", http.MethodGet, "/export/excel", nil, nil)
	if err != nil {
		return Export{}, err
	}
	if len(resp.body) == 0 {
		return Export{}, &shared.ServerError{Op: "export_excel", Status: resp.status, Message: "empty export"}
	}
	out := Export{
		Filename:    DefaultExportFilename(time.Now()),
		ContentType: resp.header.Get("Content-Type"),
		Body:        resp.body,
	}
	if out.ContentType == "" {
		out.ContentType = xlsxContentType
	}
	if cd := resp.header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			out.Filename = params["filename"]
		}
	}
	return out, nil
}

// DefaultExportFilename names an export taken on day.
func DefaultExportFilename(day time.Time) string {
	return fmt.Sprintf("WeCare_Insurance_Records_%s.xlsx", day.Format("2006-01-02"))
}
