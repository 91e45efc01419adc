package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/recordsapi"
)

// PayoutsFilename names a payouts CSV taken on day.
func PayoutsFilename(day time.Time) string {
	return fmt.Sprintf("WeCare_Payouts_%s.csv", day.Format(records.DateLayout))
}

// MonthlyFilename names the monthly performance CSV for a year.
func MonthlyFilename(year int) string {
	return fmt.Sprintf("WeCare_Monthly_Performance_%d.csv", year)
}

// WritePayoutsCSV serialises the admin payout table. Missing amounts are left
// blank and the payout column is empty until both inputs are present.
func WritePayoutsCSV(w io.Writer, recs []records.Record) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"ID", "Customer", "Vehicle", "Company", "Expiry", "Premium", "Commission", "Discounted Premium", "Payout", "Status"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, rec := range recs {
		expiry := ""
		if rec.ExpiryDate != nil {
			expiry = rec.ExpiryDate.String()
		}
		payout := ""
		if p, ok := records.Payout(rec); ok {
			payout = formatFloat(p)
		}
		if err := writer.Write([]string{
			strconv.FormatInt(rec.ID, 10),
			rec.CustomerName,
			rec.VehicleNumber,
			rec.Company,
			expiry,
			optional(rec.TotalPremium),
			optional(rec.TotalCommission),
			optional(rec.CustomerDiscountedPremium),
			payout,
			records.AdminStatus(rec),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMonthlyCSV emits the monthly performance series.
func WriteMonthlyCSV(w io.Writer, perf recordsapi.MonthlyPerformance) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Month", "Policies", "Revenue"}); err != nil {
		return err
	}
	for _, point := range perf.Data {
		if err := writer.Write([]string{
			point.Month,
			strconv.FormatInt(point.Policies, 10),
			formatFloat(point.Revenue),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"Total", strconv.FormatInt(perf.TotalPolicies, 10), ""}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
