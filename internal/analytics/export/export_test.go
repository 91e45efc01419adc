package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/recordsapi"
)

func ptr(v float64) *float64 { return &v }

func TestWritePayoutsCSV(t *testing.T) {
	recs := []records.Record{
		{ID: 7, CustomerName: "Asha", VehicleNumber: "KA01AB0001", ExpiryDate: records.NewDate(2026, time.November, 2),
			TotalPremium: ptr(12000), TotalCommission: ptr(1800), CustomerDiscountedPremium: ptr(300)},
		{ID: 8, CustomerName: "Ravi, Jr.", VehicleNumber: "KA01AB0002"},
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WritePayoutsCSV(buf, recs))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"7", "Asha", "KA01AB0001", "", "2026-11-02", "12000.00", "1800.00", "300.00", "1500.00", "Completed"}, rows[1])
	assert.Equal(t, []string{"8", "Ravi, Jr.", "KA01AB0002", "", "", "", "", "", "", "Pending"}, rows[2])
}

func TestWriteMonthlyCSV(t *testing.T) {
	perf := recordsapi.MonthlyPerformance{
		Year:          2026,
		Data:          []recordsapi.MonthPoint{{Month: "Jan", Policies: 3, Revenue: 15000}, {Month: "Feb", Policies: 1, Revenue: 5000}},
		TotalPolicies: 4,
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteMonthlyCSV(buf, perf))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Jan", "3", "15000.00"}, rows[1])
	assert.Equal(t, []string{"Total", "4", ""}, rows[3])
}

func TestFilenames(t *testing.T) {
	assert.Equal(t, "WeCare_Payouts_2026-10-16.csv", PayoutsFilename(time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "WeCare_Monthly_Performance_2025.csv", MonthlyFilename(2025))
}
