// Package records holds the insurance record model and the list controller
// that backs the record screens.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and form format for calendar dates.
const DateLayout = "2006-01-02"

// Admin status labels.
const (
	StatusCompleted = "Completed"
	StatusPending   = "Pending"
)

// Urgency buckets a policy by days remaining until expiry.
type Urgency string

// Urgency levels.
const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Date is a calendar date without a time zone.
type Date struct {
	time.Time
}

// ParseDate parses YYYY-MM-DD. Blank input yields nil.
func ParseDate(value string) (*Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", value)
	}
	return &Date{Time: t}, nil
}

// NewDate builds a Date from a calendar day.
func NewDate(year int, month time.Month, day int) *Date {
	return &Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON writes the date as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY-MM-DD, a full timestamp or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	if len(raw) > len(DateLayout) {
		raw = raw[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Timestamp is a server timestamp that may or may not carry a zone offset.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON parses the formats emitted by the records API.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", raw)
}

// MarshalJSON writes RFC3339 or null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// Record is one insurance policy entry as returned by the records API.
type Record struct {
	ID                        int64      `json:"id"`
	UUID                      string     `json:"uuid,omitempty"`
	CustomerName              string     `json:"customerName"`
	PhoneNumber               string     `json:"phoneNumber"`
	VehicleNumber             string     `json:"vehicleNumber"`
	Company                   string     `json:"company"`
	PolicyStartDate           *Date      `json:"policyStartDate"`
	ExpiryDate                *Date      `json:"expiryDate"`
	TotalPremium              *float64   `json:"totalPremium"`
	TotalCommission           *float64   `json:"totalCommission"`
	CustomerDiscountedPremium *float64   `json:"customerDiscountedPremium"`
	RenewalNotified           bool       `json:"renewalNotified"`
	NotifiedAt                *Timestamp `json:"notifiedAt"`
	NotifiedNotes             string     `json:"notifiedNotes,omitempty"`
	CreatedAt                 *Timestamp `json:"createdAt"`
	UpdatedAt                 *Timestamp `json:"updatedAt,omitempty"`

	// Only populated on expiring-window responses.
	DaysUntilExpiry *int    `json:"daysUntilExpiry,omitempty"`
	Urgency         Urgency `json:"urgency,omitempty"`
}

// Payout returns commission minus customer discount. The boolean is false
// unless both amounts are present.
func Payout(r Record) (float64, bool) {
	if r.TotalCommission == nil || r.CustomerDiscountedPremium == nil {
		return 0, false
	}
	return *r.TotalCommission - *r.CustomerDiscountedPremium, true
}

// AdminStatus is Completed once a positive commission has been entered.
func AdminStatus(r Record) string {
	if r.TotalCommission != nil && *r.TotalCommission > 0 {
		return StatusCompleted
	}
	return StatusPending
}

// IsCompleted reports whether the admin financials are filled in.
func IsCompleted(r Record) bool {
	return AdminStatus(r) == StatusCompleted
}

// UrgencyFor buckets the remaining days into high/medium/low.
func UrgencyFor(days int) Urgency {
	switch {
	case days <= 7:
		return UrgencyHigh
	case days <= 15:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// DaysUntil counts whole calendar days from today to expiry.
func DaysUntil(expiry Date, today time.Time) int {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := expiry.Date()
	end := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// ExpiryInfo returns the days left and urgency for a record, preferring the
// values the API computed.
func ExpiryInfo(r Record, today time.Time) (int, Urgency) {
	days := 0
	switch {
	case r.DaysUntilExpiry != nil:
		days = *r.DaysUntilExpiry
	case r.ExpiryDate != nil:
		days = DaysUntil(*r.ExpiryDate, today)
	}
	urgency := r.Urgency
	if urgency == "" {
		urgency = UrgencyFor(days)
	}
	return days, urgency
}

// NormalizeVehicleNumber trims and upper-cases a vehicle registration.
func NormalizeVehicleNumber(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// Draft is a staff submission for a new record.
type Draft struct {
	CustomerName    string `json:"customerName"`
	PhoneNumber     string `json:"phoneNumber"`
	VehicleNumber   string `json:"vehicleNumber"`
	Company         string `json:"company"`
	PolicyStartDate *Date  `json:"policyStartDate"`
	ExpiryDate      *Date  `json:"expiryDate"`
}

// Normalize trims text fields and upper-cases the vehicle number.
func (d Draft) Normalize() Draft {
	d.CustomerName = strings.TrimSpace(d.CustomerName)
	d.PhoneNumber = strings.TrimSpace(d.PhoneNumber)
	d.VehicleNumber = NormalizeVehicleNumber(d.VehicleNumber)
	d.Company = strings.TrimSpace(d.Company)
	return d
}

// Patch carries the fields of an edit submission. Nil fields are not sent.
type Patch struct {
	CustomerName    *string `json:"customerName,omitempty"`
	PhoneNumber     *string `json:"phoneNumber,omitempty"`
	VehicleNumber   *string `json:"vehicleNumber,omitempty"`
	Company         *string `json:"company,omitempty"`
	PolicyStartDate *Date   `json:"policyStartDate,omitempty"`
	ExpiryDate      *Date   `json:"expiryDate,omitempty"`
}

// Normalize upper-cases the vehicle number when present.
func (p Patch) Normalize() Patch {
	if p.VehicleNumber != nil {
		v := NormalizeVehicleNumber(*p.VehicleNumber)
		p.VehicleNumber = &v
	}
	return p
}

// Empty reports whether no field carries a value.
func (p Patch) Empty() bool {
	for _, s := range []*string{p.CustomerName, p.PhoneNumber, p.VehicleNumber, p.Company} {
		if s != nil && strings.TrimSpace(*s) != "" {
			return false
		}
	}
	return p.PolicyStartDate == nil && p.ExpiryDate == nil
}

// PatchFrom builds a full edit submission from a record.
func PatchFrom(r Record) Patch {
	name, phone, vehicle, company := r.CustomerName, r.PhoneNumber, r.VehicleNumber, r.Company
	return Patch{
		CustomerName:    &name,
		PhoneNumber:     &phone,
		VehicleNumber:   &vehicle,
		Company:         &company,
		PolicyStartDate: r.PolicyStartDate,
		ExpiryDate:      r.ExpiryDate,
	}
}

// Financials are the admin-only amounts for a record.
type Financials struct {
	TotalPremium              float64 `json:"totalPremium"`
	TotalCommission           float64 `json:"totalCommission"`
	CustomerDiscountedPremium float64 `json:"customerDiscountedPremium"`
}

// Payout returns commission minus customer discount.
func (f Financials) Payout() float64 {
	return f.TotalCommission - f.CustomerDiscountedPremium
}

// FinancialsOf reads the stored amounts, treating absent values as zero.
func FinancialsOf(r Record) Financials {
	var f Financials
	if r.TotalPremium != nil {
		f.TotalPremium = *r.TotalPremium
	}
	if r.TotalCommission != nil {
		f.TotalCommission = *r.TotalCommission
	}
	if r.CustomerDiscountedPremium != nil {
		f.CustomerDiscountedPremium = *r.CustomerDiscountedPremium
	}
	return f
}

// ListQuery selects a page of records from the API.
type ListQuery struct {
	Search string
	Page   int
	Limit  int
}

// ListResult is the API's list envelope.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}
