// Package renewals covers the expiring-policy window: call list, renewal
// notifications and the summary shared with the dashboard.
package renewals

import (
	"time"

	"github.com/wecare-insurance/portal/internal/records"
)

// DefaultWindowDays is the look-ahead used when none is configured.
const DefaultWindowDays = 30

// Summary counts the policies in the renewal window.
type Summary struct {
	WindowDays int       `json:"windowDays"`
	Total      int       `json:"total"`
	Pending    int       `json:"pending"`
	Notified   int       `json:"notified"`
	High       int       `json:"high"`
	Medium     int       `json:"medium"`
	Low        int       `json:"low"`
	ScannedAt  time.Time `json:"scannedAt"`
}

// ByUrgency returns the counts keyed by urgency label.
func (s Summary) ByUrgency() map[string]int {
	return map[string]int{
		string(records.UrgencyHigh):   s.High,
		string(records.UrgencyMedium): s.Medium,
		string(records.UrgencyLow):    s.Low,
	}
}

// Row is one line of the call list.
type Row struct {
	records.Record
	DaysLeft int
	Level    records.Urgency
}

// Rows annotates records with days left and urgency.
func Rows(recs []records.Record, today time.Time) []Row {
	out := make([]Row, 0, len(recs))
	for _, r := range recs {
		days, urgency := records.ExpiryInfo(r, today)
		out = append(out, Row{Record: r, DaysLeft: days, Level: urgency})
	}
	return out
}

// Summarize computes the window statistics.
func Summarize(recs []records.Record, today time.Time, windowDays int) Summary {
	s := Summary{WindowDays: windowDays, Total: len(recs), ScannedAt: today}
	for _, r := range recs {
		if r.RenewalNotified {
			s.Notified++
		} else {
			s.Pending++
		}
		_, urgency := records.ExpiryInfo(r, today)
		switch urgency {
		case records.UrgencyHigh:
			s.High++
		case records.UrgencyMedium:
			s.Medium++
		default:
			s.Low++
		}
	}
	return s
}
