package records

import "strings"

// Filter returns the records whose customer name or vehicle number contains
// term case-insensitively, or whose phone number contains term verbatim.
// A blank term returns every record. The input slice is never modified and
// relative order is preserved.
func Filter(records []Record, term string) []Record {
	trimmed := strings.TrimSpace(term)
	out := make([]Record, 0, len(records))
	if trimmed == "" {
		return append(out, records...)
	}
	lower := strings.ToLower(trimmed)
	for _, r := range records {
		if matches(r, lower, trimmed) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r Record, lower, raw string) bool {
	return strings.Contains(strings.ToLower(r.CustomerName), lower) ||
		strings.Contains(strings.ToLower(r.VehicleNumber), lower) ||
		strings.Contains(r.PhoneNumber, raw)
}

// IndexOf returns the position of id within records, or -1.
func IndexOf(records []Record, id int64) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
