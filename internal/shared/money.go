package shared

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders an amount in rupees with Indian digit grouping.
// Whole amounts carry no decimals.
func FormatINR(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	if v == math.Trunc(v) && v < math.MaxInt64 {
		return sign + "₹" + inrPrinter.Sprintf("%d", int64(v))
	}
	return sign + "₹" + inrPrinter.Sprintf("%.2f", v)
}

// FormatINRShort renders thousands as a K suffix, e.g. ₹15K.
func FormatINRShort(v float64) string {
	thousands := math.Round(math.Abs(v) / 1000)
	sign := ""
	if v < 0 && thousands > 0 {
		sign = "-"
	}
	return sign + "₹" + inrPrinter.Sprintf("%.0f", thousands) + "K"
}
