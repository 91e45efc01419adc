package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatINR(t *testing.T) {
	cases := map[float64]string{
		0:          "₹0",
		2500:       "₹2,500",
		100000:     "₹1,00,000",
		1234567.5:  "₹12,34,567.50",
		-2500:      "-₹2,500",
		-1234567.5: "-₹12,34,567.50",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatINR(in), "amount %v", in)
	}
}

func TestFormatINRShort(t *testing.T) {
	assert.Equal(t, "₹15K", FormatINRShort(15000))
	assert.Equal(t, "₹30K", FormatINRShort(29600))
	assert.Equal(t, "₹1,235K", FormatINRShort(1234567))
	assert.Equal(t, "-₹3K", FormatINRShort(-2500))
	assert.Equal(t, "₹0K", FormatINRShort(-400))
}
