package svg

import (
	"strings"
	"testing"
)

func TestLineProducesSVG(t *testing.T) {
	html, err := Line(400, 200, []Point{{"Jan", 50000}, {"Feb", 150000}, {"Mar", 75000}}, LineOpts{
		Title:       "Revenue",
		Description: "Monthly revenue",
		ShowDots:    true,
	})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") {
		t.Fatalf("expected svg output, got %s", output)
	}
	if !strings.Contains(output, "<path") {
		t.Fatalf("expected path element in svg")
	}
	if !strings.Contains(output, "Feb: 1.5L") {
		t.Fatalf("expected lakh formatted point title")
	}
	if strings.Count(output, "<circle") != 3 {
		t.Fatalf("expected one dot per point")
	}
}

func TestFormatTick(t *testing.T) {
	cases := map[float64]string{
		0:          "0",
		500:        "500",
		2500:       "2.5K",
		100000:     "1L",
		25_000_000: "2.5Cr",
	}
	for in, want := range cases {
		if got := formatTick(in); got != want {
			t.Fatalf("formatTick(%v) = %q, want %q", in, got, want)
		}
	}
}
