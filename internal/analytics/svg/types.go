package svg

// Point is one labelled value of a chart series.
type Point struct {
	Label string
	Value float64
}

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	StrokeColor string
	FillColor   string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
	// FormatTick labels the y axis. Defaults to Indian short units.
	FormatTick func(float64) string
}

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title       string
	Description string
	SeriesLabel string
	Color       string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
	// ShowValues prints each value above its bar.
	ShowValues bool
}

// Defaults for the dashboard charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 260
	DefaultPadding = 32.0
	DefaultTicks   = 5
)
