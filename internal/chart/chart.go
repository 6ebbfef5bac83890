// Package chart maps forecast series to 2-D plot geometry for the dashboard graphs.
package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Metric selects which forecast field is plotted.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricWind        Metric = "wind"
	MetricPressure    Metric = "pressure"
)

// ParseMetric returns the Metric named s.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricTemperature, MetricHumidity, MetricWind, MetricPressure:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", weather.ErrInvalidInput, s)
	}
}

// Unit returns the display suffix of the metric.
func (m Metric) Unit() string {
	switch m {
	case MetricTemperature:
		return "°C"
	case MetricHumidity:
		return "%"
	case MetricWind:
		return "m/s"
	case MetricPressure:
		return "hPa"
	default:
		return ""
	}
}

// Precision returns the number of decimals shown for the metric.
func (m Metric) Precision() int {
	if m == MetricWind {
		return 1
	}
	return 0
}

// Value extracts the metric from a forecast sample.
func (m Metric) Value(s weather.ForecastSample) float64 {
	switch m {
	case MetricHumidity:
		return s.Humidity
	case MetricWind:
		return s.WindSpeed
	case MetricPressure:
		return s.Pressure
	default:
		return s.Temp
	}
}

// Point is one (timestamp, value) pair of a series.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// PlotPoint is a point in drawing coordinates; y grows downwards.
type PlotPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scale is the value range of a graph axis.
type Scale struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Unit      string  `json:"unit"`
	Precision int     `json:"precision"`
}

// Series converts samples into points of the given metric.
func Series(samples []weather.ForecastSample, m Metric) []Point {
	out := make([]Point, 0, len(samples))
	for _, s := range samples {
		out = append(out, Point{Time: s.Time, Value: m.Value(s)})
	}
	return out
}

// Layout is the drawing area of a graph.
type Layout struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// DefaultLayout matches the dashboard's 680x220 SVG viewBox.
var DefaultLayout = Layout{Left: 40, Top: 20, Width: 600, Height: 160}

// Baseline is the y coordinate of the bottom edge of the drawing area.
func (l Layout) Baseline() float64 {
	return l.Top + l.Height
}

// Mapper maps series of one metric into a Layout.
type Mapper struct {
	Metric Metric
	Layout Layout
}

// NewMapper returns a Mapper for m using DefaultLayout.
func NewMapper(m Metric) Mapper {
	return Mapper{Metric: m, Layout: DefaultLayout}
}

// Scale computes the padded axis range of points. The result always has Max > Min.
func (mp Mapper) Scale(points []Point) Scale {
	sc := Scale{Unit: mp.Metric.Unit(), Precision: mp.Metric.Precision()}
	if len(points) == 0 {
		sc.Min, sc.Max = 0, 10
		return sc
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}

	switch mp.Metric {
	case MetricHumidity:
		sc.Min = math.Max(0, lo-5)
		sc.Max = math.Min(100, hi+5)
	case MetricWind:
		pad := 1.0
		if lo == hi {
			pad = 2
		}
		sc.Min = math.Max(0, lo-pad)
		sc.Max = hi + 2
	case MetricPressure:
		sc.Min = lo - 3
		sc.Max = hi + 3
	default:
		sc.Min = lo - 1.5
		sc.Max = hi + 1.5
	}

	if sc.Max <= sc.Min {
		sc.Max = sc.Min + 10
	}
	return sc
}

// PlotPoint places the index-th of count values. x is spaced evenly across the
// layout width; y is inverted so larger values are drawn higher.
func (mp Mapper) PlotPoint(index int, value float64, count int, sc Scale) PlotPoint {
	l := mp.Layout

	step := l.Width
	if count > 1 {
		step = l.Width / float64(count-1)
	}

	span := sc.Max - sc.Min
	if span == 0 {
		span = 10
	}

	return PlotPoint{
		X: l.Left + float64(index)*step,
		Y: l.Top + l.Height - (value-sc.Min)/span*l.Height,
	}
}

// Plot maps every point with a shared scale.
func (mp Mapper) Plot(points []Point, sc Scale) []PlotPoint {
	out := make([]PlotPoint, 0, len(points))
	for i, p := range points {
		out = append(out, mp.PlotPoint(i, p.Value, len(points), sc))
	}
	return out
}

// Polyline renders points as space-separated "x,y" pairs; empty for fewer than two points.
func Polyline(points []PlotPoint) string {
	if len(points) < 2 {
		return ""
	}
	pairs := make([]string, 0, len(points))
	for _, p := range points {
		pairs = append(pairs, pair(p.X, p.Y))
	}
	return strings.Join(pairs, " ")
}

// FilledPolygon closes the polyline down to baseline at the last and first x.
func FilledPolygon(points []PlotPoint, baseline float64) string {
	line := Polyline(points)
	if line == "" {
		return ""
	}
	first, last := points[0], points[len(points)-1]
	return line + " " + pair(last.X, baseline) + " " + pair(first.X, baseline)
}

// FormatLabel renders value with the metric's precision and unit.
func FormatLabel(value float64, m Metric) string {
	return strconv.FormatFloat(value, 'f', m.Precision(), 64) + m.Unit()
}

func pair(x, y float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64) + "," + strconv.FormatFloat(y, 'f', -1, 64)
}
