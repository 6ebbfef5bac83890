package chart

import (
	"time"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// GraphPoint is a plotted sample with its display label.
type GraphPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Label string    `json:"label"`
	PlotPoint
}

// Graph is everything the rendering layer needs to draw one metric.
type Graph struct {
	Metric   Metric       `json:"metric"`
	Scale    Scale        `json:"scale"`
	Points   []GraphPoint `json:"points"`
	Polyline string       `json:"polyline"`
	Polygon  string       `json:"polygon"`
	Baseline float64      `json:"baseline"`
}

// Build computes the graph of samples for the mapper's metric.
func (mp Mapper) Build(samples []weather.ForecastSample) Graph {
	series := Series(samples, mp.Metric)
	sc := mp.Scale(series)
	plotted := mp.Plot(series, sc)

	points := make([]GraphPoint, 0, len(series))
	for i, p := range series {
		points = append(points, GraphPoint{
			Time:      p.Time,
			Value:     p.Value,
			Label:     FormatLabel(p.Value, mp.Metric),
			PlotPoint: plotted[i],
		})
	}

	baseline := mp.Layout.Baseline()
	return Graph{
		Metric:   mp.Metric,
		Scale:    sc,
		Points:   points,
		Polyline: Polyline(plotted),
		Polygon:  FilledPolygon(plotted, baseline),
		Baseline: baseline,
	}
}
