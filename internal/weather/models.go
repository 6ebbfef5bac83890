package weather

import (
	"fmt"
	"strconv"
	"time"
)

// Coordinate is a geographic position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns a canonical string key for indexing this coordinate in caches.
// Positions are rounded to 4 decimals (roughly 11 m), which is finer than any
// provider grid.
func (c Coordinate) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', 4, 64) + ":" + strconv.FormatFloat(c.Lon, 'f', 4, 64)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Query identifies the location of a current-weather request.
// Exactly one of City or Coord is set.
type Query struct {
	City  string      `json:"city,omitempty"`
	Coord *Coordinate `json:"coord,omitempty"`
}

// CityQuery builds a query by city name.
func CityQuery(name string) Query {
	return Query{City: name}
}

// CoordQuery builds a query by coordinates.
func CoordQuery(c Coordinate) Query {
	return Query{Coord: &c}
}

func (q Query) String() string {
	if q.Coord != nil {
		return q.Coord.String()
	}
	return q.City
}

// WeatherSnapshot is a complete, immutable reading of the current weather at a location.
type WeatherSnapshot struct {
	Name        string     `json:"name"`
	Country     string     `json:"country"`
	Sunrise     int64      `json:"sunrise"`
	Sunset      int64      `json:"sunset"`
	Temperature float64    `json:"temperatureC"`
	FeelsLike   float64    `json:"feelsLikeC"`
	Humidity    float64    `json:"humidityPercent"`
	Pressure    float64    `json:"pressureHpa"`
	Icon        string     `json:"icon"`
	Description string     `json:"description"`
	WindSpeed   float64    `json:"windSpeed"`
	UTCOffset   int        `json:"utcOffsetSeconds"`
	Coord       Coordinate `json:"coord"`
}

// ForecastSample is a single timestamped prediction.
// TempMin and TempMax carry the provider's per-sample range; after daily
// aggregation they hold the range observed across the whole day.
type ForecastSample struct {
	Time      time.Time `json:"time"` // always UTC
	Temp      float64   `json:"temperatureC"`
	TempMin   float64   `json:"tempMinC"`
	TempMax   float64   `json:"tempMaxC"`
	Humidity  float64   `json:"humidityPercent"`
	Pressure  float64   `json:"pressureHpa"`
	WindSpeed float64   `json:"windSpeed"`
	Icon      string    `json:"icon"`
}

// DailyBucket is the representative sample of one calendar day, with TempMin
// and TempMax overlaid by the extremes of every sample of that day.
type DailyBucket struct {
	Day time.Time `json:"day"` // midnight UTC
	ForecastSample
}

// ForecastView is the aggregated form of a forecast series.
type ForecastView struct {
	Daily  []DailyBucket    `json:"daily"`
	Hourly []ForecastSample `json:"hourly"`
}
