package weather

import (
	"context"
	"time"
)

// Client abstracts a weather data source (e.g. OpenWeatherMap, Open-Meteo).
// All values are metric.
type Client interface {
	Name() string
	// FetchCurrentWeather fails with ErrNotFound if the location is
	// unresolvable and ErrNetwork otherwise.
	FetchCurrentWeather(ctx context.Context, q Query) (WeatherSnapshot, error)
	// FetchForecast returns samples in chronological order. An empty list
	// is a valid result.
	FetchForecast(ctx context.Context, c Coordinate) ([]ForecastSample, error)
}

// Geolocator reports the position of the device running the dashboard.
type Geolocator interface {
	// CurrentPosition fails with ErrPermissionDenied or ErrUnsupported.
	CurrentPosition(ctx context.Context) (Coordinate, error)
}

// ResponseCache is the contract the replay cache backends (memory, Redis) must satisfy.
// A miss is reported with ok == false, never as an error.
type ResponseCache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
