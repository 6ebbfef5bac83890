package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	openMeteoForecastURL  = "https://api.open-meteo.com/v1/forecast"
	openMeteoGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

	openMeteoHourlyFields  = "temperature_2m,relative_humidity_2m,surface_pressure,wind_speed_10m,weather_code,is_day"
	openMeteoCurrentFields = "temperature_2m,apparent_temperature,relative_humidity_2m,surface_pressure,wind_speed_10m,weather_code,is_day"
)

// OpenMeteoProvider implements the weather.Client interface for Open-Meteo.
// It needs no API key; city names are resolved through the Open-Meteo
// geocoding endpoint.
type OpenMeteoProvider struct {
	name         string
	forecastURL  string
	geocodingURL string
	hourStep     int
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:         "openmeteo",
		forecastURL:  openMeteoForecastURL,
		geocodingURL: openMeteoGeocodingURL,
		// Hourly data is thinned to the 3-hour spacing other providers use.
		hourStep: 3,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

// WithBaseURLs points the provider at other endpoints (e.g. a test server).
func (p *OpenMeteoProvider) WithBaseURLs(forecastURL, geocodingURL string) *OpenMeteoProvider {
	p.forecastURL = forecastURL
	p.geocodingURL = geocodingURL
	return p
}

// WithBackoff overrides the retry policy.
func (p *OpenMeteoProvider) WithBackoff(b BackoffConfig) *OpenMeteoProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoPlace struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CountryCode string  `json:"country_code"`
}

type openMeteoPayload struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Current          struct {
		Temperature float64 `json:"temperature_2m"`
		Apparent    float64 `json:"apparent_temperature"`
		Humidity    float64 `json:"relative_humidity_2m"`
		Pressure    float64 `json:"surface_pressure"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
		IsDay       int     `json:"is_day"`
	} `json:"current"`
	Hourly struct {
		Time        []int64   `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
		Humidity    []float64 `json:"relative_humidity_2m"`
		Pressure    []float64 `json:"surface_pressure"`
		WindSpeed   []float64 `json:"wind_speed_10m"`
		WeatherCode []int     `json:"weather_code"`
		IsDay       []int     `json:"is_day"`
	} `json:"hourly"`
	Daily struct {
		Time    []int64 `json:"time"`
		Sunrise []int64 `json:"sunrise"`
		Sunset  []int64 `json:"sunset"`
	} `json:"daily"`
}

func (p *OpenMeteoProvider) FetchCurrentWeather(ctx context.Context, q weather.Query) (weather.WeatherSnapshot, error) {
	place := openMeteoPlace{}
	if q.Coord != nil {
		place.Name = q.Coord.String()
		place.Latitude = q.Coord.Lat
		place.Longitude = q.Coord.Lon
	} else {
		resolved, err := p.resolveCity(ctx, q.City)
		if err != nil {
			return weather.WeatherSnapshot{}, err
		}
		place = resolved
	}

	values := coordinateValues(place.Latitude, place.Longitude)
	values.Set("current", openMeteoCurrentFields)
	values.Set("daily", "sunrise,sunset")
	values.Set("forecast_days", "1")

	var payload openMeteoPayload
	if err := p.getJSON(ctx, p.forecastURL, values, &payload); err != nil {
		return weather.WeatherSnapshot{}, err
	}

	icon, desc := mapOpenMeteoCondition(payload.Current.WeatherCode, payload.Current.IsDay == 1)
	snap := weather.WeatherSnapshot{
		Name:        place.Name,
		Country:     place.CountryCode,
		Temperature: payload.Current.Temperature,
		FeelsLike:   payload.Current.Apparent,
		Humidity:    payload.Current.Humidity,
		Pressure:    payload.Current.Pressure,
		Icon:        icon,
		Description: desc,
		WindSpeed:   payload.Current.WindSpeed,
		UTCOffset:   payload.UTCOffsetSeconds,
		Coord:       weather.Coordinate{Lat: place.Latitude, Lon: place.Longitude},
	}
	if len(payload.Daily.Sunrise) > 0 && len(payload.Daily.Sunset) > 0 {
		snap.Sunrise = payload.Daily.Sunrise[0]
		snap.Sunset = payload.Daily.Sunset[0]
	}
	return snap, nil
}

func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, c weather.Coordinate) ([]weather.ForecastSample, error) {
	values := coordinateValues(c.Lat, c.Lon)
	values.Set("hourly", openMeteoHourlyFields)
	values.Set("forecast_days", "6")

	var payload openMeteoPayload
	if err := p.getJSON(ctx, p.forecastURL, values, &payload); err != nil {
		return nil, err
	}

	h := payload.Hourly
	n := len(h.Time)
	for _, l := range []int{len(h.Temperature), len(h.Humidity), len(h.Pressure), len(h.WindSpeed), len(h.WeatherCode)} {
		if l < n {
			n = l
		}
	}

	step := p.hourStep
	if step <= 0 {
		step = 1
	}

	samples := make([]weather.ForecastSample, 0, n/step+1)
	for i := 0; i < n; i += step {
		isDay := i < len(h.IsDay) && h.IsDay[i] == 1
		icon, _ := mapOpenMeteoCondition(h.WeatherCode[i], isDay)
		samples = append(samples, weather.ForecastSample{
			Time:      time.Unix(h.Time[i], 0).UTC(),
			Temp:      h.Temperature[i],
			TempMin:   h.Temperature[i],
			TempMax:   h.Temperature[i],
			Humidity:  h.Humidity[i],
			Pressure:  h.Pressure[i],
			WindSpeed: h.WindSpeed[i],
			Icon:      icon,
		})
	}
	return samples, nil
}

func (p *OpenMeteoProvider) resolveCity(ctx context.Context, city string) (openMeteoPlace, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return openMeteoPlace{}, fmt.Errorf("%w: empty city", weather.ErrInvalidInput)
	}

	values := url.Values{}
	values.Set("name", city)
	values.Set("count", "1")
	values.Set("language", "en")
	values.Set("format", "json")

	var payload struct {
		Results []openMeteoPlace `json:"results"`
	}
	if err := p.getJSON(ctx, p.geocodingURL, values, &payload); err != nil {
		return openMeteoPlace{}, err
	}
	if len(payload.Results) == 0 {
		return openMeteoPlace{}, fmt.Errorf("%w: %q", weather.ErrNotFound, city)
	}
	return payload.Results[0], nil
}

func (p *OpenMeteoProvider) getJSON(ctx context.Context, base string, values url.Values, out any) error {
	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s?%s", base, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode openmeteo response: %v", weather.ErrNetwork, err)
	}
	return nil
}

func coordinateValues(lat, lon float64) url.Values {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))
	values.Set("timezone", "auto")
	values.Set("timeformat", "unixtime")
	values.Set("wind_speed_unit", "ms")
	return values
}

// mapOpenMeteoCondition translates a WMO weather code into an OpenWeatherMap
// style icon code and a short description, so the rendering layer needs only
// one icon set.
func mapOpenMeteoCondition(code int, isDay bool) (icon, description string) {
	suffix := "n"
	if isDay {
		suffix = "d"
	}

	switch {
	case code == 0:
		return "01" + suffix, "clear sky"
	case code == 1:
		return "02" + suffix, "mainly clear"
	case code == 2:
		return "03" + suffix, "partly cloudy"
	case code == 3:
		return "04" + suffix, "overcast"
	case code == 45 || code == 48:
		return "50" + suffix, "fog"
	case code >= 51 && code <= 57:
		return "09" + suffix, "drizzle"
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return "10" + suffix, "rain"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "13" + suffix, "snow"
	case code >= 95:
		return "11" + suffix, "thunderstorm"
	default:
		return "", "unknown"
	}
}
