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

const openWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherProvider implements the weather.Client interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: openWeatherBaseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

// WithBaseURL points the provider at another endpoint (e.g. a test server).
func (p *OpenWeatherProvider) WithBaseURL(u string) *OpenWeatherProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

// WithBackoff overrides the retry policy.
func (p *OpenWeatherProvider) WithBackoff(b BackoffConfig) *OpenWeatherProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owmCondition struct {
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type owmCurrentPayload struct {
	Name  string `json:"name"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather  []owmCondition `json:"weather"`
	Timezone int            `json:"timezone"`
}

type owmForecastPayload struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity float64 `json:"humidity"`
			Pressure float64 `json:"pressure"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []owmCondition `json:"weather"`
	} `json:"list"`
}

func (p *OpenWeatherProvider) FetchCurrentWeather(ctx context.Context, q weather.Query) (weather.WeatherSnapshot, error) {
	if p.apiKey == "" {
		return weather.WeatherSnapshot{}, fmt.Errorf("%w: openweather api key is not configured", weather.ErrNetwork)
	}

	values := url.Values{}
	if q.Coord != nil {
		values.Set("lat", fmt.Sprintf("%f", q.Coord.Lat))
		values.Set("lon", fmt.Sprintf("%f", q.Coord.Lon))
	} else {
		if strings.TrimSpace(q.City) == "" {
			return weather.WeatherSnapshot{}, fmt.Errorf("%w: empty city", weather.ErrInvalidInput)
		}
		values.Set("q", q.City)
	}

	var payload owmCurrentPayload
	if err := p.getJSON(ctx, "/weather", values, &payload); err != nil {
		return weather.WeatherSnapshot{}, err
	}

	icon, desc := firstCondition(payload.Weather)

	return weather.WeatherSnapshot{
		Name:        payload.Name,
		Country:     payload.Sys.Country,
		Sunrise:     payload.Sys.Sunrise,
		Sunset:      payload.Sys.Sunset,
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
		Icon:        icon,
		Description: desc,
		WindSpeed:   payload.Wind.Speed,
		UTCOffset:   payload.Timezone,
		Coord:       weather.Coordinate{Lat: payload.Coord.Lat, Lon: payload.Coord.Lon},
	}, nil
}

func (p *OpenWeatherProvider) FetchForecast(ctx context.Context, c weather.Coordinate) ([]weather.ForecastSample, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: openweather api key is not configured", weather.ErrNetwork)
	}

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", c.Lat))
	values.Set("lon", fmt.Sprintf("%f", c.Lon))

	var payload owmForecastPayload
	if err := p.getJSON(ctx, "/forecast", values, &payload); err != nil {
		return nil, err
	}

	samples := make([]weather.ForecastSample, 0, len(payload.List))
	for _, item := range payload.List {
		icon, _ := firstCondition(item.Weather)
		samples = append(samples, weather.ForecastSample{
			Time:      time.Unix(item.Dt, 0).UTC(),
			Temp:      item.Main.Temp,
			TempMin:   item.Main.TempMin,
			TempMax:   item.Main.TempMax,
			Humidity:  item.Main.Humidity,
			Pressure:  item.Main.Pressure,
			WindSpeed: item.Wind.Speed,
			Icon:      icon,
		})
	}
	return samples, nil
}

func (p *OpenWeatherProvider) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode openweather %s: %v", weather.ErrNetwork, path, err)
	}
	return nil
}

func firstCondition(items []owmCondition) (icon, description string) {
	if len(items) == 0 {
		return "", ""
	}
	return items[0].Icon, items[0].Description
}
