package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/common"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	weatherAPIBaseURL = "https://api.weatherapi.com/v1"

	weatherAPIForecastDays = 5
	weatherAPIHourStep     = 3
)

// WeatherAPIProvider implements the weather.Client interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: weatherAPIBaseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("weatherapi"),
	}
}

// WithBaseURL points the provider at another endpoint (e.g. a test server).
func (p *WeatherAPIProvider) WithBaseURL(u string) *WeatherAPIProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

// WithBackoff overrides the retry policy.
func (p *WeatherAPIProvider) WithBackoff(b BackoffConfig) *WeatherAPIProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPICondition struct {
	Text string `json:"text"`
}

type weatherAPIPayload struct {
	Location struct {
		Name           string  `json:"name"`
		Country        string  `json:"country"`
		Lat            float64 `json:"lat"`
		Lon            float64 `json:"lon"`
		LocaltimeEpoch int64   `json:"localtime_epoch"`
		Localtime      string  `json:"localtime"`
	} `json:"location"`
	Current struct {
		TempC      float64             `json:"temp_c"`
		FeelsLikeC float64             `json:"feelslike_c"`
		Humidity   float64             `json:"humidity"`
		PressureMb float64             `json:"pressure_mb"`
		WindKph    float64             `json:"wind_kph"`
		IsDay      int                 `json:"is_day"`
		Condition  weatherAPICondition `json:"condition"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date  string `json:"date"`
			Astro struct {
				Sunrise string `json:"sunrise"`
				Sunset  string `json:"sunset"`
			} `json:"astro"`
			Hour []struct {
				TimeEpoch  int64               `json:"time_epoch"`
				TempC      float64             `json:"temp_c"`
				Humidity   float64             `json:"humidity"`
				PressureMb float64             `json:"pressure_mb"`
				WindKph    float64             `json:"wind_kph"`
				IsDay      int                 `json:"is_day"`
				Condition  weatherAPICondition `json:"condition"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

// FetchCurrentWeather reads the current conditions together with today's
// forecast day, which carries the sunrise and sunset times.
func (p *WeatherAPIProvider) FetchCurrentWeather(ctx context.Context, q weather.Query) (weather.WeatherSnapshot, error) {
	if p.apiKey == "" {
		return weather.WeatherSnapshot{}, fmt.Errorf("%w: weatherapi api key is not configured", weather.ErrNetwork)
	}

	values := url.Values{}
	values.Set("days", "1")
	if q.Coord != nil {
		values.Set("q", coordinateQuery(*q.Coord))
	} else {
		if strings.TrimSpace(q.City) == "" {
			return weather.WeatherSnapshot{}, fmt.Errorf("%w: empty city", weather.ErrInvalidInput)
		}
		values.Set("q", q.City)
	}

	var payload weatherAPIPayload
	if err := p.getJSON(ctx, "/forecast.json", values, &payload); err != nil {
		return weather.WeatherSnapshot{}, err
	}

	loc, cur := payload.Location, payload.Current
	offset := utcOffset(loc.Localtime, loc.LocaltimeEpoch)
	icon, desc := mapWeatherAPICondition(cur.Condition.Text, cur.IsDay == 1)

	snap := weather.WeatherSnapshot{
		Name:        loc.Name,
		Country:     loc.Country,
		Temperature: cur.TempC,
		FeelsLike:   cur.FeelsLikeC,
		Humidity:    cur.Humidity,
		Pressure:    cur.PressureMb,
		Icon:        icon,
		Description: desc,
		WindSpeed:   kphToMS(cur.WindKph),
		UTCOffset:   offset,
		Coord:       weather.Coordinate{Lat: loc.Lat, Lon: loc.Lon},
	}
	if days := payload.Forecast.ForecastDay; len(days) > 0 {
		zone := time.FixedZone("", offset)
		snap.Sunrise = astroTime(days[0].Date, days[0].Astro.Sunrise, zone)
		snap.Sunset = astroTime(days[0].Date, days[0].Astro.Sunset, zone)
	}
	return snap, nil
}

// FetchForecast returns every third hourly sample of the next days.
func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, c weather.Coordinate) ([]weather.ForecastSample, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: weatherapi api key is not configured", weather.ErrNetwork)
	}

	values := url.Values{}
	values.Set("q", coordinateQuery(c))
	values.Set("days", fmt.Sprint(weatherAPIForecastDays))

	var payload weatherAPIPayload
	if err := p.getJSON(ctx, "/forecast.json", values, &payload); err != nil {
		return nil, err
	}

	var samples []weather.ForecastSample
	i := 0
	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			if i%weatherAPIHourStep == 0 {
				icon, _ := mapWeatherAPICondition(h.Condition.Text, h.IsDay == 1)
				samples = append(samples, weather.ForecastSample{
					Time:      time.Unix(h.TimeEpoch, 0).UTC(),
					Temp:      h.TempC,
					TempMin:   h.TempC,
					TempMax:   h.TempC,
					Humidity:  h.Humidity,
					Pressure:  h.PressureMb,
					WindSpeed: kphToMS(h.WindKph),
					Icon:      icon,
				})
			}
			i++
		}
	}
	return samples, nil
}

func (p *WeatherAPIProvider) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	values.Set("key", p.apiKey)
	values.Set("aqi", "no")
	values.Set("alerts", "no")

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
		return fmt.Errorf("%w: decode weatherapi %s: %v", weather.ErrNetwork, path, err)
	}
	return nil
}

// WeatherAPI accepts "lat,lon" wherever it accepts a city name.
func coordinateQuery(c weather.Coordinate) string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lon)
}

// kphToMS converts wind from kph to m/s.
func kphToMS(kph float64) float64 {
	return kph / 3.6
}

// utcOffset derives the location's offset in seconds from its wall clock and
// the matching epoch. The wall clock has minute precision, so the result is
// rounded to the nearest quarter hour.
func utcOffset(localtime string, epoch int64) int {
	wall, err := time.Parse("2006-01-02 15:04", localtime)
	if err != nil || epoch == 0 {
		return 0
	}
	const quarter = 15 * 60
	diff := float64(wall.Unix() - epoch)
	return int(math.Round(diff/quarter)) * quarter
}

// astroTime turns a date and a clock like "06:45 AM" into unix seconds.
func astroTime(date, clock string, zone *time.Location) int64 {
	t, err := time.ParseInLocation("2006-01-02 03:04 PM", date+" "+clock, zone)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// mapWeatherAPICondition translates a WeatherAPI condition text into an
// OpenWeatherMap style icon code and a lower-case description.
func mapWeatherAPICondition(text string, isDay bool) (icon, description string) {
	description = strings.ToLower(strings.TrimSpace(text))
	if description == "" {
		return "", "unknown"
	}

	suffix := "n"
	if isDay {
		suffix = "d"
	}

	switch {
	case common.HasAny(description, "thunder"):
		return "11" + suffix, description
	case common.HasAny(description, "snow", "sleet", "blizzard", "ice pellets"):
		return "13" + suffix, description
	case common.HasAny(description, "drizzle"):
		return "09" + suffix, description
	case common.HasAny(description, "rain", "shower"):
		return "10" + suffix, description
	case common.HasAny(description, "fog", "mist"):
		return "50" + suffix, description
	case common.HasAny(description, "overcast"):
		return "04" + suffix, description
	case common.HasAny(description, "partly"):
		return "02" + suffix, description
	case common.HasAny(description, "cloud"):
		return "03" + suffix, description
	case common.HasAny(description, "sunny", "clear"):
		return "01" + suffix, description
	default:
		return "", description
	}
}
