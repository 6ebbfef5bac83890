package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	ProviderOpenWeather = "openweather"
	ProviderOpenMeteo   = "openmeteo"
	ProviderWeatherAPI  = "weatherapi"

	CacheMemory = "memory"
	CacheRedis  = "redis"

	GeolocationEnabled = "enabled"
	GeolocationDenied  = "denied"
)

type AppConfig struct {
	Provider          string        `validate:"oneof=openweather openmeteo weatherapi"`
	OpenWeatherAPIKey string        `validate:"required_if=Provider openweather"`
	WeatherAPIKey     string        `validate:"required_if=Provider weatherapi"`
	HTTPTimeout       time.Duration `validate:"gt=0"`

	// Coordinator tuning.
	SearchDebounce  time.Duration `validate:"gt=0"`
	HourlyWindow    int           `validate:"gte=1"`
	DailyDays       int           `validate:"gte=1"`
	RefreshInterval time.Duration `validate:"gte=0"` // 0 disables periodic refresh

	// Replay cache.
	CacheBackend    string        `validate:"oneof=memory redis"`
	CacheTTL        time.Duration `validate:"gte=0"`
	CacheMaxEntries int           `validate:"gte=0"`
	RedisAddr       string        `validate:"required_if=CacheBackend redis"`
	RedisPassword   string
	RedisDB         int `validate:"gte=0"`

	// Searched once at startup when set.
	DefaultCity string

	// Geolocation sources, tried in order: fixed coordinates, then the
	// geocoded home address.
	Geolocation    string   `validate:"oneof=enabled denied"`
	HomeLat        *float64 `validate:"omitempty,gte=-90,lte=90"`
	HomeLon        *float64 `validate:"omitempty,gte=-180,lte=180"`
	HomeCity       string
	HomeCountry    string
	GeocoderAPIKey string

	Port string `validate:"required,numeric"`
}

// Home returns the configured fixed position, if both coordinates are set.
func (c *AppConfig) Home() *weather.Coordinate {
	if c.HomeLat == nil || c.HomeLon == nil {
		return nil
	}
	return &weather.Coordinate{Lat: *c.HomeLat, Lon: *c.HomeLon}
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Provider = getenvDefault("WEATHER_PROVIDER", ProviderOpenWeather)
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if cfg.SearchDebounce, err = getenvDuration("SEARCH_DEBOUNCE", 500*time.Millisecond); err != nil {
		return nil, err
	}
	cfg.HourlyWindow = getenvInt("HOURLY_WINDOW", weather.DefaultHourlyWindow)
	cfg.DailyDays = getenvInt("DAILY_DAYS", weather.DefaultDailyDays)
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.CacheBackend = getenvDefault("CACHE_BACKEND", CacheMemory)
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.CacheMaxEntries = getenvInt("CACHE_MAX_ENTRIES", 64)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getenvInt("REDIS_DB", 0)

	cfg.DefaultCity = os.Getenv("DEFAULT_CITY")

	cfg.Geolocation = getenvDefault("GEOLOCATION", GeolocationEnabled)
	if cfg.HomeLat, err = getenvFloat("HOME_LAT"); err != nil {
		return nil, err
	}
	if cfg.HomeLon, err = getenvFloat("HOME_LON"); err != nil {
		return nil, err
	}
	cfg.HomeCity = os.Getenv("HOME_CITY")
	cfg.HomeCountry = os.Getenv("HOME_COUNTRY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		log.Printf("ERROR: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def.String()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string) (*float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &f, nil
}
