package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-dashboard/internal/api/http"
	"github.com/i474232898/weather-dashboard/internal/clock"
	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/coordinator"
	"github.com/i474232898/weather-dashboard/internal/geolocation"
	"github.com/i474232898/weather-dashboard/internal/scheduler"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Provider with resilience (backoff + circuit breaker).
	var client weather.Client
	switch cfg.Provider {
	case config.ProviderOpenMeteo:
		client = providers.NewOpenMeteoProvider(httpClient)
	case config.ProviderWeatherAPI:
		client = providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey)
	default:
		client = providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey)
	}

	// Replay cache for coordinate queries.
	var cache weather.ResponseCache
	switch cfg.CacheBackend {
	case config.CacheRedis:
		rs, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("failed to connect cache: %v", err)
		}
		defer rs.Close()
		cache = rs
	default:
		cache = store.NewMemoryStore(cfg.CacheMaxEntries, cfg.CacheTTL)
	}

	coord := coordinator.New(client, cache, newLocator(cfg), coordinator.Options{
		Debounce:     cfg.SearchDebounce,
		FetchTimeout: cfg.HTTPTimeout,
		CacheTTL:     cacheTTL(cfg.CacheTTL),
		Aggregator:   weather.Aggregator{Days: cfg.DailyDays, Hours: cfg.HourlyWindow},
	})
	defer coord.Close()

	// Recurring jobs: the city clock and the periodic refresh.
	clk := clock.NewSynchronizer(coord.Weather)
	sched := scheduler.New()
	if err := clk.Register(sched); err != nil {
		log.Fatalf("failed to schedule clock: %v", err)
	}
	if cfg.RefreshInterval > 0 {
		if err := sched.Every("refresh", cfg.RefreshInterval, coord.Refresh); err != nil {
			log.Fatalf("failed to schedule refresh: %v", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	if cfg.DefaultCity != "" {
		coord.SearchByCity(cfg.DefaultCity)
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "weather-dashboard",
			"provider": client.Name(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, coord, clk)

	go func() {
		log.Printf("INFO: listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// newLocator builds the geolocation chain: fixed coordinates first, then the
// geocoded home address.
func newLocator(cfg *config.AppConfig) weather.Geolocator {
	if cfg.Geolocation == config.GeolocationDenied {
		return geolocation.Denied{}
	}
	return geolocation.Chain{
		geolocation.Static{Coord: cfg.Home()},
		geolocation.NewAddress(cfg.GeocoderAPIKey, cfg.HomeCity, cfg.HomeCountry),
	}
}

// cacheTTL maps the configured TTL onto coordinator.Options, where zero
// selects the default and a negative value disables replay.
func cacheTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return -1
	}
	return ttl
}
