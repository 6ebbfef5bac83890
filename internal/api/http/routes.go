package httpapi

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-dashboard/internal/chart"
	"github.com/i474232898/weather-dashboard/internal/clock"
	"github.com/i474232898/weather-dashboard/internal/coordinator"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, coord *coordinator.Coordinator, clk *clock.Synchronizer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/events", streamEvents(coord))

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		snap := coord.Weather.Get()
		if snap == nil {
			return fiber.NewError(fiber.StatusNotFound, "no weather data for the current search")
		}
		return c.JSON(snap)
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		f := coord.Forecast.Get()
		if f == nil {
			return c.JSON(fiber.Map{
				"daily":  []weather.DailyBucket{},
				"hourly": []weather.ForecastSample{},
			})
		}
		return c.JSON(fiber.Map{
			"coord":     f.Coord,
			"daily":     f.Daily,
			"hourly":    f.Hourly,
			"updatedAt": f.UpdatedAt,
		})
	})

	v1.Get("/weather/chart", func(c *fiber.Ctx) error {
		q := chartQuery{
			Metric: c.Query("metric", string(chart.MetricTemperature)),
			View:   c.Query("view", viewHourly),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		metric, err := chart.ParseMetric(q.Metric)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(chart.NewMapper(metric).Build(q.samples(coord.Forecast.Get())))
	})

	v1.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"loading":          coord.Loading.Get(),
			"cityTime":         clk.Time.Get().Format(time.RFC3339),
			"lastNotification": coord.Notifications.Get(),
		})
	})

	v1.Post("/search/city", func(c *fiber.Ctx) error {
		var req citySearchRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		coord.SearchByCity(req.Name)
		return c.SendStatus(fiber.StatusAccepted)
	})

	v1.Post("/search/coordinates", func(c *fiber.Ctx) error {
		var req coordinateSearchRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		coord.SearchByCoordinates(weather.Coordinate{Lat: *req.Lat, Lon: *req.Lon})
		return c.SendStatus(fiber.StatusAccepted)
	})

	v1.Post("/search/here", func(c *fiber.Ctx) error {
		if err := coord.SearchHere(c.UserContext()); err != nil {
			switch weather.KindOf(err) {
			case weather.KindPermissionDenied:
				return fiber.NewError(fiber.StatusForbidden, err.Error())
			case weather.KindUnsupported:
				return fiber.NewError(fiber.StatusNotImplemented, err.Error())
			default:
				return fiber.NewError(fiber.StatusBadGateway, err.Error())
			}
		}
		return c.SendStatus(fiber.StatusAccepted)
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		coord.Refresh()
		return c.SendStatus(fiber.StatusAccepted)
	})
}

const (
	viewHourly = "hourly"
	viewDaily  = "daily"
)

// chartQuery holds query parameters for the chart endpoint.
type chartQuery struct {
	Metric string `validate:"required"`
	View   string `validate:"oneof=hourly daily"`
}

func (q chartQuery) samples(f *coordinator.Forecast) []weather.ForecastSample {
	if f == nil {
		return nil
	}
	if q.View == viewHourly {
		return f.Hourly
	}
	out := make([]weather.ForecastSample, 0, len(f.Daily))
	for _, b := range f.Daily {
		out = append(out, b.ForecastSample)
	}
	return out
}

type citySearchRequest struct {
	Name string `json:"name" validate:"required"`
}

type coordinateSearchRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

func bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}
