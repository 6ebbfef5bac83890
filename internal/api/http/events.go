package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/i474232898/weather-dashboard/internal/coordinator"
)

const keepaliveInterval = 30 * time.Second

// streamEvents pushes every change of the dashboard state to the client as
// Server-Sent Events. The stream ends when a write fails or the coordinator
// is closed.
func streamEvents(coord *coordinator.Coordinator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no") // disable nginx buffering

		client := c.IP()
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			weatherCh, stopWeather := coord.Weather.Subscribe()
			forecastCh, stopForecast := coord.Forecast.Subscribe()
			loadingCh, stopLoading := coord.Loading.Subscribe()
			notesCh, stopNotes := coord.Notifications.Subscribe()
			defer func() {
				stopWeather()
				stopForecast()
				stopLoading()
				stopNotes()
				log.Printf("INFO: events: client %s disconnected (remaining: %d)", client, coord.Weather.Subscribers())
			}()
			log.Printf("INFO: events: client %s connected (total: %d)", client, coord.Weather.Subscribers())

			keepalive := time.NewTicker(keepaliveInterval)
			defer keepalive.Stop()

			for {
				var err error
				select {
				case snap, ok := <-weatherCh:
					if !ok {
						return
					}
					err = writeEvent(w, "weather", snap)
				case f, ok := <-forecastCh:
					if !ok {
						return
					}
					err = writeEvent(w, "forecast", f)
				case loading, ok := <-loadingCh:
					if !ok {
						return
					}
					err = writeEvent(w, "loading", loading)
				case n, ok := <-notesCh:
					if !ok {
						return
					}
					if n == nil {
						continue
					}
					err = writeEvent(w, "notification", n)
				case <-keepalive.C:
					_, err = w.WriteString(": keepalive\n\n")
				}

				if err == nil {
					err = w.Flush()
				}
				if err != nil {
					log.Printf("DEBUG: events: stream to %s ended: %v", client, err)
					return
				}
			}
		}))
		return nil
	}
}

func writeEvent(w *bufio.Writer, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, raw)
	return err
}
