package coordinator

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/weather-dashboard/internal/metrics"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	fetchCurrent  = "current"
	fetchForecast = "forecast"
)

// fetcher wraps a weather.Client. Identical coordinate queries share one
// in-flight call and are replayed from the cache for ttl.
type fetcher struct {
	client  weather.Client
	cache   weather.ResponseCache
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
}

func (f *fetcher) currentWeather(ctx context.Context, q weather.Query) (weather.WeatherSnapshot, error) {
	if q.Coord == nil {
		return timed(fetchCurrent, func() (weather.WeatherSnapshot, error) {
			return f.client.FetchCurrentWeather(ctx, q)
		})
	}
	return shared(ctx, f, fetchCurrent, fetchCurrent+":"+q.Coord.Key(), func(ctx context.Context) (weather.WeatherSnapshot, error) {
		return f.client.FetchCurrentWeather(ctx, q)
	})
}

func (f *fetcher) forecast(ctx context.Context, c weather.Coordinate) ([]weather.ForecastSample, error) {
	return shared(ctx, f, fetchForecast, fetchForecast+":"+c.Key(), func(ctx context.Context) ([]weather.ForecastSample, error) {
		return f.client.FetchForecast(ctx, c)
	})
}

// shared runs call at most once per key at a time and caches its result.
// The shared call is detached from the caller's cancellation so that one
// superseded caller does not fail the others; the caller itself still
// returns as soon as ctx is done.
func shared[T any](ctx context.Context, f *fetcher, fetch, key string, call func(context.Context) (T, error)) (T, error) {
	var zero T

	if v, ok := lookup[T](ctx, f, fetch, key); ok {
		return v, nil
	}

	ch := f.group.DoChan(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()

		v, err := timed(fetch, func() (T, error) { return call(sctx) })
		if err != nil {
			return nil, err
		}
		f.store(sctx, key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func lookup[T any](ctx context.Context, f *fetcher, fetch, key string) (T, bool) {
	var v T
	if f.cache == nil || f.ttl <= 0 {
		return v, false
	}

	raw, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		log.Printf("ERROR: coordinator: cache get %s: %v", key, err)
		metrics.CacheRequests.WithLabelValues(fetch, "error").Inc()
		return v, false
	}
	if !ok {
		metrics.CacheRequests.WithLabelValues(fetch, "miss").Inc()
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Printf("ERROR: coordinator: cache decode %s: %v", key, err)
		metrics.CacheRequests.WithLabelValues(fetch, "error").Inc()
		return v, false
	}

	metrics.CacheRequests.WithLabelValues(fetch, "hit").Inc()
	return v, true
}

func (f *fetcher) store(ctx context.Context, key string, v any) {
	if f.cache == nil || f.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: coordinator: cache encode %s: %v", key, err)
		return
	}
	if err := f.cache.Set(ctx, key, raw, f.ttl); err != nil {
		log.Printf("ERROR: coordinator: cache set %s: %v", key, err)
	}
}

func timed[T any](fetch string, call func() (T, error)) (T, error) {
	start := time.Now()
	v, err := call()
	metrics.FetchDuration.WithLabelValues(fetch).Observe(time.Since(start).Seconds())
	return v, err
}
