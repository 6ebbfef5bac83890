// Package geolocation provides weather.Geolocator implementations for a
// dashboard that has no device GPS: a fixed configured position, a geocoded
// home address, and an explicit "denied" locator.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-dashboard/internal/common"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Static reports a fixed position.
type Static struct {
	Coord *weather.Coordinate
}

func (s Static) CurrentPosition(context.Context) (weather.Coordinate, error) {
	if s.Coord == nil {
		return weather.Coordinate{}, fmt.Errorf("%w: no static position configured", weather.ErrUnsupported)
	}
	return *s.Coord, nil
}

// Denied refuses every request, for deployments that disallow location lookups.
type Denied struct{}

func (Denied) CurrentPosition(context.Context) (weather.Coordinate, error) {
	return weather.Coordinate{}, weather.ErrPermissionDenied
}

// Address resolves a configured home address to coordinates with the Google
// geocoding API. The first successful answer is remembered.
type Address struct {
	address geocoder.Address
	lookup  func(geocoder.Address) (geocoder.Location, error)

	mu       sync.Mutex
	resolved *weather.Coordinate
}

// NewAddress creates an Address locator for city/country. apiKey is the
// Google geocoding key; without it the locator reports ErrUnsupported.
func NewAddress(apiKey, city, country string) *Address {
	a := &Address{
		address: geocoder.Address{City: city, Country: country},
	}
	if apiKey != "" {
		geocoder.ApiKey = apiKey
		a.lookup = geocoder.Geocoding
	}
	return a
}

func (a *Address) CurrentPosition(ctx context.Context) (weather.Coordinate, error) {
	a.mu.Lock()
	if a.resolved != nil {
		c := *a.resolved
		a.mu.Unlock()
		return c, nil
	}
	a.mu.Unlock()

	if a.lookup == nil {
		return weather.Coordinate{}, fmt.Errorf("%w: geocoder api key is not configured", weather.ErrUnsupported)
	}
	if strings.TrimSpace(a.address.City) == "" {
		return weather.Coordinate{}, fmt.Errorf("%w: no home address configured", weather.ErrUnsupported)
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := a.lookup(a.address)
		done <- result{loc: loc, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return weather.Coordinate{}, ctx.Err()
	case r = <-done:
	}

	if r.err != nil {
		msg := strings.ToLower(r.err.Error())
		if common.HasAny(msg, "denied", "api key", "unauthorized") {
			return weather.Coordinate{}, fmt.Errorf("%w: %v", weather.ErrPermissionDenied, r.err)
		}
		return weather.Coordinate{}, fmt.Errorf("%w: geocode %s: %v", weather.ErrUnsupported, a.address.City, r.err)
	}

	c := weather.Coordinate{Lat: r.loc.Latitude, Lon: r.loc.Longitude}
	a.mu.Lock()
	a.resolved = &c
	a.mu.Unlock()

	log.Printf("INFO: geolocation: resolved %s,%s to %s", a.address.City, a.address.Country, c)
	return c, nil
}

// Chain asks each locator in turn and returns the first position found.
// When every locator fails, the last error is returned.
type Chain []weather.Geolocator

func (c Chain) CurrentPosition(ctx context.Context) (weather.Coordinate, error) {
	err := error(fmt.Errorf("%w: no locator configured", weather.ErrUnsupported))
	for _, l := range c {
		var pos weather.Coordinate
		pos, err = l.CurrentPosition(ctx)
		if err == nil {
			return pos, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return weather.Coordinate{}, err
		}
	}
	return weather.Coordinate{}, err
}
