package geolocation

import (
	"context"
	"errors"
	"testing"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Interface compliance verification
var (
	_ weather.Geolocator = Static{}
	_ weather.Geolocator = Denied{}
	_ weather.Geolocator = (*Address)(nil)
	_ weather.Geolocator = Chain(nil)
)

func TestStatic(t *testing.T) {
	_, err := Static{}.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, weather.ErrUnsupported)

	pos, err := Static{Coord: &weather.Coordinate{Lat: 1, Lon: 2}}.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, weather.Coordinate{Lat: 1, Lon: 2}, pos)
}

func TestDenied(t *testing.T) {
	_, err := Denied{}.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, weather.ErrPermissionDenied)
}

func TestAddressWithoutKeyIsUnsupported(t *testing.T) {
	_, err := NewAddress("", "Kyiv", "UA").CurrentPosition(context.Background())
	assert.ErrorIs(t, err, weather.ErrUnsupported)
}

func TestAddressResolvesOnce(t *testing.T) {
	calls := 0
	a := &Address{
		address: geocoder.Address{City: "Kyiv", Country: "UA"},
		lookup: func(addr geocoder.Address) (geocoder.Location, error) {
			calls++
			assert.Equal(t, "Kyiv", addr.City)
			return geocoder.Location{Latitude: 50.45, Longitude: 30.52}, nil
		},
	}

	for i := 0; i < 2; i++ {
		pos, err := a.CurrentPosition(context.Background())
		require.NoError(t, err)
		assert.Equal(t, weather.Coordinate{Lat: 50.45, Lon: 30.52}, pos)
	}
	assert.Equal(t, 1, calls)
}

func TestAddressErrors(t *testing.T) {
	a := &Address{
		address: geocoder.Address{City: "Kyiv"},
		lookup: func(geocoder.Address) (geocoder.Location, error) {
			return geocoder.Location{}, errors.New("REQUEST_DENIED")
		},
	}
	_, err := a.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, weather.ErrPermissionDenied)

	a.lookup = func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("ZERO_RESULTS")
	}
	_, err = a.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, weather.ErrUnsupported)
}

func TestAddressHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	a := &Address{
		address: geocoder.Address{City: "Kyiv"},
		lookup: func(geocoder.Address) (geocoder.Location, error) {
			<-block
			return geocoder.Location{}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.CurrentPosition(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChain(t *testing.T) {
	_, err := Chain{}.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, weather.ErrUnsupported)

	pos, err := Chain{Static{}, Static{Coord: &weather.Coordinate{Lat: 3, Lon: 4}}}.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, weather.Coordinate{Lat: 3, Lon: 4}, pos)

	_, err = Chain{Static{}, Denied{}}.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, weather.ErrPermissionDenied)
}
