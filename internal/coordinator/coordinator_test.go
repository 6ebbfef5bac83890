package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-dashboard/internal/geolocation"
	"github.com/i474232898/weather-dashboard/internal/metrics"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	testDebounce = 20 * time.Millisecond
	waitFor      = 2 * time.Second
	tick         = 5 * time.Millisecond
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeClient answers immediately unless a gate is held for the query.
// Held calls ignore ctx, like a transport that cannot be aborted.
type fakeClient struct {
	mu          sync.Mutex
	current     []weather.Query
	forecasts   []weather.Coordinate
	gates       map[string]chan struct{}
	weatherErr  map[string]error
	forecastErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		gates:      make(map[string]chan struct{}),
		weatherErr: make(map[string]error),
	}
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) hold(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[key] = make(chan struct{})
}

func (f *fakeClient) release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.gates[key])
}

func (f *fakeClient) wait(key string) {
	f.mu.Lock()
	g, ok := f.gates[key]
	f.mu.Unlock()
	if ok {
		<-g
	}
}

func (f *fakeClient) failWeather(q string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weatherErr[q] = err
}

func (f *fakeClient) failForecast(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecastErr = err
}

func (f *fakeClient) weatherCalls() []weather.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]weather.Query(nil), f.current...)
}

func (f *fakeClient) forecastCalls() []weather.Coordinate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]weather.Coordinate(nil), f.forecasts...)
}

func (f *fakeClient) FetchCurrentWeather(_ context.Context, q weather.Query) (weather.WeatherSnapshot, error) {
	f.mu.Lock()
	f.current = append(f.current, q)
	err := f.weatherErr[q.String()]
	f.mu.Unlock()

	f.wait(q.String())
	if err != nil {
		return weather.WeatherSnapshot{}, err
	}
	return snapshotFor(q), nil
}

func (f *fakeClient) FetchForecast(_ context.Context, c weather.Coordinate) ([]weather.ForecastSample, error) {
	f.mu.Lock()
	f.forecasts = append(f.forecasts, c)
	err := f.forecastErr
	f.mu.Unlock()

	f.wait("forecast:" + c.String())
	if err != nil {
		return nil, err
	}
	return samplesFor(c), nil
}

func coordFor(city string) weather.Coordinate {
	return weather.Coordinate{Lat: float64(len(city)), Lon: 10}
}

func snapshotFor(q weather.Query) weather.WeatherSnapshot {
	coord := coordFor(q.City)
	if q.Coord != nil {
		coord = *q.Coord
	}
	return weather.WeatherSnapshot{
		Name:        q.String(),
		Temperature: 20,
		Description: "clear sky",
		UTCOffset:   3600,
		Coord:       coord,
	}
}

// samplesFor returns three days of 3-hourly samples whose temperature encodes
// the latitude, so tests can tell forecasts apart.
func samplesFor(c weather.Coordinate) []weather.ForecastSample {
	var out []weather.ForecastSample
	start := testNow.Truncate(24 * time.Hour)
	for i := 0; i < 24; i++ {
		out = append(out, weather.ForecastSample{
			Time: start.Add(time.Duration(i*3) * time.Hour),
			Temp: c.Lat + float64(i%8),
		})
	}
	return out
}

func newTestCoordinator(t *testing.T, client weather.Client, cache weather.ResponseCache, locator weather.Geolocator) *Coordinator {
	t.Helper()
	c := New(client, cache, locator, Options{
		Debounce:     testDebounce,
		FetchTimeout: time.Second,
		CacheTTL:     -1,
		Now:          func() time.Time { return testNow },
	})
	t.Cleanup(c.Close)
	return c
}

// onLoop runs fn on the event loop and waits for it, so tests can read
// loop-owned state without racing.
func onLoop(c *Coordinator, fn func()) {
	done := make(chan struct{})
	c.post(func() {
		fn()
		close(done)
	})
	<-done
}

func weatherName(c *Coordinator) string {
	if snap := c.Weather.Get(); snap != nil {
		return snap.Name
	}
	return ""
}

func forecastCoord(c *Coordinator) *weather.Coordinate {
	if f := c.Forecast.Get(); f != nil {
		return &f.Coord
	}
	return nil
}

func TestSearchByCityDebouncesBurst(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	c.SearchByCity("a")
	c.SearchByCity("ab")
	c.SearchByCity("abc")

	require.Eventually(t, func() bool { return weatherName(c) == "abc" }, waitFor, tick)
	time.Sleep(5 * testDebounce)

	assert.Equal(t, []weather.Query{weather.CityQuery("abc")}, client.weatherCalls())
}

func TestSearchByCityNormalizesInput(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	c.SearchByCity("  New   York ")

	require.Eventually(t, func() bool { return weatherName(c) == "New York" }, waitFor, tick)
}

func TestSearchByCityIgnoresBlankInput(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	c.SearchByCity("")
	c.SearchByCity("   ")
	time.Sleep(5 * testDebounce)

	assert.Empty(t, client.weatherCalls())
	assert.False(t, c.Loading.Get())
	assert.Nil(t, c.Weather.Get())
}

func TestSearchByCityBlankDoesNotCancelPendingSearch(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	c.SearchByCity("Paris")
	c.SearchByCity(" ")

	require.Eventually(t, func() bool { return weatherName(c) == "Paris" }, waitFor, tick)
}

func TestSearchByCitySuppressesUnchangedInput(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	c.SearchByCity("Paris")
	require.Eventually(t, func() bool { return weatherName(c) == "Paris" }, waitFor, tick)

	c.SearchByCity("Paris")
	time.Sleep(5 * testDebounce)
	assert.Len(t, client.weatherCalls(), 1)

	c.SearchByCity("Berlin")
	require.Eventually(t, func() bool { return weatherName(c) == "Berlin" }, waitFor, tick)
	c.SearchByCity("Paris")
	require.Eventually(t, func() bool { return weatherName(c) == "Paris" }, waitFor, tick)
	assert.Len(t, client.weatherCalls(), 3)
}

func TestSearchByCoordinatesSuppressesUnchangedInput(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)
	here := weather.Coordinate{Lat: 50.45, Lon: 30.52}
	there := weather.Coordinate{Lat: 48.85, Lon: 2.35}

	c.SearchByCoordinates(here)
	c.SearchByCoordinates(here)
	require.Eventually(t, func() bool { return weatherName(c) == here.String() }, waitFor, tick)

	c.SearchByCoordinates(there)
	require.Eventually(t, func() bool { return weatherName(c) == there.String() }, waitFor, tick)

	assert.Equal(t, []weather.Query{weather.CoordQuery(here), weather.CoordQuery(there)}, client.weatherCalls())
}

func TestLateResponseIsDiscarded(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)
	stale := metrics.StaleResults.WithLabelValues(metrics.ChannelCity, fetchCurrent)
	before := testutil.ToFloat64(stale)

	client.hold("A")
	c.SearchByCity("A")
	require.Eventually(t, func() bool { return len(client.weatherCalls()) == 1 }, waitFor, tick)

	c.SearchByCity("B")
	require.Eventually(t, func() bool { return forecastCoord(c) != nil }, waitFor, tick)
	assert.Equal(t, "B", weatherName(c))

	client.release("A")
	require.Eventually(t, func() bool { return testutil.ToFloat64(stale) == before+1 }, waitFor, tick)

	assert.Equal(t, "B", weatherName(c))
	assert.Equal(t, coordFor("B"), *forecastCoord(c))
	assert.False(t, c.Loading.Get())
	assert.Equal(t, []weather.Coordinate{coordFor("B")}, client.forecastCalls())
}

func TestForecastOfSupersededSnapshotIsDiscarded(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)
	paris := coordFor("Paris")
	here := weather.Coordinate{Lat: 1, Lon: 2}

	client.hold("forecast:" + paris.String())
	c.SearchByCity("Paris")
	require.Eventually(t, func() bool { return len(client.forecastCalls()) == 1 }, waitFor, tick)

	c.SearchByCoordinates(here)
	require.Eventually(t, func() bool {
		fc := forecastCoord(c)
		return fc != nil && *fc == here
	}, waitFor, tick)

	stale := metrics.StaleResults.WithLabelValues(metrics.ChannelCity, fetchForecast)
	before := testutil.ToFloat64(stale)
	client.release("forecast:" + paris.String())
	require.Eventually(t, func() bool { return testutil.ToFloat64(stale) == before+1 }, waitFor, tick)

	assert.Equal(t, here, *forecastCoord(c))
	assert.Equal(t, here.String(), weatherName(c))
	onLoop(c, func() {
		assert.Nil(t, c.channels[channelCity].cancel, "city search context released")
	})
}

func TestForecastOfClearedSnapshotIsDiscarded(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)
	here := weather.Coordinate{Lat: 1, Lon: 2}

	client.hold("forecast:" + here.String())
	c.SearchByCoordinates(here)
	require.Eventually(t, func() bool { return len(client.forecastCalls()) == 1 }, waitFor, tick)

	client.failWeather("Atlantis", fmt.Errorf("%w: city not found", weather.ErrNotFound))
	c.SearchByCity("Atlantis")
	require.Eventually(t, func() bool { return c.Notifications.Get() != nil }, waitFor, tick)
	require.Nil(t, c.Weather.Get())

	stale := metrics.StaleResults.WithLabelValues(metrics.ChannelCoordinates, fetchForecast)
	before := testutil.ToFloat64(stale)
	client.release("forecast:" + here.String())
	require.Eventually(t, func() bool { return testutil.ToFloat64(stale) == before+1 }, waitFor, tick)

	assert.Nil(t, c.Forecast.Get())
	assert.Nil(t, c.Weather.Get())
}

func TestLoadingTracksWeatherFetch(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	client.hold("Paris")
	client.hold("forecast:" + coordFor("Paris").String())
	c.SearchByCity("Paris")
	require.Eventually(t, c.Loading.Get, waitFor, tick)

	client.release("Paris")
	require.Eventually(t, func() bool { return !c.Loading.Get() }, waitFor, tick)
	assert.Nil(t, c.Forecast.Get())

	client.release("forecast:" + coordFor("Paris").String())
	require.Eventually(t, func() bool { return c.Forecast.Get() != nil }, waitFor, tick)
	assert.False(t, c.Loading.Get())
}

func TestLoadingSpansBothChannels(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)
	here := weather.Coordinate{Lat: 1, Lon: 2}

	client.hold("Paris")
	client.hold(here.String())
	c.SearchByCity("Paris")
	c.SearchByCoordinates(here)
	require.Eventually(t, func() bool { return len(client.weatherCalls()) == 2 }, waitFor, tick)
	assert.True(t, c.Loading.Get())

	client.release(here.String())
	require.Eventually(t, func() bool { return weatherName(c) == here.String() }, waitFor, tick)
	assert.True(t, c.Loading.Get())

	client.release("Paris")
	require.Eventually(t, func() bool { return !c.Loading.Get() }, waitFor, tick)
}

func TestWeatherFailureClearsSnapshotAndNotifies(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	c.SearchByCity("Paris")
	require.Eventually(t, func() bool { return c.Forecast.Get() != nil }, waitFor, tick)

	client.failWeather("Atlantis", fmt.Errorf("%w: city not found", weather.ErrNotFound))
	c.SearchByCity("Atlantis")
	require.Eventually(t, func() bool { return c.Notifications.Get() != nil }, waitFor, tick)

	n := c.Notifications.Get()
	assert.Equal(t, weather.KindNotFound, n.Kind)
	assert.Contains(t, n.Message, "Atlantis")
	assert.NotEmpty(t, n.ID.String())
	assert.Equal(t, testNow, n.Time)

	assert.Nil(t, c.Weather.Get())
	assert.False(t, c.Loading.Get())
	assert.Len(t, client.forecastCalls(), 1)
	require.NotNil(t, c.Forecast.Get())
	assert.Equal(t, coordFor("Paris"), c.Forecast.Get().Coord)
}

func TestForecastFailureKeepsPreviousViews(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	c.SearchByCity("Paris")
	require.Eventually(t, func() bool { return c.Forecast.Get() != nil }, waitFor, tick)
	previous := c.Forecast.Get()

	client.failForecast(fmt.Errorf("%w: 502", weather.ErrNetwork))
	c.SearchByCity("Berlin")
	require.Eventually(t, func() bool { return c.Notifications.Get() != nil }, waitFor, tick)

	assert.Equal(t, weather.KindNetwork, c.Notifications.Get().Kind)
	assert.Equal(t, "Berlin", weatherName(c))
	assert.Same(t, previous, c.Forecast.Get())
}

func TestForecastIsAggregated(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	c.SearchByCity("Paris")
	require.Eventually(t, func() bool { return c.Forecast.Get() != nil }, waitFor, tick)

	f := c.Forecast.Get()
	assert.Len(t, f.Series, 24)
	assert.Len(t, f.Daily, 3)
	require.Len(t, f.Hourly, weather.DefaultHourlyWindow)
	assert.True(t, f.Hourly[0].Time.After(testNow))
	assert.Equal(t, testNow, f.UpdatedAt)

	lat := coordFor("Paris").Lat
	assert.Equal(t, lat, f.Daily[0].TempMin)
	assert.Equal(t, lat+7, f.Daily[0].TempMax)
}

func TestRefreshReissuesLastSearch(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)

	c.Refresh()
	time.Sleep(2 * testDebounce)
	assert.Empty(t, client.weatherCalls())

	c.SearchByCity("Paris")
	require.Eventually(t, func() bool { return c.Forecast.Get() != nil }, waitFor, tick)

	c.Refresh()
	require.Eventually(t, func() bool { return len(client.forecastCalls()) == 2 }, waitFor, tick)
	assert.Equal(t, []weather.Query{weather.CityQuery("Paris"), weather.CityQuery("Paris")}, client.weatherCalls())
}

func TestSearchHere(t *testing.T) {
	client := newFakeClient()
	here := weather.Coordinate{Lat: 50.45, Lon: 30.52}
	c := newTestCoordinator(t, client, nil, geolocation.Static{Coord: &here})

	require.NoError(t, c.SearchHere(context.Background()))
	require.Eventually(t, func() bool { return weatherName(c) == here.String() }, waitFor, tick)
}

func TestSearchHereDenied(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, geolocation.Denied{})

	c.SearchByCity("Paris")
	require.Eventually(t, func() bool { return weatherName(c) == "Paris" }, waitFor, tick)

	err := c.SearchHere(context.Background())
	assert.ErrorIs(t, err, weather.ErrPermissionDenied)
	require.Eventually(t, func() bool { return c.Notifications.Get() != nil }, waitFor, tick)

	assert.Equal(t, weather.KindPermissionDenied, c.Notifications.Get().Kind)
	assert.Equal(t, "Paris", weatherName(c))
	assert.Len(t, client.weatherCalls(), 1)
}

func TestSearchHereWithoutLocator(t *testing.T) {
	c := newTestCoordinator(t, newFakeClient(), nil, nil)

	err := c.SearchHere(context.Background())
	assert.ErrorIs(t, err, weather.ErrUnsupported)
	require.Eventually(t, func() bool { return c.Notifications.Get() != nil }, waitFor, tick)
	assert.Equal(t, weather.KindUnsupported, c.Notifications.Get().Kind)
}

func TestCloseStopsAllUpdates(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)
	updates, cancel := c.Weather.Subscribe()
	defer cancel()
	<-updates

	client.hold("Paris")
	c.SearchByCity("Paris")
	require.Eventually(t, func() bool { return len(client.weatherCalls()) == 1 }, waitFor, tick)

	c.SearchByCity("Berlin")
	c.Close()
	client.release("Paris")
	time.Sleep(5 * testDebounce)

	assert.Nil(t, c.Weather.Get())
	assert.Len(t, client.weatherCalls(), 1)
	_, open := <-updates
	assert.False(t, open)

	c.SearchByCity("Rome")
	c.SearchByCoordinates(weather.Coordinate{Lat: 1, Lon: 1})
	c.Refresh()
	c.Close()
	assert.Len(t, client.weatherCalls(), 1)
}

func TestSubscribersSeeLatestSnapshot(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client, nil, nil)
	updates, cancel := c.Weather.Subscribe()
	defer cancel()

	assert.Nil(t, <-updates)
	c.SearchByCity("Paris")

	select {
	case snap := <-updates:
		require.NotNil(t, snap)
		assert.Equal(t, "Paris", snap.Name)
	case <-time.After(waitFor):
		t.Fatal("no snapshot published")
	}
}

func TestCoordinateSearchesReplayFromCache(t *testing.T) {
	client := newFakeClient()
	c := New(client, store.NewMemoryStore(16, time.Minute), nil, Options{
		Debounce: testDebounce,
		Now:      func() time.Time { return testNow },
	})
	t.Cleanup(c.Close)
	here := weather.Coordinate{Lat: 1, Lon: 2}
	there := weather.Coordinate{Lat: 3, Lon: 4}

	c.SearchByCoordinates(here)
	require.Eventually(t, func() bool { return len(client.forecastCalls()) == 1 }, waitFor, tick)
	c.SearchByCoordinates(there)
	require.Eventually(t, func() bool { return len(client.forecastCalls()) == 2 }, waitFor, tick)
	c.SearchByCoordinates(here)
	require.Eventually(t, func() bool {
		fc := forecastCoord(c)
		return weatherName(c) == here.String() && fc != nil && *fc == here
	}, waitFor, tick)

	assert.Len(t, client.weatherCalls(), 2)
	assert.Len(t, client.forecastCalls(), 2)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultDebounce, o.Debounce)
	assert.Equal(t, DefaultFetchTimeout, o.FetchTimeout)
	assert.Equal(t, DefaultCacheTTL, o.CacheTTL)
	assert.Equal(t, weather.NewAggregator(), o.Aggregator)
	assert.NotNil(t, o.Now)

	assert.Zero(t, Options{CacheTTL: -1}.withDefaults().CacheTTL)
}
