// Package coordinator turns user searches into weather and forecast state.
//
// All state transitions run on a single event loop goroutine. Provider calls
// run concurrently and post their results back to the loop, where each one
// is checked against the generation of its search channel before it may
// touch published state.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-dashboard/internal/common"
	"github.com/i474232898/weather-dashboard/internal/metrics"
	"github.com/i474232898/weather-dashboard/internal/observable"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultFetchTimeout = 15 * time.Second
	DefaultCacheTTL     = 30 * time.Second
)

// Options tune a Coordinator. Zero values fall back to the defaults.
type Options struct {
	Debounce     time.Duration
	FetchTimeout time.Duration
	CacheTTL     time.Duration
	Aggregator   weather.Aggregator
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.CacheTTL < 0 {
		o.CacheTTL = 0
	} else if o.CacheTTL == 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.Aggregator.Days <= 0 && o.Aggregator.Hours <= 0 {
		o.Aggregator = weather.NewAggregator()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Forecast is the aggregated forecast for the location of a snapshot.
type Forecast struct {
	Coord  weather.Coordinate       `json:"coord"`
	Series []weather.ForecastSample `json:"series"`
	weather.ForecastView
	UpdatedAt time.Time `json:"updatedAt"`
}

// Notification is a user-facing failure message.
type Notification struct {
	ID      uuid.UUID         `json:"id"`
	Kind    weather.ErrorKind `json:"kind"`
	Message string            `json:"message"`
	Time    time.Time         `json:"time"`
}

type channel int

const (
	channelCity channel = iota
	channelCoords
)

func (c channel) String() string {
	if c == channelCity {
		return metrics.ChannelCity
	}
	return metrics.ChannelCoordinates
}

// search is the loop-owned state of one search channel.
type search struct {
	gen     uint64
	query   weather.Query
	ctx     context.Context
	cancel  context.CancelFunc
	pending bool
	issued  bool
}

func (s *search) release() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.ctx = nil
	}
}

// Coordinator owns the current weather, forecast, loading flag and
// notifications of the dashboard.
type Coordinator struct {
	Weather       *observable.Value[*weather.WeatherSnapshot]
	Forecast      *observable.Value[*Forecast]
	Loading       *observable.Value[bool]
	Notifications *observable.Value[*Notification]

	opts    Options
	fetcher *fetcher
	locator weather.Geolocator

	ctx      context.Context
	cancel   context.CancelFunc
	events   chan func()
	loopDone chan struct{}
	stopOnce sync.Once

	// loop-owned
	channels    [2]search
	last        *channel
	snapshotSeq uint64
	pendingCity string
	debounceSeq uint64
	debounce    *time.Timer
}

// New starts a Coordinator. cache and locator may be nil.
func New(client weather.Client, cache weather.ResponseCache, locator weather.Geolocator, opts Options) *Coordinator {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		Weather:       observable.New[*weather.WeatherSnapshot](nil),
		Forecast:      observable.New[*Forecast](nil),
		Loading:       observable.New(false),
		Notifications: observable.New[*Notification](nil),
		opts:          opts,
		fetcher: &fetcher{
			client:  client,
			cache:   cache,
			ttl:     opts.CacheTTL,
			timeout: opts.FetchTimeout,
		},
		locator:  locator,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan func(), 64),
		loopDone: make(chan struct{}),
	}

	go c.loop()
	log.Printf("INFO: coordinator: started with provider %s", client.Name())
	return c
}

// SearchByCity schedules a city search. Blank names are ignored; the search
// is issued once input has been quiet for the debounce period and only if
// the name differs from the previously issued one.
func (c *Coordinator) SearchByCity(name string) {
	name = common.NormalizeCity(name)
	if name == "" {
		metrics.SearchesSuppressed.WithLabelValues(metrics.ChannelCity, "blank").Inc()
		return
	}
	c.post(func() { c.debounceCity(name) })
}

// SearchByCoordinates issues a coordinate search unless it repeats the
// previously issued coordinates.
func (c *Coordinator) SearchByCoordinates(coord weather.Coordinate) {
	c.post(func() {
		st := &c.channels[channelCoords]
		if st.issued && st.query.Coord != nil && *st.query.Coord == coord {
			metrics.SearchesSuppressed.WithLabelValues(metrics.ChannelCoordinates, "unchanged").Inc()
			return
		}
		c.start(channelCoords, weather.CoordQuery(coord))
	})
}

// SearchHere resolves the current position and searches by it. A failed
// lookup is reported as a notification and leaves state untouched.
func (c *Coordinator) SearchHere(ctx context.Context) error {
	if c.locator == nil {
		err := fmt.Errorf("%w: no locator configured", weather.ErrUnsupported)
		c.post(func() { c.notify(err, "your location") })
		return err
	}

	pos, err := c.locator.CurrentPosition(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.post(func() { c.notify(err, "your location") })
		}
		return err
	}

	c.SearchByCoordinates(pos)
	return nil
}

// Refresh re-issues the most recently issued search, bypassing the
// unchanged-input check.
func (c *Coordinator) Refresh() {
	c.post(func() {
		if c.last == nil {
			return
		}
		ch := *c.last
		c.start(ch, c.channels[ch].query)
	})
}

// Close cancels in-flight work, stops pending timers and closes every
// observable. No state changes after Close returns.
func (c *Coordinator) Close() {
	c.stopOnce.Do(func() {
		c.cancel()
		<-c.loopDone

		c.Weather.Close()
		c.Forecast.Close()
		c.Loading.Close()
		c.Notifications.Close()
		log.Printf("INFO: coordinator: stopped")
	})
}

func (c *Coordinator) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) loop() {
	defer close(c.loopDone)
	for {
		select {
		case <-c.ctx.Done():
			c.teardown()
			return
		case fn := <-c.events:
			if c.ctx.Err() != nil {
				c.teardown()
				return
			}
			fn()
		}
	}
}

func (c *Coordinator) teardown() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	for i := range c.channels {
		c.channels[i].release()
	}
}

func (c *Coordinator) debounceCity(name string) {
	if c.debounce != nil {
		c.debounce.Stop()
		metrics.SearchesSuppressed.WithLabelValues(metrics.ChannelCity, "debounced").Inc()
	}
	c.pendingCity = name
	c.debounceSeq++
	seq := c.debounceSeq
	c.debounce = time.AfterFunc(c.opts.Debounce, func() {
		c.post(func() { c.flushCity(seq) })
	})
}

func (c *Coordinator) flushCity(seq uint64) {
	if seq != c.debounceSeq {
		return
	}
	c.debounce = nil

	st := &c.channels[channelCity]
	if st.issued && st.query.City == c.pendingCity {
		metrics.SearchesSuppressed.WithLabelValues(metrics.ChannelCity, "unchanged").Inc()
		return
	}
	c.start(channelCity, weather.CityQuery(c.pendingCity))
}

// start supersedes whatever the channel had in flight and issues q.
func (c *Coordinator) start(ch channel, q weather.Query) {
	st := &c.channels[ch]
	st.release()

	st.gen++
	st.query = q
	st.issued = true
	st.pending = true
	st.ctx, st.cancel = context.WithCancel(c.ctx)
	c.last = &ch
	c.updateLoading()

	gen, ctx := st.gen, st.ctx
	metrics.SearchesAccepted.WithLabelValues(ch.String()).Inc()
	log.Printf("DEBUG: coordinator: %s search %q (gen %d)", ch, q, gen)

	go func() {
		snap, err := c.fetcher.currentWeather(ctx, q)
		c.post(func() { c.onWeather(ch, gen, q, snap, err) })
	}()
}

func (c *Coordinator) onWeather(ch channel, gen uint64, q weather.Query, snap weather.WeatherSnapshot, err error) {
	st := &c.channels[ch]
	if gen != st.gen {
		metrics.StaleResults.WithLabelValues(ch.String(), fetchCurrent).Inc()
		log.Printf("DEBUG: coordinator: dropped stale %s weather for %q", ch, q)
		return
	}

	st.pending = false
	c.updateLoading()

	if err != nil {
		st.release()
		metrics.FetchFailures.WithLabelValues(fetchCurrent, string(weather.KindOf(err))).Inc()
		// Any forecast still in flight belongs to the cleared snapshot.
		c.snapshotSeq++
		c.Weather.Set(nil)
		c.notify(err, q.String())
		return
	}

	c.snapshotSeq++
	seq, ctx := c.snapshotSeq, st.ctx
	c.Weather.Set(&snap)
	log.Printf("INFO: coordinator: weather for %s updated (%s, %.1f°C)", snap.Name, snap.Description, snap.Temperature)

	coord := snap.Coord
	go func() {
		samples, err := c.fetcher.forecast(ctx, coord)
		c.post(func() { c.onForecast(ch, gen, seq, coord, samples, err) })
	}()
}

func (c *Coordinator) onForecast(ch channel, gen, seq uint64, coord weather.Coordinate, samples []weather.ForecastSample, err error) {
	st := &c.channels[ch]
	if gen != st.gen || seq != c.snapshotSeq {
		if gen == st.gen {
			st.release()
		}
		metrics.StaleResults.WithLabelValues(ch.String(), fetchForecast).Inc()
		log.Printf("DEBUG: coordinator: dropped stale %s forecast for %s", ch, coord)
		return
	}
	st.release()

	if err != nil {
		metrics.FetchFailures.WithLabelValues(fetchForecast, string(weather.KindOf(err))).Inc()
		c.notify(err, coord.String())
		return
	}

	now := c.opts.Now()
	c.Forecast.Set(&Forecast{
		Coord:        coord,
		Series:       samples,
		ForecastView: c.opts.Aggregator.Aggregate(samples, now),
		UpdatedAt:    now,
	})
}

func (c *Coordinator) updateLoading() {
	loading := c.channels[channelCity].pending || c.channels[channelCoords].pending
	if c.Loading.Get() != loading {
		c.Loading.Set(loading)
	}
}

func (c *Coordinator) notify(err error, subject string) {
	kind := weather.KindOf(err)
	log.Printf("ERROR: coordinator: %s: %v", subject, err)
	if kind == weather.KindInvalidInput {
		return
	}

	c.Notifications.Set(&Notification{
		ID:      uuid.New(),
		Kind:    kind,
		Message: message(kind, subject),
		Time:    c.opts.Now(),
	})
}

func message(kind weather.ErrorKind, subject string) string {
	switch kind {
	case weather.KindNotFound:
		return fmt.Sprintf("No weather found for %s", subject)
	case weather.KindPermissionDenied:
		return "Location access was denied"
	case weather.KindUnsupported:
		return "Location is not available on this device"
	default:
		return "Weather service is unavailable, please try again later"
	}
}
