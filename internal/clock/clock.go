// Package clock keeps the local time of the displayed city up to date.
package clock

import (
	"time"

	"github.com/i474232898/weather-dashboard/internal/observable"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// TickInterval is how often the city time is re-evaluated.
const TickInterval = time.Second

// CityTimeNow returns the instant now in a zone utcOffsetSeconds east of UTC.
func CityTimeNow(now time.Time, utcOffsetSeconds int) time.Time {
	return now.In(time.FixedZone("", utcOffsetSeconds))
}

// Synchronizer publishes the local time of the city of the current snapshot.
// Without a snapshot it falls back to the device's local time.
type Synchronizer struct {
	weather *observable.Value[*weather.WeatherSnapshot]
	now     func() time.Time

	// Time is the latest evaluated city time.
	Time *observable.Value[time.Time]
}

// NewSynchronizer creates a Synchronizer reading offsets from current.
func NewSynchronizer(current *observable.Value[*weather.WeatherSnapshot]) *Synchronizer {
	return newSynchronizer(current, time.Now)
}

func newSynchronizer(current *observable.Value[*weather.WeatherSnapshot], now func() time.Time) *Synchronizer {
	s := &Synchronizer{weather: current, now: now}
	s.Time = observable.New(s.evaluate())
	return s
}

// Tick re-evaluates the city time. It is registered as a recurring job.
func (s *Synchronizer) Tick() {
	s.Time.Set(s.evaluate())
}

func (s *Synchronizer) evaluate() time.Time {
	now := s.now()
	if snap := s.weather.Get(); snap != nil {
		return CityTimeNow(now, snap.UTCOffset)
	}
	return now.Local()
}

// Scheduler is the subset of scheduler.Scheduler used to drive ticks.
type Scheduler interface {
	Every(name string, interval time.Duration, fn func()) error
}

// Register binds the tick to s.
func (s *Synchronizer) Register(sched Scheduler) error {
	return sched.Every("city-clock", TickInterval, s.Tick)
}
