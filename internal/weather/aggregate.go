package weather

import (
	"sort"
	"time"
)

const (
	// DefaultDailyDays is the number of daily buckets in a ForecastView.
	DefaultDailyDays = 5
	// DefaultHourlyWindow is the number of upcoming samples in a ForecastView.
	DefaultHourlyWindow = 8
)

// Aggregator builds daily and hourly views from a raw forecast series.
type Aggregator struct {
	Days  int
	Hours int
}

// NewAggregator returns an Aggregator with the default 5 days / 8 samples limits.
func NewAggregator() Aggregator {
	return Aggregator{Days: DefaultDailyDays, Hours: DefaultHourlyWindow}
}

// Aggregate partitions samples by UTC calendar day and collects the samples
// strictly after now. The input is never modified; both views are rebuilt on
// every call. Empty input yields empty (non-nil) views.
func (a Aggregator) Aggregate(samples []ForecastSample, now time.Time) ForecastView {
	return ForecastView{
		Daily:  a.daily(samples),
		Hourly: NextWindow(samples, now, a.Hours),
	}
}

func (a Aggregator) daily(samples []ForecastSample) []DailyBucket {
	type dayRange struct {
		min, max float64
	}

	ranges := make(map[string]*dayRange)
	for _, s := range samples {
		k := DayKey(s.Time)
		r, ok := ranges[k]
		if !ok {
			ranges[k] = &dayRange{min: s.Temp, max: s.Temp}
			continue
		}
		if s.Temp < r.min {
			r.min = s.Temp
		}
		if s.Temp > r.max {
			r.max = s.Temp
		}
	}

	buckets := make([]DailyBucket, 0, len(ranges))
	for _, rep := range FirstPerDay(samples) {
		r := ranges[DayKey(rep.Time)]
		rep.TempMin = r.min
		rep.TempMax = r.max
		buckets = append(buckets, DailyBucket{Day: StartOfDay(rep.Time), ForecastSample: rep})
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Day.Before(buckets[j].Day)
	})

	if a.Days >= 0 && len(buckets) > a.Days {
		buckets = buckets[:a.Days]
	}
	return buckets
}
