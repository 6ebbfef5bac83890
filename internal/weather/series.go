package weather

import "time"

const dayKeyLayout = "2006-01-02"

// DayKey returns the UTC calendar day of t, e.g. "2024-03-01".
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	ts := t.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// FirstPerDay keeps the first sample of every UTC calendar day, in input order.
func FirstPerDay(samples []ForecastSample) []ForecastSample {
	seen := make(map[string]bool)
	out := make([]ForecastSample, 0, len(samples))
	for _, s := range samples {
		k := DayKey(s.Time)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// NextWindow returns, in input order, up to n samples strictly later than now.
func NextWindow(samples []ForecastSample, now time.Time, n int) []ForecastSample {
	out := make([]ForecastSample, 0, n)
	if n <= 0 {
		return out
	}
	for _, s := range samples {
		if !s.Time.After(now) {
			continue
		}
		out = append(out, s)
		if len(out) >= n {
			break
		}
	}
	return out
}
