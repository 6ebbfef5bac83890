package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search channels.
const (
	ChannelCity        = "city"
	ChannelCoordinates = "coordinates"
)

var (
	// SearchesAccepted counts searches that were issued to the provider.
	SearchesAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_dashboard_searches_accepted_total",
			Help: "Searches issued to the weather provider",
		},
		[]string{"channel"},
	)

	// SearchesSuppressed counts searches dropped before reaching the provider.
	SearchesSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_dashboard_searches_suppressed_total",
			Help: "Searches dropped as blank, debounced or unchanged",
		},
		[]string{"channel", "reason"},
	)

	// StaleResults counts provider results discarded because a newer search superseded them.
	StaleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_dashboard_stale_results_total",
			Help: "Provider results discarded because a newer search superseded them",
		},
		[]string{"channel", "fetch"},
	)

	// FetchFailures counts failed provider fetches by error kind.
	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_dashboard_fetch_failures_total",
			Help: "Failed provider fetches",
		},
		[]string{"fetch", "kind"},
	)

	// CacheRequests counts replay cache lookups by result.
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_dashboard_cache_requests_total",
			Help: "Replay cache lookups",
		},
		[]string{"fetch", "result"},
	)

	// FetchDuration observes provider round trips.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_dashboard_fetch_duration_seconds",
			Help:    "Provider fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"fetch"},
	)
)
