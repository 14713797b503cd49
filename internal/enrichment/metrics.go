package enrichment

import "github.com/prometheus/client_golang/prometheus"

var (
	// cacheLookups counts Get calls by outcome: hit, miss, or stale.
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_cache_requests_total",
			Help: "Weather cache lookups by result.",
		},
		[]string{"result"},
	)

	// refreshes counts provider and shared-store fetches by mode and outcome.
	refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_refresh_total",
			Help: "Weather refresh attempts by mode (single|batch|shared) and outcome (success|failure).",
		},
		[]string{"mode", "outcome"},
	)

	refreshLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichment_refresh_duration_seconds",
			Help:    "Latency of weather provider calls.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"mode"},
	)

	cachedEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "enrichment_cache_entries",
			Help: "Number of weather entries held in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups, refreshes, refreshLatency, cachedEntries)
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
