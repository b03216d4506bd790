package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the search pipeline.
type Metrics struct {
	Registry         *prometheus.Registry
	UnitsTotal       *prometheus.CounterVec
	UnitDuration     *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	ListingsReturned prometheus.Histogram
	RobotsBlocked    *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	units := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closeshave_merchant_units_total",
			Help: "Per-merchant search units by outcome.",
		},
		[]string{"merchant", "outcome"},
	)
	unitDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "closeshave_merchant_unit_duration_seconds",
			Help:    "Wall time of one merchant's cache lookup and scrape.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"merchant"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closeshave_cache_lookups_total",
			Help: "Search cache lookups by result.",
		},
		[]string{"result"},
	)
	listings := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "closeshave_search_listings",
			Help:    "Listings returned per search after truncation.",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)
	robots := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closeshave_robots_blocked_total",
			Help: "Searches skipped because robots.txt disallowed the URL.",
		},
		[]string{"merchant"},
	)

	registry.MustRegister(units, unitDuration, cacheLookups, listings, robots)

	return &Metrics{
		Registry:         registry,
		UnitsTotal:       units,
		UnitDuration:     unitDuration,
		CacheLookups:     cacheLookups,
		ListingsReturned: listings,
		RobotsBlocked:    robots,
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveUnit records one merchant unit's outcome and duration.
func (m *Metrics) ObserveUnit(merchant, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UnitsTotal.WithLabelValues(merchant, outcome).Inc()
	m.UnitDuration.WithLabelValues(merchant).Observe(d.Seconds())
}

// IncCache counts a cache lookup; result is "hit", "miss" or "error".
func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveListings(n int) {
	if m == nil {
		return
	}
	m.ListingsReturned.Observe(float64(n))
}

func (m *Metrics) IncRobotsBlocked(merchant string) {
	if m == nil {
		return
	}
	m.RobotsBlocked.WithLabelValues(merchant).Inc()
}
