package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ratecache"

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RateRequestsTotal       prometheus.Counter
	QuoteRequestsTotal      prometheus.Counter
	ConversionRequestsTotal prometheus.Counter

	// CacheLookupsTotal is labelled by result: fresh, stale or miss.
	CacheLookupsTotal *prometheus.CounterVec

	// RemoteFetchesTotal is labelled by outcome: success or failure.
	RemoteFetchesTotal    *prometheus.CounterVec
	RemoteFetchDuration   prometheus.Histogram
	CoalescedFetchesTotal prometheus.Counter
	StaleFallbacksTotal   prometheus.Counter

	// PersistenceErrorsTotal is labelled by op: load or save.
	PersistenceErrorsTotal *prometheus.CounterVec
	CachedPairs            prometheus.Gauge
}

// NewMetrics registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		RateRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_requests_total",
				Help: "Total number of exchange rate requests",
			},
		),

		QuoteRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "quote_requests_total",
				Help: "Total number of uncached quote requests",
			},
		),

		ConversionRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conversion_requests_total",
				Help: "Total number of currency conversion requests",
			},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Rate cache lookups by result",
			},
			[]string{"result"},
		),

		RemoteFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_fetches_total",
				Help:      "Remote quote fetches by outcome",
			},
			[]string{"outcome"},
		),

		RemoteFetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_fetch_duration_seconds",
				Help:      "Remote quote fetch latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		CoalescedFetchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coalesced_fetches_total",
				Help:      "Callers that shared an in-flight fetch started by another caller",
			},
		),

		StaleFallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_fallbacks_total",
				Help:      "Requests served from an expired cache entry after a failed fetch",
			},
		),

		PersistenceErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_errors_total",
				Help:      "Failed snapshot loads and saves",
			},
			[]string{"op"},
		),

		CachedPairs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cached_pairs",
				Help:      "Number of pairs held in the rate cache",
			},
		),
	}
}
