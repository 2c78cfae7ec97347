package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache controller paths.
const (
	PathFresh       = "fresh"
	PathLive        = "live"
	PathFallback    = "fallback"
	PathUnavailable = "unavailable"
	PathWarming     = "warming"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: []float64{0.1, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	cacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_cache_requests_total",
		Help: "Quote requests by exchange and the cache path that served them",
	}, []string{"exchange", "path"})

	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_fetch_failures_total",
		Help: "Failed exchange fetches",
	}, []string{"exchange"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quote_fetch_duration_seconds",
		Help:    "Duration of exchange fetches",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"exchange"})

	consecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quote_consecutive_failures",
		Help: "Current failure streak per exchange",
	}, []string{"exchange"})

	publishErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_publish_errors_total",
		Help: "Snapshot publish failures by sink",
	}, []string{"sink"})
)

func IncCachePath(exchange, path string) {
	cacheRequestsTotal.WithLabelValues(exchange, path).Inc()
}

func ObserveFetch(exchange string, seconds float64, failed bool) {
	fetchDuration.WithLabelValues(exchange).Observe(seconds)
	if failed {
		fetchFailuresTotal.WithLabelValues(exchange).Inc()
	}
}

func SetConsecutiveFailures(exchange string, n int) {
	consecutiveFailures.WithLabelValues(exchange).Set(float64(n))
}

func IncPublishError(sink string) {
	publishErrorsTotal.WithLabelValues(sink).Inc()
}
