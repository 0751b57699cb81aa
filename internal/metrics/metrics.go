// Package metrics exposes Prometheus collectors for the scrape service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeCyclesTotal           *prometheus.CounterVec
	scrapeDurationSeconds       *prometheus.HistogramVec
	scrapeBytesTotal            *prometheus.CounterVec
	consecutiveErrors           *prometheus.GaugeVec
	lastSuccessTimestampSeconds *prometheus.GaugeVec
	entitiesPublishedTotal      *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapeCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weerwacht_scrape_cycles_total",
				Help: "Total number of refresh cycles, labeled by location and outcome.",
			},
			[]string{"location", "outcome"},
		)

		scrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weerwacht_scrape_duration_seconds",
				Help:    "Histogram of full refresh cycle latencies, labeled by location.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"location"},
		)

		scrapeBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weerwacht_scrape_bytes_total",
				Help: "Total number of markup bytes fetched, labeled by location.",
			},
			[]string{"location"},
		)

		consecutiveErrors = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "weerwacht_consecutive_errors",
				Help: "Current consecutive failed cycle count per location.",
			},
			[]string{"location"},
		)

		lastSuccessTimestampSeconds = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "weerwacht_last_success_timestamp_seconds",
				Help: "Unix timestamp of the last successful cycle per location.",
			},
			[]string{"location"},
		)

		entitiesPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weerwacht_entities_published_total",
				Help: "Total entity state publications, labeled by location and sink.",
			},
			[]string{"location", "sink"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records the outcome of one refresh cycle.
func ObserveCycle(location, outcome string, duration time.Duration, bytesFetched int) {
	scrapeCyclesTotal.WithLabelValues(location, outcome).Inc()
	scrapeDurationSeconds.WithLabelValues(location).Observe(duration.Seconds())
	if bytesFetched > 0 {
		scrapeBytesTotal.WithLabelValues(location).Add(float64(bytesFetched))
	}
}

// SetConsecutiveErrors updates the per-location failure streak gauge.
func SetConsecutiveErrors(location string, count int) {
	consecutiveErrors.WithLabelValues(location).Set(float64(count))
}

// SetLastSuccess records the timestamp of a successful cycle.
func SetLastSuccess(location string, at time.Time) {
	lastSuccessTimestampSeconds.WithLabelValues(location).Set(float64(at.Unix()))
}

// ObservePublish counts one batch of entity states sent to a sink.
func ObservePublish(location, sink string) {
	entitiesPublishedTotal.WithLabelValues(location, sink).Inc()
}
