package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	resolutions       *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	generatorFailures *prometheus.CounterVec
	generatorLatency  *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		resolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crudedesk_resolutions_total",
				Help: "Total artifact resolutions by kind and source tier",
			},
			[]string{"kind", "source"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crudedesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		generatorFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crudedesk_generator_failures_total",
				Help: "Total generator invocations that failed",
			},
			[]string{"kind"},
		),
		generatorLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crudedesk_generator_duration_seconds",
				Help:    "Duration of generator invocations in seconds",
				Buckets: []float64{1, 5, 10, 20, 30, 60, 90, 120, 180},
			},
			[]string{"kind"},
		),
	}
}

// RecordResolution records a resolve() outcome by source tier.
func (r *Recorder) RecordResolution(kind, source string) {
	r.resolutions.WithLabelValues(kind, source).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordGeneratorFailure records a failed generator invocation.
func (r *Recorder) RecordGeneratorFailure(kind string) {
	r.generatorFailures.WithLabelValues(kind).Inc()
}

// RecordGeneratorLatency records generator latency in seconds.
func (r *Recorder) RecordGeneratorLatency(kind string, seconds float64) {
	r.generatorLatency.WithLabelValues(kind).Observe(seconds)
}
