// Package metrics exposes the Prometheus instruments of the forecasting pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder groups the pipeline's counters and histograms.
type Recorder struct {
	providerAttempts *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	predictions      *prometheus.CounterVec
	confidence       *prometheus.HistogramVec
	exhausted        prometheus.Counter
}

// New registers the instruments with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		providerAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_provider_attempts_total",
				Help: "Total number of fetch attempts per data provider",
			},
			[]string{"provider"},
		),
		providerFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_provider_failures_total",
				Help: "Total number of failed or empty fetches per data provider",
			},
			[]string{"provider", "reason"},
		),
		providerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecast_provider_duration_seconds",
				Help:    "Duration of provider fetches in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
			},
			[]string{"provider"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_predictions_total",
				Help: "Total number of predictions by mode and direction",
			},
			[]string{"mode", "direction"},
		),
		confidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecast_prediction_confidence",
				Help:    "Confidence percentage of emitted predictions",
				Buckets: []float64{50, 55, 60, 65, 70, 75, 80, 85, 90, 95, 99},
			},
			[]string{"mode"},
		),
		exhausted: f.NewCounter(prometheus.CounterOpts{
			Name: "forecast_cascade_exhausted_total",
			Help: "Total number of fetches where every provider failed",
		}),
	}
}

// RecordAttempt counts one provider call and its latency.
func (r *Recorder) RecordAttempt(provider string, seconds float64) {
	if r == nil {
		return
	}
	r.providerAttempts.WithLabelValues(provider).Inc()
	r.providerLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordFailure counts a provider call that produced no usable bars.
func (r *Recorder) RecordFailure(provider, reason string) {
	if r == nil {
		return
	}
	r.providerFailures.WithLabelValues(provider, reason).Inc()
}

// RecordExhausted counts a cascade where no provider succeeded.
func (r *Recorder) RecordExhausted() {
	if r == nil {
		return
	}
	r.exhausted.Inc()
}

// RecordPrediction counts an emitted prediction.
func (r *Recorder) RecordPrediction(mode, direction string, confidence int) {
	if r == nil {
		return
	}
	r.predictions.WithLabelValues(mode, direction).Inc()
	r.confidence.WithLabelValues(mode).Observe(float64(confidence))
}
