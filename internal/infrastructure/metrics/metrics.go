// Package metrics exposes Prometheus collectors for training, prediction and HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pricewise/backend/internal/ml"
)

// Recorder owns every collector. It satisfies the usecase metrics interfaces.
type Recorder struct {
	// Prediction metrics
	PredictionsTotal   *prometheus.CounterVec
	PredictionDuration *prometheus.HistogramVec
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter

	// Training metrics
	TrainingRunsTotal *prometheus.CounterVec
	TrainingDuration  *prometheus.HistogramVec
	ModelR2           *prometheus.GaugeVec
	ModelMAPE         *prometheus.GaugeVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedTotal    prometheus.Counter
}

// NewRecorder registers all collectors with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		PredictionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewise_predictions_total",
				Help: "Total number of price predictions by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		PredictionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricewise_prediction_duration_seconds",
				Help:    "Duration of price predictions in seconds",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"category"},
		),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "pricewise_prediction_cache_hits_total",
			Help: "Total number of prediction cache hits",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "pricewise_prediction_cache_misses_total",
			Help: "Total number of prediction cache misses",
		}),
		TrainingRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewise_training_runs_total",
				Help: "Total number of training runs by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		TrainingDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricewise_training_duration_seconds",
				Help:    "Duration of training runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"category"},
		),
		ModelR2: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricewise_model_r2",
				Help: "Hold-out R2 of the last successful training run",
			},
			[]string{"category"},
		),
		ModelMAPE: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricewise_model_mape_percent",
				Help: "Hold-out MAPE of the last successful training run",
			},
			[]string{"category"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewise_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricewise_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		RateLimitedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "pricewise_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObservePrediction records one prediction
func (r *Recorder) ObservePrediction(category string, duration time.Duration, err error) {
	r.PredictionsTotal.WithLabelValues(category, outcome(err)).Inc()
	r.PredictionDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// ObserveCache records a cache lookup
func (r *Recorder) ObserveCache(hit bool) {
	if hit {
		r.CacheHitsTotal.Inc()
		return
	}
	r.CacheMissesTotal.Inc()
}

// ObserveTraining records a training run. Quality gauges only move on success.
func (r *Recorder) ObserveTraining(category string, duration time.Duration, m ml.RegressionMetrics, err error) {
	r.TrainingRunsTotal.WithLabelValues(category, outcome(err)).Inc()
	r.TrainingDuration.WithLabelValues(category).Observe(duration.Seconds())
	if err == nil {
		r.ModelR2.WithLabelValues(category).Set(m.R2)
		r.ModelMAPE.WithLabelValues(category).Set(m.MAPE)
	}
}

// ObserveHTTP records a served request
func (r *Recorder) ObserveHTTP(route, method string, status int, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// ObserveRateLimited counts a rejected request
func (r *Recorder) ObserveRateLimited() {
	r.RateLimitedTotal.Inc()
}
