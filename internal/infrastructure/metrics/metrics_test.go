package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewise/backend/internal/ml"
)

func TestRecorder_Prediction(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ObservePrediction("mobile", 3*time.Millisecond, nil)
	r.ObservePrediction("mobile", time.Millisecond, errors.New("boom"))
	r.ObserveCache(true)
	r.ObserveCache(false)
	r.ObserveCache(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.PredictionsTotal.WithLabelValues("mobile", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PredictionsTotal.WithLabelValues("mobile", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheMissesTotal))
}

func TestRecorder_Training(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ObserveTraining("laptop", time.Second, ml.RegressionMetrics{R2: 0.87, MAPE: 11.5}, nil)
	r.ObserveTraining("laptop", time.Second, ml.RegressionMetrics{R2: -3}, errors.New("too few rows"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.TrainingRunsTotal.WithLabelValues("laptop", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TrainingRunsTotal.WithLabelValues("laptop", "error")))
	assert.Equal(t, 0.87, testutil.ToFloat64(r.ModelR2.WithLabelValues("laptop")))
	assert.Equal(t, 11.5, testutil.ToFloat64(r.ModelMAPE.WithLabelValues("laptop")))
}

func TestRecorder_HTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveHTTP("/api/v1/predict", "POST", 200, 5*time.Millisecond)
	r.ObserveHTTP("/api/v1/predict", "POST", 422, time.Millisecond)
	r.ObserveRateLimited()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequestsTotal.WithLabelValues("/api/v1/predict", "POST", "422")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RateLimitedTotal))

	count, err := testutil.GatherAndCount(reg, "pricewise_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewRecorder_IsolatedRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewRecorder(prometheus.NewRegistry())
		NewRecorder(prometheus.NewRegistry())
	})
}
