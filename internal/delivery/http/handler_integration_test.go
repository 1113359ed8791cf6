package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewise/backend/config"
	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
	"github.com/pricewise/backend/internal/infrastructure/metrics"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakePredictor struct {
	loaded  []domain.Category
	result  *domain.PredictionResult
	hit     bool
	err     error
	lastReq domain.PredictionRequest
}

func (f *fakePredictor) PredictRequest(_ context.Context, req domain.PredictionRequest) (*domain.PredictionResult, bool, error) {
	f.lastReq = req
	return f.result, f.hit, f.err
}

func (f *fakePredictor) Metadata(category domain.Category) (*domain.BundleMetadata, error) {
	for _, c := range f.loaded {
		if c == category {
			return &domain.BundleMetadata{
				Version:      "20240101T000000.000000000Z-abcd1234",
				Category:     category,
				ModelType:    domain.ModelTypeBlendedTrees,
				FeatureNames: []string{"ram_gb", "storage_gb"},
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrModelNotLoaded, category)
}

func (f *fakePredictor) LoadedCategories() []domain.Category {
	return f.loaded
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		RateLimit: config.RateLimitConfig{PerIP: 600, Burst: 100},
	}
}

// setupTestRouter creates a router around predictor with metrics on a private registry
func setupTestRouter(t *testing.T, predictor Predictor) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	logger := logging.NewTestLogger(t)
	router := SetupRouter(testConfig(), NewHandler(predictor, logger), RouterOptions{
		Logger:   logger,
		Observer: metrics.NewRecorder(reg),
		Gatherer: reg,
	})
	require.NotNil(t, router)
	return router, reg
}

func samplePrediction() *domain.PredictionResult {
	return &domain.PredictionResult{
		PredictedPrice:  54000,
		ConfidenceScore: 0.82,
		ConfidenceLower: 50000,
		ConfidenceUpper: 58000,
		PriceRangeMin:   48600,
		PriceRangeMax:   59400,
		Recommendation:  "High confidence",
		ModelVersion:    "v1",
	}
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthCheckEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		loaded     []domain.Category
		wantStatus int
		wantState  string
	}{
		{name: "all models loaded", loaded: domain.AllCategories(), wantStatus: http.StatusOK, wantState: "healthy"},
		{name: "some models loaded", loaded: []domain.Category{domain.CategoryMobile}, wantStatus: http.StatusOK, wantState: "degraded"},
		{name: "no models loaded", wantStatus: http.StatusServiceUnavailable, wantState: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupTestRouter(t, &fakePredictor{loaded: tt.loaded})
			w := doJSON(router, "GET", "/health", "")

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.wantState, body["status"])
			assert.Equal(t, "pricewise-backend", body["service"])
			assert.Len(t, body["models"], len(tt.loaded))
		})
	}

	t.Run("accepts GET requests only", func(t *testing.T) {
		router, _ := setupTestRouter(t, &fakePredictor{})
		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := doJSON(router, method, "/health", "")
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestPredictEndpoint(t *testing.T) {
	t.Run("returns prediction", func(t *testing.T) {
		predictor := &fakePredictor{loaded: domain.AllCategories(), result: samplePrediction()}
		router, _ := setupTestRouter(t, predictor)

		w := doJSON(router, "POST", "/api/v1/predict",
			`{"category":"mobile","title":"iPhone 13","brand":"Apple","ram":4,"storage":128,"has_pta":true}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, 54000.0, body["predicted_price"])
		assert.Equal(t, 0.82, body["confidence_score"])
		assert.Equal(t, "High confidence", body["recommendation"])
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

		assert.Equal(t, "mobile", predictor.lastReq.Category)
		require.NotNil(t, predictor.lastReq.RAM)
		assert.Equal(t, 4.0, *predictor.lastReq.RAM)
		require.NotNil(t, predictor.lastReq.HasPTA)
		assert.True(t, *predictor.lastReq.HasPTA)
	})

	t.Run("cache hit only changes the header", func(t *testing.T) {
		predictor := &fakePredictor{loaded: domain.AllCategories(), result: samplePrediction()}
		router, _ := setupTestRouter(t, predictor)
		body := `{"category":"mobile","title":"iPhone 13","brand":"Apple"}`

		miss := doJSON(router, "POST", "/api/v1/predict", body)
		predictor.hit = true
		hit := doJSON(router, "POST", "/api/v1/predict", body)

		require.Equal(t, http.StatusOK, hit.Code)
		assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))
		assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
		assert.Equal(t, miss.Body.String(), hit.Body.String())
		assert.NotContains(t, hit.Body.String(), "cached")
	})

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantField  string
	}{
		{name: "malformed json", body: `{"category":`, wantStatus: http.StatusBadRequest},
		{name: "missing category", body: `{"title":"sofa"}`, wantStatus: http.StatusBadRequest},
		{
			name:       "missing required field",
			body:       `{"category":"laptop","title":"mystery laptop"}`,
			err:        &domain.PredictionInputError{Category: "laptop", Field: "brand", Err: domain.ErrMissingRequiredField},
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "brand",
		},
		{
			name:       "unknown category",
			body:       `{"category":"boat"}`,
			err:        &domain.PredictionInputError{Category: "boat", Err: domain.ErrUnknownCategory},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "model not loaded",
			body:       `{"category":"furniture","title":"sofa"}`,
			err:        fmt.Errorf("%w: furniture", domain.ErrModelNotLoaded),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unexpected failure",
			body:       `{"category":"mobile","title":"phone"}`,
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupTestRouter(t, &fakePredictor{err: tt.err})
			w := doJSON(router, "POST", "/api/v1/predict", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			body := decode(t, w)
			assert.NotEmpty(t, body["error"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, body["field"])
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, body["error"], "disk on fire")
			}
		})
	}

	t.Run("validates HTTP method", func(t *testing.T) {
		router, _ := setupTestRouter(t, &fakePredictor{})
		for _, method := range []string{"GET", "PUT", "DELETE", "PATCH"} {
			w := doJSON(router, method, "/api/v1/predict", "")
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestModelInfoEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, &fakePredictor{loaded: []domain.Category{domain.CategoryLaptop}})

	t.Run("returns metadata", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/models/laptop", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "laptop", body["category"])
		assert.Equal(t, domain.ModelTypeBlendedTrees, body["model_type"])
	})

	t.Run("category is case insensitive", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/models/LAPTOP", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not loaded", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/models/mobile", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/models/boat", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNilPredictor(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	w := doJSON(router, "POST", "/api/v1/predict", `{"category":"mobile"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(router, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, &fakePredictor{loaded: domain.AllCategories(), result: samplePrediction()})

	doJSON(router, "POST", "/api/v1/predict", `{"category":"mobile","title":"x"}`)
	w := doJSON(router, "GET", "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pricewise_http_requests_total{method="POST",route="/api/v1/predict",status="200"} 1`)
}

func TestCORSIntegration(t *testing.T) {
	router, _ := setupTestRouter(t, &fakePredictor{loaded: domain.AllCategories(), result: samplePrediction()})

	req := httptest.NewRequest("POST", "/api/v1/predict", strings.NewReader(`{"category":"mobile"}`))
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRateLimitIntegration(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{PerIP: 1, Burst: 1}
	router := SetupRouter(cfg, NewHandler(&fakePredictor{loaded: domain.AllCategories()}, nil), RouterOptions{})

	first := doJSON(router, "GET", "/api/v1/models/mobile", "")
	second := doJSON(router, "GET", "/api/v1/models/mobile", "")
	health := doJSON(router, "GET", "/health", "")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusOK, health.Code)
}
