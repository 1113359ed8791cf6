package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
)

const (
	serviceName    = "pricewise-backend"
	serviceVersion = "1.0.0"

	// cacheHeader reports HIT or MISS so cached bodies stay identical to fresh ones
	cacheHeader = "X-Cache"
)

// Predictor is the part of the prediction service the handlers use
type Predictor interface {
	PredictRequest(ctx context.Context, req domain.PredictionRequest) (*domain.PredictionResult, bool, error)
	Metadata(category domain.Category) (*domain.BundleMetadata, error)
	LoadedCategories() []domain.Category
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	predictor Predictor
	logger    logging.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(predictor Predictor, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Handler{predictor: predictor, logger: logger}
}

// HealthCheck reports which categories can be served. It answers 503 until
// at least one bundle is loaded.
func (h *Handler) HealthCheck(c *gin.Context) {
	loaded := []domain.Category{}
	if h.predictor != nil {
		loaded = append(loaded, h.predictor.LoadedCategories()...)
	}

	status, code := "healthy", http.StatusOK
	switch {
	case len(loaded) == 0:
		status, code = "unavailable", http.StatusServiceUnavailable
	case len(loaded) < len(domain.AllCategories()):
		status = "degraded"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": serviceName,
		"version": serviceVersion,
		"models":  loaded,
	})
}

// Predict handles price prediction requests
func (h *Handler) Predict(c *gin.Context) {
	if h.predictor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prediction service not configured"})
		return
	}

	var req domain.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, hit, err := h.predictor.PredictRequest(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if hit {
		c.Header(cacheHeader, "HIT")
	} else {
		c.Header(cacheHeader, "MISS")
	}
	c.JSON(http.StatusOK, result)
}

// ModelInfo returns the metadata document of the live bundle for a category
func (h *Handler) ModelInfo(c *gin.Context) {
	if h.predictor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prediction service not configured"})
		return
	}

	category, err := domain.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	meta, err := h.predictor.Metadata(category)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and answered without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	var inputErr *domain.PredictionInputError
	switch {
	case errors.As(err, &inputErr):
		body := gin.H{"error": inputErr.Error()}
		if inputErr.Field != "" {
			body["field"] = inputErr.Field
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, domain.ErrUnknownCategory), errors.Is(err, domain.ErrMissingRequiredField):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrModelNotLoaded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		h.logger.WithError(err).Error("Request failed", map[string]interface{}{
			"path":       c.FullPath(),
			"request_id": c.GetString(requestIDKey),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
