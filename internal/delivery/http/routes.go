package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pricewise/backend/config"
	"github.com/pricewise/backend/internal/infrastructure/logging"
)

// RouterOptions carries optional collaborators. A nil Observer disables
// request metrics; a nil Gatherer disables the /metrics endpoint.
type RouterOptions struct {
	Logger   logging.Logger
	Observer HTTPObserver
	Gatherer prometheus.Gatherer
}

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, opts RouterOptions) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	router := gin.New()

	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	if opts.Observer != nil {
		router.Use(MetricsMiddleware(opts.Observer))
	}
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP, cfg.RateLimit.Burst, opts.Observer))
	{
		v1.POST("/predict", handler.Predict)
		v1.GET("/models/:category", handler.ModelInfo)
	}

	return router
}
