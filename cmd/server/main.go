package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pricewise/backend/config"
	httpDelivery "github.com/pricewise/backend/internal/delivery/http"
	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/artifact"
	"github.com/pricewise/backend/internal/infrastructure/cache"
	"github.com/pricewise/backend/internal/infrastructure/logging"
	"github.com/pricewise/backend/internal/infrastructure/metrics"
	"github.com/pricewise/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server stopped with error", nil)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting PriceWise backend", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"cache_type":  cfg.Cache.Type,
		"cache_ttl":   cfg.Cache.TTL.String(),
		"artifacts":   cfg.Artifacts.Dir,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	predictionCache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	store, err := artifact.NewStore(cfg.Artifacts.Dir, cfg.Artifacts.KeepVersions, logger.WithFields(map[string]interface{}{"component": "artifacts"}))
	if err != nil {
		return err
	}

	extractor := usecase.NewFeatureExtractor(usecase.NewScoreTables(), logger)
	preCfg, err := preprocessorConfig(cfg)
	if err != nil {
		return err
	}
	preprocessor := usecase.NewPreprocessor(preCfg, logger)
	service := usecase.NewPredictionService(
		usecase.PredictionConfig{PriceBand: cfg.Prediction.PriceBand, CacheTTL: cfg.Cache.TTL},
		extractor,
		preprocessor,
		store,
		predictionCache,
		recorder,
		logger.WithFields(map[string]interface{}{"component": "prediction"}),
	)

	if loaded := loadAll(ctx, service, logger); loaded == 0 {
		return errors.New("no model bundle could be loaded; run the trainer first")
	}
	go reloadOnHangup(ctx, service, logger)

	handler := httpDelivery.NewHandler(service, logger)
	router := httpDelivery.SetupRouter(cfg, handler, httpDelivery.RouterOptions{
		Logger:   logger.WithFields(map[string]interface{}{"component": "http"}),
		Observer: recorder,
		Gatherer: registry,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCache builds the configured prediction cache and its closer
func newCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, func(), error) {
	if cfg.Cache.Type == "redis" {
		c, err := cache.NewRedisCacheFromURL(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect prediction cache: %w", err)
		}
		return c, func() { _ = c.Close() }, nil
	}
	c := cache.NewMemoryCache(cache.DefaultCleanupInterval)
	return c, func() { _ = c.Close() }, nil
}

// loadAll loads every category independently and returns how many are live
func loadAll(ctx context.Context, service *usecase.PredictionService, logger logging.Logger) int {
	loaded := 0
	for _, category := range domain.AllCategories() {
		if err := service.Reload(ctx, category); err != nil {
			logger.WithError(err).Warn("Model bundle not available", map[string]interface{}{"category": category})
			continue
		}
		loaded++
	}
	return loaded
}

// reloadOnHangup swaps in the store's current bundles on SIGHUP
func reloadOnHangup(ctx context.Context, service *usecase.PredictionService, logger logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			n := loadAll(ctx, service, logger)
			logger.Info("Model bundles reloaded", map[string]interface{}{"loaded": n})
		}
	}
}

// preprocessorConfig maps the training filters from config onto the preprocessor
func preprocessorConfig(cfg *config.Config) (usecase.PreprocessorConfig, error) {
	overrides := make(map[string]usecase.PriceBounds, len(cfg.Training.PriceBounds))
	for name, b := range cfg.Training.PriceBounds {
		overrides[name] = usecase.PriceBounds(b)
	}
	bounds, err := usecase.MergePriceBounds(overrides)
	if err != nil {
		return usecase.PreprocessorConfig{}, fmt.Errorf("training price bounds: %w", err)
	}
	return usecase.PreprocessorConfig{ZScoreThreshold: cfg.Training.ZScoreThreshold, Bounds: bounds}, nil
}
