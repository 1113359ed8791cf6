package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pricewise/backend/config"
	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/artifact"
	"github.com/pricewise/backend/internal/infrastructure/listing"
	"github.com/pricewise/backend/internal/infrastructure/logging"
	"github.com/pricewise/backend/internal/infrastructure/metrics"
	"github.com/pricewise/backend/internal/usecase"
)

type options struct {
	categories  string
	source      string
	csvPath     string
	dryRun      bool
	metricsFile string
}

func main() {
	var opts options
	flag.StringVar(&opts.categories, "categories", "mobile,laptop,furniture", "comma separated categories to train")
	flag.StringVar(&opts.source, "source", "", "listing source: csv or postgres (default from config)")
	flag.StringVar(&opts.csvPath, "csv", "", "CSV file for the csv source (default from config)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "train and evaluate without persisting")
	flag.StringVar(&opts.metricsFile, "metrics-file", "", "write training metrics in Prometheus text format to this file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, opts, logger)
	stop()
	if err != nil {
		logger.WithError(err).Error("Training failed", nil)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, cfg *config.Config, opts options, logger logging.Logger) error {
	categories, err := parseCategories(opts.categories)
	if err != nil {
		return err
	}

	source, closeSource, err := newSource(cfg, opts, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	store, err := artifact.NewStore(cfg.Artifacts.Dir, cfg.Artifacts.KeepVersions, logger)
	if err != nil {
		return err
	}

	transform, err := domain.ParseTargetTransform(cfg.Training.TargetTransform)
	if err != nil {
		return err
	}
	members, err := usecase.ApplyWeights(usecase.DefaultMembers(cfg.Training.Seed), cfg.Training.Weights)
	if err != nil {
		return err
	}

	preCfg, err := preprocessorConfig(cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	trainer, err := usecase.NewEnsembleTrainer(
		usecase.TrainerConfig{
			MinRows:         cfg.Training.MinRows,
			TestFraction:    cfg.Training.TestFraction,
			Seed:            cfg.Training.Seed,
			TargetTransform: transform,
			Members:         members,
		},
		usecase.NewFeatureExtractor(usecase.NewScoreTables(), logger),
		usecase.NewPreprocessor(preCfg, logger),
		store,
		recorder,
		logger,
	)
	if err != nil {
		return err
	}

	var failed []string
	for _, category := range categories {
		if err := trainCategory(ctx, trainer, source, category, opts.dryRun, logger); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.WithError(err).Error("Category training failed", map[string]interface{}{"category": category})
			failed = append(failed, string(category))
		}
	}

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, registry); err != nil {
			return fmt.Errorf("write metrics file: %w", err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("training failed for: %s", strings.Join(failed, ", "))
	}
	return nil
}

func trainCategory(ctx context.Context, trainer *usecase.EnsembleTrainer, source domain.ListingSource, category domain.Category, dryRun bool, logger logging.Logger) error {
	records, err := source.Listings(ctx, category)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}

	bundle, report, err := trainer.TrainFromRecords(ctx, category, records)
	if report != nil {
		logger.Info("Preprocessing report", map[string]interface{}{
			"category":              category,
			"input_rows":            report.InputRows,
			"dropped_bad_price":     report.DroppedBadPrice,
			"dropped_outliers":      report.DroppedOutliers,
			"dropped_out_of_bounds": report.DroppedOutOfBounds,
			"kept_rows":             report.KeptRows,
		})
	}
	if err != nil {
		return err
	}

	m := bundle.Metadata.Metrics
	logger.Info("Hold-out metrics", map[string]interface{}{
		"category":     category,
		"r2":           m.R2,
		"mae":          m.MAE,
		"median_ae":    m.MedianAE,
		"rmse":         m.RMSE,
		"mape":         m.MAPE,
		"within_10pct": m.Within10Pct,
		"within_20pct": m.Within20Pct,
		"within_25pct": m.Within25Pct,
	})

	if dryRun {
		return nil
	}
	_, err = trainer.Persist(ctx, bundle)
	return err
}

func parseCategories(s string) ([]domain.Category, error) {
	var out []domain.Category
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := domain.ParseCategory(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.New("no categories selected")
	}
	return out, nil
}

func newSource(cfg *config.Config, opts options, logger logging.Logger) (domain.ListingSource, func(), error) {
	kind := opts.source
	if kind == "" {
		kind = cfg.Training.Source
	}
	switch kind {
	case "csv":
		path := opts.csvPath
		if path == "" {
			path = cfg.Training.CSVPath
		}
		return listing.NewCSVSource(path, logger), func() {}, nil
	case "postgres":
		if cfg.Database.DSN == "" {
			return nil, nil, errors.New("database DSN is required for the postgres source")
		}
		src, err := listing.OpenPostgres(listing.PostgresConfig{
			DSN:          cfg.Database.DSN,
			Table:        cfg.Database.ListingsTable,
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown listing source %q", kind)
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
