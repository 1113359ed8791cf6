package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
	"github.com/pricewise/backend/internal/ml"
)

// Training defaults
const (
	DefaultMinTrainingRows = 50
	DefaultTestFraction    = 0.2
	DefaultSeed            = 42
	StratifyBins           = 5
)

// MemberConfig describes one ensemble member. Exactly one of Boosting or Forest is set.
type MemberConfig struct {
	Name     string
	Weight   float64
	Boosting *ml.BoostingParams
	Forest   *ml.ForestParams
}

func (m MemberConfig) fit(ctx context.Context, x [][]float64, y []float64) (*ml.TreeEnsemble, error) {
	switch {
	case m.Boosting != nil:
		return ml.FitGradientBoosting(ctx, x, y, *m.Boosting)
	case m.Forest != nil:
		return ml.FitRandomForest(ctx, x, y, *m.Forest)
	}
	return nil, fmt.Errorf("member %s has no model parameters", m.Name)
}

// DefaultMembers returns the four blended regressors and their weights
func DefaultMembers(seed int64) []MemberConfig {
	return []MemberConfig{
		{
			Name:   "gbm_deep",
			Weight: 0.35,
			Boosting: &ml.BoostingParams{
				Rounds:       300,
				LearningRate: 0.05,
				Subsample:    0.8,
				Tree:         ml.TreeParams{MaxDepth: 8, MinSamplesLeaf: 3, Lambda: 1},
				Seed:         seed,
			},
		},
		{
			Name:   "gbm_wide",
			Weight: 0.35,
			Boosting: &ml.BoostingParams{
				Rounds:       300,
				LearningRate: 0.05,
				ColSample:    0.8,
				Tree:         ml.TreeParams{MaxLeaves: 63, MinSamplesLeaf: 10, Lambda: 5},
				Seed:         seed + 1,
			},
		},
		{
			Name:   "random_forest",
			Weight: 0.15,
			Forest: &ml.ForestParams{
				Trees:     200,
				Bootstrap: true,
				Tree:      ml.TreeParams{MaxDepth: 14, MinSamplesLeaf: 2, MaxFeatures: 0.5},
				Seed:      seed + 2,
			},
		},
		{
			Name:   "gbm_shallow",
			Weight: 0.15,
			Boosting: &ml.BoostingParams{
				Rounds:       150,
				LearningRate: 0.1,
				Tree:         ml.TreeParams{MaxDepth: 3, MinSamplesLeaf: 5},
				Seed:         seed + 3,
			},
		},
	}
}

// ApplyWeights overrides member weights by name. Unknown names are an error.
func ApplyWeights(members []MemberConfig, weights map[string]float64) ([]MemberConfig, error) {
	out := append([]MemberConfig(nil), members...)
	index := make(map[string]int, len(out))
	for i, m := range out {
		index[m.Name] = i
	}
	for name, w := range weights {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("blend weight for unknown member %q", name)
		}
		out[i].Weight = w
	}
	return out, ValidateWeights(out)
}

// ValidateWeights requires non-negative weights summing to 1 within tolerance
func ValidateWeights(members []MemberConfig) error {
	if len(members) == 0 {
		return errors.New("ensemble has no members")
	}
	var sum float64
	for _, m := range members {
		if m.Weight < 0 {
			return fmt.Errorf("member %s has negative weight %g", m.Name, m.Weight)
		}
		sum += m.Weight
	}
	if math.Abs(sum-1) > domain.WeightTolerance {
		return fmt.Errorf("blend weights sum to %g, want 1", sum)
	}
	return nil
}

// TrainerConfig tunes a training run
type TrainerConfig struct {
	MinRows         int
	TestFraction    float64
	Seed            int64
	TargetTransform domain.TargetTransform
	Members         []MemberConfig
}

// TrainingMetrics receives training outcomes
type TrainingMetrics interface {
	ObserveTraining(category string, duration time.Duration, metrics ml.RegressionMetrics, err error)
}

// EnsembleTrainer fits the blended ensemble for one category per call
type EnsembleTrainer struct {
	cfg          TrainerConfig
	extractor    *FeatureExtractor
	preprocessor *Preprocessor
	store        domain.BundleStore
	metrics      TrainingMetrics
	logger       logging.Logger
}

// NewEnsembleTrainer validates cfg and fills defaults
func NewEnsembleTrainer(
	cfg TrainerConfig,
	extractor *FeatureExtractor,
	preprocessor *Preprocessor,
	store domain.BundleStore,
	metrics TrainingMetrics,
	logger logging.Logger,
) (*EnsembleTrainer, error) {
	if cfg.MinRows <= 0 {
		cfg.MinRows = DefaultMinTrainingRows
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = DefaultTestFraction
	}
	if cfg.TargetTransform == "" {
		cfg.TargetTransform = domain.TargetTransformLog1p
	}
	if len(cfg.Members) == 0 {
		cfg.Members = DefaultMembers(cfg.Seed)
	}
	if err := ValidateWeights(cfg.Members); err != nil {
		return nil, err
	}
	return &EnsembleTrainer{
		cfg:          cfg,
		extractor:    extractor,
		preprocessor: preprocessor,
		store:        store,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// TrainFromRecords extracts features from raw listings of category and trains.
// Records of other categories are skipped.
func (t *EnsembleTrainer) TrainFromRecords(ctx context.Context, category domain.Category, records []domain.RawListingRecord) (*domain.ModelBundle, *PreprocessReport, error) {
	vectors := make([]*domain.FeatureVector, 0, len(records))
	prices := make([]float64, 0, len(records))
	skipped := 0
	for _, rec := range records {
		c, err := domain.ParseCategory(rec.Category)
		if err != nil || c != category {
			skipped++
			continue
		}
		v, err := t.extractor.Extract(rec)
		if err != nil {
			skipped++
			continue
		}
		vectors = append(vectors, v)
		prices = append(prices, rec.Price)
	}
	if skipped > 0 {
		t.logger.Debug("skipped records", map[string]interface{}{"category": category, "skipped": skipped})
	}
	if len(vectors) == 0 {
		return nil, nil, &domain.TrainingDataError{Category: category, Reason: "no listings for category", Err: domain.ErrInsufficientData}
	}
	return t.Train(ctx, vectors, prices)
}

// Train preprocesses the batch, splits it, fits every member concurrently and
// evaluates the blend on the held-out rows. Nothing is persisted.
func (t *EnsembleTrainer) Train(ctx context.Context, vectors []*domain.FeatureVector, prices []float64) (*domain.ModelBundle, *PreprocessReport, error) {
	start := time.Now()
	var category domain.Category
	if len(vectors) > 0 {
		category = vectors[0].Category
	}

	bundle, report, err := t.train(ctx, vectors, prices)
	if t.metrics != nil {
		var m ml.RegressionMetrics
		if bundle != nil {
			m = bundle.Metadata.Metrics
		}
		t.metrics.ObserveTraining(string(category), time.Since(start), m, err)
	}
	return bundle, report, err
}

func (t *EnsembleTrainer) train(ctx context.Context, vectors []*domain.FeatureVector, prices []float64) (*domain.ModelBundle, *PreprocessReport, error) {
	dataset, scaler, report, err := t.preprocessor.FitTransform(vectors, prices)
	if err != nil {
		return nil, report, err
	}
	category := dataset.Category
	log := t.logger.WithFields(map[string]interface{}{"category": category})

	if dataset.Rows() < t.cfg.MinRows {
		return nil, report, &domain.TrainingDataError{
			Category: category,
			Rows:     dataset.Rows(),
			Reason:   fmt.Sprintf("need at least %d rows after filtering", t.cfg.MinRows),
			Err:      domain.ErrInsufficientData,
		}
	}

	split := ml.TrainTestSplit(dataset.Percentile, t.cfg.TestFraction, StratifyBins, t.cfg.Seed)
	if len(split.Train) == 0 || len(split.Test) == 0 {
		return nil, report, &domain.TrainingDataError{
			Category: category,
			Rows:     dataset.Rows(),
			Reason:   fmt.Sprintf("split produced %d train and %d test rows", len(split.Train), len(split.Test)),
			Err:      domain.ErrDegenerateSplit,
		}
	}
	if !split.Stratified {
		log.Warn("price binning failed, using random split", nil)
	}

	trainSet := dataset.Subset(split.Train)
	testSet := dataset.Subset(split.Test)
	target := make([]float64, len(trainSet.Y))
	for i, price := range trainSet.Y {
		target[i] = t.cfg.TargetTransform.Apply(price)
	}

	models := make([]*ml.TreeEnsemble, len(t.cfg.Members))
	g, gctx := errgroup.WithContext(ctx)
	for i, member := range t.cfg.Members {
		i, member := i, member
		g.Go(func() error {
			began := time.Now()
			model, err := member.fit(gctx, trainSet.X, target)
			if err != nil {
				return fmt.Errorf("fit %s: %w", member.Name, err)
			}
			models[i] = model
			log.Debug("member trained", map[string]interface{}{
				"member":   member.Name,
				"trees":    len(model.Trees),
				"duration": time.Since(began).String(),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	bundle := &domain.ModelBundle{
		Category:        category,
		FeatureNames:    dataset.FeatureNames,
		Scaler:          *scaler,
		TargetTransform: t.cfg.TargetTransform,
	}
	weights := make([]domain.MemberWeight, len(models))
	for i, model := range models {
		member := t.cfg.Members[i]
		bundle.Members = append(bundle.Members, domain.EnsembleMember{Name: member.Name, Weight: member.Weight, Model: *model})
		weights[i] = domain.MemberWeight{Name: member.Name, Weight: member.Weight}
	}

	predicted := make([]float64, testSet.Rows())
	for i, row := range testSet.X {
		predicted[i], _ = Blend(bundle, row)
	}
	metrics := ml.Evaluate(testSet.Y, predicted)

	bundle.Metadata = domain.BundleMetadata{
		Category:        category,
		Timestamp:       time.Now().UTC(),
		ModelType:       domain.ModelTypeBlendedTrees,
		Metrics:         metrics,
		FeatureNames:    append([]string(nil), dataset.FeatureNames...),
		RowCount:        dataset.Rows(),
		TrainRows:       trainSet.Rows(),
		TestRows:        testSet.Rows(),
		Stratified:      split.Stratified,
		BlendWeights:    weights,
		TargetTransform: t.cfg.TargetTransform,
	}
	if err := bundle.Validate(); err != nil {
		return nil, report, fmt.Errorf("trained bundle is inconsistent: %w", err)
	}

	log.Info("ensemble trained", map[string]interface{}{
		"rows":       dataset.Rows(),
		"train_rows": trainSet.Rows(),
		"test_rows":  testSet.Rows(),
		"stratified": split.Stratified,
		"r2":         metrics.R2,
		"mae":        metrics.MAE,
		"mape":       metrics.MAPE,
	})
	return bundle, report, nil
}

// Persist saves the bundle atomically and returns the stored version
func (t *EnsembleTrainer) Persist(ctx context.Context, bundle *domain.ModelBundle) (string, error) {
	if err := bundle.Validate(); err != nil {
		return "", err
	}
	version, err := t.store.Save(ctx, bundle)
	if err != nil {
		return "", fmt.Errorf("persist %s bundle: %w", bundle.Category, err)
	}
	t.logger.Info("bundle persisted", map[string]interface{}{"category": bundle.Category, "version": version})
	return version, nil
}

// Blend scores one scaled row with every member and returns the weighted
// price, floored at zero, and each member's price in member order.
func Blend(bundle *domain.ModelBundle, row []float64) (float64, []float64) {
	members := make([]float64, len(bundle.Members))
	var point float64
	for i := range bundle.Members {
		m := &bundle.Members[i]
		members[i] = bundle.TargetTransform.Invert(m.Model.Predict(row))
		point += m.Weight * members[i]
	}
	return math.Max(point, 0), members
}
