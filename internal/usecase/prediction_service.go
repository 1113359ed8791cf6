package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
)

// DefaultPriceBand is the relative width of the suggested listing range
const DefaultPriceBand = 0.10

// PredictionMetrics receives serving outcomes
type PredictionMetrics interface {
	ObservePrediction(category string, duration time.Duration, err error)
	ObserveCache(hit bool)
}

// PredictionConfig tunes the serving path
type PredictionConfig struct {
	PriceBand float64
	CacheTTL  time.Duration
}

// PredictionService scores requests against loaded bundles. Bundles are
// immutable; the mutex only guards swapping them in the map.
type PredictionService struct {
	cfg          PredictionConfig
	extractor    *FeatureExtractor
	preprocessor *Preprocessor
	store        domain.BundleStore
	cache        domain.CacheRepository
	metrics      PredictionMetrics
	logger       logging.Logger

	mu      sync.RWMutex
	bundles map[domain.Category]*domain.ModelBundle
}

// NewPredictionService creates a service with no bundles loaded. cache and
// metrics may be nil.
func NewPredictionService(
	cfg PredictionConfig,
	extractor *FeatureExtractor,
	preprocessor *Preprocessor,
	store domain.BundleStore,
	cache domain.CacheRepository,
	metrics PredictionMetrics,
	logger logging.Logger,
) *PredictionService {
	if cfg.PriceBand <= 0 {
		cfg.PriceBand = DefaultPriceBand
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &PredictionService{
		cfg:          cfg,
		extractor:    extractor,
		preprocessor: preprocessor,
		store:        store,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		bundles:      make(map[domain.Category]*domain.ModelBundle),
	}
}

// LoadBundles loads the live bundle of each category. Any failure is an
// *domain.ArtifactLoadError and the caller should refuse to serve.
func (s *PredictionService) LoadBundles(ctx context.Context, categories ...domain.Category) error {
	if len(categories) == 0 {
		categories = domain.AllCategories()
	}
	for _, c := range categories {
		if err := s.Reload(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Reload replaces the bundle for one category with the store's live version
func (s *PredictionService) Reload(ctx context.Context, category domain.Category) error {
	bundle, err := s.store.Load(ctx, category)
	if err != nil {
		var loadErr *domain.ArtifactLoadError
		if errors.As(err, &loadErr) {
			return err
		}
		return &domain.ArtifactLoadError{Category: category, Err: err}
	}
	if err := s.Install(bundle); err != nil {
		return &domain.ArtifactLoadError{Category: category, Err: err}
	}
	s.logger.Info("bundle loaded", map[string]interface{}{
		"category": category,
		"version":  bundle.Version(),
		"features": len(bundle.FeatureNames),
	})
	return nil
}

// Install validates a bundle and makes it live for its category
func (s *PredictionService) Install(bundle *domain.ModelBundle) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	schema, err := SchemaFor(bundle.Category)
	if err != nil {
		return err
	}
	empty := domain.NewFeatureVector(bundle.Category, schema.FeatureNames())
	if !empty.SameSchema(bundle.FeatureNames) {
		return fmt.Errorf("%w: bundle features differ from the %s schema", domain.ErrFeatureMismatch, bundle.Category)
	}

	s.mu.Lock()
	s.bundles[bundle.Category] = bundle
	s.mu.Unlock()
	return nil
}

// Bundle returns the live bundle for a category
func (s *PredictionService) Bundle(category domain.Category) (*domain.ModelBundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[category]
	return b, ok
}

// Metadata returns the metadata of the live bundle
func (s *PredictionService) Metadata(category domain.Category) (*domain.BundleMetadata, error) {
	b, ok := s.Bundle(category)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotLoaded, category)
	}
	m := b.Metadata
	return &m, nil
}

// LoadedCategories lists categories with a live bundle
func (s *PredictionService) LoadedCategories() []domain.Category {
	var out []domain.Category
	for _, c := range domain.AllCategories() {
		if _, ok := s.Bundle(c); ok {
			out = append(out, c)
		}
	}
	return out
}

// PredictRequest converts an inbound request and predicts. hit reports whether
// the result was served from the cache.
func (s *PredictionService) PredictRequest(ctx context.Context, req domain.PredictionRequest) (result *domain.PredictionResult, hit bool, err error) {
	return s.observe(ctx, req.ToRecord())
}

// Predict runs the record through extraction, the frozen preprocessing and
// every member, then blends. The same bundle and record always give the same result.
func (s *PredictionService) Predict(ctx context.Context, record domain.RawListingRecord) (*domain.PredictionResult, error) {
	result, _, err := s.observe(ctx, record)
	return result, err
}

func (s *PredictionService) observe(ctx context.Context, record domain.RawListingRecord) (*domain.PredictionResult, bool, error) {
	start := time.Now()
	result, hit, category, err := s.predict(ctx, record)
	if s.metrics != nil {
		s.metrics.ObservePrediction(category, time.Since(start), err)
	}
	return result, hit, err
}

func (s *PredictionService) predict(ctx context.Context, record domain.RawListingRecord) (*domain.PredictionResult, bool, string, error) {
	category, err := domain.ParseCategory(record.Category)
	if err != nil {
		return nil, false, "unknown", &domain.PredictionInputError{Category: record.Category, Err: domain.ErrUnknownCategory}
	}
	bundle, ok := s.Bundle(category)
	if !ok {
		return nil, false, string(category), fmt.Errorf("%w: %s", domain.ErrModelNotLoaded, category)
	}

	key := s.cacheKey(bundle, record)
	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, true, string(category), nil
	}

	v, err := s.extractor.Extract(record)
	if err != nil {
		return nil, false, string(category), &domain.PredictionInputError{Category: record.Category, Err: err}
	}
	if err := s.extractor.CheckRequired(v); err != nil {
		return nil, false, string(category), err
	}
	row, values, imputed, err := s.preprocessor.Transform(v, &bundle.Scaler)
	if err != nil {
		return nil, false, string(category), fmt.Errorf("prepare %s features: %w", category, err)
	}
	for i := range bundle.Members {
		if err := bundle.Members[i].Model.CheckRow(row); err != nil {
			return nil, false, string(category), fmt.Errorf("member %s: %w", bundle.Members[i].Name, err)
		}
	}

	point, members := Blend(bundle, row)
	lower, upper := interval(point, members)
	confidence := confidenceScore(point, lower, upper)

	memberPrices := make(map[string]float64, len(members))
	for i, m := range bundle.Members {
		memberPrices[m.Name] = members[i]
	}

	result := &domain.PredictionResult{
		PredictedPrice:  point,
		ConfidenceScore: confidence,
		ConfidenceLower: lower,
		ConfidenceUpper: upper,
		PriceRangeMin:   roundTo10(point * (1 - s.cfg.PriceBand)),
		PriceRangeMax:   roundTo10(point * (1 + s.cfg.PriceBand)),
		Recommendation:  recommendation(confidence),
		ExtractedFeatures: domain.ExtractedFeatures{
			Values:     values,
			Imputed:    imputed,
			Attributes: v.Attributes,
		},
		MemberPredictions: memberPrices,
		ModelVersion:      bundle.Version(),
	}

	s.toCache(ctx, key, result)
	return result, false, string(category), nil
}

// interval spans the member predictions, widened to contain the blended point
// and clamped at zero. It is a spread heuristic, not a calibrated interval.
func interval(point float64, members []float64) (float64, float64) {
	lower, upper := point, point
	for _, m := range members {
		lower = math.Min(lower, m)
		upper = math.Max(upper, m)
	}
	return math.Max(lower, 0), math.Max(upper, 0)
}

func confidenceScore(point, lower, upper float64) float64 {
	if point <= 0 {
		return 0
	}
	c := 1 - (upper-lower)/(2*point)
	return math.Min(math.Max(c, 0), 1)
}

func roundTo10(v float64) float64 {
	return math.Max(math.Round(v/10)*10, 0)
}

func recommendation(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "High confidence: list close to the predicted price."
	case confidence >= 0.6:
		return "Good confidence: the estimate is reliable, adjust slightly for local demand."
	case confidence >= 0.4:
		return "Moderate confidence: compare with similar listings before setting a price."
	default:
		return "Low confidence: few comparable listings, treat the estimate as a rough guide."
	}
}

func (s *PredictionService) cacheKey(bundle *domain.ModelBundle, record domain.RawListingRecord) string {
	if s.cache == nil {
		return ""
	}
	// map keys marshal in sorted order, so equal requests hash equally
	payload, err := json.Marshal(struct {
		Title       string            `json:"t"`
		Description string            `json:"d"`
		Attributes  map[string]string `json:"a"`
	}{record.Title, record.Description, record.Attributes})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("predict:%s:%s:%s", bundle.Category, bundle.Version(), hex.EncodeToString(sum[:16]))
}

func (s *PredictionService) fromCache(ctx context.Context, key string) *domain.PredictionResult {
	if key == "" {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("cache read failed", map[string]interface{}{"error": err.Error()})
		}
		s.observeCache(false)
		return nil
	}
	var result domain.PredictionResult
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		s.observeCache(false)
		return nil
	}
	s.observeCache(true)
	return &result
}

func (s *PredictionService) toCache(ctx context.Context, key string, result *domain.PredictionResult) {
	if key == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *PredictionService) observeCache(hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveCache(hit)
	}
}
