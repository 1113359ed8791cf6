package usecase

import (
	"fmt"
	"math"

	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
	"github.com/pricewise/backend/internal/ml"
)

// DefaultZScoreThreshold drops training rows whose price is this many standard deviations from the mean
const DefaultZScoreThreshold = 3.0

// PriceBounds is the plausible price window for a category
type PriceBounds struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// DefaultPriceBounds returns the hard price filters per category
func DefaultPriceBounds() map[domain.Category]PriceBounds {
	return map[domain.Category]PriceBounds{
		domain.CategoryMobile:    {Min: 100, Max: 500000},
		domain.CategoryLaptop:    {Min: 5000, Max: 1500000},
		domain.CategoryFurniture: {Min: 500, Max: 1000000},
	}
}

// MergePriceBounds overlays per-category overrides, keyed by category name, on
// the default bounds.
func MergePriceBounds(overrides map[string]PriceBounds) (map[domain.Category]PriceBounds, error) {
	bounds := DefaultPriceBounds()
	for name, b := range overrides {
		category, err := domain.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		if b.Min < 0 || b.Max <= b.Min {
			return nil, fmt.Errorf("price bounds for %s must satisfy 0 <= min < max, got [%g, %g]", category, b.Min, b.Max)
		}
		bounds[category] = b
	}
	return bounds, nil
}

// PreprocessorConfig tunes the training filters
type PreprocessorConfig struct {
	ZScoreThreshold float64
	Bounds          map[domain.Category]PriceBounds
}

// PreprocessReport counts what each training filter removed
type PreprocessReport struct {
	Category           domain.Category `json:"category"`
	InputRows          int             `json:"input_rows"`
	DroppedBadPrice    int             `json:"dropped_bad_price"`
	DroppedOutliers    int             `json:"dropped_outliers"`
	DroppedOutOfBounds int             `json:"dropped_out_of_bounds"`
	KeptRows           int             `json:"kept_rows"`
	ImputedCells       map[string]int  `json:"imputed_cells"`
}

// Preprocessor filters, engineers, imputes and scales feature vectors. It is
// the only place that guarantees no NaN or Inf reaches a model.
type Preprocessor struct {
	cfg    PreprocessorConfig
	logger logging.Logger
}

// NewPreprocessor fills unset config with defaults
func NewPreprocessor(cfg PreprocessorConfig, logger logging.Logger) *Preprocessor {
	if cfg.ZScoreThreshold <= 0 {
		cfg.ZScoreThreshold = DefaultZScoreThreshold
	}
	if cfg.Bounds == nil {
		cfg.Bounds = DefaultPriceBounds()
	}
	return &Preprocessor{cfg: cfg, logger: logger}
}

// Engineer computes the composite features of v in place
func (p *Preprocessor) Engineer(v *domain.FeatureVector) error {
	schema, err := SchemaFor(v.Category)
	if err != nil {
		return err
	}
	if !v.SameSchema(schema.FeatureNames()) {
		return fmt.Errorf("%w: vector does not follow the %s schema", domain.ErrFeatureMismatch, v.Category)
	}
	schema.engineer(v)
	return nil
}

// OutlierMask reports which prices survive the z-score filter: rows with
// |z| >= threshold are dropped. A zero standard deviation keeps every row.
func OutlierMask(prices []float64, threshold float64) []bool {
	keep := make([]bool, len(prices))
	for i, z := range ml.ZScores(prices) {
		keep[i] = math.Abs(z) < threshold
	}
	return keep
}

// FitTransform runs the training pipeline over a batch of one category and
// returns the scaled dataset with its frozen imputation and scaling statistics.
func (p *Preprocessor) FitTransform(vectors []*domain.FeatureVector, prices []float64) (*domain.TrainingDataset, *domain.FittedScaler, *PreprocessReport, error) {
	if len(vectors) != len(prices) {
		return nil, nil, nil, fmt.Errorf("%d vectors but %d prices", len(vectors), len(prices))
	}
	if len(vectors) == 0 {
		return nil, nil, nil, &domain.TrainingDataError{Reason: "no rows", Err: domain.ErrInsufficientData}
	}

	category := vectors[0].Category
	schema, err := SchemaFor(category)
	if err != nil {
		return nil, nil, nil, err
	}
	names := schema.FeatureNames()
	for i, v := range vectors {
		if v.Category != category || !v.SameSchema(names) {
			return nil, nil, nil, fmt.Errorf("%w: row %d is not a %s vector", domain.ErrFeatureMismatch, i, category)
		}
	}

	report := &PreprocessReport{Category: category, InputRows: len(vectors), ImputedCells: make(map[string]int)}

	// 1. price must be a positive finite number
	var rows []int
	for i, price := range prices {
		if price > 0 && !math.IsInf(price, 0) && !math.IsNaN(price) {
			rows = append(rows, i)
		}
	}
	report.DroppedBadPrice = len(prices) - len(rows)

	// 2. z-score outliers
	kept := make([]float64, len(rows))
	for i, r := range rows {
		kept[i] = prices[r]
	}
	mask := OutlierMask(kept, p.cfg.ZScoreThreshold)
	filtered := rows[:0:0]
	for i, r := range rows {
		if mask[i] {
			filtered = append(filtered, r)
		}
	}
	report.DroppedOutliers = len(rows) - len(filtered)
	rows = filtered

	// 3. category price window
	if bounds, ok := p.cfg.Bounds[category]; ok {
		filtered = rows[:0:0]
		for _, r := range rows {
			if prices[r] >= bounds.Min && prices[r] <= bounds.Max {
				filtered = append(filtered, r)
			}
		}
		report.DroppedOutOfBounds = len(rows) - len(filtered)
		rows = filtered
	}
	report.KeptRows = len(rows)

	if len(rows) == 0 {
		return nil, nil, report, &domain.TrainingDataError{
			Category: category,
			Reason:   "no rows left after price filters",
			Err:      domain.ErrInsufficientData,
		}
	}

	// 4. engineered features
	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		v := vectors[r].Clone()
		schema.engineer(v)
		x[i] = v.Values
		y[i] = prices[r]
	}

	// 5. median imputation
	medians := make([]float64, len(names))
	column := make([]float64, len(x))
	for j, name := range names {
		for i := range x {
			column[i] = x[i][j]
		}
		m := ml.Median(column)
		if math.IsNaN(m) {
			m = 0
		}
		medians[j] = m
		for i := range x {
			if math.IsNaN(x[i][j]) {
				x[i][j] = m
				report.ImputedCells[name]++
			}
		}
	}

	// 6. anything still infinite becomes zero
	for i := range x {
		clearInf(x[i])
	}

	// 7. robust scaling
	scaler, err := ml.FitRobustScaler(x)
	if err != nil {
		return nil, nil, report, fmt.Errorf("fit scaler: %w", err)
	}
	for i := range x {
		if x[i], err = scaler.Transform(x[i]); err != nil {
			return nil, nil, report, fmt.Errorf("scale row %d: %w", i, err)
		}
	}

	p.logger.Info("preprocessed training batch", map[string]interface{}{
		"category":              category,
		"input_rows":            report.InputRows,
		"dropped_bad_price":     report.DroppedBadPrice,
		"dropped_outliers":      report.DroppedOutliers,
		"dropped_out_of_bounds": report.DroppedOutOfBounds,
		"kept_rows":             report.KeptRows,
	})

	dataset := &domain.TrainingDataset{
		Category:     category,
		FeatureNames: names,
		X:            x,
		Y:            y,
		Percentile:   ml.PercentileRanks(y),
	}
	fitted := &domain.FittedScaler{
		FeatureNames:  append([]string(nil), names...),
		ImputeMedians: medians,
		Scaler:        scaler,
	}
	return dataset, fitted, report, nil
}

// Transform prepares one serving vector with the frozen statistics. It returns
// the scaled row, the unscaled values after imputation keyed by name, and the
// names of the fields that were imputed.
func (p *Preprocessor) Transform(v *domain.FeatureVector, fitted *domain.FittedScaler) ([]float64, map[string]float64, []string, error) {
	if !v.SameSchema(fitted.FeatureNames) {
		return nil, nil, nil, fmt.Errorf("%w: %s vector does not match the bundle schema", domain.ErrFeatureMismatch, v.Category)
	}
	if len(fitted.ImputeMedians) != len(fitted.FeatureNames) {
		return nil, nil, nil, fmt.Errorf("%w: %d medians for %d features", domain.ErrFeatureMismatch, len(fitted.ImputeMedians), len(fitted.FeatureNames))
	}

	work := v.Clone()
	if err := p.Engineer(work); err != nil {
		return nil, nil, nil, err
	}

	var imputed []string
	for j, name := range work.Names {
		if math.IsNaN(work.Values[j]) {
			work.Values[j] = fitted.ImputeMedians[j]
			imputed = append(imputed, name)
		}
	}
	clearInf(work.Values)

	values := make(map[string]float64, len(work.Names))
	for j, name := range work.Names {
		values[name] = work.Values[j]
	}

	scaled, err := fitted.Scaler.Transform(work.Values)
	if err != nil {
		return nil, nil, nil, err
	}
	return scaled, values, imputed, nil
}

func clearInf(row []float64) {
	for j, v := range row {
		if math.IsInf(v, 0) {
			row[j] = 0
		}
	}
}
