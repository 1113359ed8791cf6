package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/pricewise/backend/internal/ml"
)

// ModelTypeBlendedTrees tags metadata written for the blended tree ensemble
const ModelTypeBlendedTrees = "blended_tree_ensemble"

// WeightTolerance is how far the blend weights may drift from summing to 1
const WeightTolerance = 1e-6

// TargetTransform names the transform applied to prices before fitting
type TargetTransform string

const (
	TargetTransformNone  TargetTransform = "none"
	TargetTransformLog1p TargetTransform = "log1p"
)

// ParseTargetTransform accepts "", "none" and "log1p"
func ParseTargetTransform(s string) (TargetTransform, error) {
	switch TargetTransform(s) {
	case "", TargetTransformNone:
		return TargetTransformNone, nil
	case TargetTransformLog1p:
		return TargetTransformLog1p, nil
	}
	return "", fmt.Errorf("unknown target transform %q", s)
}

// Apply maps a price into model space
func (t TargetTransform) Apply(price float64) float64 {
	if t == TargetTransformLog1p {
		return math.Log1p(price)
	}
	return price
}

// Invert maps a model output back to a price
func (t TargetTransform) Invert(v float64) float64 {
	if t == TargetTransformLog1p {
		return math.Expm1(v)
	}
	return v
}

// TrainingDataset is the scaled matrix for one training run.
// Percentile is the price rank within the batch and is only used to stratify the split.
type TrainingDataset struct {
	Category     Category
	FeatureNames []string
	X            [][]float64
	Y            []float64
	Percentile   []float64
}

// Rows returns the number of rows in the dataset
func (d *TrainingDataset) Rows() int {
	return len(d.Y)
}

// Subset returns the rows at idx as a new dataset sharing row slices
func (d *TrainingDataset) Subset(idx []int) *TrainingDataset {
	out := &TrainingDataset{
		Category:     d.Category,
		FeatureNames: d.FeatureNames,
		X:            make([][]float64, len(idx)),
		Y:            make([]float64, len(idx)),
		Percentile:   make([]float64, len(idx)),
	}
	for i, r := range idx {
		out.X[i] = d.X[r]
		out.Y[i] = d.Y[r]
		if r < len(d.Percentile) {
			out.Percentile[i] = d.Percentile[r]
		}
	}
	return out
}

// FittedScaler carries the frozen imputation medians and scaling statistics
type FittedScaler struct {
	FeatureNames  []string
	ImputeMedians []float64
	Scaler        ml.RobustScaler
}

// EnsembleMember is one weighted regressor of a bundle
type EnsembleMember struct {
	Name   string
	Weight float64
	Model  ml.TreeEnsemble
}

// MemberWeight is the serialized form of a member's blend weight
type MemberWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// BundleMetadata is the metadata.json document stored next to the model artifacts
type BundleMetadata struct {
	Version         string               `json:"version"`
	Category        Category             `json:"category"`
	Timestamp       time.Time            `json:"timestamp"`
	ModelType       string               `json:"model_type"`
	Metrics         ml.RegressionMetrics `json:"metrics"`
	FeatureNames    []string             `json:"feature_names"`
	RowCount        int                  `json:"row_count"`
	TrainRows       int                  `json:"train_rows"`
	TestRows        int                  `json:"test_rows"`
	Stratified      bool                 `json:"stratified"`
	BlendWeights    []MemberWeight       `json:"blend_weights"`
	TargetTransform TargetTransform      `json:"target_transform"`
	Checksums       map[string]string    `json:"checksums,omitempty"`
}

// ModelBundle is everything needed to score one category. It is never mutated after load.
type ModelBundle struct {
	Category        Category
	FeatureNames    []string
	Members         []EnsembleMember
	Scaler          FittedScaler
	Metadata        BundleMetadata
	TargetTransform TargetTransform
}

// Version returns the persisted version id, empty before the bundle is saved
func (b *ModelBundle) Version() string {
	return b.Metadata.Version
}

// WeightSum returns the sum of member blend weights
func (b *ModelBundle) WeightSum() float64 {
	var sum float64
	for _, m := range b.Members {
		sum += m.Weight
	}
	return sum
}

// Validate checks that members, scaler and metadata agree on the feature schema
// and that blend weights sum to one.
func (b *ModelBundle) Validate() error {
	if !b.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, b.Category)
	}
	if len(b.Members) == 0 {
		return fmt.Errorf("bundle for %s has no members", b.Category)
	}
	if math.Abs(b.WeightSum()-1) > WeightTolerance {
		return fmt.Errorf("blend weights for %s sum to %g", b.Category, b.WeightSum())
	}
	if !sameNames(b.FeatureNames, b.Scaler.FeatureNames) || !sameNames(b.FeatureNames, b.Metadata.FeatureNames) {
		return fmt.Errorf("%w: bundle, scaler and metadata disagree", ErrFeatureMismatch)
	}
	width := len(b.FeatureNames)
	if len(b.Scaler.ImputeMedians) != width || b.Scaler.Scaler.Width() != width {
		return fmt.Errorf("%w: scaler width %d, want %d", ErrFeatureMismatch, b.Scaler.Scaler.Width(), width)
	}
	for _, m := range b.Members {
		if m.Model.NumFeatures != width {
			return fmt.Errorf("%w: member %s expects %d features, want %d", ErrFeatureMismatch, m.Name, m.Model.NumFeatures, width)
		}
	}
	return nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
