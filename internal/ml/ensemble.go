package ml

import (
	"errors"
	"fmt"
	"math"
)

// Model kinds recorded on a TreeEnsemble
const (
	KindGradientBoosting = "gradient_boosting"
	KindRandomForest     = "random_forest"
)

var (
	// ErrEmptyMatrix is returned when a fit is attempted on no rows or no columns
	ErrEmptyMatrix = errors.New("empty training matrix")

	// ErrNonFinite is returned when a NaN or infinite value reaches a fit or predict call
	ErrNonFinite = errors.New("non-finite value in matrix")

	// ErrWidthMismatch is returned when a row has a different width than the model expects
	ErrWidthMismatch = errors.New("row width mismatch")
)

// Regressor predicts a single numeric target from a feature row
type Regressor interface {
	Predict(x []float64) float64
}

// TreeEnsemble is the fitted form shared by boosting and forest members:
// prediction = Base + Scale * Σ tree(x).
type TreeEnsemble struct {
	Kind        string
	Base        float64
	Scale       float64
	Trees       []Tree
	NumFeatures int
}

var _ Regressor = (*TreeEnsemble)(nil)

// Predict returns the ensemble output for one row
func (m *TreeEnsemble) Predict(x []float64) float64 {
	var sum float64
	for _, t := range m.Trees {
		sum += t.Predict(x)
	}
	return m.Base + m.Scale*sum
}

// PredictBatch returns predictions for every row of x
func (m *TreeEnsemble) PredictBatch(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = m.Predict(row)
	}
	return out
}

// CheckRow verifies a row can be scored by this model
func (m *TreeEnsemble) CheckRow(x []float64) error {
	if len(x) != m.NumFeatures {
		return fmt.Errorf("%w: got %d, want %d", ErrWidthMismatch, len(x), m.NumFeatures)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: column %d", ErrNonFinite, i)
		}
	}
	return nil
}

// validateMatrix checks shape and finiteness of a training matrix
func validateMatrix(x [][]float64, y []float64) (int, error) {
	if len(x) == 0 || len(x[0]) == 0 {
		return 0, ErrEmptyMatrix
	}
	if len(y) != len(x) {
		return 0, fmt.Errorf("%w: %d rows, %d targets", ErrWidthMismatch, len(x), len(y))
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrWidthMismatch, i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: row %d column %d", ErrNonFinite, i, j)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0, fmt.Errorf("%w: target %d", ErrNonFinite, i)
		}
	}
	return width, nil
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
