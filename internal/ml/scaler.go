package ml

import (
	"fmt"
	"math"
)

// RobustScaler centres each column on its median and divides by its
// interquartile range. Columns with zero IQR are only centred.
type RobustScaler struct {
	Center []float64
	Scale  []float64
}

// FitRobustScaler computes per-column median and IQR over x
func FitRobustScaler(x [][]float64) (RobustScaler, error) {
	if len(x) == 0 || len(x[0]) == 0 {
		return RobustScaler{}, ErrEmptyMatrix
	}
	width := len(x[0])
	s := RobustScaler{
		Center: make([]float64, width),
		Scale:  make([]float64, width),
	}

	col := make([]float64, len(x))
	for j := 0; j < width; j++ {
		for i, row := range x {
			if len(row) != width {
				return RobustScaler{}, fmt.Errorf("%w: row %d", ErrWidthMismatch, i)
			}
			col[i] = row[j]
		}
		sorted := finiteSorted(col)
		if len(sorted) == 0 {
			return RobustScaler{}, fmt.Errorf("%w: column %d has no finite values", ErrNonFinite, j)
		}
		s.Center[j] = Quantile(sorted, 0.5)
		iqr := Quantile(sorted, 0.75) - Quantile(sorted, 0.25)
		if iqr == 0 || math.IsNaN(iqr) {
			iqr = 1
		}
		s.Scale[j] = iqr
	}
	return s, nil
}

// Width returns the number of columns the scaler was fitted on
func (s RobustScaler) Width() int {
	return len(s.Center)
}

// Transform returns (x - center) / scale
func (s RobustScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Center) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWidthMismatch, len(x), len(s.Center))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Center[i]) / s.Scale[i]
	}
	return out, nil
}

// InverseTransform returns x * scale + center
func (s RobustScaler) InverseTransform(x []float64) ([]float64, error) {
	if len(x) != len(s.Center) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWidthMismatch, len(x), len(s.Center))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v*s.Scale[i] + s.Center[i]
	}
	return out, nil
}
