package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func nan() float64 { return math.NaN() }

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	testCases := []struct {
		name string
		p    float64
		want float64
	}{
		{name: "minimum", p: 0, want: 1},
		{name: "lower quartile interpolates", p: 0.25, want: 1.75},
		{name: "median of even count", p: 0.5, want: 2.5},
		{name: "upper quartile", p: 0.75, want: 3.25},
		{name: "maximum", p: 1, want: 4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Quantile(sorted, tc.p), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestMedianSkipsMissing(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, nan(), 1, 2}))
	assert.True(t, math.IsNaN(Median([]float64{nan(), nan()})))
}

func TestZScores(t *testing.T) {
	t.Run("population standard deviation", func(t *testing.T) {
		// mean 5, population std 2
		z := ZScores([]float64{2, 4, 4, 4, 5, 5, 7, 9})
		assert.InDelta(t, -1.5, z[0], 1e-12)
		assert.InDelta(t, 2.0, z[7], 1e-12)
	})

	t.Run("constant values score zero", func(t *testing.T) {
		assert.Equal(t, []float64{0, 0, 0}, ZScores([]float64{7, 7, 7}))
	})
}

func TestPercentileRanks(t *testing.T) {
	got := PercentileRanks([]float64{30, 10, 20, 20})
	assert.InDeltaSlice(t, []float64{1, 0.25, 0.625, 0.625}, got, 1e-12)
}
