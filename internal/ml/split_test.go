package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestQuantileBins(t *testing.T) {
	t.Run("equal frequency", func(t *testing.T) {
		bins, count := QuantileBins(uniform(100), 5)
		assert.Equal(t, 5, count)
		sizes := make([]int, count)
		for _, b := range bins {
			sizes[b]++
		}
		assert.Equal(t, []int{20, 20, 20, 20, 20}, sizes)
	})

	t.Run("duplicate edges collapse", func(t *testing.T) {
		values := []float64{1, 1, 1, 1, 1, 1, 1, 1, 2, 3}
		_, count := QuantileBins(values, 5)
		assert.Less(t, count, 5)
	})

	t.Run("constant values cannot be binned", func(t *testing.T) {
		_, count := QuantileBins([]float64{4, 4, 4}, 5)
		assert.Equal(t, 0, count)
	})
}

func TestTrainTestSplit(t *testing.T) {
	t.Run("stratified partition", func(t *testing.T) {
		s := TrainTestSplit(uniform(100), 0.2, 5, 42)
		assert.True(t, s.Stratified)
		assert.Equal(t, 5, s.Bins)
		assert.Len(t, s.Test, 20)
		assert.Len(t, s.Train, 80)
		assertPartition(t, 100, s)
	})

	t.Run("falls back to a random split", func(t *testing.T) {
		s := TrainTestSplit([]float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}, 0.2, 5, 42)
		assert.False(t, s.Stratified)
		assert.Len(t, s.Test, 2)
		assertPartition(t, 10, s)
	})

	t.Run("deterministic for a seed", func(t *testing.T) {
		a := TrainTestSplit(uniform(60), 0.2, 5, 7)
		b := TrainTestSplit(uniform(60), 0.2, 5, 7)
		assert.Equal(t, a, b)
	})
}

func assertPartition(t *testing.T, n int, s Split) {
	t.Helper()
	seen := make(map[int]bool, n)
	for _, i := range append(append([]int(nil), s.Train...), s.Test...) {
		assert.False(t, seen[i], "row %d assigned twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, n)
}
