package ml

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepData(n int) ([][]float64, []float64) {
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = []float64{float64(i), float64(i % 7)}
		if i >= n/2 {
			y[i] = 100
		}
	}
	return x, y
}

func linearData(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := rng.Float64() * 10
		b := rng.Float64()
		x[i] = []float64{a, b}
		y[i] = 3*a + 5
	}
	return x, y
}

func TestGrowTree(t *testing.T) {
	x, y := stepData(100)
	rows := sequence(len(x))

	t.Run("single split recovers a step", func(t *testing.T) {
		tree := growTree(x, y, rows, []int{0, 1}, TreeParams{MaxDepth: 1}, rand.New(rand.NewSource(1)))
		assert.Equal(t, 2, tree.Leaves())
		assert.Equal(t, 0.0, tree.Predict([]float64{10, 3}))
		assert.Equal(t, 100.0, tree.Predict([]float64{80, 3}))
	})

	t.Run("lambda shrinks leaf values", func(t *testing.T) {
		tree := growTree(x, y, rows, []int{0}, TreeParams{MaxDepth: 1, Lambda: 50}, rand.New(rand.NewSource(1)))
		assert.InDelta(t, 50.0, tree.Predict([]float64{80, 0}), 1e-9)
	})

	t.Run("leaf-wise growth respects the leaf budget", func(t *testing.T) {
		lx, ly := linearData(300, 3)
		tree := growTree(lx, ly, sequence(len(lx)), []int{0, 1}, TreeParams{MaxLeaves: 6}, rand.New(rand.NewSource(1)))
		assert.LessOrEqual(t, tree.Leaves(), 6)
		assert.Greater(t, tree.Leaves(), 1)
	})

	t.Run("min samples per leaf blocks small splits", func(t *testing.T) {
		tree := growTree(x[:4], y[:4], sequence(4), []int{0}, TreeParams{MinSamplesLeaf: 3}, rand.New(rand.NewSource(1)))
		assert.Equal(t, 1, tree.Leaves())
	})
}

func TestFitGradientBoosting(t *testing.T) {
	x, y := linearData(400, 7)
	params := BoostingParams{
		Rounds:       150,
		LearningRate: 0.1,
		Subsample:    0.8,
		Tree:         TreeParams{MaxDepth: 3, MinSamplesLeaf: 2, Lambda: 1},
		Seed:         42,
	}

	model, err := FitGradientBoosting(context.Background(), x, y, params)
	require.NoError(t, err)
	assert.Equal(t, KindGradientBoosting, model.Kind)
	assert.Len(t, model.Trees, 150)

	m := Evaluate(y, model.PredictBatch(x))
	assert.Greater(t, m.R2, 0.95)

	again, err := FitGradientBoosting(context.Background(), x, y, params)
	require.NoError(t, err)
	assert.Equal(t, model.PredictBatch(x), again.PredictBatch(x), "same seed must give identical models")
}

func TestFitRandomForest(t *testing.T) {
	x, y := linearData(300, 11)
	params := ForestParams{
		Trees:     40,
		Bootstrap: true,
		Tree:      TreeParams{MaxDepth: 8, MinSamplesLeaf: 2, MaxFeatures: 0.5},
		Seed:      42,
	}

	model, err := FitRandomForest(context.Background(), x, y, params)
	require.NoError(t, err)
	assert.Equal(t, KindRandomForest, model.Kind)
	assert.Greater(t, Evaluate(y, model.PredictBatch(x)).R2, 0.9)

	again, err := FitRandomForest(context.Background(), x, y, params)
	require.NoError(t, err)
	assert.Equal(t, model.PredictBatch(x), again.PredictBatch(x))
}

func TestFitRejectsBadInput(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name string
		x    [][]float64
		y    []float64
		want error
	}{
		{name: "empty", x: nil, y: nil, want: ErrEmptyMatrix},
		{name: "ragged", x: [][]float64{{1, 2}, {1}}, y: []float64{1, 2}, want: ErrWidthMismatch},
		{name: "target length", x: [][]float64{{1}, {2}}, y: []float64{1}, want: ErrWidthMismatch},
		{name: "nan feature", x: [][]float64{{1}, {nan()}}, y: []float64{1, 2}, want: ErrNonFinite},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FitGradientBoosting(ctx, tc.x, tc.y, BoostingParams{Rounds: 2})
			assert.ErrorIs(t, err, tc.want)
			_, err = FitRandomForest(ctx, tc.x, tc.y, ForestParams{Trees: 2})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFitHonoursCancellation(t *testing.T) {
	x, y := linearData(50, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FitGradientBoosting(ctx, x, y, BoostingParams{Rounds: 10})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = FitRandomForest(ctx, x, y, ForestParams{Trees: 10})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTreeEnsembleCheckRow(t *testing.T) {
	m := &TreeEnsemble{NumFeatures: 2}
	assert.NoError(t, m.CheckRow([]float64{1, 2}))
	assert.ErrorIs(t, m.CheckRow([]float64{1}), ErrWidthMismatch)
	assert.ErrorIs(t, m.CheckRow([]float64{1, nan()}), ErrNonFinite)
}
