package ml

import (
	"context"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// BoostingParams configures a gradient-boosted tree regressor with squared loss
type BoostingParams struct {
	Rounds       int
	LearningRate float64
	Subsample    float64 // row fraction per round; 0 or 1 means all rows
	ColSample    float64 // feature fraction per tree; 0 or 1 means all features
	Tree         TreeParams
	Seed         int64
}

// FitGradientBoosting fits trees to successive residuals starting from the target mean
func FitGradientBoosting(ctx context.Context, x [][]float64, y []float64, p BoostingParams) (*TreeEnsemble, error) {
	width, err := validateMatrix(x, y)
	if err != nil {
		return nil, err
	}
	if p.Rounds <= 0 {
		p.Rounds = 100
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}

	rng := rand.New(rand.NewSource(p.Seed)) //nolint:gosec // deterministic sampling, not security sensitive
	n := len(x)

	base := stat.Mean(y, nil)

	pred := make([]float64, n)
	residual := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}

	model := &TreeEnsemble{
		Kind:        KindGradientBoosting,
		Base:        base,
		Scale:       p.LearningRate,
		Trees:       make([]Tree, 0, p.Rounds),
		NumFeatures: width,
	}
	features := sequence(width)

	for round := 0; round < p.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		rows := sampleRows(rng, n, p.Subsample)
		cols := sampleColumns(rng, features, p.ColSample)
		tree := growTree(x, residual, rows, cols, p.Tree, rng)
		model.Trees = append(model.Trees, tree)

		for i := range pred {
			pred[i] += p.LearningRate * tree.Predict(x[i])
		}
	}

	return model, nil
}

// sampleRows draws a fraction of row indices without replacement
func sampleRows(rng *rand.Rand, n int, frac float64) []int {
	if frac <= 0 || frac >= 1 {
		return sequence(n)
	}
	k := int(frac*float64(n) + 0.5)
	if k < 1 {
		k = 1
	}
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

// sampleColumns draws a fraction of feature indices without replacement
func sampleColumns(rng *rand.Rand, features []int, frac float64) []int {
	if frac <= 0 || frac >= 1 || len(features) <= 1 {
		return features
	}
	k := int(frac*float64(len(features)) + 0.5)
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(len(features))
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = features[perm[i]]
	}
	sort.Ints(out)
	return out
}
