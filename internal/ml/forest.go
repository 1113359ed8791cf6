package ml

import (
	"context"
	"math/rand"
)

// ForestParams configures a randomized forest of bagged regression trees
type ForestParams struct {
	Trees     int
	Bootstrap bool
	Tree      TreeParams
	Seed      int64
}

// FitRandomForest averages trees grown on bootstrap samples with per-split feature sampling
func FitRandomForest(ctx context.Context, x [][]float64, y []float64, p ForestParams) (*TreeEnsemble, error) {
	width, err := validateMatrix(x, y)
	if err != nil {
		return nil, err
	}
	if p.Trees <= 0 {
		p.Trees = 100
	}

	rng := rand.New(rand.NewSource(p.Seed)) //nolint:gosec // deterministic sampling, not security sensitive
	n := len(x)
	features := sequence(width)

	model := &TreeEnsemble{
		Kind:        KindRandomForest,
		Scale:       1 / float64(p.Trees),
		Trees:       make([]Tree, 0, p.Trees),
		NumFeatures: width,
	}

	for t := 0; t < p.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rows []int
		if p.Bootstrap {
			rows = make([]int, n)
			for i := range rows {
				rows[i] = rng.Intn(n)
			}
		} else {
			rows = sequence(n)
		}
		model.Trees = append(model.Trees, growTree(x, y, rows, features, p.Tree, rng))
	}

	return model, nil
}
