package ml

import (
	"math"
	"math/rand"
	"sort"
)

// Split holds row indices of a train/test partition
type Split struct {
	Train      []int
	Test       []int
	Stratified bool
	Bins       int
}

// QuantileBins assigns each value to one of q equal-frequency bins. Duplicate
// edges are collapsed, so fewer than q bins may come back. The returned count is
// the number of distinct bins; it is 0 when the values cannot be binned.
func QuantileBins(values []float64, q int) ([]int, int) {
	sorted := finiteSorted(values)
	if len(sorted) == 0 || len(sorted) != len(values) || q < 2 {
		return nil, 0
	}

	edges := make([]float64, 0, q+1)
	for i := 0; i <= q; i++ {
		e := Quantile(sorted, float64(i)/float64(q))
		if len(edges) == 0 || e != edges[len(edges)-1] {
			edges = append(edges, e)
		}
	}
	if len(edges) < 2 {
		return nil, 0
	}

	bins := make([]int, len(values))
	for i, v := range values {
		// intervals are (e[k-1], e[k]] with the first one closed on the left
		k := sort.SearchFloat64s(edges[1:], v)
		if k >= len(edges)-1 {
			k = len(edges) - 2
		}
		bins[i] = k
	}
	return bins, len(edges) - 1
}

// TrainTestSplit partitions n rows, stratifying on quantile bins of strata when
// every bin holds at least two rows and falling back to a seeded shuffle
// otherwise. Both partitions are returned in ascending index order.
func TrainTestSplit(strata []float64, testFraction float64, bins int, seed int64) Split {
	n := len(strata)
	labels, count := QuantileBins(strata, bins)
	if count >= 2 && minBinSize(labels, count) >= 2 {
		train, test := stratifiedSplit(labels, count, testFraction, seed)
		return Split{Train: train, Test: test, Stratified: true, Bins: count}
	}
	train, test := RandomSplit(n, testFraction, seed)
	return Split{Train: train, Test: test}
}

// RandomSplit shuffles n row indices with seed and takes ceil(n*testFraction) for test
func RandomSplit(n int, testFraction float64, seed int64) ([]int, []int) {
	if n == 0 {
		return nil, nil
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible split
	perm := rng.Perm(n)
	nTest := testCount(n, testFraction)
	test := append([]int(nil), perm[:nTest]...)
	train := append([]int(nil), perm[nTest:]...)
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func stratifiedSplit(labels []int, count int, testFraction float64, seed int64) ([]int, []int) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible split
	groups := make([][]int, count)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}

	var train, test []int
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		k := int(math.Round(testFraction * float64(len(g))))
		if k < 1 {
			k = 1
		}
		if k > len(g)-1 {
			k = len(g) - 1
		}
		test = append(test, g[:k]...)
		train = append(train, g[k:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func testCount(n int, frac float64) int {
	k := int(math.Ceil(frac * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n-1 {
		k = n - 1
	}
	if k < 0 {
		k = 0
	}
	return k
}

func minBinSize(labels []int, count int) int {
	sizes := make([]int, count)
	for _, l := range labels {
		sizes[l]++
	}
	smallest := len(labels)
	for _, s := range sizes {
		if s < smallest {
			smallest = s
		}
	}
	return smallest
}
