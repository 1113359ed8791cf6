package ml

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quantile returns the p-quantile of sorted using linear interpolation between
// closest ranks, h = (n-1)p. sorted must be ascending and non-empty.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// Median returns the median of the finite values, or NaN when there are none
func Median(values []float64) float64 {
	finite := finiteSorted(values)
	if len(finite) == 0 {
		return math.NaN()
	}
	return Quantile(finite, 0.5)
}

// ZScores returns (v - mean) / std using the population standard deviation.
// When the standard deviation is zero every score is zero.
func ZScores(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// PercentileRanks returns the average rank of each value divided by n, in (0, 1].
// Ties share the mean of their ranks.
func PercentileRanks(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	idx := sequence(n)
	sort.SliceStable(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })

	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		rank := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			out[idx[k]] = rank / float64(n)
		}
		i = j + 1
	}
	return out
}

func finiteSorted(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
