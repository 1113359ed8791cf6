package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RegressionMetrics summarises hold-out accuracy in price units.
// MAPE and the Within fields are percentages.
type RegressionMetrics struct {
	R2          float64 `json:"r2"`
	MAE         float64 `json:"mae"`
	MedianAE    float64 `json:"median_ae"`
	RMSE        float64 `json:"rmse"`
	MAPE        float64 `json:"mape"`
	Within10Pct float64 `json:"within_10pct"`
	Within20Pct float64 `json:"within_20pct"`
	Within25Pct float64 `json:"within_25pct"`
}

// Evaluate compares predictions against actual values. Rows with a zero actual
// value are left out of MAPE and the within-band ratios.
func Evaluate(actual, predicted []float64) RegressionMetrics {
	n := len(actual)
	if n == 0 || len(predicted) != n {
		return RegressionMetrics{}
	}

	absErr := make([]float64, n)
	sqErr := make([]float64, n)
	var pctSum float64
	var pctN, w10, w20, w25 int
	for i := range actual {
		diff := actual[i] - predicted[i]
		absErr[i] = math.Abs(diff)
		sqErr[i] = diff * diff
		if actual[i] == 0 {
			continue
		}
		pct := absErr[i] / math.Abs(actual[i])
		pctSum += pct
		pctN++
		if pct <= 0.10 {
			w10++
		}
		if pct <= 0.20 {
			w20++
		}
		if pct <= 0.25 {
			w25++
		}
	}

	m := RegressionMetrics{
		MAE:      floats.Sum(absErr) / float64(n),
		MedianAE: Median(absErr),
		RMSE:     math.Sqrt(floats.Sum(sqErr) / float64(n)),
	}

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, v := range actual {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot > 0 {
		m.R2 = 1 - floats.Sum(sqErr)/ssTot
	}

	if pctN > 0 {
		m.MAPE = 100 * pctSum / float64(pctN)
		m.Within10Pct = 100 * float64(w10) / float64(pctN)
		m.Within20Pct = 100 * float64(w20) / float64(pctN)
		m.Within25Pct = 100 * float64(w25) / float64(pctN)
	}
	return m
}
