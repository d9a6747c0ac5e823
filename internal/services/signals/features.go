package signals

import (
	"PaperTradeBot/internal/models"
)

// FeatureNames orders the vector returned by Features.
var FeatureNames = []string{
	"return_1",
	"return_2",
	"return_3",
	"return_5",
	"ma_5_20_ratio",
	"volume_change",
}

const (
	featureWindow = 20
	epsilon       = 1e-12
)

// Features derives the model input from the trailing window. With fewer
// than featureWindow+1 bars every feature is zero.
func Features(candles []models.Candle) []float64 {
	out := make([]float64, len(FeatureNames))
	if len(candles) < featureWindow+1 {
		return out
	}
	closes := models.Closes(candles)
	volumes := models.Volumes(candles)
	n := len(closes)

	ret := func(lag int) float64 {
		i := n - lag
		return (closes[i] - closes[i-1]) / (closes[i-1] + epsilon)
	}
	out[0] = ret(1)
	out[1] = ret(2)
	out[2] = ret(3)
	out[3] = ret(5)

	ma5 := mean(closes[n-5:])
	ma20 := mean(closes[n-featureWindow:])
	out[4] = ma5/(ma20+epsilon) - 1

	recent := mean(volumes[n-3:])
	prior := mean(volumes[n-6 : n-3])
	out[5] = recent/(prior+epsilon) - 1

	return out
}

// FeatureMap pairs Features with FeatureNames.
func FeatureMap(candles []models.Candle) map[string]float64 {
	values := Features(candles)
	m := make(map[string]float64, len(values))
	for i, name := range FeatureNames {
		m[name] = values[i]
	}
	return m
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
