package signals

import (
	"testing"
	"time"

	"PaperTradeBot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkCandles(closes ...float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = models.Candle{
			OpenTime: t0.Add(time.Duration(i) * time.Hour),
			Open:     c, High: c, Low: c, Close: c, Volume: 100,
		}
	}
	return out
}

func TestMACrossEmitsSingleBuyOnRisingSeries(t *testing.T) {
	candles := mkCandles(5, 5, 5, 5, 6, 7, 8, 9, 10, 11)
	params := map[string]float64{"short_period": 2, "long_period": 3}

	var buys []int
	for i := range candles {
		switch Generate(models.StrategyTypeMACross, candles[:i+1], params) {
		case Buy:
			buys = append(buys, i)
		case Sell:
			t.Fatalf("unexpected sell at bar %d", i)
		}
	}
	assert.Equal(t, []int{4}, buys)
}

func TestMACrossSell(t *testing.T) {
	candles := mkCandles(9, 9, 9, 9, 8)
	params := map[string]float64{"short_period": 2, "long_period": 3}
	assert.Equal(t, Sell, Generate(models.StrategyTypeMACross, candles, params))
}

func TestMACrossInsufficientHistoryAndBadParams(t *testing.T) {
	params := map[string]float64{"short_period": 2, "long_period": 3}
	assert.Equal(t, None, Generate(models.StrategyTypeMACross, mkCandles(5, 5, 6), params))

	bad := map[string]float64{"short_period": 3, "long_period": 3}
	assert.Equal(t, None, Generate(models.StrategyTypeMACross, mkCandles(5, 5, 5, 5, 6), bad))
}

func TestMACrossDefaults(t *testing.T) {
	closes := make([]float64, 0, 22)
	for i := 0; i < 21; i++ {
		closes = append(closes, 50)
	}
	closes = append(closes, 60)
	assert.Equal(t, Buy, Generate(models.StrategyTypeMACross, mkCandles(closes...), nil))
	assert.Equal(t, None, Generate(models.StrategyTypeMACross, mkCandles(closes[:20]...), nil))
}

func TestRSIAllGainsSignalsSell(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assert.Equal(t, Sell, Generate(models.StrategyTypeRSI, mkCandles(closes...), nil))
	assert.Equal(t, None, Generate(models.StrategyTypeRSI, mkCandles(closes[:14]...), nil), "period+1 bars are required")

	rsi, ok := RSI(mkCandles(closes...), 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, rsi)
}

func TestRSIOversoldBuys(t *testing.T) {
	closes := []float64{20, 19, 18, 17, 16, 15}
	params := map[string]float64{"rsi_period": 5, "oversold": 25, "overbought": 75}
	assert.Equal(t, Buy, Generate(models.StrategyTypeRSI, mkCandles(closes...), params))
}

func TestRSINeutralBand(t *testing.T) {
	closes := []float64{10, 11, 10, 11, 10, 11}
	params := map[string]float64{"period": 4}
	assert.Equal(t, None, Generate(models.StrategyTypeRSI, mkCandles(closes...), params))
}

func TestModelStrategiesAreNotComputedHere(t *testing.T) {
	assert.Equal(t, None, Generate(models.StrategyTypeML, mkCandles(1, 2, 3, 4, 5), nil))
	assert.Equal(t, None, Generate("unknown", mkCandles(1, 2, 3), nil))
}

func TestWarmUp(t *testing.T) {
	assert.Equal(t, 21, WarmUp(models.StrategyTypeMACross, nil))
	assert.Equal(t, 4, WarmUp(models.StrategyTypeMACross, map[string]float64{"long_period": 3}))
	assert.Equal(t, 3, WarmUp(models.StrategyTypeMACross, map[string]float64{"long_period": 1}))
	assert.Equal(t, 16, WarmUp(models.StrategyTypeRSI, nil))
	assert.Equal(t, 9, WarmUp(models.StrategyTypeRSI, map[string]float64{"rsi_period": 7}))
	assert.Equal(t, DefaultWarmUp, WarmUp(models.StrategyTypeML, nil))
}

func TestValidateParams(t *testing.T) {
	require.NoError(t, ValidateParams(models.StrategyTypeMACross, map[string]float64{"short_period": 5, "long_period": 10}))
	require.Error(t, ValidateParams(models.StrategyTypeMACross, map[string]float64{"short_period": 10, "long_period": 5}))
	require.NoError(t, ValidateParams(models.StrategyTypeRSI, nil))
	require.Error(t, ValidateParams(models.StrategyTypeRSI, map[string]float64{"oversold": 80}))
	require.NoError(t, ValidateParams(models.StrategyTypeML, nil))
	require.Error(t, ValidateParams("grid", nil))
}
