package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	avg, ok := SMA(values, 4, 3)
	require.True(t, ok)
	assert.InDelta(t, 4.0, avg, 1e-12)

	_, ok = SMA(values, 1, 3)
	assert.False(t, ok)
	_, ok = SMA(values, 5, 2)
	assert.False(t, ok)
}

func TestCheckCrossover(t *testing.T) {
	assert.Equal(t, BullishCross, CheckCrossover(1, 1, 2, 1))
	assert.Equal(t, BearishCross, CheckCrossover(2, 2, 1, 2))
	assert.Equal(t, NoCross, CheckCrossover(2, 1, 3, 1))
	assert.Equal(t, NoCross, CheckCrossover(1, 1, 1, 1))
}

func TestWilderSeedsWithSMA(t *testing.T) {
	out := NewEMAService().Wilder([]float64{2, 4, 6, 10}, 3)
	require.Len(t, out, 4)
	assert.InDelta(t, 4.0, out[2], 1e-12)
	// 4 + (10-4)/3
	assert.InDelta(t, 6.0, out[3], 1e-12)
}

func TestWilderRejectsShortInput(t *testing.T) {
	assert.Nil(t, NewEMAService().Wilder([]float64{1}, 3))
	assert.Nil(t, NewEMAService().Wilder([]float64{1, 2, 3}, 0))
}

func TestRSIAllGains(t *testing.T) {
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	rsi, ok := NewRSIService().Last(prices, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, rsi)

	_, ok = NewRSIService().Last(prices[:14], 14)
	assert.False(t, ok)
}

func TestRSIAllLossesAndFlat(t *testing.T) {
	down := []float64{10, 9, 8, 7, 6}
	rsi, ok := NewRSIService().Last(down, 4)
	require.True(t, ok)
	assert.Equal(t, 0.0, rsi)

	flat := []float64{5, 5, 5, 5, 5}
	rsi, ok = NewRSIService().Last(flat, 4)
	require.True(t, ok)
	assert.Equal(t, 50.0, rsi)
}

func TestRSIMixed(t *testing.T) {
	// period 2: gains [2,0,2,0], losses [0,1,0,1]
	prices := []float64{10, 12, 11, 13, 12}
	rsi, ok := NewRSIService().Last(prices, 2)
	require.True(t, ok)
	// avgGain: seed (2+0)/2=1, then 1+(2-1)/2=1.5, then 1.5+(0-1.5)/2=0.75
	// avgLoss: seed 0.5, then 0.5+(0-0.5)/2=0.25, then 0.25+(1-0.25)/2=0.625
	expected := 100 - 100/(1+0.75/0.625)
	assert.InDelta(t, expected, rsi, 1e-9)
}
