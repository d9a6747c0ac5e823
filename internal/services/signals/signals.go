// Package signals turns a candle window and strategy parameters into a
// trade decision. Every function here is pure.
package signals

import (
	"fmt"

	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/services/indicators"
)

type Signal string

const (
	None Signal = ""
	Buy  Signal = "buy"
	Sell Signal = "sell"
)

// Side returns the order side for an actionable signal.
func (s Signal) Side() string {
	return string(s)
}

func (s Signal) String() string {
	if s == None {
		return "none"
	}
	return string(s)
}

const (
	DefaultShortPeriod = 10
	DefaultLongPeriod  = 20
	DefaultRSIPeriod   = 14
	DefaultOversold    = 30.0
	DefaultOverbought  = 70.0
	DefaultWarmUp      = 25
)

var rsiService = indicators.NewRSIService()

// Generate dispatches on the strategy type. Model-driven strategies are
// decided by the caller and always yield None here.
func Generate(strategyType string, candles []models.Candle, params map[string]float64) Signal {
	if len(candles) < 2 {
		return None
	}
	closes := models.Closes(candles)
	switch strategyType {
	case models.StrategyTypeMACross:
		return MACross(closes, MACrossParamsFrom(params))
	case models.StrategyTypeRSI:
		return RSIThreshold(closes, RSIParamsFrom(params))
	default:
		return None
	}
}

type MACrossParams struct {
	ShortPeriod int
	LongPeriod  int
}

func MACrossParamsFrom(params map[string]float64) MACrossParams {
	return MACrossParams{
		ShortPeriod: intParam(params, DefaultShortPeriod, "short_period"),
		LongPeriod:  intParam(params, DefaultLongPeriod, "long_period"),
	}
}

// MACross signals when the short SMA crosses the long SMA on the last bar.
// Both averages are needed on the prior bar too, so long_period+1 closes
// are required.
func MACross(closes []float64, p MACrossParams) Signal {
	if p.ShortPeriod <= 0 || p.ShortPeriod >= p.LongPeriod {
		return None
	}
	last := len(closes) - 1
	if len(closes) < p.LongPeriod+1 {
		return None
	}
	currShort, _ := indicators.SMA(closes, last, p.ShortPeriod)
	currLong, _ := indicators.SMA(closes, last, p.LongPeriod)
	prevShort, _ := indicators.SMA(closes, last-1, p.ShortPeriod)
	prevLong, _ := indicators.SMA(closes, last-1, p.LongPeriod)

	switch indicators.CheckCrossover(prevShort, prevLong, currShort, currLong) {
	case indicators.BullishCross:
		return Buy
	case indicators.BearishCross:
		return Sell
	default:
		return None
	}
}

type RSIParams struct {
	Period     int
	Oversold   float64
	Overbought float64
}

func RSIParamsFrom(params map[string]float64) RSIParams {
	return RSIParams{
		Period:     intParam(params, DefaultRSIPeriod, "rsi_period", "period"),
		Oversold:   floatParam(params, DefaultOversold, "oversold"),
		Overbought: floatParam(params, DefaultOverbought, "overbought"),
	}
}

// RSIThreshold buys oversold and sells overbought markets.
func RSIThreshold(closes []float64, p RSIParams) Signal {
	rsi, ok := rsiService.Last(closes, p.Period)
	if !ok {
		return None
	}
	if rsi <= p.Oversold {
		return Buy
	}
	if rsi >= p.Overbought {
		return Sell
	}
	return None
}

// RSI exposes the indicator value for diagnostics.
func RSI(candles []models.Candle, period int) (float64, bool) {
	return rsiService.Last(models.Closes(candles), period)
}

// WarmUp is the number of bars a backtest skips before evaluating signals.
func WarmUp(strategyType string, params map[string]float64) int {
	switch strategyType {
	case models.StrategyTypeMACross:
		long := intParam(params, DefaultLongPeriod, "long_period")
		if long < 2 {
			long = 2
		}
		return long + 1
	case models.StrategyTypeRSI:
		return intParam(params, DefaultRSIPeriod, "rsi_period", "period") + 2
	default:
		return DefaultWarmUp
	}
}

// ValidateParams checks a parameter set before it is stored.
func ValidateParams(strategyType string, params map[string]float64) error {
	switch strategyType {
	case models.StrategyTypeMACross:
		p := MACrossParamsFrom(params)
		if p.ShortPeriod <= 0 || p.ShortPeriod >= p.LongPeriod {
			return fmt.Errorf("short_period (%d) must be positive and below long_period (%d)", p.ShortPeriod, p.LongPeriod)
		}
	case models.StrategyTypeRSI:
		p := RSIParamsFrom(params)
		if p.Period <= 0 {
			return fmt.Errorf("rsi_period must be positive, got %d", p.Period)
		}
		if p.Oversold >= p.Overbought {
			return fmt.Errorf("oversold (%.2f) must be below overbought (%.2f)", p.Oversold, p.Overbought)
		}
	case models.StrategyTypeML:
	default:
		return fmt.Errorf("unknown strategy type %q", strategyType)
	}
	return nil
}

func intParam(params map[string]float64, fallback int, keys ...string) int {
	for _, k := range keys {
		if v, ok := params[k]; ok {
			return int(v)
		}
	}
	return fallback
}

func floatParam(params map[string]float64, fallback float64, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := params[k]; ok {
			return v
		}
	}
	return fallback
}
