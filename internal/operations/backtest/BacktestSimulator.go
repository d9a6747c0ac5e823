package backtest

import (
	"fmt"
	"math"

	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/services/signals"
)

// Simulator replays a candle series through the signal generator with a
// single virtual position. Unlike the execution engine it never averages
// into a position: every new long starts from the current fill price.
type Simulator struct {
	positionFraction float64
}

func NewSimulator() *Simulator {
	return &Simulator{positionFraction: PositionFraction}
}

type run struct {
	fraction float64
	balance  float64
	position *Trade
	results  *BacktestResults
}

// Run evaluates each bar from the warm-up index on against the candle prefix
// ending at that bar. It keeps no state between calls.
func (s *Simulator) Run(spec StrategySpec, candles []models.Candle, initialBalance float64) (*BacktestResults, error) {
	warmUp := signals.WarmUp(spec.Type, spec.Params)
	if len(candles) < 2 || warmUp >= len(candles) {
		return nil, fmt.Errorf("%w: %d candles, warm-up needs more than %d", models.ErrInsufficientData, len(candles), warmUp)
	}

	r := &run{
		fraction: s.positionFraction,
		balance:  initialBalance,
		results: &BacktestResults{
			InitialBalance: initialBalance,
			EquityCurve:    []EquityPoint{{Timestamp: candles[0].OpenTime, Balance: initialBalance}},
		},
	}

	for i := warmUp; i < len(candles); i++ {
		sig := signals.Generate(spec.Type, candles[:i+1], spec.Params)
		if sig == signals.None {
			continue
		}
		r.results.Signals = append(r.results.Signals, BarSignal{Index: i, Time: candles[i].OpenTime, Signal: sig})

		switch {
		case sig == signals.Buy && (r.position == nil || r.position.Side == models.PositionSideShort):
			if r.position != nil {
				r.close(candles[i], "signal")
			}
			r.openLong(candles[i])
		case sig == signals.Sell && r.position != nil && r.position.Side == models.PositionSideLong:
			r.close(candles[i], "signal")
		}
	}

	if r.position != nil {
		r.close(candles[len(candles)-1], "end_of_data")
	}

	return r.finish(), nil
}

func (r *run) openLong(c models.Candle) {
	if r.balance <= 0 || c.Close <= 0 {
		return
	}
	r.position = &Trade{
		EntryTime:  c.OpenTime,
		Side:       models.PositionSideLong,
		EntryPrice: c.Close,
		Size:       r.balance * r.fraction / c.Close,
	}
}

func (r *run) close(c models.Candle, reason string) {
	t := r.position
	t.ExitTime = c.OpenTime
	t.ExitPrice = c.Close
	t.Reason = reason
	if t.Side == models.PositionSideLong {
		t.PnL = (c.Close - t.EntryPrice) * t.Size
	} else {
		t.PnL = (t.EntryPrice - c.Close) * t.Size
	}

	r.balance += t.PnL
	r.results.Trades = append(r.results.Trades, *t)
	r.results.EquityCurve = append(r.results.EquityCurve, EquityPoint{Timestamp: c.OpenTime, Balance: r.balance})
	r.position = nil
}

func (r *run) finish() *BacktestResults {
	res := r.results
	res.FinalBalance = r.balance
	res.TotalTrades = len(res.Trades)

	if res.InitialBalance != 0 {
		pct := (res.FinalBalance - res.InitialBalance) / res.InitialBalance * 100
		res.ReturnPct = &pct
	}

	totalPnL := 0.0
	for _, trade := range res.Trades {
		if trade.PnL > 0 {
			res.WinningTrades++
		} else {
			res.LosingTrades++
		}
		totalPnL += trade.PnL
	}
	if res.TotalTrades > 0 {
		winRate := float64(res.WinningTrades) / float64(res.TotalTrades) * 100
		res.WinRate = &winRate
		res.AveragePnL = totalPnL / float64(res.TotalTrades)
	}

	res.MaxDrawdown = maxDrawdown(res.InitialBalance, res.EquityCurve)
	res.SharpeRatio = sharpeRatio(res.EquityCurve)
	return res
}

func maxDrawdown(initial float64, curve []EquityPoint) float64 {
	maxDD := 0.0
	peak := initial
	for _, point := range curve {
		if point.Balance > peak {
			peak = point.Balance
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - point.Balance) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpeRatio annualises per-trade equity returns as if they were daily.
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Balance == 0 {
			continue
		}
		returns = append(returns, (curve[i].Balance-curve[i-1].Balance)/curve[i-1].Balance)
	}
	if len(returns) < 2 {
		return 0
	}

	avgReturn := 0.0
	for _, ret := range returns {
		avgReturn += ret
	}
	avgReturn /= float64(len(returns))

	variance := 0.0
	for _, ret := range returns {
		variance += math.Pow(ret-avgReturn, 2)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	return (avgReturn * 252) / (stdDev * math.Sqrt(252))
}
