package backtest

import (
	"time"

	"PaperTradeBot/internal/services/signals"

	"github.com/shopspring/decimal"
)

// Core trade record
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	Side       string // "long" or "short"
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	PnL        float64
	Reason     string // "signal" or "end_of_data"
}

// For tracking equity changes
type EquityPoint struct {
	Timestamp time.Time
	Balance   float64
}

// BarSignal is a non-None decision taken at bar Index.
type BarSignal struct {
	Index  int
	Time   time.Time
	Signal signals.Signal
}

// Final backtest results
type BacktestResults struct {
	InitialBalance float64
	FinalBalance   float64
	ReturnPct      *float64

	// Trade metrics
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       *float64 // percent, nil without trades
	AveragePnL    float64

	// Performance metrics
	MaxDrawdown float64
	SharpeRatio float64

	// Detailed records
	Trades      []Trade
	EquityCurve []EquityPoint
	Signals     []BarSignal
}

// StrategySpec is the part of a strategy the simulator needs.
type StrategySpec struct {
	Type   string
	Params map[string]float64
}

// Request selects the market data and capital of one run. Zero fields
// default to the strategy's symbol and venue, the 1h timeframe, the
// configured balance, an open start and now as the end.
type Request struct {
	Symbol         string
	Venue          string
	TimeFrame      string
	Start          time.Time
	End            time.Time
	InitialBalance decimal.Decimal
}

// Metrics is the extra detail stored alongside a run.
type Metrics struct {
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	AveragePnL  float64 `json:"average_pnl"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	Signals     int     `json:"signals"`
	Candles     int     `json:"candles"`
}

// Fraction of the current balance committed to each new long.
const PositionFraction = 0.1
