package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BacktestRun is the immutable record of one simulation.
type BacktestRun struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	UserID         uint                `gorm:"index;not null" json:"user_id"`
	StrategyID     uint                `gorm:"index;not null" json:"strategy_id"`
	Symbol         string              `gorm:"type:varchar(50);not null" json:"symbol"`
	Venue          string              `gorm:"type:varchar(50);not null" json:"venue"`
	TimeFrame      string              `gorm:"type:varchar(20);not null" json:"timeframe"`
	StartTs        time.Time           `json:"start_ts"`
	EndTs          time.Time           `json:"end_ts"`
	InitialBalance decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"initial_balance"`
	FinalBalance   decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"final_balance"`
	TotalReturnPct decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"total_return_pct"`
	TotalTrades    int                 `gorm:"not null;default:0" json:"total_trades"`
	WinRatePct     decimal.NullDecimal `gorm:"type:decimal(6,2)" json:"win_rate_pct"`
	ParamsJSON     string              `gorm:"type:text" json:"params_json"`
	MetricsJSON    string              `gorm:"type:text" json:"metrics_json"`

	CreatedAt time.Time `gorm:"index;autoCreateTime" json:"created_at"`
}

func (BacktestRun) TableName() string {
	return "backtest_runs"
}
