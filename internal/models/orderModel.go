package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the append-only record of one simulated fill.
type Order struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	UserID      uint                `gorm:"index;not null" json:"user_id"`
	StrategyID  *uint               `gorm:"index" json:"strategy_id,omitempty"`
	Symbol      string              `gorm:"type:varchar(50);not null" json:"symbol"`
	Venue       string              `gorm:"type:varchar(50);not null" json:"venue"`
	Side        string              `gorm:"type:varchar(10);not null" json:"side"`
	OrderType   string              `gorm:"type:varchar(20);not null;default:market" json:"order_type"`
	Quantity    decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"quantity"`
	Price       decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"price"`
	StopPrice   decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"stop_price"`
	FillPrice   decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"fill_price"`
	Status      string              `gorm:"type:varchar(20);not null" json:"status"`
	Mode        string              `gorm:"type:varchar(20);not null" json:"mode"`
	RealizedPnL decimal.NullDecimal `gorm:"column:realized_pnl;type:decimal(20,8)" json:"realized_pnl"`

	CreatedAt time.Time `gorm:"index;autoCreateTime" json:"created_at"`
}

const (
	OrderTypeMarket     = "market"
	OrderTypeLimit      = "limit"
	OrderTypeStopMarket = "stop_market"
	OrderTypeStopLimit  = "stop_limit"

	OrderStatusFilled = "filled"
)

// UsesLimitPrice reports whether the order fills at its own price rather
// than the venue's last trade.
func UsesLimitPrice(orderType string) bool {
	return orderType == OrderTypeLimit || orderType == OrderTypeStopLimit
}

// ValidOrderType reports whether t is one of the supported order types.
func ValidOrderType(t string) bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopMarket, OrderTypeStopLimit:
		return true
	}
	return false
}
