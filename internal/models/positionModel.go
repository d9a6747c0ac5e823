package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the net open exposure on one side of (user, symbol, mode).
// Quantity is always positive; a fully closed position is deleted.
type Position struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"uniqueIndex:idx_position_key;not null" json:"user_id"`
	Symbol        string          `gorm:"uniqueIndex:idx_position_key;type:varchar(50);not null" json:"symbol"`
	Side          string          `gorm:"uniqueIndex:idx_position_key;type:varchar(10);not null" json:"side"`
	Mode          string          `gorm:"uniqueIndex:idx_position_key;type:varchar(20);not null" json:"mode"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	EntryPriceAvg decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"entry_price_avg"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	PositionSideLong  = "long"
	PositionSideShort = "short"

	SideBuy  = "buy"
	SideSell = "sell"
)

// PositionSideFor maps an order side to the position side it opens or grows.
func PositionSideFor(orderSide string) string {
	if orderSide == SideBuy {
		return PositionSideLong
	}
	return PositionSideShort
}

// OpposingSide maps an order side to the position side it closes.
func OpposingSide(orderSide string) string {
	if orderSide == SideBuy {
		return PositionSideShort
	}
	return PositionSideLong
}
