package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RiskLimit caps exposure for a user, or for one of the user's strategies when
// StrategyID is set. A nil or zero limit leaves that dimension unconstrained.
type RiskLimit struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	UserID          uint                `gorm:"uniqueIndex:idx_risk_limit_scope;not null" json:"user_id"`
	StrategyID      *uint               `gorm:"index" json:"strategy_id,omitempty"`
	ScopeKey        uint                `gorm:"uniqueIndex:idx_risk_limit_scope;not null;default:0" json:"-"` // StrategyID, or 0 for the user-level row
	MaxPositionSize decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"max_position_size"`
	DailyLossLimit  decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"daily_loss_limit"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RiskLimit) TableName() string {
	return "risk_limits"
}

// BeforeSave keeps ScopeKey in step with StrategyID.
func (l *RiskLimit) BeforeSave(*gorm.DB) error {
	l.ScopeKey = 0
	if l.StrategyID != nil {
		l.ScopeKey = *l.StrategyID
	}
	return nil
}
