package models

import (
	"time"

	"gorm.io/gorm"
)

// StrategyConfig is a user-defined trading bot.
type StrategyConfig struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	UserID    uint               `gorm:"index;not null" json:"user_id"`
	Name      string             `gorm:"type:varchar(100);not null" json:"name"`
	Type      string             `gorm:"type:varchar(50);not null" json:"type"`
	Params    map[string]float64 `gorm:"serializer:json;type:text" json:"params"`
	Symbol    string             `gorm:"type:varchar(50);not null" json:"symbol"`
	Venue     string             `gorm:"type:varchar(50);not null" json:"venue"`
	Mode      string             `gorm:"type:varchar(20);not null;default:paper" json:"mode"`
	IsActive  bool               `gorm:"index;not null;default:false" json:"is_active"`
	MLModelID *uint              `gorm:"index" json:"ml_model_id,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (StrategyConfig) TableName() string {
	return "strategies"
}

const (
	StrategyTypeMACross = "ma_cross"
	StrategyTypeRSI     = "rsi"
	StrategyTypeML      = "ml"

	ModePaper = "paper"
	ModeLive  = "live"
)

// UsesModel reports whether decisions come from the external ML predictor.
func (s *StrategyConfig) UsesModel() bool {
	return s.MLModelID != nil && *s.MLModelID != 0
}
