package models

import (
	"time"
)

// Candle is one OHLCV bar. Series are always ordered oldest-first.
type Candle struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Venue     string    `gorm:"uniqueIndex:idx_candle_key;not null" json:"venue"`
	Symbol    string    `gorm:"uniqueIndex:idx_candle_key;not null" json:"symbol"`
	TimeFrame string    `gorm:"uniqueIndex:idx_candle_key;not null" json:"timeframe"`
	OpenTime  time.Time `gorm:"uniqueIndex:idx_candle_key;not null" json:"open_time"`
	Open      float64   `gorm:"type:decimal(20,8)" json:"open"`
	High      float64   `gorm:"type:decimal(20,8)" json:"high"`
	Low       float64   `gorm:"type:decimal(20,8)" json:"low"`
	Close     float64   `gorm:"type:decimal(20,8)" json:"close"`
	Volume    float64   `gorm:"type:decimal(28,8)" json:"volume"`
}

const (
	TimeFrame5m  = "5m"
	TimeFrame15m = "15m"
	TimeFrame1h  = "1h"
	TimeFrame4h  = "4h"
	TimeFrame1d  = "1d"
)

var timeFrameDurations = map[string]time.Duration{
	TimeFrame5m:  5 * time.Minute,
	TimeFrame15m: 15 * time.Minute,
	TimeFrame1h:  time.Hour,
	TimeFrame4h:  4 * time.Hour,
	TimeFrame1d:  24 * time.Hour,
}

// TimeFrameDuration returns the bar length of a supported timeframe.
func TimeFrameDuration(timeFrame string) (time.Duration, bool) {
	d, ok := timeFrameDurations[timeFrame]
	return d, ok
}

// TableName sets the table name for Candle model
func (Candle) TableName() string {
	return "candles"
}

// Closes extracts the close prices of a series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the traded volumes of a series.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
