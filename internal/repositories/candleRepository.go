package repositories

import (
	"context"
	"errors"
	"time"

	"PaperTradeBot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CandleRepository caches fetched OHLCV bars so backtests can replay a date
// range without hitting the venue again.
type CandleRepository struct {
	db *gorm.DB
}

// NewCandleRepository creates a new instance of CandleRepository
func NewCandleRepository(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// SaveBatch stores candles, ignoring bars that are already cached.
func (r *CandleRepository) SaveBatch(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	rows := make([]models.Candle, len(candles))
	copy(rows, candles)
	for i := range rows {
		rows[i].ID = 0
		rows[i].OpenTime = rows[i].OpenTime.UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 200).Error
}

// GetByTimeFrame gets bars for a venue, symbol and timeframe within [start, end], oldest first.
func (r *CandleRepository) GetByTimeFrame(ctx context.Context, venue, symbol, timeFrame string, start, end time.Time) ([]models.Candle, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}

	var candles []models.Candle
	err := r.db.WithContext(ctx).
		Where("venue = ? AND symbol = ? AND time_frame = ? AND open_time BETWEEN ? AND ?",
			venue, symbol, timeFrame, start.UTC(), end.UTC()).
		Order("open_time ASC").
		Find(&candles).Error
	return candles, err
}

// GetLatest gets the most recent limit bars, oldest first.
func (r *CandleRepository) GetLatest(ctx context.Context, venue, symbol, timeFrame string, limit int) ([]models.Candle, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}

	var candles []models.Candle
	err := r.db.WithContext(ctx).
		Where("venue = ? AND symbol = ? AND time_frame = ?", venue, symbol, timeFrame).
		Order("open_time DESC").
		Limit(limit).
		Find(&candles).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}
