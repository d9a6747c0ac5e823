package repositories

import (
	"context"
	"errors"

	"PaperTradeBot/internal/models"

	"gorm.io/gorm"
)

type BacktestRunRepository struct {
	db *gorm.DB
}

const DefaultBacktestRunListLimit = 20

// NewBacktestRunRepository creates a new instance of BacktestRunRepository
func NewBacktestRunRepository(db *gorm.DB) *BacktestRunRepository {
	return &BacktestRunRepository{db: db}
}

// Create adds a new BacktestRun record to the database
func (r *BacktestRunRepository) Create(ctx context.Context, run *models.BacktestRun) error {
	if run == nil {
		return errors.New("backtest run cannot be nil")
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// ListByUser retrieves a user's runs newest first, optionally for one strategy.
func (r *BacktestRunRepository) ListByUser(ctx context.Context, userID uint, strategyID *uint, limit, offset int) ([]models.BacktestRun, error) {
	if limit <= 0 {
		limit = DefaultBacktestRunListLimit
	}
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if strategyID != nil {
		q = q.Where("strategy_id = ?", *strategyID)
	}
	var runs []models.BacktestRun
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&runs).Error
	return runs, err
}

// DeleteByStrategy removes the backtest history of a strategy
func (r *BacktestRunRepository) DeleteByStrategy(ctx context.Context, strategyID uint) error {
	return r.db.WithContext(ctx).Where("strategy_id = ?", strategyID).Delete(&models.BacktestRun{}).Error
}
