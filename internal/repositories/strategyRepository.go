package repositories

import (
	"context"
	"errors"
	"fmt"

	"PaperTradeBot/internal/models"

	"gorm.io/gorm"
)

type StrategyRepository struct {
	db *gorm.DB
}

// NewStrategyRepository creates a new instance of StrategyRepository
func NewStrategyRepository(db *gorm.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

// Create adds a new StrategyConfig record to the database
func (r *StrategyRepository) Create(ctx context.Context, strategy *models.StrategyConfig) error {
	if strategy == nil {
		return errors.New("strategy cannot be nil")
	}
	return r.db.WithContext(ctx).Create(strategy).Error
}

// FindOwned retrieves a strategy only when it belongs to userID.
func (r *StrategyRepository) FindOwned(ctx context.Context, id, userID uint) (*models.StrategyConfig, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var strategy models.StrategyConfig
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&strategy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &strategy, nil
}

// FindByUser retrieves every strategy of a user
func (r *StrategyRepository) FindByUser(ctx context.Context, userID uint) ([]models.StrategyConfig, error) {
	var strategies []models.StrategyConfig
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&strategies).Error
	return strategies, err
}

// FindActive retrieves every strategy currently flagged active
func (r *StrategyRepository) FindActive(ctx context.Context) ([]models.StrategyConfig, error) {
	var strategies []models.StrategyConfig
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&strategies).Error
	return strategies, err
}

// Update modifies an existing StrategyConfig record
func (r *StrategyRepository) Update(ctx context.Context, strategy *models.StrategyConfig) error {
	if strategy == nil {
		return errors.New("strategy cannot be nil")
	}
	return r.db.WithContext(ctx).Save(strategy).Error
}

// Delete stops and soft-deletes a strategy, removes its risk limit and
// backtest history and detaches its orders, all in one transaction.
func (r *StrategyRepository) Delete(ctx context.Context, strategy *models.StrategyConfig) error {
	if strategy == nil {
		return errors.New("strategy cannot be nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(strategy).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("stop strategy: %w", err)
		}
		if err := NewRiskLimitRepository(tx).DeleteByStrategy(ctx, strategy.ID); err != nil {
			return fmt.Errorf("delete risk limits: %w", err)
		}
		if err := NewBacktestRunRepository(tx).DeleteByStrategy(ctx, strategy.ID); err != nil {
			return fmt.Errorf("delete backtest runs: %w", err)
		}
		if err := NewOrderRepository(tx).DetachStrategy(ctx, strategy.ID); err != nil {
			return fmt.Errorf("detach orders: %w", err)
		}
		return tx.Delete(strategy).Error
	})
}
