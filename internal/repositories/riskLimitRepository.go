package repositories

import (
	"context"
	"errors"

	"PaperTradeBot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RiskLimitRepository struct {
	db *gorm.DB
}

// NewRiskLimitRepository creates a new instance of RiskLimitRepository
func NewRiskLimitRepository(db *gorm.DB) *RiskLimitRepository {
	return &RiskLimitRepository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *RiskLimitRepository) WithTx(tx *gorm.DB) *RiskLimitRepository {
	return &RiskLimitRepository{db: tx}
}

// FindScoped retrieves the (user, strategy) row when strategyID is set,
// otherwise the user-level row.
func (r *RiskLimitRepository) FindScoped(ctx context.Context, userID uint, strategyID *uint) (*models.RiskLimit, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if strategyID != nil {
		q = q.Where("strategy_id = ?", *strategyID)
	} else {
		q = q.Where("strategy_id IS NULL")
	}
	var limit models.RiskLimit
	err := q.First(&limit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &limit, nil
}

// Upsert writes the limit for its scope, replacing any existing row. The
// unique (user_id, scope_key) index keeps one row per scope under
// concurrent writers.
func (r *RiskLimitRepository) Upsert(ctx context.Context, limit *models.RiskLimit) error {
	if limit == nil {
		return errors.New("risk limit cannot be nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		limit.ID = 0
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "scope_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"max_position_size", "daily_loss_limit", "updated_at"}),
		}).Create(limit).Error
		if err != nil {
			return err
		}
		stored, err := r.WithTx(tx).FindScoped(ctx, limit.UserID, limit.StrategyID)
		if err != nil {
			return err
		}
		if stored == nil {
			return errors.New("risk limit missing after upsert")
		}
		*limit = *stored
		return nil
	})
}

// DeleteByStrategy removes the limit scoped to a strategy
func (r *RiskLimitRepository) DeleteByStrategy(ctx context.Context, strategyID uint) error {
	return r.db.WithContext(ctx).Where("strategy_id = ?", strategyID).Delete(&models.RiskLimit{}).Error
}

// ListByUser retrieves every limit row of a user, user-level first
func (r *RiskLimitRepository) ListByUser(ctx context.Context, userID uint) ([]models.RiskLimit, error) {
	var limits []models.RiskLimit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("strategy_id IS NOT NULL, strategy_id ASC").
		Find(&limits).Error
	return limits, err
}

// DeleteOwned removes one limit row of a user. It reports whether a row was deleted.
func (r *RiskLimitRepository) DeleteOwned(ctx context.Context, id, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.RiskLimit{})
	return res.RowsAffected > 0, res.Error
}
