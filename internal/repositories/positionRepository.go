package repositories

import (
	"context"
	"errors"

	"PaperTradeBot/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new instance of PositionRepository
func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *PositionRepository) WithTx(tx *gorm.DB) *PositionRepository {
	return &PositionRepository{db: tx}
}

// Create adds a new Position record to the database
func (r *PositionRepository) Create(ctx context.Context, position *models.Position) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	if !position.Quantity.IsPositive() {
		return errors.New("position quantity must be positive")
	}
	return r.db.WithContext(ctx).Create(position).Error
}

// Update modifies an existing Position record
func (r *PositionRepository) Update(ctx context.Context, position *models.Position) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	if !position.Quantity.IsPositive() {
		return errors.New("position quantity must be positive")
	}
	return r.db.WithContext(ctx).Save(position).Error
}

// Delete removes a Position record from the database
func (r *PositionRepository) Delete(ctx context.Context, position *models.Position) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	return r.db.WithContext(ctx).Delete(position).Error
}

// Find retrieves the position for one (user, symbol, side, mode) key.
func (r *PositionRepository) Find(ctx context.Context, userID uint, symbol, side, mode string) (*models.Position, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var position models.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND side = ? AND mode = ?", userID, symbol, side, mode).
		First(&position).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// FindByUser retrieves all open positions of a user
func (r *PositionRepository) FindByUser(ctx context.Context, userID uint) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("symbol ASC, side ASC").
		Find(&positions).Error
	return positions, err
}

// SumQuantity totals a user's quantity on one side of a symbol across modes.
func (r *PositionRepository) SumQuantity(ctx context.Context, userID uint, symbol, side string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.Position{}).
		Select("SUM(quantity)").
		Where("user_id = ? AND symbol = ? AND side = ?", userID, symbol, side).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
