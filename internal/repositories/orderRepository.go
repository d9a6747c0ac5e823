package repositories

import (
	"context"
	"errors"
	"time"

	"PaperTradeBot/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

// OrderFilter narrows ListByUser. Zero values mean no filter / defaults.
type OrderFilter struct {
	StrategyID *uint
	Limit      int
	Offset     int
}

const DefaultOrderListLimit = 50

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create appends an Order record. Orders are never updated afterwards.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order cannot be nil")
	}
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID retrieves an Order record by its ID
func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser retrieves a user's orders, newest first
func (r *OrderRepository) ListByUser(ctx context.Context, userID uint, filter OrderFilter) ([]models.Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultOrderListLimit
	}
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.StrategyID != nil {
		q = q.Where("strategy_id = ?", *filter.StrategyID)
	}
	var orders []models.Order
	err := q.Order("created_at DESC, id DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// SumRealizedPnLSince totals realized PnL of a user's orders created at or after since.
func (r *OrderRepository) SumRealizedPnLSince(ctx context.Context, userID uint, since time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("SUM(realized_pnl)").
		Where("user_id = ? AND realized_pnl IS NOT NULL AND created_at >= ?", userID, since.UTC()).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// DetachStrategy clears the strategy reference of every order it produced.
func (r *OrderRepository) DetachStrategy(ctx context.Context, strategyID uint) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("strategy_id = ?", strategyID).
		Update("strategy_id", nil).Error
}
