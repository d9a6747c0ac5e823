package repositories

import (
	"context"
	"errors"

	"PaperTradeBot/internal/models"

	"gorm.io/gorm"
)

type MLModelRepository struct {
	db *gorm.DB
}

// NewMLModelRepository creates a new instance of MLModelRepository
func NewMLModelRepository(db *gorm.DB) *MLModelRepository {
	return &MLModelRepository{db: db}
}

// Create adds a new MLModel record to the database
func (r *MLModelRepository) Create(ctx context.Context, model *models.MLModel) error {
	if model == nil {
		return errors.New("model cannot be nil")
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindOwned retrieves a model only when it belongs to userID.
func (r *MLModelRepository) FindOwned(ctx context.Context, id, userID uint) (*models.MLModel, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var model models.MLModel
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}
