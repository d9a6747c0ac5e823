package strategy

import (
	"context"
	"fmt"
	"strings"

	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/operations/marketdata"
	"PaperTradeBot/internal/repositories"
	"PaperTradeBot/internal/services/signals"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StrategyManager owns the lifecycle of user strategies. Every lookup is
// scoped to the owner; foreign ids behave as missing.
type StrategyManager struct {
	strategies *repositories.StrategyRepository
	mlModels   *repositories.MLModelRepository
	log        *zap.Logger
}

func NewStrategyManager(db *gorm.DB, log *zap.Logger) *StrategyManager {
	return &StrategyManager{
		strategies: repositories.NewStrategyRepository(db),
		mlModels:   repositories.NewMLModelRepository(db),
		log:        log,
	}
}

// Create stores a validated, inactive strategy.
func (m *StrategyManager) Create(ctx context.Context, userID uint, req CreateRequest) (*models.StrategyConfig, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrInvalidStrategy)
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", models.ErrInvalidStrategy)
	}
	if err := signals.ValidateParams(req.Type, req.Params); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidStrategy, err)
	}
	if req.Venue == "" {
		req.Venue = marketdata.VenueBinance
	}
	if req.Mode == "" {
		req.Mode = models.ModePaper
	}
	if req.Mode != models.ModePaper && req.Mode != models.ModeLive {
		return nil, fmt.Errorf("%w: unknown mode %q", models.ErrInvalidStrategy, req.Mode)
	}
	if err := m.checkModel(ctx, userID, req.MLModelID); err != nil {
		return nil, err
	}

	s := &models.StrategyConfig{
		UserID:    userID,
		Name:      req.Name,
		Type:      req.Type,
		Params:    req.Params,
		Symbol:    req.Symbol,
		Venue:     strings.ToLower(req.Venue),
		Mode:      req.Mode,
		IsActive:  false,
		MLModelID: req.MLModelID,
	}
	if err := m.strategies.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create strategy: %w", err)
	}
	m.log.Info("strategy created", zap.Uint("strategy_id", s.ID), zap.Uint("user_id", userID), zap.String("type", s.Type))
	return s, nil
}

func (m *StrategyManager) Get(ctx context.Context, userID, id uint) (*models.StrategyConfig, error) {
	s, err := m.strategies.FindOwned(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("load strategy %d: %w", id, err)
	}
	if s == nil {
		return nil, fmt.Errorf("strategy %d: %w", id, models.ErrNotFound)
	}
	return s, nil
}

func (m *StrategyManager) List(ctx context.Context, userID uint) ([]models.StrategyConfig, error) {
	return m.strategies.FindByUser(ctx, userID)
}

// Start flags the strategy for the scheduler.
func (m *StrategyManager) Start(ctx context.Context, userID, id uint) (*models.StrategyConfig, error) {
	return m.setActive(ctx, userID, id, true)
}

func (m *StrategyManager) Stop(ctx context.Context, userID, id uint) (*models.StrategyConfig, error) {
	return m.setActive(ctx, userID, id, false)
}

func (m *StrategyManager) setActive(ctx context.Context, userID, id uint, active bool) (*models.StrategyConfig, error) {
	s, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.IsActive = active
	if err := m.strategies.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("update strategy %d: %w", id, err)
	}
	m.log.Info("strategy state changed", zap.Uint("strategy_id", id), zap.Bool("active", active))
	return s, nil
}

// Update replaces the parameters and/or the model reference.
func (m *StrategyManager) Update(ctx context.Context, userID, id uint, req UpdateRequest) (*models.StrategyConfig, error) {
	s, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Params != nil {
		if err := signals.ValidateParams(s.Type, req.Params); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrInvalidStrategy, err)
		}
		s.Params = req.Params
	}
	if req.MLModelID != nil {
		if err := m.checkModel(ctx, userID, req.MLModelID); err != nil {
			return nil, err
		}
		s.MLModelID = req.MLModelID
	}
	if err := m.strategies.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("update strategy %d: %w", id, err)
	}
	return s, nil
}

// Delete stops the strategy and removes it with its risk limit and backtest
// history. Its orders stay, detached.
func (m *StrategyManager) Delete(ctx context.Context, userID, id uint) error {
	s, err := m.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := m.strategies.Delete(ctx, s); err != nil {
		return fmt.Errorf("delete strategy %d: %w", id, err)
	}
	m.log.Info("strategy deleted", zap.Uint("strategy_id", id), zap.Uint("user_id", userID))
	return nil
}

func (m *StrategyManager) checkModel(ctx context.Context, userID uint, modelID *uint) error {
	if modelID == nil || *modelID == 0 {
		return nil
	}
	model, err := m.mlModels.FindOwned(ctx, *modelID, userID)
	if err != nil {
		return fmt.Errorf("load model %d: %w", *modelID, err)
	}
	if model == nil {
		return fmt.Errorf("model %d: %w", *modelID, models.ErrNotFound)
	}
	return nil
}
