package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/repositories"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CandleHandler keeps the candle cache filled for the configured symbols so
// backtests can replay them without going to the venue.
type CandleHandler struct {
	candles   *repositories.CandleRepository
	market    CandleSource
	venue     string
	symbols   []string
	timeframe string
	limit     int
	log       *zap.Logger
}

func NewCandleHandler(db *gorm.DB, market CandleSource, venue string, symbols []string, timeframe string, limit int, log *zap.Logger) *CandleHandler {
	return &CandleHandler{
		candles:   repositories.NewCandleRepository(db),
		market:    market,
		venue:     venue,
		symbols:   symbols,
		timeframe: timeframe,
		limit:     limit,
		log:       log,
	}
}

// Start fills the cache once, then refreshes it every timeframe interval
// in the background until ctx is done.
func (h *CandleHandler) Start(ctx context.Context) error {
	interval, ok := models.TimeFrameDuration(h.timeframe)
	if !ok {
		return fmt.Errorf("unsupported timeframe %q", h.timeframe)
	}
	if _, err := h.Refresh(ctx); err != nil {
		h.log.Warn("initial candle refresh incomplete", zap.Error(err))
	}
	go h.record(ctx, interval)
	return nil
}

func (h *CandleHandler) record(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("candle recording stopped", zap.String("timeframe", h.timeframe))
			return
		case <-ticker.C:
			if _, err := h.Refresh(ctx); err != nil {
				h.log.Warn("candle refresh incomplete", zap.Error(err))
			}
		}
	}
}

// Refresh fetches the latest candles of every symbol and caches them. A
// failing symbol is reported but does not stop the others.
func (h *CandleHandler) Refresh(ctx context.Context) (int, error) {
	var (
		saved int
		errs  []error
	)
	for _, symbol := range h.symbols {
		candles, err := h.market.GetOHLCV(ctx, h.venue, symbol, h.timeframe, h.limit)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := h.candles.SaveBatch(ctx, candles); err != nil {
			errs = append(errs, fmt.Errorf("cache %s candles: %w", symbol, err))
			continue
		}
		saved += len(candles)
		h.log.Debug("candles cached",
			zap.String("symbol", symbol),
			zap.String("timeframe", h.timeframe),
			zap.Int("count", len(candles)))
	}
	return saved, errors.Join(errs...)
}
