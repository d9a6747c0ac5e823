package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PaperTradeBot/config"
	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/operations/execution"
	"PaperTradeBot/internal/operations/ml"
	"PaperTradeBot/internal/repositories"
	"PaperTradeBot/internal/services/signals"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CandleSource fetches recent candles from a venue.
type CandleSource interface {
	GetOHLCV(ctx context.Context, venue, symbol, timeframe string, limit int) ([]models.Candle, error)
}

// OrderSubmitter fills paper orders.
type OrderSubmitter interface {
	Submit(ctx context.Context, req execution.OrderRequest) (*execution.Fill, error)
}

// StrategyOutcome is what one tick did for one strategy.
type StrategyOutcome struct {
	StrategyID uint
	Decision   signals.Signal
	OrderID    uint
	Skipped    string
	Err        error
}

type TickReport struct {
	TickID    string
	StartedAt time.Time
	Outcomes  []StrategyOutcome
	Cancelled bool
	Err       error
}

// Submitted counts the strategies that produced an order.
func (r TickReport) Submitted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OrderID != 0 {
			n++
		}
	}
	return n
}

// Failed counts the strategies whose processing errored.
func (r TickReport) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// SchedulerHandler periodically turns active paper strategies into orders.
type SchedulerHandler struct {
	strategies *repositories.StrategyRepository
	market     CandleSource
	predictor  ml.Predictor
	orders     OrderSubmitter
	cfg        config.SchedulerConfig
	quantity   decimal.Decimal
	log        *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSchedulerHandler(
	db *gorm.DB,
	market CandleSource,
	predictor ml.Predictor,
	orders OrderSubmitter,
	cfg config.SchedulerConfig,
	log *zap.Logger,
) (*SchedulerHandler, error) {
	qty, err := decimal.NewFromString(cfg.OrderQuantity)
	if err != nil || !qty.IsPositive() {
		return nil, fmt.Errorf("invalid scheduler order quantity %q", cfg.OrderQuantity)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid scheduler interval %s", cfg.Interval)
	}
	if cfg.StrategyTimeout <= 0 {
		cfg.StrategyTimeout = 15 * time.Second
	}
	return &SchedulerHandler{
		strategies: repositories.NewStrategyRepository(db),
		market:     market,
		predictor:  predictor,
		orders:     orders,
		cfg:        cfg,
		quantity:   qty,
		log:        log,
	}, nil
}

// Start runs a tick immediately and then once per interval until ctx is
// cancelled or Stop is called.
func (h *SchedulerHandler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return errors.New("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.loop(ctx, h.done)

	h.log.Info("scheduler started",
		zap.Duration("interval", h.cfg.Interval),
		zap.String("timeframe", h.cfg.Timeframe))
	return nil
}

// Stop cancels the loop and waits for the tick in progress to finish.
func (h *SchedulerHandler) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	h.log.Info("scheduler stopped")
}

func (h *SchedulerHandler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		h.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick processes every active strategy once, sequentially. A failing
// strategy is recorded in its outcome and never stops the others.
// Cancellation is honoured between strategies only.
func (h *SchedulerHandler) Tick(ctx context.Context) TickReport {
	report := TickReport{TickID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := h.log.With(zap.String("tick_id", report.TickID))

	if ctx.Err() != nil {
		report.Cancelled = true
		log.Debug("scheduler tick skipped, loop cancelled")
		return report
	}

	active, err := h.strategies.FindActive(ctx)
	if err != nil {
		report.Err = fmt.Errorf("load active strategies: %w", err)
		log.Error("scheduler tick aborted", zap.Error(report.Err))
		return report
	}

	for i := range active {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		out := h.process(ctx, &active[i])
		report.Outcomes = append(report.Outcomes, out)

		fields := []zap.Field{
			zap.Uint("strategy_id", out.StrategyID),
			zap.String("decision", out.Decision.String()),
		}
		switch {
		case out.Err != nil:
			log.Warn("strategy failed", append(fields, zap.Error(out.Err))...)
		case out.Skipped != "":
			log.Debug("strategy skipped", append(fields, zap.String("reason", out.Skipped))...)
		default:
			log.Info("strategy order submitted", append(fields, zap.Uint("order_id", out.OrderID))...)
		}
	}

	log.Info("scheduler tick finished",
		zap.Int("strategies", len(active)),
		zap.Int("submitted", report.Submitted()),
		zap.Int("failed", report.Failed()),
		zap.Bool("cancelled", report.Cancelled))
	return report
}

// process is the error boundary of a single strategy. It runs detached from
// the loop's cancellation and bounded by the per-strategy timeout.
func (h *SchedulerHandler) process(parent context.Context, s *models.StrategyConfig) (out StrategyOutcome) {
	out.StrategyID = s.ID
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic processing strategy %d: %v", s.ID, r)
		}
	}()

	if s.Mode != models.ModePaper {
		out.Skipped = "mode " + s.Mode
		return out
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.cfg.StrategyTimeout)
	defer cancel()

	candles, err := h.market.GetOHLCV(ctx, s.Venue, s.Symbol, h.cfg.Timeframe, h.cfg.CandleLimit)
	if err != nil {
		out.Err = err
		return out
	}
	if len(candles) == 0 {
		out.Skipped = "no candles"
		return out
	}

	out.Decision, err = h.decide(ctx, s, candles)
	if err != nil {
		out.Err = err
		return out
	}
	if out.Decision == signals.None {
		out.Skipped = "no signal"
		return out
	}

	strategyID := s.ID
	fill, err := h.orders.Submit(ctx, execution.OrderRequest{
		UserID:     s.UserID,
		StrategyID: &strategyID,
		Symbol:     s.Symbol,
		Venue:      s.Venue,
		Side:       out.Decision.Side(),
		OrderType:  models.OrderTypeMarket,
		Quantity:   h.quantity,
		Mode:       s.Mode,
	})
	if err != nil {
		out.Err = err
		return out
	}
	out.OrderID = fill.Order.ID
	return out
}

func (h *SchedulerHandler) decide(ctx context.Context, s *models.StrategyConfig, candles []models.Candle) (signals.Signal, error) {
	if !s.UsesModel() {
		return signals.Generate(s.Type, candles, s.Params), nil
	}
	pred, err := h.predictor.Predict(ctx, s.UserID, *s.MLModelID, signals.Features(candles))
	if err != nil {
		return signals.None, fmt.Errorf("predict with model %d: %w", *s.MLModelID, err)
	}
	if pred == 1 {
		return signals.Buy, nil
	}
	return signals.Sell, nil
}
