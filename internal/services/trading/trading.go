// Package trading is the single entry point the transport layer calls.
// Operations that produce a result never let a failure or panic escape;
// plain queries return errors.
package trading

import (
	"context"
	"errors"
	"fmt"

	"PaperTradeBot/config"
	"PaperTradeBot/internal/handlers"
	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/operations/backtest"
	"PaperTradeBot/internal/operations/execution"
	"PaperTradeBot/internal/operations/ml"
	"PaperTradeBot/internal/repositories"
	"PaperTradeBot/internal/services/risk"
	"PaperTradeBot/internal/services/signals"
	"PaperTradeBot/internal/services/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ticker runs one scheduler pass.
type Ticker interface {
	Tick(ctx context.Context) handlers.TickReport
}

type ExecutionResult struct {
	OK              bool
	OrderID         uint
	Status          string
	FillPrice       decimal.Decimal
	RealizedPnL     decimal.NullDecimal
	DroppedQuantity decimal.Decimal
	Reason          string
}

type BacktestResult struct {
	OK      bool
	Run     *models.BacktestRun
	Results *backtest.BacktestResults
	Reason  string
}

type SignalResult struct {
	OK         bool
	StrategyID uint
	Signal     signals.Signal
	RSI        *float64
	Features   map[string]float64 // model input, ML strategies only
	Candles    int
	Reason     string
}

type PaperTrader struct {
	engine     *execution.Engine
	gate       *risk.Gate
	limits     *repositories.RiskLimitRepository
	backtests  *backtest.Service
	strategies *strategy.StrategyManager
	scheduler  Ticker
	market     handlers.CandleSource
	predictor  ml.Predictor
	cfg        config.SchedulerConfig
	log        *zap.Logger
}

func NewPaperTrader(
	db *gorm.DB,
	engine *execution.Engine,
	backtests *backtest.Service,
	strategies *strategy.StrategyManager,
	scheduler Ticker,
	market handlers.CandleSource,
	predictor ml.Predictor,
	cfg config.SchedulerConfig,
	log *zap.Logger,
) *PaperTrader {
	return &PaperTrader{
		engine:     engine,
		gate:       risk.NewGate(db, log),
		limits:     repositories.NewRiskLimitRepository(db),
		backtests:  backtests,
		strategies: strategies,
		scheduler:  scheduler,
		market:     market,
		predictor:  predictor,
		cfg:        cfg,
		log:        log,
	}
}

// guard turns a panic in the surrounding operation into a failure result.
func (t *PaperTrader) guard(op string, fail func(reason string)) {
	if r := recover(); r != nil {
		t.log.Error("operation panicked", zap.String("op", op), zap.Any("panic", r), zap.Stack("stack"))
		fail(fmt.Sprintf("internal error in %s", op))
	}
}

// reason renders err for a failure result. Risk denials keep only the
// gate's explanation.
func reason(err error) string {
	var denied *models.RiskDeniedError
	if errors.As(err, &denied) {
		return denied.Reason
	}
	return err.Error()
}

// SubmitOrder simulates one order.
func (t *PaperTrader) SubmitOrder(ctx context.Context, req execution.OrderRequest) (res ExecutionResult) {
	defer t.guard("submit_order", func(r string) { res = ExecutionResult{Reason: r} })

	fill, err := t.engine.Submit(ctx, req)
	if err != nil {
		return ExecutionResult{Reason: reason(err)}
	}
	return ExecutionResult{
		OK:              true,
		OrderID:         fill.Order.ID,
		Status:          fill.Order.Status,
		FillPrice:       fill.Order.FillPrice,
		RealizedPnL:     fill.Order.RealizedPnL,
		DroppedQuantity: fill.DroppedQuantity,
	}
}

func (t *PaperTrader) ListOrders(ctx context.Context, userID uint, filter repositories.OrderFilter) ([]models.Order, error) {
	return t.engine.ListOrders(ctx, userID, filter)
}

func (t *PaperTrader) ListPositions(ctx context.Context, userID uint) ([]models.Position, error) {
	return t.engine.ListPositions(ctx, userID)
}

// RunBacktest simulates one of the user's strategies and records the run.
func (t *PaperTrader) RunBacktest(ctx context.Context, userID, strategyID uint, req backtest.Request) (res BacktestResult) {
	defer t.guard("run_backtest", func(r string) { res = BacktestResult{Reason: r} })

	run, results, err := t.backtests.Run(ctx, userID, strategyID, req)
	if err != nil {
		return BacktestResult{Reason: reason(err)}
	}
	return BacktestResult{OK: true, Run: run, Results: results}
}

func (t *PaperTrader) ListBacktestRuns(ctx context.Context, userID uint, strategyID *uint, limit, offset int) ([]models.BacktestRun, error) {
	return t.backtests.List(ctx, userID, strategyID, limit, offset)
}

// CheckRisk evaluates a prospective order without placing it.
func (t *PaperTrader) CheckRisk(ctx context.Context, req risk.Request) (risk.Decision, error) {
	return t.gate.Check(ctx, req)
}

// GetSignal computes the current decision of a strategy on the latest
// scheduler window without trading on it.
func (t *PaperTrader) GetSignal(ctx context.Context, userID, strategyID uint) (res SignalResult) {
	defer t.guard("get_signal", func(r string) { res = SignalResult{StrategyID: strategyID, Reason: r} })

	res.StrategyID = strategyID
	s, err := t.strategies.Get(ctx, userID, strategyID)
	if err != nil {
		res.Reason = reason(err)
		return res
	}
	candles, err := t.market.GetOHLCV(ctx, s.Venue, s.Symbol, t.cfg.Timeframe, t.cfg.CandleLimit)
	if err != nil {
		res.Reason = reason(err)
		return res
	}
	res.Candles = len(candles)

	if s.UsesModel() {
		res.Features = signals.FeatureMap(candles)
		pred, err := t.predictor.Predict(ctx, userID, *s.MLModelID, signals.Features(candles))
		if err != nil {
			res.Reason = reason(err)
			return res
		}
		res.Signal = signals.Sell
		if pred == 1 {
			res.Signal = signals.Buy
		}
		res.OK = true
		return res
	}

	res.Signal = signals.Generate(s.Type, candles, s.Params)
	if s.Type == models.StrategyTypeRSI {
		if v, ok := signals.RSI(candles, signals.RSIParamsFrom(s.Params).Period); ok {
			res.RSI = &v
		}
	}
	res.OK = true
	return res
}

// SetRiskLimit creates or replaces the limit for the user, or for one of
// the user's strategies.
func (t *PaperTrader) SetRiskLimit(ctx context.Context, userID uint, strategyID *uint, maxPositionSize, dailyLossLimit decimal.NullDecimal) (*models.RiskLimit, error) {
	if strategyID != nil {
		if _, err := t.strategies.Get(ctx, userID, *strategyID); err != nil {
			return nil, err
		}
	}
	limit := &models.RiskLimit{
		UserID:          userID,
		StrategyID:      strategyID,
		MaxPositionSize: maxPositionSize,
		DailyLossLimit:  dailyLossLimit,
	}
	if err := t.limits.Upsert(ctx, limit); err != nil {
		return nil, fmt.Errorf("save risk limit: %w", err)
	}
	return limit, nil
}

func (t *PaperTrader) ListRiskLimits(ctx context.Context, userID uint) ([]models.RiskLimit, error) {
	return t.limits.ListByUser(ctx, userID)
}

func (t *PaperTrader) DeleteRiskLimit(ctx context.Context, userID, id uint) error {
	deleted, err := t.limits.DeleteOwned(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete risk limit %d: %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("risk limit %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// Tick runs one scheduler pass on demand.
func (t *PaperTrader) Tick(ctx context.Context) handlers.TickReport {
	return t.scheduler.Tick(ctx)
}

func (t *PaperTrader) CreateStrategy(ctx context.Context, userID uint, req strategy.CreateRequest) (*models.StrategyConfig, error) {
	return t.strategies.Create(ctx, userID, req)
}

func (t *PaperTrader) GetStrategy(ctx context.Context, userID, id uint) (*models.StrategyConfig, error) {
	return t.strategies.Get(ctx, userID, id)
}

func (t *PaperTrader) ListStrategies(ctx context.Context, userID uint) ([]models.StrategyConfig, error) {
	return t.strategies.List(ctx, userID)
}

func (t *PaperTrader) StartStrategy(ctx context.Context, userID, id uint) (*models.StrategyConfig, error) {
	return t.strategies.Start(ctx, userID, id)
}

func (t *PaperTrader) StopStrategy(ctx context.Context, userID, id uint) (*models.StrategyConfig, error) {
	return t.strategies.Stop(ctx, userID, id)
}

func (t *PaperTrader) UpdateStrategy(ctx context.Context, userID, id uint, req strategy.UpdateRequest) (*models.StrategyConfig, error) {
	return t.strategies.Update(ctx, userID, id, req)
}

func (t *PaperTrader) DeleteStrategy(ctx context.Context, userID, id uint) error {
	return t.strategies.Delete(ctx, userID, id)
}
