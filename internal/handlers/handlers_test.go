package handlers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"PaperTradeBot/config"
	"PaperTradeBot/internal/handlers"
	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/operations/execution"
	"PaperTradeBot/internal/repositories"
	"PaperTradeBot/internal/services/risk"
	"PaperTradeBot/internal/services/signals"
	"PaperTradeBot/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var start = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

// modelPredictor answers per model id.
type modelPredictor map[uint]error

func (m modelPredictor) Predict(_ context.Context, _, modelID uint, features []float64) (int, error) {
	if len(features) != len(signals.FeatureNames) {
		return 0, errors.New("bad features")
	}
	if err := m[modelID]; err != nil {
		return 0, err
	}
	return 1, nil
}

// panickingSubmitter blows up for one strategy and delegates otherwise.
type panickingSubmitter struct {
	next    handlers.OrderSubmitter
	panicOn uint
}

func (p panickingSubmitter) Submit(ctx context.Context, req execution.OrderRequest) (*execution.Fill, error) {
	if req.StrategyID != nil && *req.StrategyID == p.panicOn {
		panic("submitter exploded")
	}
	return p.next.Submit(ctx, req)
}

type env struct {
	db       *gorm.DB
	provider *testutil.Provider
	engine   *execution.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	provider := testutil.NewProvider()
	engine := execution.NewEngine(db, risk.NewGate(db, zap.NewNop()), testutil.Registry(provider), zap.NewNop())
	return &env{db: db, provider: provider, engine: engine}
}

func (e *env) strategy(t *testing.T, strategyType, symbol string, params map[string]float64, updates map[string]any) *models.StrategyConfig {
	t.Helper()
	s := testutil.Strategy(t, e.db, 1, strategyType, params)
	updates["symbol"] = symbol
	require.NoError(t, e.db.Model(s).Updates(updates).Error)
	return s
}

func schedulerConfig() config.SchedulerConfig {
	cfg := config.Default().Scheduler
	cfg.Interval = time.Hour
	cfg.StrategyTimeout = 5 * time.Second
	return cfg
}

var crossParams = map[string]float64{"short_period": 2, "long_period": 3}

func TestTickIsolatesFailingStrategies(t *testing.T) {
	e := newEnv(t)
	for _, sym := range []string{"BTC/USDT", "SOL/USDT", "XRP/USDT", "BNB/USDT", "ADA/USDT"} {
		e.provider.Candles[sym] = testutil.Series(sym, start, 5, 5, 5, 5, 6)
		e.provider.SetPrice(sym, decimal.NewFromInt(6))
	}
	e.provider.OHLCVErr["ETH/USDT"] = errors.New("venue down")
	e.provider.Candles["FLAT/USDT"] = testutil.Series("FLAT/USDT", start, 5, 5, 5, 5, 5)

	crossing := e.strategy(t, models.StrategyTypeMACross, "BTC/USDT", crossParams, map[string]any{})
	fetchFails := e.strategy(t, models.StrategyTypeMACross, "ETH/USDT", crossParams, map[string]any{})
	noSignal := e.strategy(t, models.StrategyTypeMACross, "FLAT/USDT", crossParams, map[string]any{})
	live := e.strategy(t, models.StrategyTypeMACross, "SOL/USDT", crossParams, map[string]any{"mode": models.ModeLive})
	badModel := e.strategy(t, models.StrategyTypeML, "XRP/USDT", nil, map[string]any{"ml_model_id": 41})
	goodModel := e.strategy(t, models.StrategyTypeML, "BNB/USDT", nil, map[string]any{"ml_model_id": 42})
	panics := e.strategy(t, models.StrategyTypeMACross, "ADA/USDT", crossParams, map[string]any{})
	inactive := e.strategy(t, models.StrategyTypeMACross, "BTC/USDT", crossParams, map[string]any{"is_active": false})

	predictor := modelPredictor{41: errors.New("inference failed")}
	h, err := handlers.NewSchedulerHandler(e.db, testutil.Registry(e.provider), predictor,
		panickingSubmitter{next: e.engine, panicOn: panics.ID}, schedulerConfig(), zap.NewNop())
	require.NoError(t, err)

	report := h.Tick(context.Background())
	require.NoError(t, report.Err)
	assert.NotEmpty(t, report.TickID)

	byID := map[uint]handlers.StrategyOutcome{}
	for _, o := range report.Outcomes {
		byID[o.StrategyID] = o
	}
	require.Len(t, byID, 7)
	assert.NotContains(t, byID, inactive.ID)

	assert.NotZero(t, byID[crossing.ID].OrderID)
	assert.Equal(t, signals.Buy, byID[crossing.ID].Decision)
	assert.Error(t, byID[fetchFails.ID].Err)
	assert.Equal(t, "no signal", byID[noSignal.ID].Skipped)
	assert.Equal(t, "mode live", byID[live.ID].Skipped)
	assert.ErrorContains(t, byID[badModel.ID].Err, "inference failed")
	assert.NotZero(t, byID[goodModel.ID].OrderID)
	assert.ErrorContains(t, byID[panics.ID].Err, "panic")

	assert.Equal(t, 2, report.Submitted())
	assert.Equal(t, 3, report.Failed())

	orders, err := repositories.NewOrderRepository(e.db).ListByUser(context.Background(), 1, repositories.OrderFilter{StrategyID: &crossing.ID})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "0.001", orders[0].Quantity.String())
	assert.Equal(t, models.SideBuy, orders[0].Side)
}

// cancellingSubmitter cancels the tick after its first successful order.
type cancellingSubmitter struct {
	next   handlers.OrderSubmitter
	cancel context.CancelFunc
}

func (c cancellingSubmitter) Submit(ctx context.Context, req execution.OrderRequest) (*execution.Fill, error) {
	defer c.cancel()
	return c.next.Submit(ctx, req)
}

func TestTickStopsBetweenStrategiesWhenCancelled(t *testing.T) {
	e := newEnv(t)
	for _, sym := range []string{"BTC/USDT", "ETH/USDT"} {
		e.provider.Candles[sym] = testutil.Series(sym, start, 5, 5, 5, 5, 6)
		e.provider.SetPrice(sym, decimal.NewFromInt(6))
	}
	first := e.strategy(t, models.StrategyTypeMACross, "BTC/USDT", crossParams, map[string]any{})
	e.strategy(t, models.StrategyTypeMACross, "ETH/USDT", crossParams, map[string]any{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := handlers.NewSchedulerHandler(e.db, testutil.Registry(e.provider), modelPredictor{},
		cancellingSubmitter{next: e.engine, cancel: cancel}, schedulerConfig(), zap.NewNop())
	require.NoError(t, err)

	report := h.Tick(ctx)
	require.NoError(t, report.Err)
	assert.True(t, report.Cancelled)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, first.ID, report.Outcomes[0].StrategyID)
	assert.NotZero(t, report.Outcomes[0].OrderID, "the strategy in progress finishes its order")

	orders, err := repositories.NewOrderRepository(e.db).ListByUser(context.Background(), 1, repositories.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestTickAfterCancelDoesNothing(t *testing.T) {
	e := newEnv(t)
	e.strategy(t, models.StrategyTypeMACross, "BTC/USDT", crossParams, map[string]any{})
	h, err := handlers.NewSchedulerHandler(e.db, testutil.Registry(e.provider), modelPredictor{}, e.engine, schedulerConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := h.Tick(ctx)
	assert.True(t, report.Cancelled)
	assert.NoError(t, report.Err)
	assert.Empty(t, report.Outcomes)
}

func TestStartRunsUntilStop(t *testing.T) {
	e := newEnv(t)
	e.provider.Candles["BTC/USDT"] = testutil.Series("BTC/USDT", start, 5, 5, 5, 5, 6)
	e.provider.SetPrice("BTC/USDT", decimal.NewFromInt(6))
	e.strategy(t, models.StrategyTypeMACross, "BTC/USDT", crossParams, map[string]any{})

	h, err := handlers.NewSchedulerHandler(e.db, testutil.Registry(e.provider), modelPredictor{}, e.engine, schedulerConfig(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, h.Start(context.Background()))
	require.Error(t, h.Start(context.Background()), "already running")

	orders := repositories.NewOrderRepository(e.db)
	require.Eventually(t, func() bool {
		list, err := orders.ListByUser(context.Background(), 1, repositories.OrderFilter{})
		return err == nil && len(list) == 1
	}, 5*time.Second, 10*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestNewSchedulerRejectsBadSettings(t *testing.T) {
	cfg := schedulerConfig()
	cfg.OrderQuantity = "0"
	_, err := handlers.NewSchedulerHandler(nil, nil, nil, nil, cfg, zap.NewNop())
	require.Error(t, err)

	cfg = schedulerConfig()
	cfg.Interval = 0
	_, err = handlers.NewSchedulerHandler(nil, nil, nil, nil, cfg, zap.NewNop())
	require.Error(t, err)
}

func TestCandleRefreshCachesEverySymbolItCan(t *testing.T) {
	db := testutil.NewDB(t)
	provider := testutil.NewProvider()
	provider.Candles["BTC/USDT"] = testutil.Series("BTC/USDT", start, 1, 2, 3)
	provider.OHLCVErr["ETH/USDT"] = errors.New("venue down")

	h := handlers.NewCandleHandler(db, testutil.Registry(provider), "binance",
		[]string{"ETH/USDT", "BTC/USDT"}, models.TimeFrame1h, 100, zap.NewNop())

	saved, err := h.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, saved)

	cached, err := repositories.NewCandleRepository(db).GetLatest(context.Background(), "binance", "BTC/USDT", models.TimeFrame1h, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, models.Closes(cached))

	_, err = h.Refresh(context.Background())
	require.Error(t, err)
	cached, err = repositories.NewCandleRepository(db).GetLatest(context.Background(), "binance", "BTC/USDT", models.TimeFrame1h, 10)
	require.NoError(t, err)
	assert.Len(t, cached, 3, "refreshing twice does not duplicate bars")
}

func TestCandleHandlerRejectsUnknownTimeframe(t *testing.T) {
	h := handlers.NewCandleHandler(nil, nil, "binance", nil, "7m", 10, zap.NewNop())
	require.Error(t, h.Start(context.Background()))
}
