package trading_test

import (
	"context"
	"testing"
	"time"

	"PaperTradeBot/config"
	"PaperTradeBot/internal/handlers"
	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/operations/backtest"
	"PaperTradeBot/internal/operations/execution"
	"PaperTradeBot/internal/repositories"
	"PaperTradeBot/internal/services/risk"
	"PaperTradeBot/internal/services/signals"
	"PaperTradeBot/internal/services/strategy"
	"PaperTradeBot/internal/services/trading"
	"PaperTradeBot/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var start = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

type stack struct {
	trader    *trading.PaperTrader
	provider  *testutil.Provider
	predictor *testutil.Predictor
	db        *gorm.DB
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := config.Default()
	log := zap.NewNop()

	provider := testutil.NewProvider()
	registry := testutil.Registry(provider)
	predictor := &testutil.Predictor{Result: 1}

	engine := execution.NewEngine(db, risk.NewGate(db, log), registry, log)
	backtests, err := backtest.NewService(db, registry, cfg.Backtest, log)
	require.NoError(t, err)
	strategies := strategy.NewStrategyManager(db, log)
	scheduler, err := handlers.NewSchedulerHandler(db, registry, predictor, engine, cfg.Scheduler, log)
	require.NoError(t, err)

	return &stack{
		trader:    trading.NewPaperTrader(db, engine, backtests, strategies, scheduler, registry, predictor, cfg.Scheduler, log),
		provider:  provider,
		predictor: predictor,
		db:        db,
	}
}

func TestSubmitOrderResults(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.provider.SetPrice("BTC/USDT", decimal.NewFromInt(100))

	res := s.trader.SubmitOrder(ctx, execution.OrderRequest{UserID: 1, Symbol: "BTC/USDT", Side: models.SideBuy, Quantity: decimal.NewFromInt(2)})
	require.True(t, res.OK, res.Reason)
	assert.NotZero(t, res.OrderID)
	assert.Equal(t, models.OrderStatusFilled, res.Status)
	assert.True(t, res.FillPrice.Equal(decimal.NewFromInt(100)))
	assert.False(t, res.RealizedPnL.Valid)

	_, err := s.trader.SetRiskLimit(ctx, 1, nil, testutil.NullDec(t, "3"), decimal.NullDecimal{})
	require.NoError(t, err)

	denied := s.trader.SubmitOrder(ctx, execution.OrderRequest{UserID: 1, Symbol: "BTC/USDT", Side: models.SideBuy, Quantity: decimal.NewFromInt(2)})
	assert.False(t, denied.OK)
	assert.Contains(t, denied.Reason, "max position size exceeded")

	check, err := s.trader.CheckRisk(ctx, risk.Request{UserID: 1, Symbol: "BTC/USDT", Side: models.SideBuy, Quantity: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.True(t, check.Allowed)

	s.provider.SetPrice("BTC/USDT", decimal.NewFromInt(110))
	closed := s.trader.SubmitOrder(ctx, execution.OrderRequest{UserID: 1, Symbol: "BTC/USDT", Side: models.SideSell, Quantity: decimal.NewFromInt(3)})
	require.True(t, closed.OK, closed.Reason)
	require.True(t, closed.RealizedPnL.Valid)
	assert.True(t, closed.RealizedPnL.Decimal.Equal(decimal.NewFromInt(20)))
	assert.True(t, closed.DroppedQuantity.Equal(decimal.NewFromInt(1)))

	orders, err := s.trader.ListOrders(ctx, 1, repositories.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, closed.OrderID, orders[0].ID, "newest first")

	positions, err := s.trader.ListPositions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestSubmitOrderRecoversPanics(t *testing.T) {
	trader := trading.NewPaperTrader(testutil.NewDB(t), nil, nil, nil, nil, nil, nil, config.Default().Scheduler, zap.NewNop())

	res := trader.SubmitOrder(context.Background(), execution.OrderRequest{UserID: 1, Symbol: "BTC/USDT", Side: models.SideBuy, Quantity: decimal.NewFromInt(1)})
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "internal error")

	bt := trader.RunBacktest(context.Background(), 1, 1, backtest.Request{})
	assert.False(t, bt.OK)
	assert.Contains(t, bt.Reason, "internal error")
}

func TestStrategyBacktestAndSignalFlow(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	rsi, err := s.trader.CreateStrategy(ctx, 1, strategy.CreateRequest{
		Name: "rsi", Type: models.StrategyTypeRSI, Symbol: "BTC/USDT",
		Params: map[string]float64{"rsi_period": 3},
	})
	require.NoError(t, err)

	missing := s.trader.RunBacktest(ctx, 2, rsi.ID, backtest.Request{})
	assert.False(t, missing.OK)
	assert.Contains(t, missing.Reason, models.ErrNotFound.Error())

	s.provider.Candles["BTC/USDT"] = testutil.Series("BTC/USDT", start, 10, 11, 12, 13, 14, 15)
	sig := s.trader.GetSignal(ctx, 1, rsi.ID)
	require.True(t, sig.OK, sig.Reason)
	assert.Equal(t, signals.Sell, sig.Signal)
	require.NotNil(t, sig.RSI)
	assert.Equal(t, 100.0, *sig.RSI)
	assert.Equal(t, 6, sig.Candles)

	bt := s.trader.RunBacktest(ctx, 1, rsi.ID, backtest.Request{})
	require.True(t, bt.OK, bt.Reason)
	assert.Zero(t, bt.Results.TotalTrades, "rising series only sells while flat")

	runs, err := s.trader.ListBacktestRuns(ctx, 1, &rsi.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = s.trader.StartStrategy(ctx, 1, rsi.ID)
	require.NoError(t, err)
	report := s.trader.Tick(ctx)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, signals.Sell, report.Outcomes[0].Decision)
	assert.Error(t, report.Outcomes[0].Err, "no ticker price configured")

	_, err = s.trader.StopStrategy(ctx, 1, rsi.ID)
	require.NoError(t, err)
	assert.Empty(t, s.trader.Tick(ctx).Outcomes)

	require.NoError(t, s.trader.DeleteStrategy(ctx, 1, rsi.ID))
	list, err := s.trader.ListStrategies(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRiskLimitManagement(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	own, err := s.trader.CreateStrategy(ctx, 1, strategy.CreateRequest{Name: "c", Type: models.StrategyTypeMACross, Symbol: "BTC/USDT"})
	require.NoError(t, err)
	foreign, err := s.trader.CreateStrategy(ctx, 2, strategy.CreateRequest{Name: "c", Type: models.StrategyTypeMACross, Symbol: "BTC/USDT"})
	require.NoError(t, err)

	_, err = s.trader.SetRiskLimit(ctx, 1, &foreign.ID, testutil.NullDec(t, "1"), decimal.NullDecimal{})
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.trader.SetRiskLimit(ctx, 1, nil, testutil.NullDec(t, "5"), testutil.NullDec(t, "100"))
	require.NoError(t, err)
	scoped, err := s.trader.SetRiskLimit(ctx, 1, &own.ID, testutil.NullDec(t, "1"), decimal.NullDecimal{})
	require.NoError(t, err)
	_, err = s.trader.SetRiskLimit(ctx, 1, nil, testutil.NullDec(t, "6"), decimal.NullDecimal{})
	require.NoError(t, err)

	limits, err := s.trader.ListRiskLimits(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limits, 2, "one row per scope")
	assert.Nil(t, limits[0].StrategyID)
	assert.True(t, limits[0].MaxPositionSize.Decimal.Equal(decimal.NewFromInt(6)))
	assert.False(t, limits[0].DailyLossLimit.Valid)

	require.ErrorIs(t, s.trader.DeleteRiskLimit(ctx, 2, scoped.ID), models.ErrNotFound)
	require.NoError(t, s.trader.DeleteRiskLimit(ctx, 1, scoped.ID))
	limits, err = s.trader.ListRiskLimits(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limits, 1)
}

func TestGetSignalFromModel(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	model := &models.MLModel{UserID: 1, Name: "direction", Version: "v1", ArtifactPath: "direction.onnx"}
	require.NoError(t, s.db.Create(model).Error)
	ml, err := s.trader.CreateStrategy(ctx, 1, strategy.CreateRequest{
		Name: "ml", Type: models.StrategyTypeML, Symbol: "BTC/USDT", MLModelID: &model.ID,
	})
	require.NoError(t, err)

	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	s.provider.Candles["BTC/USDT"] = testutil.Series("BTC/USDT", start, closes...)

	sig := s.trader.GetSignal(ctx, 1, ml.ID)
	require.True(t, sig.OK, sig.Reason)
	assert.Equal(t, signals.Buy, sig.Signal)
	assert.Nil(t, sig.RSI)
	require.Len(t, sig.Features, len(signals.FeatureNames))
	for _, name := range signals.FeatureNames {
		assert.Contains(t, sig.Features, name)
	}
	assert.Greater(t, sig.Features[signals.FeatureNames[0]], 0.0, "rising closes give a positive last return")
	assert.Equal(t, 1, s.predictor.Calls)

	s.predictor.Result = 0
	sig = s.trader.GetSignal(ctx, 1, ml.ID)
	require.True(t, sig.OK, sig.Reason)
	assert.Equal(t, signals.Sell, sig.Signal)
}
