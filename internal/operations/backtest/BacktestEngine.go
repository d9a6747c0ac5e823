package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PaperTradeBot/config"
	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/repositories"
	"PaperTradeBot/internal/services/signals"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CandleSource fetches recent candles from a venue.
type CandleSource interface {
	GetOHLCV(ctx context.Context, venue, symbol, timeframe string, limit int) ([]models.Candle, error)
}

// Service loads market data for a strategy, runs the simulator and records
// the outcome as a BacktestRun.
type Service struct {
	strategies *repositories.StrategyRepository
	candles    *repositories.CandleRepository
	runs       *repositories.BacktestRunRepository
	market     CandleSource
	simulator  *Simulator

	initialBalance decimal.Decimal
	candleLimit    int
	listLimit      int
	now            func() time.Time
	log            *zap.Logger
}

func NewService(db *gorm.DB, market CandleSource, cfg config.BacktestConfig, log *zap.Logger) (*Service, error) {
	balance, err := decimal.NewFromString(cfg.InitialBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid initial balance %q: %w", cfg.InitialBalance, err)
	}
	return &Service{
		strategies:     repositories.NewStrategyRepository(db),
		candles:        repositories.NewCandleRepository(db),
		runs:           repositories.NewBacktestRunRepository(db),
		market:         market,
		simulator:      NewSimulator(),
		initialBalance: balance,
		candleLimit:    cfg.CandleLimit,
		listLimit:      cfg.RunListLimit,
		now:            time.Now,
		log:            log,
	}, nil
}

// Run backtests one of the user's strategies. Nothing is persisted when
// the strategy is missing or the data is too short.
func (s *Service) Run(ctx context.Context, userID, strategyID uint, req Request) (*models.BacktestRun, *BacktestResults, error) {
	strategy, err := s.strategies.FindOwned(ctx, strategyID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load strategy: %w", err)
	}
	if strategy == nil {
		return nil, nil, fmt.Errorf("strategy %d: %w", strategyID, models.ErrNotFound)
	}
	req = s.withDefaults(req, strategy)

	spec := StrategySpec{Type: strategy.Type, Params: strategy.Params}
	candles, err := s.loadCandles(ctx, req, signals.WarmUp(spec.Type, spec.Params))
	if err != nil {
		return nil, nil, err
	}

	results, err := s.simulator.Run(spec, candles, req.InitialBalance.InexactFloat64())
	if err != nil {
		return nil, nil, err
	}

	run, err := s.record(ctx, strategy, req, candles, results)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("backtest completed",
		zap.Uint("run_id", run.ID),
		zap.Uint("strategy_id", strategy.ID),
		zap.String("symbol", req.Symbol),
		zap.Int("candles", len(candles)),
		zap.Int("trades", results.TotalTrades),
		zap.String("final_balance", run.FinalBalance.String()))
	return run, results, nil
}

// List returns the user's runs newest first.
func (s *Service) List(ctx context.Context, userID uint, strategyID *uint, limit, offset int) ([]models.BacktestRun, error) {
	if limit <= 0 {
		limit = s.listLimit
	}
	return s.runs.ListByUser(ctx, userID, strategyID, limit, offset)
}

func (s *Service) withDefaults(req Request, strategy *models.StrategyConfig) Request {
	if req.Symbol == "" {
		req.Symbol = strategy.Symbol
	}
	if req.Venue == "" {
		req.Venue = strategy.Venue
	}
	if req.TimeFrame == "" {
		req.TimeFrame = models.TimeFrame1h
	}
	if req.End.IsZero() {
		req.End = s.now()
	}
	if req.InitialBalance.IsZero() {
		req.InitialBalance = s.initialBalance
	}
	return req
}

// loadCandles prefers the local cache when it covers the requested range
// and falls back to the venue otherwise, caching what it fetched.
func (s *Service) loadCandles(ctx context.Context, req Request, warmUp int) ([]models.Candle, error) {
	cached, err := s.cached(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("load cached candles: %w", err)
	}
	if s.covers(req, cached, warmUp) {
		return cached, nil
	}

	fetched, err := s.market.GetOHLCV(ctx, req.Venue, req.Symbol, req.TimeFrame, s.candleLimit)
	if err != nil {
		return nil, err
	}
	if err := s.candles.SaveBatch(ctx, fetched); err != nil {
		s.log.Warn("failed to cache candles", zap.String("symbol", req.Symbol), zap.Error(err))
	}

	inRange := inWindow(fetched, req)
	step, _ := models.TimeFrameDuration(req.TimeFrame)
	if len(inRange) > 0 && !req.Start.IsZero() && inRange[0].OpenTime.Sub(req.Start) > step {
		s.log.Warn("venue history starts after the requested range",
			zap.String("symbol", req.Symbol),
			zap.Time("requested_start", req.Start),
			zap.Time("first_candle", inRange[0].OpenTime))
	}
	return inRange, nil
}

// cached reads the window from the candle cache. Without a start the
// window is the latest candleLimit bars up to End.
func (s *Service) cached(ctx context.Context, req Request) ([]models.Candle, error) {
	if !req.Start.IsZero() {
		return s.candles.GetByTimeFrame(ctx, req.Venue, req.Symbol, req.TimeFrame, req.Start, req.End)
	}
	latest, err := s.candles.GetLatest(ctx, req.Venue, req.Symbol, req.TimeFrame, s.candleLimit)
	if err != nil {
		return nil, err
	}
	return inWindow(latest, req), nil
}

// covers reports whether cached spans the requested window to within one
// bar at each end and holds more bars than the warm-up.
func (s *Service) covers(req Request, cached []models.Candle, warmUp int) bool {
	if len(cached) < 2 || len(cached) <= warmUp {
		return false
	}
	if req.Start.IsZero() {
		return len(cached) >= s.candleLimit
	}
	step, _ := models.TimeFrameDuration(req.TimeFrame)
	within := func(gap time.Duration) bool { return gap <= 0 || gap < step }
	first, last := cached[0].OpenTime, cached[len(cached)-1].OpenTime
	return within(first.Sub(req.Start)) && within(req.End.Sub(last))
}

func inWindow(candles []models.Candle, req Request) []models.Candle {
	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if c.OpenTime.Before(req.Start) || c.OpenTime.After(req.End) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Service) record(ctx context.Context, strategy *models.StrategyConfig, req Request, candles []models.Candle, res *BacktestResults) (*models.BacktestRun, error) {
	params, err := json.Marshal(strategy.Params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	metrics, err := json.Marshal(Metrics{
		Wins:        res.WinningTrades,
		Losses:      res.LosingTrades,
		AveragePnL:  res.AveragePnL,
		MaxDrawdown: res.MaxDrawdown,
		SharpeRatio: res.SharpeRatio,
		Signals:     len(res.Signals),
		Candles:     len(candles),
	})
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}

	start := req.Start
	if start.IsZero() {
		start = candles[0].OpenTime
	}

	run := &models.BacktestRun{
		UserID:         strategy.UserID,
		StrategyID:     strategy.ID,
		Symbol:         req.Symbol,
		Venue:          req.Venue,
		TimeFrame:      req.TimeFrame,
		StartTs:        start.UTC(),
		EndTs:          req.End.UTC(),
		InitialBalance: req.InitialBalance,
		FinalBalance:   decimal.NewFromFloat(res.FinalBalance).Round(8),
		TotalTrades:    res.TotalTrades,
		ParamsJSON:     string(params),
		MetricsJSON:    string(metrics),
	}
	if res.ReturnPct != nil {
		run.TotalReturnPct = decimal.NewNullDecimal(decimal.NewFromFloat(*res.ReturnPct).Round(4))
	}
	if res.WinRate != nil {
		run.WinRatePct = decimal.NewNullDecimal(decimal.NewFromFloat(*res.WinRate).Round(2))
	}

	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("save backtest run: %w", err)
	}
	return run, nil
}
