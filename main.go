package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PaperTradeBot/config"
	"PaperTradeBot/internal/handlers"
	"PaperTradeBot/internal/logger"
	"PaperTradeBot/internal/operations/backtest"
	"PaperTradeBot/internal/operations/execution"
	"PaperTradeBot/internal/operations/marketdata"
	"PaperTradeBot/internal/operations/ml"
	"PaperTradeBot/internal/repositories"
	"PaperTradeBot/internal/services/risk"
	"PaperTradeBot/internal/services/strategy"
	"PaperTradeBot/internal/services/trading"

	"go.uber.org/zap"
)

func main() {
	backtestUser := flag.Uint("backtest-user", 0, "run a single backtest for this user and exit")
	backtestStrategy := flag.Uint("backtest-strategy", 0, "strategy to backtest")
	backtestDays := flag.Int("backtest-days", 30, "backtest window in days, ending now")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zlog.Sync() //nolint:errcheck

	db, err := repositories.Open(cfg.Database)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := repositories.Migrate(db); err != nil {
		zlog.Fatal("failed to migrate database", zap.Error(err))
	}

	market := marketdata.NewRegistry()
	market.Register(marketdata.VenueBinance, marketdata.NewBinanceProvider(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, zlog))
	zlog.Info("market data venues registered", zap.Strings("venues", market.Venues()))

	predictor := ml.NewONNXPredictor(db, cfg.ML, zlog)
	defer predictor.Close()

	engine := execution.NewEngine(db, risk.NewGate(db, zlog), market, zlog)

	backtests, err := backtest.NewService(db, market, cfg.Backtest, zlog)
	if err != nil {
		zlog.Fatal("failed to build backtest service", zap.Error(err))
	}
	strategies := strategy.NewStrategyManager(db, zlog)

	scheduler, err := handlers.NewSchedulerHandler(db, market, predictor, engine, cfg.Scheduler, zlog)
	if err != nil {
		zlog.Fatal("failed to build scheduler", zap.Error(err))
	}

	trader := trading.NewPaperTrader(db, engine, backtests, strategies, scheduler, market, predictor, cfg.Scheduler, zlog)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *backtestUser != 0 {
		code := runBacktest(ctx, trader, *backtestUser, *backtestStrategy, *backtestDays)
		predictor.Close()
		os.Exit(code)
	}

	candles := handlers.NewCandleHandler(db, market, marketdata.VenueBinance, cfg.Symbols, cfg.Scheduler.Timeframe, cfg.Scheduler.CandleLimit, zlog)
	if err := candles.Start(ctx); err != nil {
		zlog.Fatal("failed to start candle recording", zap.Error(err))
	}
	zlog.Info("candle recording started", zap.Strings("symbols", cfg.Symbols))

	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			zlog.Fatal("failed to start scheduler", zap.Error(err))
		}
		zlog.Info("scheduler started", zap.Duration("interval", cfg.Scheduler.Interval))
	}

	// Handle shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c

	zlog.Info("shutting down")
	scheduler.Stop()
	cancel()
	zlog.Info("shutdown complete")
}

func runBacktest(ctx context.Context, trader *trading.PaperTrader, userID, strategyID uint, days int) int {
	end := time.Now().UTC()
	res := trader.RunBacktest(ctx, userID, strategyID, backtest.Request{
		Start: end.AddDate(0, 0, -days),
		End:   end,
	})
	if !res.OK {
		fmt.Fprintln(os.Stderr, "Backtest failed:", res.Reason)
		return 1
	}

	r := res.Results
	fmt.Println("\n=== Backtest Results ===")
	fmt.Printf("Run: #%d (%s %s)\n", res.Run.ID, res.Run.Symbol, res.Run.TimeFrame)
	fmt.Printf("Total Trades: %d\n", r.TotalTrades)
	if r.WinRate != nil {
		fmt.Printf("Winning Trades: %d (%.2f%%)\n", r.WinningTrades, *r.WinRate)
	}
	fmt.Printf("Average PnL: $%.2f\n", r.AveragePnL)
	fmt.Printf("Max Drawdown: %.2f%%\n", r.MaxDrawdown*100)
	fmt.Printf("Final Balance: $%.2f\n", r.FinalBalance)
	if r.ReturnPct != nil {
		fmt.Printf("Return: %.2f%%\n", *r.ReturnPct)
	}
	fmt.Printf("Sharpe Ratio: %.2f\n", r.SharpeRatio)
	return 0
}
