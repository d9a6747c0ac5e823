package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default returns the configuration used when no environment overrides are set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "postgres",
			Port:   5432,
			Path:   "papertrade.db",
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			Interval:        60 * time.Second,
			Timeframe:       "1h",
			CandleLimit:     50,
			OrderQuantity:   "0.001",
			StrategyTimeout: 15 * time.Second,
		},
		Backtest: BacktestConfig{
			InitialBalance: "10000",
			CandleLimit:    500,
			RunListLimit:   20,
		},
		ML: MLConfig{
			ArtifactDir: "data/models",
			InputName:   "input",
			OutputName:  "output",
		},
		Log: LogConfig{
			Level: "info",
		},
		Symbols: []string{"BTCUSDT", "ETHUSDT"},
	}
}

// Load reads .env (if present), the process environment and an optional YAML
// file named by CONFIG_FILE, in that order of increasing precedence for the
// sections the file covers.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := Default()
	cfg.Exchange = ExchangeConfig{
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
	}
	cfg.Database.Driver = envOr("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = os.Getenv("DB_HOST")
	cfg.Database.Port = EnvtoInt(envOr("DB_PORT", strconv.Itoa(cfg.Database.Port)))
	cfg.Database.User = os.Getenv("DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.DBName = os.Getenv("DB_NAME")
	cfg.Database.Path = envOr("DB_PATH", cfg.Database.Path)

	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if d, ok := envDuration("SCHEDULER_INTERVAL"); ok {
		cfg.Scheduler.Interval = d
	}
	if d, ok := envDuration("SCHEDULER_STRATEGY_TIMEOUT"); ok {
		cfg.Scheduler.StrategyTimeout = d
	}
	cfg.Scheduler.Timeframe = envOr("SCHEDULER_TIMEFRAME", cfg.Scheduler.Timeframe)
	cfg.Scheduler.OrderQuantity = envOr("PAPER_ORDER_QUANTITY", cfg.Scheduler.OrderQuantity)

	cfg.ML.ArtifactDir = envOr("ML_ARTIFACT_DIR", cfg.ML.ArtifactDir)
	cfg.ML.SharedLibPath = os.Getenv("ONNXRUNTIME_LIB")

	cfg.Log.Level = envOr("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Development = os.Getenv("LOG_DEV") == "1"

	cfg.Symbols = getSymbols()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Scheduler.Interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	if c.Scheduler.CandleLimit <= 0 {
		return errors.New("scheduler candle limit must be positive")
	}
	if _, err := strconv.ParseFloat(c.Scheduler.OrderQuantity, 64); err != nil {
		return fmt.Errorf("invalid order quantity %q: %w", c.Scheduler.OrderQuantity, err)
	}
	if _, err := strconv.ParseFloat(c.Backtest.InitialBalance, 64); err != nil {
		return fmt.Errorf("invalid backtest initial balance %q: %w", c.Backtest.InitialBalance, err)
	}
	return nil
}

// helper env(string) to int
func EnvtoInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// helper to get symbols
func getSymbols() []string {
	symbols := os.Getenv("TRADING_SYMBOLS")
	if symbols == "" {
		return []string{"BTCUSDT", "ETHUSDT"} // Default pairs if none specified
	}
	return strings.Split(symbols, ",")
}
