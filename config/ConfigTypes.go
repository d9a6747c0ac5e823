package config

import "time"

// Config is built once by Load and passed to every component that needs it.
type Config struct {
	Exchange  ExchangeConfig  `yaml:"-"`
	Database  DatabaseConfig  `yaml:"-"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	ML        MLConfig        `yaml:"ml"`
	Log       LogConfig       `yaml:"log"`
	Symbols   []string        `yaml:"symbols"`
}

type ExchangeConfig struct {
	APIKey    string
	SecretKey string
}

type DatabaseConfig struct {
	Driver   string // "postgres" or "sqlite"
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Path     string // sqlite file path
}

type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	Timeframe       string        `yaml:"timeframe"`
	CandleLimit     int           `yaml:"candle_limit"`
	OrderQuantity   string        `yaml:"order_quantity"`
	StrategyTimeout time.Duration `yaml:"strategy_timeout"`
}

type BacktestConfig struct {
	InitialBalance string `yaml:"initial_balance"`
	CandleLimit    int    `yaml:"candle_limit"`
	RunListLimit   int    `yaml:"run_list_limit"`
}

type MLConfig struct {
	ArtifactDir   string `yaml:"artifact_dir"`
	SharedLibPath string `yaml:"shared_lib_path"`
	InputName     string `yaml:"input_name"`
	OutputName    string `yaml:"output_name"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}
