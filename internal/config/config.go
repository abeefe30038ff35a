package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tradelab.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Backtest Backtest `yaml:"backtest"`
	Risk     Risk     `yaml:"risk"`
	Optimize Optimize `yaml:"optimize"`
	Output   Output   `yaml:"output"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir" default:"data" validate:"required"`
	SQLitePath string `yaml:"sqlite_path" default:"data/tradelab.db" validate:"required"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	Feed            string `yaml:"feed" default:"sip" validate:"oneof=sip iex"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min" default:"200" validate:"gt=0"`
	MaxRetries      int    `yaml:"max_retries" default:"3" validate:"gte=0"`
}

// Logging configures the application logger. When File is set, output is
// also written to a size-rotated log file.
type Logging struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"text" validate:"oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"100" validate:"gt=0"`
	MaxBackups int    `yaml:"max_backups" default:"5" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" default:"30" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// Backtest selects the instrument, date range, strategy and simulation
// parameters of a run.
type Backtest struct {
	Symbol           string             `yaml:"symbol"`
	Start            string             `yaml:"start" validate:"omitempty,datetime=2006-01-02"`
	End              string             `yaml:"end" validate:"omitempty,datetime=2006-01-02"`
	Strategy         string             `yaml:"strategy" default:"sma-cross" validate:"required"`
	Params           map[string]float64 `yaml:"params"`
	InitialCash      float64            `yaml:"initial_cash" default:"10000" validate:"gt=0"`
	FixedCost        float64            `yaml:"fixed_cost" validate:"gte=0"`
	ProportionalCost float64            `yaml:"proportional_cost" validate:"gte=0"`
	Sizing           string             `yaml:"sizing" default:"cash" validate:"oneof=cash affordable"`
	Fractional       bool               `yaml:"fractional"`
	OrderSize        float64            `yaml:"order_size" validate:"gte=0"`
	RiskFreeRate     float64            `yaml:"risk_free_rate"`
}

// Risk configures the risk overlay. Zero disables a rule.
type Risk struct {
	StopLossPct  float64 `yaml:"stop_loss_pct" validate:"gte=0,lt=1"`
	RiskPerTrade float64 `yaml:"risk_per_trade" validate:"gte=0,lt=1"`
	MaxDrawdown  float64 `yaml:"max_drawdown" validate:"gte=0,lt=1"`
}

// Enabled reports whether any risk rule is configured.
func (r Risk) Enabled() bool {
	return r.StopLossPct > 0 || r.RiskPerTrade > 0 || r.MaxDrawdown > 0
}

// Optimize configures the grid search.
type Optimize struct {
	Objective    string        `yaml:"objective" default:"performance" validate:"oneof=performance sharpe sortino max_drawdown"`
	Workers      int           `yaml:"workers" validate:"gte=0"`
	TrialTimeout time.Duration `yaml:"trial_timeout" validate:"gte=0"`
	Grid         []GridParam   `yaml:"grid" validate:"dive"`
}

// GridParam is one axis of the parameter grid.
type GridParam struct {
	Name   string    `yaml:"name" validate:"required"`
	Values []float64 `yaml:"values" validate:"min=1"`
}

// Output selects where results are written.
type Output struct {
	Format string `yaml:"format" default:"json" validate:"oneof=parquet json csv db"`
	Dir    string `yaml:"dir" default:"results" validate:"required"`
}

// Metrics configures the Prometheus textfile export. Empty disables it.
type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated only with defaults and environment
// overrides.
func Default() (*Config, error) {
	return finish(&Config{})
}

// Load reads the YAML configuration file at the given path, fills unset
// fields with defaults, applies environment variable overrides and validates
// the result. A .env file in the working directory, if present, is loaded
// into the environment first without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	if v := os.Getenv("INITIAL_CASH"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("INITIAL_CASH: %w", err)
		}
		cfg.Backtest.InitialCash = f
	}

	// Standard Alpaca env vars take priority; they are the names the SDK uses.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	return nil
}
