package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradelab.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET",
		"ALPACA_DATA_URL", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"LOG_LEVEL", "LOG_FILE", "INITIAL_CASH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/tradelab/data"
  sqlite_path: "/tmp/tradelab/tradelab.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  feed: "iex"
logging:
  level: "debug"
  format: "json"
  file: "logs/tradelab.log"
backtest:
  symbol: "AAPL"
  start: "2020-01-01"
  end: "2023-12-31"
  strategy: "rsi"
  params:
    period: 10
    overbought: 75
  initial_cash: 50000
  proportional_cost: 0.001
  sizing: "affordable"
risk:
  stop_loss_pct: 0.05
  max_drawdown: 0.2
optimize:
  objective: "sharpe"
  workers: 4
  trial_timeout: "30s"
  grid:
    - name: period
      values: [7, 14, 21]
output:
  format: "db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/tradelab/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/tradelab/data")
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "iex")
	}
	if cfg.Alpaca.RateLimitPerMin != 200 {
		t.Errorf("Alpaca.RateLimitPerMin = %d, want default 200", cfg.Alpaca.RateLimitPerMin)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if cfg.Logging.MaxSizeMB != 100 {
		t.Errorf("Logging.MaxSizeMB = %d, want default 100", cfg.Logging.MaxSizeMB)
	}

	// -- Backtest --
	b := cfg.Backtest
	if b.Symbol != "AAPL" || b.Strategy != "rsi" {
		t.Errorf("Backtest symbol/strategy = %q/%q, want AAPL/rsi", b.Symbol, b.Strategy)
	}
	if b.Params["period"] != 10 || b.Params["overbought"] != 75 {
		t.Errorf("Backtest.Params = %v, want period=10 overbought=75", b.Params)
	}
	if b.InitialCash != 50000 {
		t.Errorf("Backtest.InitialCash = %v, want 50000", b.InitialCash)
	}
	if b.Sizing != "affordable" {
		t.Errorf("Backtest.Sizing = %q, want affordable", b.Sizing)
	}

	// -- Risk --
	if !cfg.Risk.Enabled() || cfg.Risk.StopLossPct != 0.05 {
		t.Errorf("Risk = %+v, want stop_loss_pct 0.05", cfg.Risk)
	}

	// -- Optimize --
	if cfg.Optimize.Objective != "sharpe" || cfg.Optimize.Workers != 4 {
		t.Errorf("Optimize = %+v, want sharpe with 4 workers", cfg.Optimize)
	}
	if cfg.Optimize.TrialTimeout != 30*time.Second {
		t.Errorf("Optimize.TrialTimeout = %v, want 30s", cfg.Optimize.TrialTimeout)
	}
	if len(cfg.Optimize.Grid) != 1 || len(cfg.Optimize.Grid[0].Values) != 3 {
		t.Errorf("Optimize.Grid = %+v, want one axis with 3 values", cfg.Optimize.Grid)
	}

	// -- Output --
	if cfg.Output.Format != "db" || cfg.Output.Dir != "results" {
		t.Errorf("Output = %+v, want db in results", cfg.Output)
	}
}

func TestDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() returned error: %v", err)
	}
	if cfg.Backtest.InitialCash != 10000 {
		t.Errorf("Backtest.InitialCash = %v, want 10000", cfg.Backtest.InitialCash)
	}
	if cfg.Backtest.Strategy != "sma-cross" || cfg.Backtest.Sizing != "cash" {
		t.Errorf("Backtest strategy/sizing = %q/%q, want sma-cross/cash", cfg.Backtest.Strategy, cfg.Backtest.Sizing)
	}
	if cfg.Optimize.Objective != "performance" {
		t.Errorf("Optimize.Objective = %q, want performance", cfg.Optimize.Objective)
	}
	if cfg.Risk.Enabled() {
		t.Error("Risk.Enabled() = true, want false")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("INITIAL_CASH", "2500")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Backtest.InitialCash != 2500 {
		t.Errorf("Backtest.InitialCash = %v, want 2500 (env override)", cfg.Backtest.InitialCash)
	}

	// The SDK variable names win over the ALPACA_* ones.
	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "sdk-key")
	}
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		yaml string
	}{
		{"bad sizing", "backtest:\n  sizing: all-in\n"},
		{"bad date", "backtest:\n  start: 01/02/2020\n"},
		{"stop loss out of range", "risk:\n  stop_loss_pct: 1.5\n"},
		{"bad output format", "output:\n  format: xml\n"},
		{"empty grid axis", "optimize:\n  grid:\n    - name: period\n"},
		{"negative cost", "backtest:\n  fixed_cost: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("Load() succeeded, want validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded, want error")
	}
}
