package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quantlab/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quantlab.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: /tmp/qdata
  sqlite_path: /tmp/qdata/runs.db
server:
  host: 0.0.0.0
  port: 9000
logging:
  level: debug
backtest:
  initial_capital: 50000
  commission_pct: 0.002
  slippage_pct: 0.001
  position_size_pct: 0.5
  reference_price: open
walk_forward:
  train_size: 126
  test_size: 21
  step_size: 21
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/qdata" {
		t.Errorf("DataDir = %q, want /tmp/qdata", cfg.Storage.DataDir)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Backtest.InitialCapital != 50000 {
		t.Errorf("InitialCapital = %v, want 50000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.ReferencePrice != domain.PriceOpen {
		t.Errorf("ReferencePrice = %q, want open", cfg.Backtest.ReferencePrice)
	}
	if cfg.WalkForward.TrainSize != 126 || cfg.WalkForward.TestSize != 21 || cfg.WalkForward.StepSize != 21 {
		t.Errorf("WalkForward = %+v, want 126/21/21", cfg.WalkForward)
	}
}

func TestLoadDefaults(t *testing.T) {
	// Minimal file: defaults should fill the rest.
	path := writeConfig(t, "logging:\n  level: warn\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("default InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.ReferencePrice != domain.PriceClose {
		t.Errorf("default ReferencePrice = %q, want close", cfg.Backtest.ReferencePrice)
	}
	if cfg.WalkForward.TrainSize != 252 {
		t.Errorf("default TrainSize = %d, want 252", cfg.WalkForward.TrainSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load should fail for a missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUANTLAB_DATA_DIR", "/override/data")
	t.Setenv("QUANTLAB_LOG_LEVEL", "error")
	t.Setenv("APCA_API_KEY_ID", "test-key")
	t.Setenv("APCA_API_SECRET_KEY", "test-secret")

	path := writeConfig(t, "storage:\n  data_dir: /from/file\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataDir != "/override/data" {
		t.Errorf("DataDir = %q, want env override /override/data", cfg.Storage.DataDir)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Level = %q, want error", cfg.Logging.Level)
	}
	if cfg.Alpaca.APIKey != "test-key" || cfg.Alpaca.APISecret != "test-secret" {
		t.Errorf("Alpaca credentials not taken from APCA_* env vars")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.Backtest.InitialCapital = 0 }},
		{"negative commission", func(c *Config) { c.Backtest.CommissionPct = -0.001 }},
		{"negative slippage", func(c *Config) { c.Backtest.SlippagePct = -0.01 }},
		{"zero position size", func(c *Config) { c.Backtest.PositionSizePct = 0 }},
		{"oversized position size", func(c *Config) { c.Backtest.PositionSizePct = 1.5 }},
		{"bad reference price", func(c *Config) { c.Backtest.ReferencePrice = "vwap" }},
		{"zero train size", func(c *Config) { c.WalkForward.TrainSize = 0 }},
		{"negative step size", func(c *Config) { c.WalkForward.StepSize = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !errors.Is(err, domain.ErrConfig) {
				t.Errorf("error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
}
