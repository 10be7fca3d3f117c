package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"quantlab/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for quantlab.
type Config struct {
	Storage     Storage           `yaml:"storage"`
	Server      Server            `yaml:"server"`
	Alpaca      Alpaca            `yaml:"alpaca"`
	Logging     Logging           `yaml:"logging"`
	Gather      GatherConfig      `yaml:"gather"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	WalkForward WalkForwardConfig `yaml:"walk_forward"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// GatherConfig holds parameters for the daily bar gathering job.
type GatherConfig struct {
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	BatchSize       int      `yaml:"batch_size"`
	MaxWorkers      int      `yaml:"max_workers"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
}

// BacktestConfig defines execution frictions and sizing for simulated runs.
type BacktestConfig struct {
	InitialCapital  float64           `yaml:"initial_capital"`
	CommissionPct   float64           `yaml:"commission_pct"`
	SlippagePct     float64           `yaml:"slippage_pct"`
	PositionSizePct float64           `yaml:"position_size_pct"`
	ReferencePrice  domain.PriceField `yaml:"reference_price"`
	LiquidateAtEnd  bool              `yaml:"liquidate_at_end"`
}

// WalkForwardConfig defines the train/test partitioning, in bar counts.
type WalkForwardConfig struct {
	TrainSize  int `yaml:"train_size"`
	TestSize   int `yaml:"test_size"`
	StepSize   int `yaml:"step_size"`
	MaxWorkers int `yaml:"max_workers"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config with the documented defaults filled in.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/quantlab.db",
		},
		Server: Server{Host: "127.0.0.1", Port: 8090},
		Logging: Logging{
			Level: "info",
		},
		Gather: GatherConfig{
			BatchSize:       200,
			MaxWorkers:      4,
			RateLimitPerMin: 200,
		},
		Backtest: BacktestConfig{
			InitialCapital:  100000,
			CommissionPct:   0.001,
			SlippagePct:     0.0005,
			PositionSizePct: 1.0,
			ReferencePrice:  domain.PriceClose,
			LiquidateAtEnd:  true,
		},
		WalkForward: WalkForwardConfig{
			TrainSize:  252,
			TestSize:   63,
			StepSize:   63,
			MaxWorkers: 4,
		},
	}
}

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, applies environment variable overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on configuration the engine would reject mid-run.
func (c *Config) Validate() error {
	bt := c.Backtest
	if bt.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive, got %v",
			domain.ErrConfig, bt.InitialCapital)
	}
	if bt.CommissionPct < 0 {
		return fmt.Errorf("%w: commission_pct must be non-negative, got %v",
			domain.ErrConfig, bt.CommissionPct)
	}
	if bt.SlippagePct < 0 {
		return fmt.Errorf("%w: slippage_pct must be non-negative, got %v",
			domain.ErrConfig, bt.SlippagePct)
	}
	if bt.PositionSizePct <= 0 || bt.PositionSizePct > 1 {
		return fmt.Errorf("%w: position_size_pct must be in (0, 1], got %v",
			domain.ErrConfig, bt.PositionSizePct)
	}
	if !bt.ReferencePrice.Valid() {
		return fmt.Errorf("%w: reference_price must be one of open/high/low/close, got %q",
			domain.ErrConfig, bt.ReferencePrice)
	}

	wf := c.WalkForward
	if wf.TrainSize <= 0 || wf.TestSize <= 0 || wf.StepSize <= 0 {
		return fmt.Errorf("%w: walk_forward sizes must be positive (train=%d test=%d step=%d)",
			domain.ErrConfig, wf.TrainSize, wf.TestSize, wf.StepSize)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUANTLAB_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("QUANTLAB_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("QUANTLAB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUANTLAB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
