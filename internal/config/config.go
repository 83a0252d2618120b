// Package config loads the platform configuration from YAML with
// environment variable overrides. One Config value carries every tunable;
// components receive the sections they need at construction.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"papertrade/internal/cost"
	"papertrade/internal/risk"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the papertrade platform.
type Config struct {
	Storage    Storage       `yaml:"storage"`
	Server     Server        `yaml:"server"`
	Alpaca     Alpaca        `yaml:"alpaca"`
	Logging    Logging       `yaml:"logging"`
	MarketData MarketData    `yaml:"market_data"`
	Trading    Trading       `yaml:"trading"`
	Cost       cost.Schedule `yaml:"cost"`
	Risk       risk.Config   `yaml:"risk"`
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
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MarketData controls the price poller and bar ingestion.
type MarketData struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
}

// Trading defines account and execution defaults.
type Trading struct {
	DefaultAccountID string  `yaml:"default_account_id"`
	InitialBalance   float64 `yaml:"initial_balance"`
	Broker           string  `yaml:"broker"` // fee schedule preset name
}

// ---------------------------------------------------------------------------
// Defaults and loading
// ---------------------------------------------------------------------------

// Default returns a Config with every field at its standard value.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/papertrade.db",
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		MarketData: MarketData{
			PollInterval:    time.Minute,
			RateLimitPerMin: 200,
		},
		Trading: Trading{
			DefaultAccountID: "default",
			InitialBalance:   100000,
			Broker:           "standard",
		},
		Cost: cost.DefaultSchedule(),
		Risk: risk.DefaultConfig(),
	}
}

// Load reads the YAML configuration file at the given path over the
// defaults, then applies environment variable overrides. An empty path
// skips the file and returns defaults plus overrides.
//
// When the file has no cost section, the trading.broker preset supplies the
// fee schedule. An explicit cost section always wins over the preset.
func Load(path string) (*Config, error) {
	cfg := Default()
	costExplicit := false

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		var probe struct {
			Cost *cost.Schedule `yaml:"cost"`
		}
		if err := yaml.Unmarshal(data, &probe); err == nil {
			costExplicit = probe.Cost != nil
		}
	}

	if !costExplicit {
		if s, ok := cost.BrokerSchedules[cfg.Trading.Broker]; ok {
			cfg.Cost = s
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Trading.InitialBalance <= 0 {
		return fmt.Errorf("initial balance must be positive, got %v", c.Trading.InitialBalance)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir required")
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk config: %w", err)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
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

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
