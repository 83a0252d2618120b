package risk

import (
	"fmt"
	"time"
)

// Config enumerates every risk limit the gate recognizes, with explicit
// defaults. A single struct replaces scattered per-check option lookups;
// Validate runs once at construction.
type Config struct {
	// Per-instrument limits.
	MaxPositionPerStock float64 `yaml:"max_position_per_stock"` // fraction of total assets
	MaxTradesPerStock   int     `yaml:"max_trades_per_stock"`   // per-instrument daily trade count

	// Industry limits.
	MaxPositionPerIndustry   float64 `yaml:"max_position_per_industry"`
	MaxIndustryConcentration float64 `yaml:"max_industry_concentration"`

	// Market-wide risk.
	MarketRiskThreshold float64 `yaml:"market_risk_threshold"`
	MarketRiskStopLoss  bool    `yaml:"market_risk_stop_loss"`

	// Liquidity limits.
	MinVolume                int64   `yaml:"min_volume"`
	MaxPositionToVolumeRatio float64 `yaml:"max_position_to_volume_ratio"`

	// Account-wide limits.
	MaxTotalPositions int     `yaml:"max_total_positions"`
	MaxLeverage       float64 `yaml:"max_leverage"`

	// Trade frequency limits.
	MaxDailyTrades    int           `yaml:"max_daily_trades"`
	MaxIntradayTrades int           `yaml:"max_intraday_trades"`
	CoolDownPeriod    time.Duration `yaml:"cool_down_period"`

	// Stop loss and take profit bounds.
	GlobalStopLoss     float64 `yaml:"global_stop_loss"`
	GlobalTakeProfit   float64 `yaml:"global_take_profit"`
	PositionStopLoss   float64 `yaml:"position_stop_loss"`
	PositionTakeProfit float64 `yaml:"position_take_profit"`

	// Monitoring.
	WarningLevel       float64       `yaml:"warning_level"` // fraction of a limit that triggers a warning
	MonitoringInterval time.Duration `yaml:"monitoring_interval"`
}

// DefaultConfig returns the limits applied when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxPositionPerStock:      0.3,
		MaxTradesPerStock:        50,
		MaxPositionPerIndustry:   0.5,
		MaxIndustryConcentration: 0.7,
		MarketRiskThreshold:      0.03,
		MarketRiskStopLoss:       true,
		MinVolume:                100000,
		MaxPositionToVolumeRatio: 0.01,
		MaxTotalPositions:        20,
		MaxLeverage:              1.0,
		MaxDailyTrades:           200,
		MaxIntradayTrades:        100,
		CoolDownPeriod:           60 * time.Second,
		GlobalStopLoss:           0.1,
		GlobalTakeProfit:         0.2,
		PositionStopLoss:         0.05,
		PositionTakeProfit:       0.1,
		WarningLevel:             0.8,
		MonitoringInterval:       60 * time.Second,
	}
}

// Validate rejects configurations that would make the gate meaningless.
func (c Config) Validate() error {
	if c.MaxPositionPerStock <= 0 || c.MaxPositionPerStock > 1 {
		return fmt.Errorf("max_position_per_stock must be in (0, 1], got %v", c.MaxPositionPerStock)
	}
	if c.MaxTradesPerStock <= 0 {
		return fmt.Errorf("max_trades_per_stock must be positive, got %d", c.MaxTradesPerStock)
	}
	if c.MaxDailyTrades <= 0 {
		return fmt.Errorf("max_daily_trades must be positive, got %d", c.MaxDailyTrades)
	}
	if c.MaxIntradayTrades <= 0 {
		return fmt.Errorf("max_intraday_trades must be positive, got %d", c.MaxIntradayTrades)
	}
	if c.MaxLeverage <= 0 {
		return fmt.Errorf("max_leverage must be positive, got %v", c.MaxLeverage)
	}
	if c.MaxTotalPositions <= 0 {
		return fmt.Errorf("max_total_positions must be positive, got %d", c.MaxTotalPositions)
	}
	if c.CoolDownPeriod < 0 {
		return fmt.Errorf("cool_down_period must not be negative, got %v", c.CoolDownPeriod)
	}
	if c.WarningLevel <= 0 || c.WarningLevel > 1 {
		return fmt.Errorf("warning_level must be in (0, 1], got %v", c.WarningLevel)
	}
	return nil
}
