package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"hedgegrid/logger"
)

// Strategy mode
const (
	ModeHedge = "hedge"
	ModeGrid  = "grid"
)

// Threshold modes for take-profit / stop-loss resolution
const (
	ThresholdPercent     = "percent"
	ThresholdATRMultiple = "atr_multiple"
)

// Risk accounting policies for the daily loss counter
const (
	RiskLossOnly = "loss-only" // losses accumulate, profits ignored
	RiskOffset   = "offset"    // profits offset accumulated losses
)

// ExchangeConfig holds exchange credentials and endpoint selection
type ExchangeConfig struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Testnet   bool   `json:"testnet"`
}

// StrategyConfig holds all strategy parameters
type StrategyConfig struct {
	Mode   string `json:"mode"`   // hedge | grid
	Symbol string `json:"symbol"` // e.g. BTCUSDT

	// Position sizing
	Investment    decimal.Decimal `json:"investment"`     // quote currency budget
	PositionRatio decimal.Decimal `json:"position_ratio"` // fraction of balance per entry, (0, 1]
	Leverage      int             `json:"leverage"`       // 1..125

	// Take-profit / stop-loss thresholds
	TakeProfitMode  string          `json:"take_profit_mode"`  // percent | atr_multiple
	TakeProfitValue decimal.Decimal `json:"take_profit_value"` // ratio or ATR multiple
	StopLossMode    string          `json:"stop_loss_mode"`
	StopLossValue   decimal.Decimal `json:"stop_loss_value"`

	// Indicator
	ATRPeriod    int    `json:"atr_period"`    // default 14
	ATRTimeframe string `json:"atr_timeframe"` // default 1h

	// Risk limits
	MaxPositions   int             `json:"max_positions"`    // per-side pair budget
	MaxDailyLoss   decimal.Decimal `json:"max_daily_loss"`   // quote currency
	MaxDailyTrades int             `json:"max_daily_trades"` // closed trades per day
	RiskAccounting string          `json:"risk_accounting"`  // loss-only | offset

	// Grid mode parameters
	GridBasePrice decimal.Decimal `json:"grid_base_price"` // 0 = use market price at start
	GridCount     int             `json:"grid_count"`      // levels per side
	GridRatio     decimal.Decimal `json:"grid_ratio"`      // spacing as fraction of base
	GridMinProfit decimal.Decimal `json:"grid_min_profit"` // skip counter orders expected to earn less

	// Engine timing
	PollIntervalSec    int `json:"poll_interval_sec"`     // default 5
	ATRRefreshSec      int `json:"atr_refresh_sec"`       // default 60
	BackoffBaseSec     int `json:"backoff_base_sec"`      // default 10
	BackoffMaxSec      int `json:"backoff_max_sec"`       // default 300
	MaxConsecutiveFail int `json:"max_consecutive_fails"` // emergency stop threshold, default 10
}

// Config is the top-level application configuration
type Config struct {
	Exchange ExchangeConfig `json:"exchange"`
	Strategy StrategyConfig `json:"strategy"`
	Log      logger.Config  `json:"log"`
	APIPort  int            `json:"api_port"`
}

// Load reads configuration from a JSON file, then applies environment
// variable overrides for credentials and validates the result
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Log.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Strategy: StrategyConfig{
			Mode:               ModeHedge,
			TakeProfitMode:     ThresholdATRMultiple,
			StopLossMode:       ThresholdATRMultiple,
			ATRPeriod:          14,
			ATRTimeframe:       "1h",
			RiskAccounting:     RiskLossOnly,
			PollIntervalSec:    5,
			ATRRefreshSec:      60,
			BackoffBaseSec:     10,
			BackoffMaxSec:      300,
			MaxConsecutiveFail: 10,
		},
		APIPort: 8080,
	}
}

// applyEnvOverrides lets credentials and the port come from the environment
// so the config file never needs to hold secrets
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_TESTNET"); v != "" {
		cfg.Exchange.Testnet = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("API_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.APIPort = port
		}
	}
}

// Validate checks ranges once at load so the engine never has to
func (c *Config) Validate() error {
	s := &c.Strategy

	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("config: exchange api_key and api_secret are required")
	}
	if s.Symbol == "" {
		return fmt.Errorf("config: strategy.symbol is required")
	}
	if s.Mode != ModeHedge && s.Mode != ModeGrid {
		return fmt.Errorf("config: strategy.mode must be %q or %q, got %q", ModeHedge, ModeGrid, s.Mode)
	}

	if s.PositionRatio.LessThanOrEqual(decimal.Zero) || s.PositionRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: position_ratio must be in (0, 1], got %s", s.PositionRatio)
	}
	if s.Leverage < 1 || s.Leverage > 125 {
		return fmt.Errorf("config: leverage must be in [1, 125], got %d", s.Leverage)
	}

	if err := validateThreshold("take_profit", s.TakeProfitMode, s.TakeProfitValue); err != nil {
		return err
	}
	if err := validateThreshold("stop_loss", s.StopLossMode, s.StopLossValue); err != nil {
		return err
	}

	if s.ATRPeriod < 1 {
		return fmt.Errorf("config: atr_period must be >= 1, got %d", s.ATRPeriod)
	}
	if s.MaxPositions < 1 {
		return fmt.Errorf("config: max_positions must be >= 1, got %d", s.MaxPositions)
	}
	if s.MaxDailyLoss.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("config: max_daily_loss must be > 0, got %s", s.MaxDailyLoss)
	}
	if s.MaxDailyTrades < 1 {
		return fmt.Errorf("config: max_daily_trades must be >= 1, got %d", s.MaxDailyTrades)
	}
	if s.RiskAccounting != RiskLossOnly && s.RiskAccounting != RiskOffset {
		return fmt.Errorf("config: risk_accounting must be %q or %q, got %q", RiskLossOnly, RiskOffset, s.RiskAccounting)
	}

	if s.Mode == ModeGrid {
		// Per-level quantity is derived from the investment
		if !s.Investment.IsPositive() {
			return fmt.Errorf("config: investment must be > 0 in grid mode, got %s", s.Investment)
		}
		if s.GridCount < 1 {
			return fmt.Errorf("config: grid_count must be >= 1, got %d", s.GridCount)
		}
		if s.GridRatio.LessThanOrEqual(decimal.Zero) || s.GridRatio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fmt.Errorf("config: grid_ratio must be in (0, 1), got %s", s.GridRatio)
		}
		if s.GridBasePrice.IsNegative() {
			return fmt.Errorf("config: grid_base_price must be >= 0, got %s", s.GridBasePrice)
		}
		if s.GridMinProfit.IsNegative() {
			return fmt.Errorf("config: grid_min_profit must be >= 0, got %s", s.GridMinProfit)
		}
	}

	if s.PollIntervalSec < 1 {
		return fmt.Errorf("config: poll_interval_sec must be >= 1, got %d", s.PollIntervalSec)
	}
	if s.BackoffBaseSec < 1 || s.BackoffMaxSec < s.BackoffBaseSec {
		return fmt.Errorf("config: backoff window invalid (base %d, max %d)", s.BackoffBaseSec, s.BackoffMaxSec)
	}
	if s.MaxConsecutiveFail < 1 {
		return fmt.Errorf("config: max_consecutive_fails must be >= 1, got %d", s.MaxConsecutiveFail)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("config: api_port must be a valid port, got %d", c.APIPort)
	}

	return nil
}

func validateThreshold(name, mode string, value decimal.Decimal) error {
	if mode != ThresholdPercent && mode != ThresholdATRMultiple {
		return fmt.Errorf("config: %s_mode must be %q or %q, got %q", name, ThresholdPercent, ThresholdATRMultiple, mode)
	}
	if value.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("config: %s_value must be > 0, got %s", name, value)
	}
	if mode == ThresholdPercent && value.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: %s_value as percent must be in (0, 1), got %s", name, value)
	}
	return nil
}
