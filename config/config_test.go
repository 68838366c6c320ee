package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Exchange.APIKey = "key"
	cfg.Exchange.APISecret = "secret"
	cfg.Strategy.Symbol = "BTCUSDT"
	cfg.Strategy.PositionRatio = decimal.RequireFromString("0.1")
	cfg.Strategy.Leverage = 10
	cfg.Strategy.TakeProfitValue = decimal.RequireFromString("0.9")
	cfg.Strategy.StopLossValue = decimal.RequireFromString("1.5")
	cfg.Strategy.MaxPositions = 3
	cfg.Strategy.MaxDailyLoss = decimal.RequireFromString("100")
	cfg.Strategy.MaxDailyTrades = 20
	return cfg
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateGridOK(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy.Mode = ModeGrid
	cfg.Strategy.Investment = decimal.RequireFromString("1000")
	cfg.Strategy.GridCount = 5
	cfg.Strategy.GridRatio = decimal.RequireFromString("0.05")
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing symbol", func(c *Config) { c.Strategy.Symbol = "" }},
		{"missing credentials", func(c *Config) { c.Exchange.APIKey = "" }},
		{"unknown mode", func(c *Config) { c.Strategy.Mode = "martingale" }},
		{"position ratio zero", func(c *Config) { c.Strategy.PositionRatio = decimal.Zero }},
		{"position ratio above one", func(c *Config) { c.Strategy.PositionRatio = decimal.RequireFromString("1.5") }},
		{"leverage too high", func(c *Config) { c.Strategy.Leverage = 200 }},
		{"percent threshold >= 1", func(c *Config) {
			c.Strategy.TakeProfitMode = ThresholdPercent
			c.Strategy.TakeProfitValue = decimal.RequireFromString("1.2")
		}},
		{"negative stop loss value", func(c *Config) { c.Strategy.StopLossValue = decimal.RequireFromString("-1") }},
		{"unknown risk accounting", func(c *Config) { c.Strategy.RiskAccounting = "net" }},
		{"grid mode without investment", func(c *Config) {
			c.Strategy.Mode = ModeGrid
			c.Strategy.GridCount = 5
			c.Strategy.GridRatio = decimal.RequireFromString("0.05")
		}},
		{"grid mode without levels", func(c *Config) {
			c.Strategy.Mode = ModeGrid
			c.Strategy.Investment = decimal.RequireFromString("1000")
			c.Strategy.GridCount = 0
			c.Strategy.GridRatio = decimal.RequireFromString("0.05")
		}},
		{"grid ratio too large", func(c *Config) {
			c.Strategy.Mode = ModeGrid
			c.Strategy.Investment = decimal.RequireFromString("1000")
			c.Strategy.GridCount = 5
			c.Strategy.GridRatio = decimal.RequireFromString("1.0")
		}},
		{"backoff max below base", func(c *Config) {
			c.Strategy.BackoffBaseSec = 60
			c.Strategy.BackoffMaxSec = 30
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{
		"exchange": {"api_key": "file-key", "api_secret": "file-secret"},
		"strategy": {
			"symbol": "ETHUSDT",
			"position_ratio": "0.2",
			"leverage": 5,
			"take_profit_value": "0.9",
			"stop_loss_value": "1.5",
			"max_positions": 2,
			"max_daily_loss": "50",
			"max_daily_trades": 10
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	t.Setenv("BINANCE_API_KEY", "env-key")
	t.Setenv("BINANCE_TESTNET", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "file-secret", cfg.Exchange.APISecret)
	assert.True(t, cfg.Exchange.Testnet)
	assert.Equal(t, "ETHUSDT", cfg.Strategy.Symbol)
	assert.Equal(t, ModeHedge, cfg.Strategy.Mode)
	assert.Equal(t, 14, cfg.Strategy.ATRPeriod)
	assert.Equal(t, 5, cfg.Strategy.PollIntervalSec)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
