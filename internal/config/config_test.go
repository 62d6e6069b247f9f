package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Trading.PipSize = 0
	cfg.Trading.MinSignalScore = 120
	cfg.Risk.MaxDailyLoss = 0.20
	cfg.Risk.MaxTotalDrawdown = 0.10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "pip_size")
	assert.Contains(t, err.Error(), "min_signal_score")
	assert.Contains(t, err.Error(), "max_total_drawdown")
}

func TestValidateBlackoutFormat(t *testing.T) {
	cfg := Defaults()
	cfg.Sessions.Blackouts = []string{"12:25-12:35"}
	require.NoError(t, cfg.Validate())

	cfg.Sessions.Blackouts = []string{"noon-ish"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HH:MM-HH:MM")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "monitor"

[trading]
symbol        = "GBPUSD"
poll_interval = "2s"

[risk]
max_trades_per_day = 5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "GBPUSD", cfg.Trading.Symbol)
	assert.Equal(t, 2*time.Second, cfg.Trading.PollInterval.Duration)
	assert.Equal(t, 5, cfg.Risk.MaxTradesPerDay)

	// Untouched sections keep their defaults.
	assert.Equal(t, "ws://localhost:8765", cfg.Terminal.WsURL)
	assert.Equal(t, 0.0001, cfg.Trading.PipSize)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "trade"`), 0o600))

	t.Setenv("IOFAE_TRADING_SYMBOL", "USDJPY")
	t.Setenv("IOFAE_RISK_MIN_TRADE_INTERVAL", "45m")
	t.Setenv("IOFAE_S3_ENABLED", "true")
	t.Setenv("IOFAE_NOTIFY_EVENTS", "trade_open, risk_alert")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "USDJPY", cfg.Trading.Symbol)
	assert.Equal(t, 45*time.Minute, cfg.Risk.MinTradeInterval.Duration)
	assert.True(t, cfg.S3.Enabled)
	assert.Equal(t, []string{"trade_open", "risk_alert"}, cfg.Notify.Events)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Empty(t, red.Redis.Password)

	// Original is untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
