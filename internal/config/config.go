// Package config defines the top-level configuration for the order flow
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by IOFAE_* environment variables.
type Config struct {
	Terminal    TerminalConfig    `toml:"terminal"`
	Trading     TradingConfig     `toml:"trading"`
	Scoring     ScoringConfig     `toml:"scoring"`
	Sessions    SessionsConfig    `toml:"sessions"`
	StopHunt    StopHuntConfig    `toml:"stop_hunt"`
	Correlation CorrelationConfig `toml:"correlation"`
	Exhaustion  ExhaustionConfig  `toml:"exhaustion"`
	Risk        RiskConfig        `toml:"risk"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// TerminalConfig holds the connection parameters for the trading terminal
// bridge that serves market data and routes orders.
type TerminalConfig struct {
	WsURL             string   `toml:"ws_url"`
	RequestTimeout    duration `toml:"request_timeout"`
	ReconnectAttempts int      `toml:"reconnect_attempts"`
	ReconnectDelay    duration `toml:"reconnect_delay"`
}

// TradingConfig holds the instrument and core entry/exit parameters.
type TradingConfig struct {
	Symbol          string   `toml:"symbol"`
	PipSize         float64  `toml:"pip_size"`
	PollInterval    duration `toml:"poll_interval"`
	ScanRangePips   int      `toml:"scan_range_pips"`
	MinSignalScore  float64  `toml:"min_signal_score"`
	EntryOffsetPips float64  `toml:"entry_offset_pips"`
	StopLossPips    float64  `toml:"stop_loss_pips"`
	MaxHoldTime     duration `toml:"max_hold_time"`
}

// ScoringConfig holds the zone-scoring thresholds.
type ScoringConfig struct {
	DOMVolumeThreshold float64 `toml:"dom_volume_threshold"`
	DeltaThreshold     float64 `toml:"delta_threshold"`
	FibProximityPips   float64 `toml:"fib_proximity_pips"`
	DepthLookbackDays  int     `toml:"depth_lookback_days"`
}

// SessionsConfig holds the active-session hours (UTC) and blackout windows.
// Blackout entries are "HH:MM-HH:MM" in UTC, typically around news releases.
type SessionsConfig struct {
	LondonOpenHour  int      `toml:"london_open_hour"`
	LondonCloseHour int      `toml:"london_close_hour"`
	NewYorkOpenHour int      `toml:"new_york_open_hour"`
	NewYorkClose    int      `toml:"new_york_close_hour"`
	Blackouts       []string `toml:"blackouts"`
}

// StopHuntConfig holds the London-open stop hunt detection parameters.
type StopHuntConfig struct {
	Enabled         bool     `toml:"enabled"`
	WindowStartHour int      `toml:"window_start_hour"`
	WindowDuration  duration `toml:"window_duration"`
	MinBreakoutPips float64  `toml:"min_breakout_pips"`
	MaxBreakoutPips float64  `toml:"max_breakout_pips"`
	Confidence      float64  `toml:"confidence"`
	StopOffsetPips  float64  `toml:"stop_offset_pips"`
}

// CorrelationConfig holds the secondary-instrument confirmation parameters.
type CorrelationConfig struct {
	Enabled         bool    `toml:"enabled"`
	Symbol          string  `toml:"symbol"`
	Bars            int     `toml:"bars"`
	FlatThreshold   float64 `toml:"flat_threshold"`
	ConfirmBonus    float64 `toml:"confirm_bonus"`
	ConflictPenalty float64 `toml:"conflict_penalty"`
}

// ExhaustionConfig holds the early-exit and trailing-stop parameters.
type ExhaustionConfig struct {
	VolumeDropRatio   float64 `toml:"volume_drop_ratio"`
	SpreadWidenRatio  float64 `toml:"spread_widen_ratio"`
	StallRangePips    float64 `toml:"stall_range_pips"`
	MinProfitPips     float64 `toml:"min_profit_pips"`
	MinSamples        int     `toml:"min_samples"`
	TrailActivatePips float64 `toml:"trail_activate_pips"`
	TrailBufferPips   float64 `toml:"trail_buffer_pips"`
}

// RiskConfig holds the account-protection parameters.
type RiskConfig struct {
	RiskPerTrade     float64  `toml:"risk_per_trade"`
	MaxDailyLoss     float64  `toml:"max_daily_loss"`
	MaxTotalDrawdown float64  `toml:"max_total_drawdown"`
	MaxTradesPerDay  int      `toml:"max_trades_per_day"`
	MinTradeInterval duration `toml:"min_trade_interval"`
	MinLot           float64  `toml:"min_lot"`
	MaxLot           float64  `toml:"max_lot"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for depth-snapshot
// archival.
type S3Config struct {
	Enabled            bool   `toml:"enabled"`
	Endpoint           string `toml:"endpoint"`
	Region             string `toml:"region"`
	Bucket             string `toml:"bucket"`
	AccessKey          string `toml:"access_key"`
	SecretKey          string `toml:"secret_key"`
	UseSSL             bool   `toml:"use_ssl"`
	ForcePathStyle     bool   `toml:"force_path_style"`
	DepthRetentionDays int    `toml:"depth_retention_days"`
}

// ServerConfig holds status HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Terminal: TerminalConfig{
			WsURL:             "ws://localhost:8765",
			RequestTimeout:    duration{10 * time.Second},
			ReconnectAttempts: 5,
			ReconnectDelay:    duration{3 * time.Second},
		},
		Trading: TradingConfig{
			Symbol:          "EURUSD",
			PipSize:         0.0001,
			PollInterval:    duration{5 * time.Second},
			ScanRangePips:   30,
			MinSignalScore:  90,
			EntryOffsetPips: 7,
			StopLossPips:    10,
			MaxHoldTime:     duration{15 * time.Minute},
		},
		Scoring: ScoringConfig{
			DOMVolumeThreshold: 1500,
			DeltaThreshold:     8000,
			FibProximityPips:   5,
			DepthLookbackDays:  20,
		},
		Sessions: SessionsConfig{
			LondonOpenHour:  7,
			LondonCloseHour: 16,
			NewYorkOpenHour: 12,
			NewYorkClose:    21,
		},
		StopHunt: StopHuntConfig{
			Enabled:         true,
			WindowStartHour: 8,
			WindowDuration:  duration{30 * time.Minute},
			MinBreakoutPips: 5,
			MaxBreakoutPips: 12,
			Confidence:      92,
			StopOffsetPips:  15,
		},
		Correlation: CorrelationConfig{
			Enabled:         true,
			Symbol:          "DXY",
			Bars:            10,
			FlatThreshold:   0.001,
			ConfirmBonus:    5,
			ConflictPenalty: 15,
		},
		Exhaustion: ExhaustionConfig{
			VolumeDropRatio:   0.70,
			SpreadWidenRatio:  1.50,
			StallRangePips:    2.0,
			MinProfitPips:     10,
			MinSamples:        20,
			TrailActivatePips: 15,
			TrailBufferPips:   5,
		},
		Risk: RiskConfig{
			RiskPerTrade:     0.01,
			MaxDailyLoss:     0.05,
			MaxTotalDrawdown: 0.10,
			MaxTradesPerDay:  3,
			MinTradeInterval: duration{3 * time.Hour},
			MinLot:           0.01,
			MaxLot:           100,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "iofae",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:            false,
			Endpoint:           "http://localhost:9000",
			Region:             "us-east-1",
			Bucket:             "iofae-data",
			UseSSL:             false,
			ForcePathStyle:     true,
			DepthRetentionDays: 7,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_open", "trade_close", "risk_alert", "bot_stopped", "daily_summary"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"scan":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, scan)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Terminal
	if c.Terminal.WsURL == "" {
		errs = append(errs, "terminal: ws_url must not be empty")
	}
	if c.Terminal.RequestTimeout.Duration <= 0 {
		errs = append(errs, "terminal: request_timeout must be positive")
	}

	// Trading
	if c.Trading.Symbol == "" {
		errs = append(errs, "trading: symbol must not be empty")
	}
	if c.Trading.PipSize <= 0 {
		errs = append(errs, "trading: pip_size must be > 0")
	}
	if c.Trading.PollInterval.Duration <= 0 {
		errs = append(errs, "trading: poll_interval must be positive")
	}
	if c.Trading.ScanRangePips < 1 {
		errs = append(errs, "trading: scan_range_pips must be >= 1")
	}
	if c.Trading.MinSignalScore <= 0 || c.Trading.MinSignalScore > 100 {
		errs = append(errs, fmt.Sprintf("trading: min_signal_score must be in (0, 100], got %g", c.Trading.MinSignalScore))
	}
	if c.Trading.StopLossPips <= 0 {
		errs = append(errs, "trading: stop_loss_pips must be > 0")
	}
	if c.Trading.MaxHoldTime.Duration <= 0 {
		errs = append(errs, "trading: max_hold_time must be positive")
	}

	// Scoring
	if c.Scoring.DOMVolumeThreshold <= 0 {
		errs = append(errs, "scoring: dom_volume_threshold must be > 0")
	}
	if c.Scoring.DeltaThreshold <= 0 {
		errs = append(errs, "scoring: delta_threshold must be > 0")
	}
	if c.Scoring.DepthLookbackDays < 1 {
		errs = append(errs, "scoring: depth_lookback_days must be >= 1")
	}

	// Sessions
	for _, h := range []int{c.Sessions.LondonOpenHour, c.Sessions.LondonCloseHour, c.Sessions.NewYorkOpenHour, c.Sessions.NewYorkClose} {
		if h < 0 || h > 23 {
			errs = append(errs, fmt.Sprintf("sessions: hour values must be 0-23, got %d", h))
			break
		}
	}
	for _, w := range c.Sessions.Blackouts {
		if !validBlackout(w) {
			errs = append(errs, fmt.Sprintf("sessions: blackout %q must be HH:MM-HH:MM", w))
		}
	}

	// Stop hunt
	if c.StopHunt.Enabled {
		if c.StopHunt.MinBreakoutPips <= 0 {
			errs = append(errs, "stop_hunt: min_breakout_pips must be > 0")
		}
		if c.StopHunt.MaxBreakoutPips <= c.StopHunt.MinBreakoutPips {
			errs = append(errs, "stop_hunt: max_breakout_pips must exceed min_breakout_pips")
		}
		if c.StopHunt.WindowDuration.Duration <= 0 {
			errs = append(errs, "stop_hunt: window_duration must be positive")
		}
	}

	// Correlation
	if c.Correlation.Enabled {
		if c.Correlation.Symbol == "" {
			errs = append(errs, "correlation: symbol must not be empty when enabled")
		}
		if c.Correlation.Bars < 2 {
			errs = append(errs, "correlation: bars must be >= 2")
		}
	}

	// Exhaustion
	if c.Exhaustion.VolumeDropRatio <= 0 || c.Exhaustion.VolumeDropRatio >= 1 {
		errs = append(errs, "exhaustion: volume_drop_ratio must be in (0, 1)")
	}
	if c.Exhaustion.SpreadWidenRatio <= 1 {
		errs = append(errs, "exhaustion: spread_widen_ratio must be > 1")
	}
	if c.Exhaustion.MinSamples < 1 {
		errs = append(errs, "exhaustion: min_samples must be >= 1")
	}

	// Risk
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade >= 1 {
		errs = append(errs, "risk: risk_per_trade must be in (0, 1)")
	}
	if c.Risk.MaxDailyLoss <= 0 || c.Risk.MaxDailyLoss >= 1 {
		errs = append(errs, "risk: max_daily_loss must be in (0, 1)")
	}
	if c.Risk.MaxTotalDrawdown <= c.Risk.MaxDailyLoss {
		errs = append(errs, "risk: max_total_drawdown must exceed max_daily_loss")
	}
	if c.Risk.MaxTradesPerDay < 1 {
		errs = append(errs, "risk: max_trades_per_day must be >= 1")
	}
	if c.Risk.MinLot <= 0 || c.Risk.MaxLot < c.Risk.MinLot {
		errs = append(errs, "risk: lot bounds must satisfy 0 < min_lot <= max_lot")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be 0..pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.DepthRetentionDays < 1 {
			errs = append(errs, "s3: depth_retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// validBlackout checks the "HH:MM-HH:MM" shape without resolving the times;
// the session checker parses them properly at startup.
func validBlackout(w string) bool {
	parts := strings.Split(w, "-")
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if _, err := time.Parse("15:04", strings.TrimSpace(p)); err != nil {
			return false
		}
	}
	return true
}
