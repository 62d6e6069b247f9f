package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies IOFAE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known IOFAE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Terminal ──
	setStr(&cfg.Terminal.WsURL, "IOFAE_TERMINAL_WS_URL")
	setDuration(&cfg.Terminal.RequestTimeout, "IOFAE_TERMINAL_REQUEST_TIMEOUT")
	setInt(&cfg.Terminal.ReconnectAttempts, "IOFAE_TERMINAL_RECONNECT_ATTEMPTS")
	setDuration(&cfg.Terminal.ReconnectDelay, "IOFAE_TERMINAL_RECONNECT_DELAY")

	// ── Trading ──
	setStr(&cfg.Trading.Symbol, "IOFAE_TRADING_SYMBOL")
	setFloat64(&cfg.Trading.PipSize, "IOFAE_TRADING_PIP_SIZE")
	setDuration(&cfg.Trading.PollInterval, "IOFAE_TRADING_POLL_INTERVAL")
	setInt(&cfg.Trading.ScanRangePips, "IOFAE_TRADING_SCAN_RANGE_PIPS")
	setFloat64(&cfg.Trading.MinSignalScore, "IOFAE_TRADING_MIN_SIGNAL_SCORE")
	setFloat64(&cfg.Trading.EntryOffsetPips, "IOFAE_TRADING_ENTRY_OFFSET_PIPS")
	setFloat64(&cfg.Trading.StopLossPips, "IOFAE_TRADING_STOP_LOSS_PIPS")
	setDuration(&cfg.Trading.MaxHoldTime, "IOFAE_TRADING_MAX_HOLD_TIME")

	// ── Scoring ──
	setFloat64(&cfg.Scoring.DOMVolumeThreshold, "IOFAE_SCORING_DOM_VOLUME_THRESHOLD")
	setFloat64(&cfg.Scoring.DeltaThreshold, "IOFAE_SCORING_DELTA_THRESHOLD")
	setFloat64(&cfg.Scoring.FibProximityPips, "IOFAE_SCORING_FIB_PROXIMITY_PIPS")
	setInt(&cfg.Scoring.DepthLookbackDays, "IOFAE_SCORING_DEPTH_LOOKBACK_DAYS")

	// ── Sessions ──
	setInt(&cfg.Sessions.LondonOpenHour, "IOFAE_SESSIONS_LONDON_OPEN_HOUR")
	setInt(&cfg.Sessions.LondonCloseHour, "IOFAE_SESSIONS_LONDON_CLOSE_HOUR")
	setInt(&cfg.Sessions.NewYorkOpenHour, "IOFAE_SESSIONS_NEW_YORK_OPEN_HOUR")
	setInt(&cfg.Sessions.NewYorkClose, "IOFAE_SESSIONS_NEW_YORK_CLOSE_HOUR")
	setStringSlice(&cfg.Sessions.Blackouts, "IOFAE_SESSIONS_BLACKOUTS")

	// ── Stop hunt ──
	setBool(&cfg.StopHunt.Enabled, "IOFAE_STOP_HUNT_ENABLED")
	setInt(&cfg.StopHunt.WindowStartHour, "IOFAE_STOP_HUNT_WINDOW_START_HOUR")
	setDuration(&cfg.StopHunt.WindowDuration, "IOFAE_STOP_HUNT_WINDOW_DURATION")
	setFloat64(&cfg.StopHunt.MinBreakoutPips, "IOFAE_STOP_HUNT_MIN_BREAKOUT_PIPS")
	setFloat64(&cfg.StopHunt.MaxBreakoutPips, "IOFAE_STOP_HUNT_MAX_BREAKOUT_PIPS")
	setFloat64(&cfg.StopHunt.Confidence, "IOFAE_STOP_HUNT_CONFIDENCE")
	setFloat64(&cfg.StopHunt.StopOffsetPips, "IOFAE_STOP_HUNT_STOP_OFFSET_PIPS")

	// ── Correlation ──
	setBool(&cfg.Correlation.Enabled, "IOFAE_CORRELATION_ENABLED")
	setStr(&cfg.Correlation.Symbol, "IOFAE_CORRELATION_SYMBOL")
	setInt(&cfg.Correlation.Bars, "IOFAE_CORRELATION_BARS")
	setFloat64(&cfg.Correlation.FlatThreshold, "IOFAE_CORRELATION_FLAT_THRESHOLD")
	setFloat64(&cfg.Correlation.ConfirmBonus, "IOFAE_CORRELATION_CONFIRM_BONUS")
	setFloat64(&cfg.Correlation.ConflictPenalty, "IOFAE_CORRELATION_CONFLICT_PENALTY")

	// ── Exhaustion ──
	setFloat64(&cfg.Exhaustion.VolumeDropRatio, "IOFAE_EXHAUSTION_VOLUME_DROP_RATIO")
	setFloat64(&cfg.Exhaustion.SpreadWidenRatio, "IOFAE_EXHAUSTION_SPREAD_WIDEN_RATIO")
	setFloat64(&cfg.Exhaustion.StallRangePips, "IOFAE_EXHAUSTION_STALL_RANGE_PIPS")
	setFloat64(&cfg.Exhaustion.MinProfitPips, "IOFAE_EXHAUSTION_MIN_PROFIT_PIPS")
	setInt(&cfg.Exhaustion.MinSamples, "IOFAE_EXHAUSTION_MIN_SAMPLES")
	setFloat64(&cfg.Exhaustion.TrailActivatePips, "IOFAE_EXHAUSTION_TRAIL_ACTIVATE_PIPS")
	setFloat64(&cfg.Exhaustion.TrailBufferPips, "IOFAE_EXHAUSTION_TRAIL_BUFFER_PIPS")

	// ── Risk ──
	setFloat64(&cfg.Risk.RiskPerTrade, "IOFAE_RISK_RISK_PER_TRADE")
	setFloat64(&cfg.Risk.MaxDailyLoss, "IOFAE_RISK_MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.MaxTotalDrawdown, "IOFAE_RISK_MAX_TOTAL_DRAWDOWN")
	setInt(&cfg.Risk.MaxTradesPerDay, "IOFAE_RISK_MAX_TRADES_PER_DAY")
	setDuration(&cfg.Risk.MinTradeInterval, "IOFAE_RISK_MIN_TRADE_INTERVAL")
	setFloat64(&cfg.Risk.MinLot, "IOFAE_RISK_MIN_LOT")
	setFloat64(&cfg.Risk.MaxLot, "IOFAE_RISK_MAX_LOT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "IOFAE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "IOFAE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "IOFAE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "IOFAE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "IOFAE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "IOFAE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "IOFAE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "IOFAE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "IOFAE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "IOFAE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "IOFAE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "IOFAE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "IOFAE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "IOFAE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "IOFAE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "IOFAE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "IOFAE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "IOFAE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "IOFAE_S3_REGION")
	setStr(&cfg.S3.Bucket, "IOFAE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "IOFAE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "IOFAE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "IOFAE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "IOFAE_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.DepthRetentionDays, "IOFAE_S3_DEPTH_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "IOFAE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "IOFAE_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "IOFAE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "IOFAE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "IOFAE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "IOFAE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "IOFAE_MODE")
	setStr(&cfg.LogLevel, "IOFAE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
