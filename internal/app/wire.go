package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/selimyuksel/iofae/internal/blob/s3"
	"github.com/selimyuksel/iofae/internal/cache/redis"
	"github.com/selimyuksel/iofae/internal/config"
	"github.com/selimyuksel/iofae/internal/domain"
	"github.com/selimyuksel/iofae/internal/notify"
	"github.com/selimyuksel/iofae/internal/store/postgres"
	"github.com/selimyuksel/iofae/internal/terminal"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Terminal serves both market data and order routing over one bridge
	// connection.
	Terminal *terminal.Client

	// Stores
	Trades   domain.TradeStore
	Zones    domain.ZoneStore
	Depth    domain.DepthStore
	DayStats domain.DayStatsStore

	// Caches
	Snapshots domain.SnapshotCache
	Positions domain.PositionCache
	RiskState domain.RiskStateCache
	Locks     domain.LockManager

	// Blob storage, nil unless S3 archival is enabled.
	Archiver *s3blob.DepthArchiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that must
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Terminal bridge ---
	term := terminal.New(terminal.Config{
		WsURL:             cfg.Terminal.WsURL,
		RequestTimeout:    cfg.Terminal.RequestTimeout.Duration,
		ReconnectAttempts: cfg.Terminal.ReconnectAttempts,
		ReconnectDelay:    cfg.Terminal.ReconnectDelay.Duration,
	}, cfg.Trading.Symbol, logger)
	if err := term.Connect(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: terminal: %w", err)
	}
	closers = append(closers, func() { _ = term.Close() })
	deps.Terminal = term

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Trades = postgres.NewTradeStore(pool)
	deps.Zones = postgres.NewZoneStore(pool)
	deps.Depth = postgres.NewDepthStore(pool)
	deps.DayStats = postgres.NewDayStatsStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Snapshots = redis.NewSnapshotCache(redisClient)
	deps.Positions = redis.NewPositionCache(redisClient)
	deps.RiskState = redis.NewRiskStateCache(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)

	// --- S3 blob storage (only when archival is enabled) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewDepthArchiver(s3blob.NewWriter(s3Client), deps.Depth)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
