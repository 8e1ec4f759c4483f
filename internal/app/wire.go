package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oxgamehq/oxgame-backend/internal/cache/redis"
	"github.com/oxgamehq/oxgame-backend/internal/config"
	"github.com/oxgamehq/oxgame-backend/internal/domain"
	"github.com/oxgamehq/oxgame-backend/internal/ledger"
	"github.com/oxgamehq/oxgame-backend/internal/notify"
	"github.com/oxgamehq/oxgame-backend/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Caches
	PriceCache domain.PriceCache
	SignalBus  domain.SignalBus

	// Ledger; nil in monitor mode.
	Ledger *ledger.Gateway

	// Journal; nil when postgres is disabled.
	Journal domain.JournalStore

	// Notifications
	Notifier *notify.Notifier
}

// needsLedger returns true for modes that write outcomes on chain.
func needsLedger(mode string) bool {
	return mode == "oracle"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

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

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Ledger (only for modes that settle rounds) ---
	if needsLedger(mode) {
		gateway, err := ledger.NewGateway(ctx, ledger.Config{
			RPCURL:      cfg.Ledger.RpcURL,
			PrivateKey:  cfg.Ledger.PrivateKey,
			ChainID:     cfg.Ledger.ChainID,
			Contracts:   cfg.Ledger.Contracts,
			CallTimeout: cfg.Ledger.CallTimeout.Duration,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: ledger: %w", err)
		}
		closers = append(closers, func() { _ = gateway.Close() })
		deps.Ledger = gateway
	}

	// --- PostgreSQL settlement journal (optional) ---
	if cfg.Postgres.Enabled {
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
		deps.Journal = postgres.NewJournalStore(pgClient.Pool())
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
