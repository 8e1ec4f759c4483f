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
// built-in defaults, applies OXGAME_* environment variable overrides, and
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

// applyEnvOverrides reads well-known OXGAME_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Datastreams ──
	setStr(&cfg.Datastreams.WsURL, "OXGAME_DATASTREAMS_WS_URL")
	setStr(&cfg.Datastreams.ApiKey, "OXGAME_DATASTREAMS_API_KEY")
	setStr(&cfg.Datastreams.ApiSecret, "OXGAME_DATASTREAMS_API_SECRET")

	// ── Ledger ──
	setStr(&cfg.Ledger.RpcURL, "OXGAME_LEDGER_RPC_URL")
	setStr(&cfg.Ledger.PrivateKey, "OXGAME_LEDGER_PRIVATE_KEY")
	setInt64(&cfg.Ledger.ChainID, "OXGAME_LEDGER_CHAIN_ID")
	setDuration(&cfg.Ledger.CallTimeout, "OXGAME_LEDGER_CALL_TIMEOUT")
	setDuration(&cfg.Ledger.PollInterval, "OXGAME_LEDGER_POLL_INTERVAL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OXGAME_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OXGAME_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OXGAME_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OXGAME_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OXGAME_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OXGAME_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "OXGAME_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "OXGAME_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "OXGAME_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OXGAME_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OXGAME_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OXGAME_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OXGAME_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OXGAME_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OXGAME_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OXGAME_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OXGAME_POSTGRES_RUN_MIGRATIONS")

	// ── Game ──
	setStringSlice(&cfg.Game.Channels, "OXGAME_GAME_CHANNELS")
	setStr(&cfg.Game.CronSpec, "OXGAME_GAME_CRON_SPEC")
	setDuration(&cfg.Game.RoundInterval, "OXGAME_GAME_ROUND_INTERVAL")
	setDuration(&cfg.Game.Freshness, "OXGAME_GAME_FRESHNESS")
	setBool(&cfg.Game.AllowStale, "OXGAME_GAME_ALLOW_STALE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "OXGAME_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "OXGAME_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OXGAME_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OXGAME_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OXGAME_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OXGAME_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OXGAME_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OXGAME_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "OXGAME_MODE")
	setStr(&cfg.LogLevel, "OXGAME_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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
