// Package config defines the top-level configuration for the game backend
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OXGAME_* environment variables.
type Config struct {
	Datastreams DatastreamsConfig `toml:"datastreams"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Game        GameConfig        `toml:"game"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// DatastreamsConfig holds the push price feed endpoint and credentials.
type DatastreamsConfig struct {
	WsURL     string `toml:"ws_url"`
	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`
	// Feeds maps a channel key (e.g. "ETH") to its upstream feed ID.
	Feeds map[string]string `toml:"feeds"`
}

// LedgerConfig holds the chain connection and the per-channel pool contracts.
type LedgerConfig struct {
	RpcURL     string `toml:"rpc_url"`
	PrivateKey string `toml:"private_key"`
	ChainID    int64  `toml:"chain_id"`
	// Contracts maps a channel key to its pool contract address.
	Contracts    map[string]string `toml:"contracts"`
	CallTimeout  duration          `toml:"call_timeout"`
	PollInterval duration          `toml:"poll_interval"`
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

// PostgresConfig holds the settlement journal database parameters. The journal
// is optional; with Enabled false the oracle runs without one.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// GameConfig holds the round cadence and settlement policy.
type GameConfig struct {
	// Channels are the price channels games run on. Each channel needs a
	// matching datastreams feed and, for ledger writes, a pool contract.
	Channels []string `toml:"channels"`
	// CronSpec is a six-field cron expression (with seconds) for the tick
	// cadence. Empty uses the every-five-seconds default.
	CronSpec string `toml:"cron_spec"`
	// RoundInterval shapes the commitment deadline announced with each round.
	RoundInterval duration `toml:"round_interval"`
	// Freshness is the maximum observation age before a price counts as stale.
	Freshness duration `toml:"freshness"`
	// AllowStale settles rounds on stale prices instead of skipping the tick.
	AllowStale bool `toml:"allow_stale"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "500ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Datastreams: DatastreamsConfig{
			WsURL: "wss://ws.testnet-dataengine.chain.link",
			Feeds: map[string]string{},
		},
		Ledger: LedgerConfig{
			ChainID:      84532,
			Contracts:    map[string]string{},
			CallTimeout:  duration{4 * time.Second},
			PollInterval: duration{5 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "oxgame",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Game: GameConfig{
			Channels:      []string{"ETH"},
			CronSpec:      "*/5 * * * * *",
			RoundInterval: duration{5 * time.Second},
			Freshness:     duration{5 * time.Second},
			AllowStale:    true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"ledger_failed", "game_ended", "error"},
		},
		Mode:     "oracle",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"oracle":  true,
	"monitor": true,
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
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: oracle, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(c.Game.Channels) == 0 {
		errs = append(errs, "game: at least one channel must be configured")
	}
	if c.Game.RoundInterval.Duration <= 0 {
		errs = append(errs, "game: round_interval must be positive")
	}
	if c.Game.Freshness.Duration <= 0 {
		errs = append(errs, "game: freshness must be positive")
	}

	// The oracle settles rounds, so it needs a feed and a signing key.
	if strings.ToLower(c.Mode) == "oracle" {
		if c.Datastreams.WsURL == "" {
			errs = append(errs, "datastreams: ws_url must not be empty for oracle mode")
		}
		for _, ch := range c.Game.Channels {
			if c.Datastreams.Feeds[ch] == "" {
				errs = append(errs, fmt.Sprintf("datastreams: no feed configured for channel %q", ch))
			}
			if c.Ledger.Contracts[ch] == "" {
				errs = append(errs, fmt.Sprintf("ledger: no contract configured for channel %q", ch))
			}
		}
		if c.Ledger.RpcURL == "" {
			errs = append(errs, "ledger: rpc_url must not be empty for oracle mode")
		}
		if c.Ledger.PrivateKey == "" {
			errs = append(errs, "ledger: private_key must not be empty for oracle mode")
		}
		if c.Ledger.ChainID <= 0 {
			errs = append(errs, "ledger: chain_id must be positive")
		}
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Postgres.Enabled {
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

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
