package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Datastreams
	out.Datastreams = cfg.Datastreams
	redact(&out.Datastreams.ApiKey)
	redact(&out.Datastreams.ApiSecret)

	// Ledger
	out.Ledger = cfg.Ledger
	redact(&out.Ledger.PrivateKey)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Game.Channels != nil {
		out.Game.Channels = make([]string, len(cfg.Game.Channels))
		copy(out.Game.Channels, cfg.Game.Channels)
	}
	if cfg.Datastreams.Feeds != nil {
		out.Datastreams.Feeds = make(map[string]string, len(cfg.Datastreams.Feeds))
		for k, v := range cfg.Datastreams.Feeds {
			out.Datastreams.Feeds[k] = v
		}
	}
	if cfg.Ledger.Contracts != nil {
		out.Ledger.Contracts = make(map[string]string, len(cfg.Ledger.Contracts))
		for k, v := range cfg.Ledger.Contracts {
			out.Ledger.Contracts[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
