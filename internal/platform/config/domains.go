package config

import (
	"os"
	"path/filepath"
	"time"
)

// DatabaseConfig holds database connection settings. An empty DSN selects the env-file store.
type DatabaseConfig struct {
	PostgresDSN       string        `env:"POSTGRES_DSN"`
	SettingsFile      string        `env:"SETTINGS_FILE" envDefault:"./relay.env"`
	MaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	MinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"1"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// UsesPostgres reports whether settings live in postgres.
func (c DatabaseConfig) UsesPostgres() bool {
	return c.PostgresDSN != ""
}

// TelegramClientConfig holds MTProto user client settings.
type TelegramClientConfig struct {
	APIID        int           `env:"TG_API_ID"`
	APIHash      string        `env:"TG_API_HASH"`
	Phone        string        `env:"TG_PHONE"`
	Password     string        `env:"TG_2FA_PASSWORD"`
	SessionPath  string        `env:"TG_SESSION_PATH" envDefault:"./tg.session"`
	RateLimitRPS float64       `env:"RATE_LIMIT_RPS" envDefault:"1"`
	RateBurst    int           `env:"RATE_LIMIT_BURST" envDefault:"3"`
	Retries      int           `env:"TRANSPORT_RETRIES" envDefault:"3"`
	RetryDelay   time.Duration `env:"TRANSPORT_RETRY_DELAY" envDefault:"2s"`
}

// TelegramBotConfig holds admin bot settings.
type TelegramBotConfig struct {
	Token    string  `env:"BOT_TOKEN"`
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`
}

// SeedConfig holds registry defaults. Values only seed keys missing from the settings store.
type SeedConfig struct {
	SourceChannels      []string `env:"SOURCE_CHANNELS" envSeparator:","`
	DestinationChannel  int64    `env:"DESTINATION_CHANNEL" envDefault:"0"`
	DestinationChannels []string `env:"DESTINATION_CHANNELS" envSeparator:","`
	TagRules            string   `env:"TAG_RULES"`
	RulesFile           string   `env:"RULES_FILE"`
	DestinationTag      string   `env:"DESTINATION_TAG"`
	CleanMode           bool     `env:"CLEAN_MODE" envDefault:"false"`
	SyncDeletions       bool     `env:"SYNC_DELETIONS" envDefault:"true"`
	RepostingEnabled    bool     `env:"REPOSTING_ENABLED" envDefault:"true"`
}

// FilterConfig holds the content filter seed.
type FilterConfig struct {
	Enabled           bool     `env:"FILTER_ENABLED" envDefault:"false"`
	IncludeKeywords   []string `env:"FILTER_INCLUDE_KEYWORDS" envSeparator:","`
	ExcludeKeywords   []string `env:"FILTER_EXCLUDE_KEYWORDS" envSeparator:","`
	IncludeMediaTypes []string `env:"FILTER_INCLUDE_MEDIA" envSeparator:","`
	ExcludeMediaTypes []string `env:"FILTER_EXCLUDE_MEDIA" envSeparator:","`
}

// RelayConfig holds orchestrator settings.
type RelayConfig struct {
	CollapseDoubledLabels  bool          `env:"COLLAPSE_DOUBLED_LABELS" envDefault:"false"`
	MappingCacheSize       int           `env:"MAPPING_CACHE_SIZE" envDefault:"3"`
	MediaDir               string        `env:"MEDIA_DIR"`
	EventQueueSize         int           `env:"EVENT_QUEUE_SIZE" envDefault:"100"`
	RegistryReloadInterval time.Duration `env:"REGISTRY_RELOAD_INTERVAL" envDefault:"30s"`
}

// StagingDir returns MediaDir, or a relay-media directory under the OS temp dir.
func (c RelayConfig) StagingDir() string {
	if c.MediaDir != "" {
		return c.MediaDir
	}

	return filepath.Join(os.TempDir(), "relay-media")
}
