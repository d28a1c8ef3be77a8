package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/filter"
)

type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"local"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	HealthPort int    `env:"HEALTH_PORT" envDefault:"8080"`

	Database DatabaseConfig
	Telegram TelegramClientConfig
	Bot      TelegramBotConfig
	Seed     SeedConfig
	Filter   FilterConfig
	Relay    RelayConfig
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	trimAll(cfg.Seed.SourceChannels)
	trimAll(cfg.Seed.DestinationChannels)

	return cfg, nil
}

// ValidateRelay checks the settings the MTProto relay cannot start without.
func (c *Config) ValidateRelay() error {
	var missing []string

	if c.Telegram.APIID == 0 {
		missing = append(missing, "TG_API_ID")
	}

	if c.Telegram.APIHash == "" {
		missing = append(missing, "TG_API_HASH")
	}

	if c.Relay.MappingCacheSize <= 0 {
		return fmt.Errorf("%w: MAPPING_CACHE_SIZE must be positive", apperrors.ErrInvalidInput)
	}

	if c.Telegram.Retries < 0 {
		return fmt.Errorf("%w: TRANSPORT_RETRIES must not be negative", apperrors.ErrInvalidInput)
	}

	return missingErr(missing)
}

// ValidateBot checks the settings the admin bot cannot start without.
func (c *Config) ValidateBot() error {
	var missing []string

	if c.Bot.Token == "" {
		missing = append(missing, "BOT_TOKEN")
	}

	if len(c.Bot.AdminIDs) == 0 {
		missing = append(missing, "ADMIN_IDS")
	}

	return missingErr(missing)
}

// TagRules decodes the TAG_RULES JSON object.
func (c *Config) TagRules() (map[string]string, error) {
	if strings.TrimSpace(c.Seed.TagRules) == "" {
		return map[string]string{}, nil
	}

	rules := map[string]string{}
	if err := json.Unmarshal([]byte(c.Seed.TagRules), &rules); err != nil {
		return nil, fmt.Errorf("parsing TAG_RULES: %w", err)
	}

	return rules, nil
}

// ContentFilter returns the filter seed.
func (c *Config) ContentFilter() filter.Config {
	return filter.Config{
		Enabled:           c.Filter.Enabled,
		IncludeKeywords:   c.Filter.IncludeKeywords,
		ExcludeKeywords:   c.Filter.ExcludeKeywords,
		IncludeMediaTypes: c.Filter.IncludeMediaTypes,
		ExcludeMediaTypes: c.Filter.ExcludeMediaTypes,
	}
}

// RulesFile is the optional YAML file with rewrite rules and filter settings. Present sections
// override the environment seed.
type RulesFile struct {
	Rules          map[string]string `yaml:"rules"`
	DestinationTag *string           `yaml:"destination_tag"`
	CleanMode      *bool             `yaml:"clean_mode"`
	Filter         *filter.Config    `yaml:"filter"`
}

// LoadRulesFile decodes the YAML rules file at path.
func LoadRulesFile(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	for _, name := range mediaNames(rf.Filter) {
		if _, ok := filter.ParseMediaKind(name); !ok {
			return nil, fmt.Errorf("%w: unknown media type %q in %s", apperrors.ErrInvalidInput, name, path)
		}
	}

	return &rf, nil
}

func mediaNames(f *filter.Config) []string {
	if f == nil {
		return nil
	}

	out := make([]string, 0, len(f.IncludeMediaTypes)+len(f.ExcludeMediaTypes))
	out = append(out, f.IncludeMediaTypes...)

	return append(out, f.ExcludeMediaTypes...)
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %s", apperrors.ErrMissingConfig, strings.Join(missing, ", "))
}

func trimAll(values []string) {
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
}
