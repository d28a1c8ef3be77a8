// Package bot is the admin command bot. It edits the relay registry through Bot API commands sent
// by configured administrators.
package bot

import (
	"context"
	"fmt"
	"slices"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/config"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/htmlutils"
	"github.com/lueurxax/telegram-relay-bot/internal/registry"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/filter"
)

// MaxMessageSize is the maximum size for a single Telegram message part.
const MaxMessageSize = 4000

const updateTimeout = 60

// Log field names.
const (
	LogFieldUserID   = "user_id"
	LogFieldUsername = "username"
	LogFieldCommand  = "command"
)

// Registry is the relay configuration the bot edits.
type Registry interface {
	Snapshot() registry.State
	Resolve(ctx context.Context, raw string) (domain.EntityInfo, registry.Reference, error)
	AddSourceRef(ctx context.Context, raw string, changedBy int64) (domain.EntityInfo, error)
	AddDestinationRef(ctx context.Context, raw string, changedBy int64) (domain.EntityInfo, error)
	RemoveSource(ctx context.Context, id int64, changedBy int64) error
	RemoveDestination(ctx context.Context, id int64, changedBy int64) error
	SetLegacyDestination(ctx context.Context, id int64, changedBy int64) error
	SetRule(ctx context.Context, key, value string, changedBy int64) error
	RemoveRule(ctx context.Context, key string, changedBy int64) error
	SetDestinationTag(ctx context.Context, tag string, changedBy int64) error
	SetCleanMode(ctx context.Context, enabled bool, changedBy int64) error
	SetSyncDeletions(ctx context.Context, enabled bool, changedBy int64) error
	SetRepostingEnabled(ctx context.Context, enabled bool, changedBy int64) error
	SetFilterConfig(ctx context.Context, cfg filter.Config, changedBy int64) error
	History(ctx context.Context, limit int) ([]domain.SettingHistory, error)
}

// CacheInspector reports the size of the message mapping cache when the relay runs in-process.
type CacheInspector interface {
	Len() int
}

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	cfg      config.TelegramBotConfig
	registry Registry
	cache    CacheInspector
	api      *tgbotapi.BotAPI
	sender   messageSender
	logger   *zerolog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithCache reports mapping cache occupancy in /status.
func WithCache(c CacheInspector) Option {
	return func(b *Bot) {
		b.cache = c
	}
}

func New(cfg config.TelegramBotConfig, reg Registry, logger *zerolog.Logger, opts ...Option) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}

	b := newBot(cfg, reg, api, logger, opts...)
	b.api = api

	return b, nil
}

func newBot(cfg config.TelegramBotConfig, reg Registry, sender messageSender, logger *zerolog.Logger, opts ...Option) *Bot {
	b := &Bot{
		cfg:      cfg,
		registry: reg,
		sender:   sender,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeout

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info().Str(LogFieldUsername, b.api.Self.UserName).Msg("admin bot started")

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("bot run context canceled: %w", ctx.Err())
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}

			if !b.isAdmin(update.Message.From.ID) {
				b.logger.Warn().Int64(LogFieldUserID, update.Message.From.ID).Str(LogFieldUsername, update.Message.From.UserName).Msg("Unauthorized access attempt")

				continue
			}

			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return slices.Contains(b.cfg.AdminIDs, userID)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	b.logger.Info().Str(LogFieldCommand, msg.Command()).Int64(LogFieldUserID, msg.From.ID).Msg("Handling command")

	commands := b.newCommandRegistry()
	if !commands.route(ctx, msg) {
		b.reply(msg, "Unknown command. See <code>/help</code>.")
	}
}

// reply sends an HTML reply, split on line boundaries when it is too long.
func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	for _, part := range htmlutils.SplitLines(text, MaxMessageSize) {
		out := tgbotapi.NewMessage(msg.Chat.ID, part)
		out.ParseMode = tgbotapi.ModeHTML
		out.DisableWebPagePreview = true

		if _, err := b.sender.Send(out); err != nil {
			b.logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("failed to send reply")

			return
		}
	}
}
