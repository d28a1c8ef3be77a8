// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and runs one of the operational modes:
//
//   - Relay mode: MTProto client feeding the repost orchestrator
//   - Bot mode: admin Telegram bot editing the channel registry
//   - All mode: both in one process sharing a registry
//
// Every mode serves the health server and reloads the registry periodically so separate relay and
// bot processes converge on the same settings.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/telegram-relay-bot/internal/bot"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/config"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/observability"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/worker"
	"github.com/lueurxax/telegram-relay-bot/internal/registry"
	"github.com/lueurxax/telegram-relay-bot/internal/relay"
	"github.com/lueurxax/telegram-relay-bot/internal/telegramclient"
)

// Mode selects which components a process runs.
type Mode string

const (
	ModeRelay Mode = "relay"
	ModeBot   Mode = "bot"
	ModeAll   Mode = "all"
)

const (
	readyPollInterval  = 2 * time.Second
	checkNameStore     = "store"
	checkNameTelegram  = "telegram"
	reloadWorkerName   = "registry-reload"
	logFieldMode       = "mode"
	logFieldRef        = "ref"
	msgSeedUnresolved  = "seed reference needs the relay transport, skipped"
	msgSeedRegisterErr = "registering seed reference failed"
)

// ParseMode validates a --mode value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeRelay, ModeBot, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("%w: mode %q, want relay, bot or all", apperrors.ErrInvalidInput, s)
	}
}

func (m Mode) runsRelay() bool { return m == ModeRelay || m == ModeAll }

func (m Mode) runsBot() bool { return m == ModeBot || m == ModeAll }

type pinger interface {
	Ping(ctx context.Context) error
}

// App holds the application dependencies.
type App struct {
	cfg    *config.Config
	store  registry.SettingsStore
	logger *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, store registry.SettingsStore, logger *zerolog.Logger) *App {
	return &App{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// Run starts the components of mode and blocks until ctx is canceled or one of them fails.
func (a *App) Run(ctx context.Context, mode Mode) error {
	if err := a.validate(mode); err != nil {
		return err
	}

	defaults, pending, err := registryDefaults(a.cfg)
	if err != nil {
		return err
	}

	freshSources, err := a.missingSetting(ctx, sourceKey)
	if err != nil {
		return err
	}

	freshDestinations, err := a.missingSetting(ctx, destinationKey)
	if err != nil {
		return err
	}

	health := observability.NewServer(a.cfg.HealthPort, a.logger)
	if p, ok := a.store.(pinger); ok {
		health.AddCheck(checkNameStore, p.Ping)
	}

	var (
		client *telegramclient.Client
		events chan relay.Event
		opts   = []registry.Option{registry.WithCollapseDoubledLabels(a.cfg.Relay.CollapseDoubledLabels)}
	)

	if mode.runsRelay() {
		events = make(chan relay.Event, a.cfg.Relay.EventQueueSize)
		client = telegramclient.New(a.cfg.Telegram, events, a.logger)
		opts = append(opts, registry.WithResolver(client))
		health.AddCheck(checkNameTelegram, client.Ready)
	}

	reg := registry.New(a.store, defaults, a.logger, opts...)

	if err := reg.Seed(ctx); err != nil {
		return fmt.Errorf("seeding registry: %w", err)
	}

	if err := reg.Load(ctx); err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}

	a.logger.Info().Str(logFieldMode, string(mode)).Int("sources", len(reg.Sources())).Int("destinations", len(reg.Destinations())).Msg("registry loaded")

	pending = pending.only(freshSources, freshDestinations)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := health.Start(ctx); err != nil {
			return fmt.Errorf("health server start: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		return ignoreCanceled(worker.TickerLoop(ctx, worker.TickerConfig{
			Name:     reloadWorkerName,
			Interval: a.cfg.Relay.RegistryReloadInterval,
			OnTick:   reg.Reload,
			Logger:   a.logger,
		}))
	})

	var botOpts []bot.Option

	if mode.runsRelay() {
		orchestrator := relay.New(relay.Config{
			MediaDir:  a.cfg.Relay.StagingDir(),
			CacheSize: a.cfg.Relay.MappingCacheSize,
		}, client, reg, a.logger)

		botOpts = append(botOpts, bot.WithCache(orchestrator.Cache()))

		g.Go(func() error { return ignoreCanceled(client.Run(ctx)) })
		g.Go(func() error { return ignoreCanceled(orchestrator.Run(ctx, events)) })
		g.Go(func() error { return a.registerPending(ctx, client, reg, pending) })
	} else {
		pending.each(func(_, raw string) {
			a.logger.Warn().Str(logFieldRef, raw).Msg(msgSeedUnresolved)
		})
	}

	if mode.runsBot() {
		b, err := bot.New(a.cfg.Bot, reg, a.logger, botOpts...)
		if err != nil {
			return fmt.Errorf("bot initialization failed: %w", err)
		}

		g.Go(func() error { return ignoreCanceled(b.Run(ctx)) })
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s mode: %w", mode, err)
	}

	return nil
}

func (a *App) validate(mode Mode) error {
	if mode.runsRelay() {
		if err := a.cfg.ValidateRelay(); err != nil {
			return err
		}
	}

	if mode.runsBot() {
		if err := a.cfg.ValidateBot(); err != nil {
			return err
		}
	}

	return nil
}

// missingSetting reports whether key is absent from the store, i.e. Seed is about to write it.
func (a *App) missingSetting(ctx context.Context, key string) (bool, error) {
	var existing *interface{}

	if err := a.store.GetSetting(ctx, key, &existing); err != nil {
		return false, fmt.Errorf("checking setting %s: %w", key, err)
	}

	return existing == nil, nil
}

// readiness is the part of the transport registerPending waits on.
type readiness interface {
	Ready(ctx context.Context) error
}

// registerPending resolves seed references that need the transport once the client is authorized.
func (a *App) registerPending(ctx context.Context, client readiness, reg *registry.Registry, pending seedRefs) error {
	if pending.empty() {
		return nil
	}

	for client.Ready(ctx) != nil {
		if err := worker.Wait(ctx, readyPollInterval); err != nil {
			return nil //nolint:nilerr // shutdown before the client came up
		}
	}

	pending.each(func(role, raw string) {
		add := reg.AddSourceRef
		if role == roleDestination {
			add = reg.AddDestinationRef
		}

		info, err := add(ctx, raw, 0)

		switch {
		case err == nil:
			a.logger.Info().Str(logFieldRef, raw).Int64("channel_id", info.ID).Str("role", role).Msg("seed reference registered")
		case errors.Is(err, apperrors.ErrAlreadyExists):
		default:
			a.logger.Warn().Err(err).Str(logFieldRef, raw).Str("role", role).Msg(msgSeedRegisterErr)
		}
	})

	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
