package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-relay-bot/internal/app"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/config"
)

func main() {
	modeFlag := flag.String("mode", string(app.ModeAll), "Service mode (relay, bot, all)")

	flag.Parse()

	mode, err := app.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("Usage: %s --mode=[relay|bot|all]: %v", os.Args[0], err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg.Database, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open settings store")
	}
	defer closeStore()

	application := app.New(cfg, store, &logger)

	if err := application.Run(ctx, mode); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Error().Err(err).Msg("application error")
		closeStore()
		os.Exit(1)
	}

	logger.Info().Msg("application stopped")
}

func newLogger(appEnv, level string) zerolog.Logger {
	var logger zerolog.Logger
	if appEnv == "local" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return logger.Level(lvl)
}
