// Package worker provides the loop helpers used by the relay background tasks: periodic ticks,
// cancellable waits and panic recovery.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const logFieldWorker = "worker"

// TickerConfig configures a ticker loop.
type TickerConfig struct {
	// Name identifies the worker for logging.
	Name string

	// Interval is the ticker interval.
	Interval time.Duration

	// OnTick is called when the ticker fires.
	OnTick func(ctx context.Context)

	// RunOnStart runs OnTick immediately when starting.
	RunOnStart bool

	// OnStop is called once when the loop exits.
	OnStop func()

	// Logger for the worker.
	Logger *zerolog.Logger
}

// TickerLoop calls OnTick every Interval until ctx is canceled.
// Returns a wrapped context error when the context is canceled.
func TickerLoop(ctx context.Context, cfg TickerConfig) error {
	logger := getLogger(cfg.Logger)
	logger.Info().Str(logFieldWorker, cfg.Name).Dur("interval", cfg.Interval).Msg("starting ticker loop")

	defer func() {
		if cfg.OnStop != nil {
			cfg.OnStop()
		}

		logger.Info().Str(logFieldWorker, cfg.Name).Msg("ticker loop stopped")
	}()

	if cfg.Interval <= 0 {
		return fmt.Errorf("ticker loop %s: non-positive interval %s", cfg.Name, cfg.Interval)
	}

	if cfg.RunOnStart && cfg.OnTick != nil {
		runTick(ctx, cfg, logger)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("ticker loop %s: %w", cfg.Name, ctx.Err())
		case <-ticker.C:
			if cfg.OnTick != nil {
				runTick(ctx, cfg, logger)
			}
		}
	}
}

func runTick(ctx context.Context, cfg TickerConfig, logger *zerolog.Logger) {
	defer RecoverPanic(logger, cfg.Name)

	cfg.OnTick(ctx)
}

// Wait blocks until duration elapses or context is canceled.
// Returns a wrapped context error if context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RecoverPanic recovers from panics and logs them.
// Use as: defer worker.RecoverPanic(logger, "operation name")
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}

// getLogger returns the provided logger or a nop logger if nil.
func getLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return logger
}
