package telegramclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/observability"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/worker"
)

const (
	errTypeFloodWait        = "FLOOD_WAIT"
	errTypeFloodPremiumWait = "FLOOD_PREMIUM_WAIT"
	codeFlood               = 420
	codeInternal            = 500

	// maxFloodWait is the longest server-requested pause honored before giving up.
	maxFloodWait = 5 * time.Minute
)

// call runs fn under the rate limiter and retries transient failures a bounded number of times.
// FLOOD_WAIT pauses for the server-requested duration. Other RPC errors below 500 are final.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context, api *tg.Client) error) error {
	api, err := c.apiClient()
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", op, err)
		}

		err := fn(ctx, api)
		if err == nil {
			return nil
		}

		delay, retry := retryDelay(err, c.cfg.RetryDelay)
		if !retry {
			return err
		}

		if attempt >= c.cfg.Retries {
			return fmt.Errorf("%w: %s: %w", apperrors.ErrRetriesExhausted, op, err)
		}

		observability.TransportRetries.WithLabelValues(op).Inc()
		c.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying telegram call")

		if err := worker.Wait(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
}

// retryDelay reports whether err is transient and how long to wait before the next attempt.
func retryDelay(err error, base time.Duration) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	rpcErr, ok := tgerr.As(err)
	if !ok {
		return base, true
	}

	switch {
	case rpcErr.Type == errTypeFloodWait || rpcErr.Type == errTypeFloodPremiumWait || rpcErr.Code == codeFlood:
		wait := time.Duration(rpcErr.Argument) * time.Second
		if wait <= 0 {
			wait = base
		}

		if wait > maxFloodWait {
			return 0, false
		}

		return wait, true
	case rpcErr.Code >= codeInternal:
		return base, true
	default:
		return 0, false
	}
}
