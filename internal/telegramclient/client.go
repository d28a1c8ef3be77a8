// Package telegramclient is the MTProto user-client transport of the relay. It authenticates the
// userbot session, turns channel updates into relay events, and sends, edits and deletes messages
// on destination channels.
package telegramclient

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/config"
	"github.com/lueurxax/telegram-relay-bot/internal/relay"
)

type Client struct {
	cfg     config.TelegramClientConfig
	logger  *zerolog.Logger
	events  chan<- relay.Event
	limiter *rate.Limiter
	peers   *peerCache
	input   io.Reader

	mu     sync.RWMutex
	api    *tg.Client
	selfID int64
}

func New(cfg config.TelegramClientConfig, events chan<- relay.Event, logger *zerolog.Logger) *Client {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}

	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		cfg:     cfg,
		logger:  logger,
		events:  events,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		peers:   newPeerCache(),
		input:   os.Stdin,
	}
}

// Run connects, authenticates if necessary and streams channel updates until ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	dispatcher := tg.NewUpdateDispatcher()
	c.registerHandlers(dispatcher)

	gaps := updates.New(updates.Config{Handler: dispatcher})

	client := telegram.NewClient(c.cfg.APIID, c.cfg.APIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: c.cfg.SessionPath,
		},
		UpdateHandler: gaps,
	})

	err := client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, c.authFlow()); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("getting self: %w", err)
		}

		c.setAPI(client.API(), self.ID)
		defer c.setAPI(nil, 0)

		c.logger.Info().Int64("user_id", self.ID).Str("username", self.Username).Msg("Successfully authenticated as user")

		if err := c.refreshDialogs(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("failed to warm peer cache from dialogs")
		}

		return gaps.Run(ctx, client.API(), self.ID, updates.AuthOptions{
			OnStart: func(context.Context) {
				c.logger.Info().Msg("listening for channel updates")
			},
		})
	})
	if err != nil {
		return fmt.Errorf("telegram client: %w", err)
	}

	return nil
}

// Ready reports whether the client is connected and authorized.
func (c *Client) Ready(context.Context) error {
	_, err := c.apiClient()

	return err
}

func (c *Client) setAPI(api *tg.Client, selfID int64) {
	c.mu.Lock()
	c.api = api
	c.selfID = selfID
	c.mu.Unlock()
}

func (c *Client) apiClient() (*tg.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.api == nil {
		return nil, apperrors.ErrTransportUnavailable
	}

	return c.api, nil
}

var (
	_ relay.Transport = (*Client)(nil)
)
