package telegramclient

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	"github.com/lueurxax/telegram-relay-bot/internal/relay"
)

func (c *Client) registerHandlers(d tg.UpdateDispatcher) {
	d.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		c.peers.rememberChannels(e.Channels)

		return c.emitMessage(ctx, relay.EventNew, u.Message)
	})

	d.OnEditChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateEditChannelMessage) error {
		c.peers.rememberChannels(e.Channels)

		return c.emitMessage(ctx, relay.EventEdit, u.Message)
	})

	d.OnDeleteChannelMessages(func(ctx context.Context, _ tg.Entities, u *tg.UpdateDeleteChannelMessages) error {
		return c.emit(ctx, deleteEvent(u))
	})
}

func (c *Client) emitMessage(ctx context.Context, kind relay.EventKind, m tg.MessageClass) error {
	msg, ok := inboundMessage(m)
	if !ok {
		return nil
	}

	return c.emit(ctx, relay.Event{Kind: kind, Message: msg})
}

func deleteEvent(u *tg.UpdateDeleteChannelMessages) relay.Event {
	return relay.Event{
		Kind:       relay.EventDelete,
		ChannelID:  domain.MarkChannelID(u.ChannelID),
		DeletedIDs: u.Messages,
	}
}

// emit blocks until the orchestrator accepts the event, so a full queue slows update handling
// instead of dropping events.
func (c *Client) emit(ctx context.Context, ev relay.Event) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("emitting %s event: %w", ev.Kind, ctx.Err())
	}
}
