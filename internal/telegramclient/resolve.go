package telegramclient

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/registry"
)

const (
	opResolve = "resolve"
	opJoin    = "join"

	errUserAlreadyParticipant = "USER_ALREADY_PARTICIPANT"
)

var _ registry.Resolver = (*Client)(nil)

// ResolveEntity looks up a channel reference. Resolving an invite the account has not used yet
// joins it, since that is the only way to learn the channel id.
func (c *Client) ResolveEntity(ctx context.Context, ref registry.Reference) (domain.EntityInfo, error) {
	switch {
	case ref.Username != "":
		return c.resolveUsername(ctx, ref.Username)
	case ref.InviteHash != "":
		return c.resolveInvite(ctx, ref.InviteHash)
	case ref.ID != 0:
		return c.resolveID(ctx, ref.ID)
	default:
		return domain.EntityInfo{}, fmt.Errorf("%w: empty reference", apperrors.ErrInvalidReference)
	}
}

// Join subscribes the account to the referenced channel. Already being a member is not an error.
func (c *Client) Join(ctx context.Context, ref registry.Reference) error {
	if ref.InviteHash != "" {
		_, err := c.importInvite(ctx, ref.InviteHash)

		return err
	}

	info, err := c.ResolveEntity(ctx, ref)
	if err != nil {
		return err
	}

	channel, err := c.inputChannel(ctx, info.ID)
	if err != nil {
		return err
	}

	err = c.call(ctx, opJoin, func(ctx context.Context, api *tg.Client) error {
		_, err := api.ChannelsJoinChannel(ctx, channel)
		if tgerr.Is(err, errUserAlreadyParticipant) {
			return nil
		}

		return err
	})
	if err != nil {
		return fmt.Errorf("joining %s: %w", ref, mapResolveError(err))
	}

	c.logger.Info().Int64("channel_id", info.ID).Str("title", info.Title).Msg("joined channel")

	return nil
}

func (c *Client) resolveUsername(ctx context.Context, username string) (domain.EntityInfo, error) {
	var resolved *tg.ContactsResolvedPeer

	err := c.call(ctx, opResolve, func(ctx context.Context, api *tg.Client) error {
		var err error

		resolved, err = api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})

		return err
	})
	if err != nil {
		return domain.EntityInfo{}, fmt.Errorf("resolving @%s: %w", username, mapResolveError(err))
	}

	if _, ok := resolved.Peer.(*tg.PeerUser); ok {
		return domain.EntityInfo{Kind: domain.EntityUser}, fmt.Errorf("%w: @%s is a user", apperrors.ErrNotAChannel, username)
	}

	if len(resolved.Chats) == 0 {
		return domain.EntityInfo{}, fmt.Errorf("%w: @%s", apperrors.ErrNotFound, username)
	}

	return c.entityInfo(resolved.Chats[0], true)
}

func (c *Client) resolveInvite(ctx context.Context, hash string) (domain.EntityInfo, error) {
	var invite tg.ChatInviteClass

	err := c.call(ctx, opResolve, func(ctx context.Context, api *tg.Client) error {
		var err error

		invite, err = api.MessagesCheckChatInvite(ctx, hash)

		return err
	})
	if err != nil {
		return domain.EntityInfo{}, fmt.Errorf("checking invite: %w", mapResolveError(err))
	}

	switch i := invite.(type) {
	case *tg.ChatInviteAlready:
		return c.entityInfo(i.Chat, true)
	case *tg.ChatInvitePeek:
		return c.entityInfo(i.Chat, false)
	case *tg.ChatInvite:
		if !i.Channel {
			return domain.EntityInfo{Title: i.Title, Kind: domain.EntityChat}, fmt.Errorf("%w: invite to %q", apperrors.ErrNotAChannel, i.Title)
		}

		return c.importInvite(ctx, hash)
	default:
		return domain.EntityInfo{}, fmt.Errorf("%w: unexpected invite type %T", apperrors.ErrEntityResolution, invite)
	}
}

func (c *Client) importInvite(ctx context.Context, hash string) (domain.EntityInfo, error) {
	var upd tg.UpdatesClass

	err := c.call(ctx, opJoin, func(ctx context.Context, api *tg.Client) error {
		var err error

		upd, err = api.MessagesImportChatInvite(ctx, hash)

		return err
	})

	switch {
	case tgerr.Is(err, errUserAlreadyParticipant):
		return c.resolveInvite(ctx, hash)
	case err != nil:
		return domain.EntityInfo{}, fmt.Errorf("joining by invite: %w", mapResolveError(err))
	}

	if u, ok := upd.(*tg.Updates); ok {
		for _, chat := range u.Chats {
			if _, ok := chat.(*tg.Channel); ok {
				info, err := c.entityInfo(chat, true)
				if err == nil {
					c.logger.Info().Int64("channel_id", info.ID).Str("title", info.Title).Msg("joined channel by invite")
				}

				return info, err
			}
		}
	}

	return domain.EntityInfo{}, fmt.Errorf("%w: invite join returned no channel", apperrors.ErrEntityResolution)
}

func (c *Client) resolveID(ctx context.Context, marked int64) (domain.EntityInfo, error) {
	channel, err := c.inputChannel(ctx, marked)
	if err != nil {
		return domain.EntityInfo{}, err
	}

	var res tg.MessagesChatsClass

	err = c.call(ctx, opResolve, func(ctx context.Context, api *tg.Client) error {
		var err error

		res, err = api.ChannelsGetChannels(ctx, []tg.InputChannelClass{channel})

		return err
	})
	if err != nil {
		return domain.EntityInfo{}, fmt.Errorf("getting channel %d: %w", marked, mapResolveError(err))
	}

	chats := res.GetChats()
	if len(chats) == 0 {
		return domain.EntityInfo{}, fmt.Errorf("%w: channel %d", apperrors.ErrNotFound, marked)
	}

	return c.entityInfo(chats[0], true)
}

// entityInfo describes a chat and caches its access hash. member is false for invite previews.
func (c *Client) entityInfo(chat tg.ChatClass, member bool) (domain.EntityInfo, error) {
	switch ch := chat.(type) {
	case *tg.Channel:
		c.peers.put(ch.ID, ch.AccessHash)

		kind := domain.EntityChannel
		if ch.Megagroup {
			kind = domain.EntitySupergroup
		}

		return domain.EntityInfo{
			ID:         domain.MarkChannelID(ch.ID),
			Title:      ch.Title,
			Username:   ch.Username,
			Kind:       kind,
			Accessible: member && !ch.Left,
		}, nil
	case *tg.ChannelForbidden:
		return domain.EntityInfo{ID: domain.MarkChannelID(ch.ID), Title: ch.Title, Kind: domain.EntityChannel},
			fmt.Errorf("%w: %q", apperrors.ErrPrivateOrForbidden, ch.Title)
	case *tg.Chat:
		return domain.EntityInfo{ID: -ch.ID, Title: ch.Title, Kind: domain.EntityChat},
			fmt.Errorf("%w: %q is a basic group", apperrors.ErrNotAChannel, ch.Title)
	default:
		return domain.EntityInfo{}, fmt.Errorf("%w: %T", apperrors.ErrNotAChannel, chat)
	}
}

// mapResolveError classifies RPC errors into the resolution sentinels.
func mapResolveError(err error) error {
	rpcErr, ok := tgerr.As(err)
	if !ok {
		return err
	}

	switch rpcErr.Type {
	case "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID", "INVITE_HASH_EXPIRED", "INVITE_HASH_INVALID", "CHANNEL_INVALID", "PEER_ID_INVALID":
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, err)
	case "CHANNEL_PRIVATE", "CHAT_FORBIDDEN", "CHAT_ADMIN_REQUIRED", "CHANNELS_TOO_MUCH", "INVITE_REQUEST_SENT":
		return fmt.Errorf("%w: %w", apperrors.ErrPrivateOrForbidden, err)
	default:
		return err
	}
}
