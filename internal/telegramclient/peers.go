package telegramclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/gotd/td/tg"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
)

const dialogsPageSize = 100

// peerCache maps bare channel ids to access hashes learned from updates, resolution and dialogs.
type peerCache struct {
	mu     sync.RWMutex
	hashes map[int64]int64
}

func newPeerCache() *peerCache {
	return &peerCache{hashes: make(map[int64]int64)}
}

func (p *peerCache) put(id, accessHash int64) {
	p.mu.Lock()
	p.hashes[id] = accessHash
	p.mu.Unlock()
}

func (p *peerCache) get(id int64) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h, ok := p.hashes[id]

	return h, ok
}

func (p *peerCache) rememberChannels(channels map[int64]*tg.Channel) {
	for id, ch := range channels {
		if ch != nil && ch.AccessHash != 0 {
			p.put(id, ch.AccessHash)
		}
	}
}

func (p *peerCache) rememberChats(chats []tg.ChatClass) {
	for _, chat := range chats {
		if ch, ok := chat.(*tg.Channel); ok && ch.AccessHash != 0 {
			p.put(ch.ID, ch.AccessHash)
		}
	}
}

// inputChannel returns the input channel for a marked id, refreshing dialogs once on a cache miss.
func (c *Client) inputChannel(ctx context.Context, marked int64) (*tg.InputChannel, error) {
	id := domain.UnmarkChannelID(marked)

	if h, ok := c.peers.get(id); ok {
		return &tg.InputChannel{ChannelID: id, AccessHash: h}, nil
	}

	if err := c.refreshDialogs(ctx); err != nil {
		return nil, err
	}

	if h, ok := c.peers.get(id); ok {
		return &tg.InputChannel{ChannelID: id, AccessHash: h}, nil
	}

	return nil, fmt.Errorf("%w: channel %d: access hash unknown", apperrors.ErrNotFound, marked)
}

func (c *Client) inputPeer(ctx context.Context, marked int64) (*tg.InputPeerChannel, error) {
	ch, err := c.inputChannel(ctx, marked)
	if err != nil {
		return nil, err
	}

	return &tg.InputPeerChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash}, nil
}

// refreshDialogs loads the first page of dialogs into the peer cache.
func (c *Client) refreshDialogs(ctx context.Context) error {
	return c.call(ctx, "get_dialogs", func(ctx context.Context, api *tg.Client) error {
		res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
			OffsetPeer: &tg.InputPeerEmpty{},
			Limit:      dialogsPageSize,
		})
		if err != nil {
			return fmt.Errorf("getting dialogs: %w", err)
		}

		switch d := res.(type) {
		case *tg.MessagesDialogs:
			c.peers.rememberChats(d.Chats)
		case *tg.MessagesDialogsSlice:
			c.peers.rememberChats(d.Chats)
		}

		return nil
	})
}
