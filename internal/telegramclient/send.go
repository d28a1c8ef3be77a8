package telegramclient

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/relay"
)

const (
	opSendText  = "send_text"
	opSendMedia = "send_media"
	opUpload    = "upload"
	opEdit      = "edit"
	opDelete    = "delete"

	errMessageNotModified = "MESSAGE_NOT_MODIFIED"
)

func (c *Client) SendText(ctx context.Context, dest int64, p relay.TextPayload) (int, error) {
	peer, err := c.inputPeer(ctx, dest)
	if err != nil {
		return 0, err
	}

	var (
		upd      tg.UpdatesClass
		randomID int64
	)

	err = c.call(ctx, opSendText, func(ctx context.Context, api *tg.Client) error {
		var err error

		if p.HTML != "" {
			b := &message.NewSender(api).To(peer).Builder
			if p.NoPreview {
				b = b.NoWebpage()
			}

			upd, err = b.StyledText(ctx, html.String(nil, p.HTML))

			return err
		}

		if randomID, err = newRandomID(); err != nil {
			return err
		}

		upd, err = api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:      peer,
			Message:   p.Text,
			Entities:  entitiesFromSpans(p.Spans),
			NoWebpage: p.NoPreview,
			RandomID:  randomID,
		})

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sending text to %d: %w", dest, err)
	}

	return sentMessageID(upd, randomID)
}

func (c *Client) SendFile(ctx context.Context, dest int64, p relay.FilePayload) (int, error) {
	peer, err := c.inputPeer(ctx, dest)
	if err != nil {
		return 0, err
	}

	var file tg.InputFileClass

	err = c.call(ctx, opUpload, func(ctx context.Context, api *tg.Client) error {
		var err error

		file, err = uploader.NewUploader(api).FromPath(ctx, p.Path)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("uploading %s: %w", p.Path, err)
	}

	randomID, err := newRandomID()
	if err != nil {
		return 0, err
	}

	req := &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    inputMedia(file, p),
		Message:  p.Caption,
		RandomID: randomID,
	}

	if !p.Plain {
		req.Entities = entitiesFromSpans(p.Spans)
	}

	var upd tg.UpdatesClass

	err = c.call(ctx, opSendMedia, func(ctx context.Context, api *tg.Client) error {
		var err error

		upd, err = api.MessagesSendMedia(ctx, req)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sending %s to %d: %w", p.Kind, dest, err)
	}

	return sentMessageID(upd, randomID)
}

// EditMessage replaces the text of a sent message. An unchanged text counts as success.
func (c *Client) EditMessage(ctx context.Context, dest int64, msgID int, p relay.TextPayload) error {
	peer, err := c.inputPeer(ctx, dest)
	if err != nil {
		return err
	}

	err = c.call(ctx, opEdit, func(ctx context.Context, api *tg.Client) error {
		var err error

		if p.HTML != "" {
			_, err = message.NewSender(api).To(peer).Edit(msgID).StyledText(ctx, html.String(nil, p.HTML))
		} else {
			_, err = api.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
				Peer:      peer,
				ID:        msgID,
				Message:   p.Text,
				Entities:  entitiesFromSpans(p.Spans),
				NoWebpage: p.NoPreview,
			})
		}

		if tgerr.Is(err, errMessageNotModified) {
			return nil
		}

		return err
	})
	if err != nil {
		return fmt.Errorf("%w: message %d in %d: %w", apperrors.ErrEdit, msgID, dest, err)
	}

	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, dest int64, msgID int) error {
	channel, err := c.inputChannel(ctx, dest)
	if err != nil {
		return err
	}

	err = c.call(ctx, opDelete, func(ctx context.Context, api *tg.Client) error {
		_, err := api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: channel,
			ID:      []int{msgID},
		})

		return err
	})
	if err != nil {
		return fmt.Errorf("%w: message %d in %d: %w", apperrors.ErrDelete, msgID, dest, err)
	}

	return nil
}

// inputMedia builds the upload media for a tier. Photos go as photos unless forced to a document;
// everything else is a document whose attributes decide how clients render it.
func inputMedia(file tg.InputFileClass, p relay.FilePayload) tg.InputMediaClass {
	if p.Kind == domain.MediaPhoto && !p.ForceDocument {
		return &tg.InputMediaUploadedPhoto{File: file}
	}

	return &tg.InputMediaUploadedDocument{
		File:       file,
		MimeType:   p.MimeType,
		Attributes: documentAttributes(p),
		ForceFile:  p.ForceDocument,
	}
}

func documentAttributes(p relay.FilePayload) []tg.DocumentAttributeClass {
	attrs := []tg.DocumentAttributeClass{&tg.DocumentAttributeFilename{FileName: p.FileName}}

	if p.Plain || p.ForceDocument || p.Attributes == nil {
		return attrs
	}

	a := p.Attributes

	switch p.Kind {
	case domain.MediaVideo, domain.MediaRound, domain.MediaGIF:
		attrs = append(attrs, &tg.DocumentAttributeVideo{
			RoundMessage:      p.Kind == domain.MediaRound,
			SupportsStreaming: p.Kind == domain.MediaVideo,
			Duration:          a.Duration,
			W:                 a.Width,
			H:                 a.Height,
		})

		if p.Kind == domain.MediaGIF {
			attrs = append(attrs, &tg.DocumentAttributeAnimated{})
		}
	case domain.MediaVoice, domain.MediaAudio:
		attrs = append(attrs, &tg.DocumentAttributeAudio{
			Voice:     p.Kind == domain.MediaVoice,
			Duration:  int(a.Duration),
			Title:     a.Title,
			Performer: a.Performer,
		})
	case domain.MediaSticker:
		attrs = append(attrs, &tg.DocumentAttributeSticker{Stickerset: &tg.InputStickerSetEmpty{}})
	}

	return attrs
}

// sentMessageID finds the id of the message created by a send. A zero randomID accepts the first
// id found.
func sentMessageID(upd tg.UpdatesClass, randomID int64) (int, error) {
	switch u := upd.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID, nil
	case *tg.Updates:
		return idFromUpdates(u.Updates, randomID)
	case *tg.UpdatesCombined:
		return idFromUpdates(u.Updates, randomID)
	}

	return 0, fmt.Errorf("%w: %T", apperrors.ErrNoMessageID, upd)
}

func idFromUpdates(list []tg.UpdateClass, randomID int64) (int, error) {
	for _, upd := range list {
		if u, ok := upd.(*tg.UpdateMessageID); ok && (randomID == 0 || u.RandomID == randomID) {
			return u.ID, nil
		}
	}

	for _, upd := range list {
		switch u := upd.(type) {
		case *tg.UpdateNewChannelMessage:
			return u.Message.GetID(), nil
		case *tg.UpdateNewMessage:
			return u.Message.GetID(), nil
		}
	}

	return 0, apperrors.ErrNoMessageID
}

func newRandomID() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("generating random id: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(buf[:])), nil //nolint:gosec // random bits, sign is irrelevant
}
