package telegramclient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/classify"
)

const opDownload = "download"

// DownloadMedia stores the attachment of msg under dir with a unique name and returns the path.
func (c *Client) DownloadMedia(ctx context.Context, msg *domain.InboundMessage, dir string) (string, error) {
	media, _ := msg.Ref.(tg.MessageMediaClass)

	loc, err := fileLocation(media)
	if err != nil {
		return "", err
	}

	ext := classify.Classify(msg.Media).Extension
	path := filepath.Join(dir, fmt.Sprintf("%d_%d_%s%s", domain.UnmarkChannelID(msg.ChannelID), msg.ID, uuid.NewString(), ext))

	err = c.call(ctx, opDownload, func(ctx context.Context, api *tg.Client) error {
		_, err := downloader.NewDownloader().Download(api, loc).ToPath(ctx, path)

		return err
	})
	if err != nil {
		_ = os.Remove(path)

		return "", fmt.Errorf("%w: %w", apperrors.ErrDownload, err)
	}

	return path, nil
}

// fileLocation returns the download location of a photo (largest size) or document.
func fileLocation(media tg.MessageMediaClass) (tg.InputFileLocationClass, error) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil, fmt.Errorf("%w: empty photo", apperrors.ErrNoMedia)
		}

		size, ok := largestPhotoSize(photo)
		if !ok {
			return nil, fmt.Errorf("%w: photo without sizes", apperrors.ErrNoMedia)
		}

		return &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     size.kind,
		}, nil
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil, fmt.Errorf("%w: empty document", apperrors.ErrNoMedia)
		}

		return &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T", apperrors.ErrNoMedia, media)
	}
}
