package relay

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/observability"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/classify"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/rewrite"
)

// describe builds the descriptor of an inbound message. Text and spans are the source values until
// transform rewrites them.
func describe(msg *domain.InboundMessage) *domain.Descriptor {
	cls := classify.Classify(msg.Media)

	d := &domain.Descriptor{
		Source:    msg.Key(),
		Text:      msg.Text,
		Spans:     msg.Spans,
		HasMedia:  cls.IsMedia,
		MediaKind: cls.Kind,
	}

	if cls.IsMedia {
		d.Media = &domain.MediaDescriptor{
			Kind:      cls.Kind,
			MimeType:  cls.MimeType,
			FileName:  cls.FileName,
			Extension: cls.Extension,
			Payload:   msg.Media,
		}
	}

	if cls.Kind == domain.MediaWebPage {
		d.HasWebpagePreview = true
		d.WebPage = msg.Media.WebPage
	}

	return d
}

// transform rewrites the body or caption with the current rewrite options.
func (o *Orchestrator) transform(d *domain.Descriptor, msg *domain.InboundMessage, log zerolog.Logger) {
	o.transition(log, stateTransform)

	res := rewrite.Rewrite(rewrite.Input{Text: msg.Text, Spans: msg.Spans}, o.settings.RewriteOptions())

	for _, err := range res.Errors {
		observability.RewriteErrors.Inc()
		log.Warn().Err(err).Msg("reference left unmodified")
	}

	if res.Changed {
		log.Debug().Str("text", res.Text).Msg("text rewritten")
	}

	d.Text = res.Text
	d.Spans = res.Spans
	d.RequiresHTMLBackup = hasTextURL(res.Spans)
}

// stage downloads the media of msg into the staging directory and returns a cleanup func that
// removes the staged file.
func (o *Orchestrator) stage(ctx context.Context, msg *domain.InboundMessage, d *domain.Descriptor, log zerolog.Logger) (func(), error) {
	noop := func() {}

	if !d.HasMedia || d.Media == nil {
		return noop, fmt.Errorf("%w: %s", apperrors.ErrNoMedia, d.MediaKind)
	}

	if o.mediaDir != "" {
		if err := os.MkdirAll(o.mediaDir, 0o750); err != nil {
			return noop, fmt.Errorf("%w: creating media dir: %w", apperrors.ErrDownload, err)
		}
	}

	path, err := o.transport.DownloadMedia(ctx, msg, o.mediaDir)
	if err != nil {
		if errors.Is(err, apperrors.ErrDownload) {
			return noop, err
		}

		return noop, fmt.Errorf("%w: %w", apperrors.ErrDownload, err)
	}

	d.Media.StagedPath = path

	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("removing staged media failed")
		}
	}

	if classify.IsGeneric(d.Media.Extension) {
		mime, ext, err := classify.DetectStaged(path)

		switch {
		case err != nil:
			log.Debug().Err(err).Msg("staged media type detection failed")
		case !classify.IsGeneric(ext):
			if d.Media.FileName == string(d.Media.Kind)+d.Media.Extension {
				d.Media.FileName = string(d.Media.Kind) + ext
			}

			d.Media.MimeType = mime
			d.Media.Extension = ext
		}
	}

	log.Debug().
		Str(logFieldKind, string(d.Media.Kind)).
		Str("path", path).
		Str("mime", d.Media.MimeType).
		Msg("media staged")

	return cleanup, nil
}

func hasTextURL(spans []domain.Span) bool {
	for _, sp := range spans {
		if sp.Kind == domain.SpanTextURL {
			return true
		}
	}

	return false
}
