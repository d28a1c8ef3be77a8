package relay

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/htmlutils"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/observability"
)

// tier is one rung of the per-destination fallback ladder.
type tier int

const (
	tierFull tier = iota + 1
	tierReduced
	tierDocument
)

var ladder = []tier{tierFull, tierReduced, tierDocument}

func (t tier) String() string {
	switch t {
	case tierFull:
		return "full"
	case tierReduced:
		return "reduced"
	case tierDocument:
		return "document"
	default:
		return "unknown"
	}
}

const (
	sendStatusOK    = "ok"
	sendStatusError = "error"
)

// sender performs one tier of a send and returns the sent message id.
type sender func(ctx context.Context, dest int64, t tier) (int, error)

// deliver stages media if needed, sends to each destination independently and records successes in
// the mapping cache. It returns the event outcome.
func (o *Orchestrator) deliver(ctx context.Context, msg *domain.InboundMessage, d *domain.Descriptor, destinations []int64, log zerolog.Logger) string {
	if len(destinations) == 0 {
		log.Warn().Msg("no destinations configured")

		return outcomeFailed
	}

	var send sender

	switch {
	case d.HasMedia:
		cleanup, err := o.stage(ctx, msg, d, log)
		defer cleanup()

		if err != nil {
			if strings.TrimSpace(d.Text) == "" {
				log.Error().Err(err).Msg("media staging failed, nothing to send")

				return outcomeFailed
			}

			log.Warn().Err(err).Msg("media staging failed, sending caption as text")

			o.transition(log, stateTextSend)
			send = o.textSender(d)
		} else {
			o.transition(log, stateMediaSend)
			send = o.mediaSender(d)
		}
	case strings.TrimSpace(d.Text) != "":
		o.transition(log, stateTextSend)
		send = o.textSender(d)
	default:
		log.Info().Str(logFieldKind, string(d.MediaKind)).Msg("nothing to relay")

		return outcomeEmpty
	}

	var sent int

	for _, dest := range destinations {
		dlog := log.With().Int64(logFieldDestination, dest).Logger()

		msgID, err := o.climb(ctx, dest, send, dlog)
		if err != nil {
			observability.DestinationFailures.Inc()
			dlog.Error().Err(err).Msg("destination failed")

			continue
		}

		o.cache.Put(d.Source, dest, msgID)
		sent++
	}

	o.transition(log, stateMapped)
	observability.MappingCacheEntries.Set(float64(o.cache.Len()))

	switch sent {
	case len(destinations):
		return outcomeSent
	case 0:
		return outcomeFailed
	default:
		return outcomePartial
	}
}

// climb walks the ladder for one destination until a tier succeeds.
func (o *Orchestrator) climb(ctx context.Context, dest int64, send sender, log zerolog.Logger) (int, error) {
	var lastErr error

	for _, t := range ladder {
		msgID, err := send(ctx, dest, t)
		if err == nil {
			observability.SendsTotal.WithLabelValues(t.String(), sendStatusOK).Inc()
			log.Debug().Str(logFieldTier, t.String()).Int("dest_message_id", msgID).Msg("sent")

			return msgID, nil
		}

		observability.SendsTotal.WithLabelValues(t.String(), sendStatusError).Inc()
		log.Warn().Err(err).Str(logFieldTier, t.String()).Msg("send tier failed")

		lastErr = err
	}

	return 0, fmt.Errorf("%w: %w", apperrors.ErrLadderExhausted, lastErr)
}

// mediaSender: full send with attributes and spans, then a plain caption letting the transport
// infer the type, then a forced document.
func (o *Orchestrator) mediaSender(d *domain.Descriptor) sender {
	media := d.Media

	return func(ctx context.Context, dest int64, t tier) (int, error) {
		p := FilePayload{
			Path:     media.StagedPath,
			Caption:  d.Text,
			Kind:     media.Kind,
			MimeType: media.MimeType,
			FileName: media.FileName,
		}

		switch t {
		case tierFull:
			p.Spans = d.Spans
			p.Attributes = media.Payload
		case tierReduced:
			p.Plain = true
		case tierDocument:
			p.Plain = true
			p.ForceDocument = true
		}

		msgID, err := o.transport.SendFile(ctx, dest, p)
		if err != nil {
			return 0, fmt.Errorf("%w: %s media: %w", apperrors.ErrSend, t, err)
		}

		return msgID, nil
	}
}

// textSender: full spans, then the HTML backup (or plain text when no link spans need it), then
// plain text without a link preview.
func (o *Orchestrator) textSender(d *domain.Descriptor) sender {
	return func(ctx context.Context, dest int64, t tier) (int, error) {
		var p TextPayload

		switch t {
		case tierFull:
			p = TextPayload{Text: d.Text, Spans: d.Spans}
		case tierReduced:
			if d.RequiresHTMLBackup {
				p = TextPayload{HTML: htmlutils.RenderHTML(d.Text, d.Spans)}
			} else {
				p = TextPayload{Text: d.Text}
			}
		case tierDocument:
			p = TextPayload{Text: d.Text, NoPreview: true}
		}

		msgID, err := o.transport.SendText(ctx, dest, p)
		if err != nil {
			return 0, fmt.Errorf("%w: %s text: %w", apperrors.ErrSend, t, err)
		}

		return msgID, nil
	}
}

func sortedDestinations(entry map[int64]int) []int64 {
	out := make([]int64, 0, len(entry))
	for dest := range entry {
		out = append(out, dest)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
