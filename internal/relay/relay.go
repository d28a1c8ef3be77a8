// Package relay reposts source channel messages to destination channels and propagates edits and
// deletions through the mapping cache.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/observability"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/worker"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/filter"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/mapping"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/rewrite"
)

// Log field names.
const (
	logFieldState       = "state"
	logFieldChannel     = "channel_id"
	logFieldMessage     = "message_id"
	logFieldDestination = "destination"
	logFieldTier        = "tier"
	logFieldKind        = "kind"
	logFieldReason      = "reason"
)

// Pipeline states, logged on every transition.
const (
	stateReceived    = "RECEIVED"
	stateFilterCheck = "FILTER_CHECK"
	stateRejected    = "REJECTED"
	stateEditLookup  = "EDIT_LOOKUP"
	stateTransform   = "TRANSFORM"
	stateMediaSend   = "MEDIA_SEND"
	stateTextSend    = "TEXT_SEND"
	stateMapped      = "MAPPED"
	stateDone        = "DONE"
)

// Event outcomes for relay_events_total.
const (
	outcomeSent      = "sent"
	outcomePartial   = "partial"
	outcomeFailed    = "failed"
	outcomeDisabled  = "disabled"
	outcomeRejected  = "rejected"
	outcomeEmpty     = "empty"
	outcomeEdited    = "edited"
	outcomeIgnored   = "ignored"
	outcomeMiss      = "miss"
	outcomeDeleted   = "deleted"
	outcomeRecovered = "panic"
)

// TextPayload is an outgoing text message. When HTML is set it replaces Text and Spans.
type TextPayload struct {
	Text      string
	Spans     []domain.Span
	HTML      string
	NoPreview bool
}

// FilePayload is an outgoing media message.
type FilePayload struct {
	Path     string
	Caption  string
	Spans    []domain.Span
	Kind     domain.MediaKind
	MimeType string
	FileName string

	// Attributes carries the source attributes (duration, dimensions, performer) for a full send.
	Attributes *domain.MediaPayload

	// Plain asks the transport to infer the media type and drop attributes.
	Plain bool

	// ForceDocument delivers the file as a generic document.
	ForceDocument bool
}

// Transport is the chat transport used for delivery.
type Transport interface {
	DownloadMedia(ctx context.Context, msg *domain.InboundMessage, dir string) (string, error)
	SendText(ctx context.Context, dest int64, p TextPayload) (int, error)
	SendFile(ctx context.Context, dest int64, p FilePayload) (int, error)
	EditMessage(ctx context.Context, dest int64, msgID int, p TextPayload) error
	DeleteMessage(ctx context.Context, dest int64, msgID int) error
}

// Settings is the read side of the channel registry.
type Settings interface {
	IsSource(channelID int64) bool
	Destinations() []int64
	RepostingEnabled() bool
	SyncDeletions() bool
	FilterConfig() filter.Config
	RewriteOptions() rewrite.Options
}

// EventKind is the kind of an inbound transport event.
type EventKind int

const (
	EventNew EventKind = iota
	EventEdit
	EventDelete
)

func (k EventKind) String() string {
	switch k {
	case EventNew:
		return "new"
	case EventEdit:
		return "edit"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is one inbound transport event. Message is set for new and edit events; ChannelID and
// DeletedIDs for delete events.
type Event struct {
	Kind       EventKind
	Message    *domain.InboundMessage
	ChannelID  int64
	DeletedIDs []int
}

// Config holds orchestrator tunables.
type Config struct {
	MediaDir  string
	CacheSize int
}

// Orchestrator runs the repost state machine. Handlers must not run concurrently; Run drains events
// one at a time.
type Orchestrator struct {
	transport Transport
	settings  Settings
	cache     *mapping.Cache
	mediaDir  string
	logger    *zerolog.Logger
}

func New(cfg Config, transport Transport, settings Settings, logger *zerolog.Logger) *Orchestrator {
	cache := mapping.New(cfg.CacheSize, mapping.WithEvictHook(func(domain.SourceKey) {
		observability.MappingCacheEvictions.Inc()
	}))

	return &Orchestrator{
		transport: transport,
		settings:  settings,
		cache:     cache,
		mediaDir:  cfg.MediaDir,
		logger:    logger,
	}
}

// Cache exposes the mapping cache for status reporting.
func (o *Orchestrator) Cache() *mapping.Cache {
	return o.cache
}

// Run handles events until ctx is canceled or events is closed. The event in flight always
// completes before Run returns.
func (o *Orchestrator) Run(ctx context.Context, events <-chan Event) error {
	o.logger.Info().Msg("relay orchestrator started")

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("relay orchestrator: %w", ctx.Err())
		case ev, ok := <-events:
			if !ok {
				o.logger.Info().Msg("event stream closed")

				return nil
			}

			o.dispatch(context.WithoutCancel(ctx), ev)
		}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, ev Event) {
	defer worker.RecoverPanic(o.logger, "relay event "+ev.Kind.String())
	defer func(start time.Time) {
		observability.EventHandleDuration.WithLabelValues(ev.Kind.String()).Observe(time.Since(start).Seconds())
	}(time.Now())

	panicked := true
	defer func() {
		if panicked {
			observability.EventsTotal.WithLabelValues(ev.Kind.String(), outcomeRecovered).Inc()
		}
	}()

	switch ev.Kind {
	case EventNew:
		o.HandleNew(ctx, ev.Message)
	case EventEdit:
		o.HandleEdit(ctx, ev.Message)
	case EventDelete:
		o.HandleDelete(ctx, ev.ChannelID, ev.DeletedIDs)
	}

	panicked = false
}

// HandleNew reposts a new source message to every destination.
func (o *Orchestrator) HandleNew(ctx context.Context, msg *domain.InboundMessage) {
	if msg == nil {
		return
	}

	log := o.eventLogger(msg)
	kind := EventNew.String()

	d, ok := o.admit(msg, log, kind)
	if !ok {
		return
	}

	o.transform(d, msg, log)

	outcome := o.deliver(ctx, msg, d, o.settings.Destinations(), log)

	observability.EventsTotal.WithLabelValues(kind, outcome).Inc()
	o.transition(log, stateDone)
}

// HandleEdit propagates an edit. Text counterparts are edited in place, media counterparts are
// deleted and reposted, destinations without a counterpart receive a fresh post.
func (o *Orchestrator) HandleEdit(ctx context.Context, msg *domain.InboundMessage) {
	if msg == nil {
		return
	}

	log := o.eventLogger(msg)
	kind := EventEdit.String()

	d, ok := o.admit(msg, log, kind)
	if !ok {
		return
	}

	o.transition(log, stateEditLookup)

	destinations := o.settings.Destinations()

	entry, found := o.cache.Get(msg.Key())

	o.transform(d, msg, log)

	if !found {
		log.Info().Msg("edited message not in mapping cache, reposting as new")

		outcome := o.deliver(ctx, msg, d, destinations, log)
		observability.EventsTotal.WithLabelValues(kind, outcome).Inc()
		o.transition(log, stateDone)

		return
	}

	pending := o.updateInPlace(ctx, msg.Key(), d, entry, destinations, log)
	if len(pending) == 0 {
		observability.EventsTotal.WithLabelValues(kind, outcomeEdited).Inc()
		o.transition(log, stateDone)

		return
	}

	log.Debug().Ints64("pending", pending).Msg("edit falls through to fresh post")

	outcome := o.deliver(ctx, msg, d, pending, log)
	observability.EventsTotal.WithLabelValues(kind, outcome).Inc()
	o.transition(log, stateDone)
}

// updateInPlace applies an edit to the recorded counterparts and returns configured destinations
// that still need a fresh post.
func (o *Orchestrator) updateInPlace(ctx context.Context, key domain.SourceKey, d *domain.Descriptor, entry mapping.Destinations, destinations []int64, log zerolog.Logger) []int64 {
	configured := make(map[int64]bool, len(destinations))
	for _, dest := range destinations {
		configured[dest] = true
	}

	var pending []int64

	for _, dest := range destinations {
		if _, ok := entry[dest]; !ok {
			pending = append(pending, dest)
		}
	}

	for _, dest := range sortedDestinations(entry) {
		msgID := entry[dest]
		dlog := log.With().Int64(logFieldDestination, dest).Int("dest_message_id", msgID).Logger()

		if d.HasMedia {
			if err := o.transport.DeleteMessage(ctx, dest, msgID); err != nil {
				// The old copy stays, so keep its mapping and skip the repost.
				dlog.Error().Err(err).Msg("deleting media counterpart before repost failed, keeping it")

				continue
			}

			o.cache.Forget(key, dest)

			if configured[dest] {
				pending = append(pending, dest)
			}

			continue
		}

		if err := o.transport.EditMessage(ctx, dest, msgID, TextPayload{Text: d.Text, Spans: d.Spans}); err != nil {
			dlog.Warn().Err(err).Msg("in-place edit failed")

			if configured[dest] {
				pending = append(pending, dest)
			}

			continue
		}

		dlog.Debug().Msg("edited in place")
	}

	return pending
}

// HandleDelete removes destination counterparts of deleted source messages when deletion sync is on.
func (o *Orchestrator) HandleDelete(ctx context.Context, channelID int64, ids []int) {
	kind := EventDelete.String()

	if !o.settings.SyncDeletions() {
		observability.EventsTotal.WithLabelValues(kind, outcomeIgnored).Inc()

		return
	}

	for _, id := range ids {
		key := domain.SourceKey{ChannelID: channelID, MessageID: id}
		log := o.logger.With().Int64(logFieldChannel, channelID).Int(logFieldMessage, id).Logger()

		entry, ok := o.cache.Get(key)
		if !ok {
			log.Info().Msg("deleted message not in mapping cache, ignoring")
			observability.EventsTotal.WithLabelValues(kind, outcomeMiss).Inc()

			continue
		}

		for _, dest := range sortedDestinations(entry) {
			if err := o.transport.DeleteMessage(ctx, dest, entry[dest]); err != nil {
				log.Warn().Err(err).Int64(logFieldDestination, dest).Msg("deleting counterpart failed")

				continue
			}

			log.Debug().Int64(logFieldDestination, dest).Msg("counterpart deleted")
		}

		o.cache.Remove(key)
		observability.MappingCacheEntries.Set(float64(o.cache.Len()))
		observability.EventsTotal.WithLabelValues(kind, outcomeDeleted).Inc()
	}
}

// admit runs RECEIVED and FILTER_CHECK and returns the descriptor of an admitted message.
func (o *Orchestrator) admit(msg *domain.InboundMessage, log zerolog.Logger, kind string) (*domain.Descriptor, bool) {
	o.transition(log, stateReceived)

	if !o.settings.IsSource(msg.ChannelID) {
		log.Debug().Msg("message from unregistered channel ignored")
		observability.EventsTotal.WithLabelValues(kind, outcomeIgnored).Inc()

		return nil, false
	}

	if !o.settings.RepostingEnabled() {
		log.Info().Msg("reposting disabled, skipping")
		observability.EventsTotal.WithLabelValues(kind, outcomeDisabled).Inc()
		o.transition(log, stateDone)

		return nil, false
	}

	o.transition(log, stateFilterCheck)

	d := describe(msg)

	if decision := filter.New(o.settings.FilterConfig()).Accept(*d); !decision.Accepted {
		log.Info().Str(logFieldReason, decision.Reason).Msg("message rejected by filter")
		observability.FilterRejected.WithLabelValues(decision.Reason).Inc()
		observability.EventsTotal.WithLabelValues(kind, outcomeRejected).Inc()
		o.transition(log, stateRejected)
		o.transition(log, stateDone)

		return nil, false
	}

	return d, true
}

func (o *Orchestrator) transition(log zerolog.Logger, state string) {
	log.Debug().Str(logFieldState, state).Msg("relay state")
}

func (o *Orchestrator) eventLogger(msg *domain.InboundMessage) zerolog.Logger {
	return o.logger.With().
		Int64(logFieldChannel, msg.ChannelID).
		Int(logFieldMessage, msg.ID).
		Logger()
}
