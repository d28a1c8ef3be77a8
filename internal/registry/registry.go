// Package registry holds the relay configuration: source and destination channels, rewrite rules,
// flags and the content filter. Every mutation is persisted through a SettingsStore so separate
// relay and bot processes converge on reload.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/settings"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/filter"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/rewrite"
)

// SettingsStore persists JSON-encoded settings. GetSetting leaves target untouched when the key is
// absent.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string, target interface{}) error
	SaveSettingWithHistory(ctx context.Context, key string, value interface{}, changedBy int64) error
}

// HistoryStore is implemented by stores that record settings changes.
type HistoryStore interface {
	GetRecentSettingHistory(ctx context.Context, limit int) ([]domain.SettingHistory, error)
}

// Resolver resolves channel references through the chat transport.
type Resolver interface {
	ResolveEntity(ctx context.Context, ref Reference) (domain.EntityInfo, error)
	Join(ctx context.Context, ref Reference) error
}

// State is a snapshot of the relay configuration.
type State struct {
	Sources           []int64
	LegacyDestination int64
	Destinations      []int64
	Rules             map[string]string
	DestinationTag    string
	CleanMode         bool
	SyncDeletions     bool
	RepostingEnabled  bool
	Filter            filter.Config
}

func (s State) clone() State {
	out := s
	out.Sources = slices.Clone(s.Sources)
	out.Destinations = slices.Clone(s.Destinations)
	out.Filter.IncludeKeywords = slices.Clone(s.Filter.IncludeKeywords)
	out.Filter.ExcludeKeywords = slices.Clone(s.Filter.ExcludeKeywords)
	out.Filter.IncludeMediaTypes = slices.Clone(s.Filter.IncludeMediaTypes)
	out.Filter.ExcludeMediaTypes = slices.Clone(s.Filter.ExcludeMediaTypes)

	out.Rules = make(map[string]string, len(s.Rules))
	for k, v := range s.Rules {
		out.Rules[k] = v
	}

	return out
}

// Option configures a Registry.
type Option func(*Registry)

// WithResolver sets the resolver used by the *Ref mutators.
func WithResolver(r Resolver) Option {
	return func(reg *Registry) {
		reg.resolver = r
	}
}

// WithCollapseDoubledLabels enables the doubled text link label heuristic in RewriteOptions.
func WithCollapseDoubledLabels(enabled bool) Option {
	return func(reg *Registry) {
		reg.collapseDoubled = enabled
	}
}

// Registry is safe for concurrent use: the relay reads it per event while the admin bot mutates it.
type Registry struct {
	store           SettingsStore
	resolver        Resolver
	collapseDoubled bool
	logger          *zerolog.Logger

	mu       sync.RWMutex
	state    State
	rules    *rewrite.Rules
	defaults State
}

// New creates a registry seeded with defaults. Call Load to overlay persisted settings.
func New(store SettingsStore, defaults State, logger *zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		logger:   logger,
		defaults: defaults.clone(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.setState(defaults.clone())

	return r
}

func (r *Registry) setState(s State) {
	r.state = s
	r.rules = rewrite.NewRules(s.Rules)
}

// Load overlays persisted settings on the defaults. Keys missing from the store keep their default.
func (r *Registry) Load(ctx context.Context) error {
	next := r.defaults.clone()

	var (
		sources      *[]int64
		destinations *[]int64
		legacy       *int64
		rules        *map[string]string
		tag          *string
		clean        *bool
		syncDeletes  *bool
		reposting    *bool
		filterCfg    *filter.Config
	)

	targets := map[string]interface{}{
		settings.SettingSourceChannels:      &sources,
		settings.SettingDestinationChannels: &destinations,
		settings.SettingLegacyDestination:   &legacy,
		settings.SettingTagRules:            &rules,
		settings.SettingDestinationTag:      &tag,
		settings.SettingCleanMode:           &clean,
		settings.SettingSyncDeletions:       &syncDeletes,
		settings.SettingRepostingEnabled:    &reposting,
		settings.SettingContentFilter:       &filterCfg,
	}

	for _, key := range settings.Keys {
		if err := r.store.GetSetting(ctx, key, targets[key]); err != nil {
			return fmt.Errorf("loading setting %s: %w", key, err)
		}
	}

	assign(&next.Sources, sources)
	assign(&next.Destinations, destinations)
	assign(&next.LegacyDestination, legacy)
	assign(&next.Rules, rules)
	assign(&next.DestinationTag, tag)
	assign(&next.CleanMode, clean)
	assign(&next.SyncDeletions, syncDeletes)
	assign(&next.RepostingEnabled, reposting)
	assign(&next.Filter, filterCfg)

	r.mu.Lock()
	r.setState(next)
	r.mu.Unlock()

	return nil
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Reload is Load for the periodic reload task; failures are logged and the current state kept.
func (r *Registry) Reload(ctx context.Context) {
	if err := r.Load(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("registry reload failed")
	}
}

// Seed persists the defaults for every key the store does not hold yet.
func (r *Registry) Seed(ctx context.Context) error {
	values := stateValues(r.defaults)

	for _, key := range settings.Keys {
		var existing *interface{}

		if err := r.store.GetSetting(ctx, key, &existing); err != nil {
			return fmt.Errorf("checking setting %s: %w", key, err)
		}

		if existing != nil {
			continue
		}

		if err := r.store.SaveSettingWithHistory(ctx, key, values[key], 0); err != nil {
			return fmt.Errorf("seeding setting %s: %w", key, err)
		}
	}

	return nil
}

func stateValues(s State) map[string]interface{} {
	rules := s.Rules
	if rules == nil {
		rules = map[string]string{}
	}

	return map[string]interface{}{
		settings.SettingSourceChannels:      nonNil(s.Sources),
		settings.SettingDestinationChannels: nonNil(s.Destinations),
		settings.SettingLegacyDestination:   s.LegacyDestination,
		settings.SettingTagRules:            rules,
		settings.SettingDestinationTag:      s.DestinationTag,
		settings.SettingCleanMode:           s.CleanMode,
		settings.SettingSyncDeletions:       s.SyncDeletions,
		settings.SettingRepostingEnabled:    s.RepostingEnabled,
		settings.SettingContentFilter:       s.Filter,
	}
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}

	return ids
}

// Snapshot returns a copy of the current state.
func (r *Registry) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.clone()
}

// Sources returns the source channel ids.
func (r *Registry) Sources() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.state.Sources)
}

// IsSource reports whether id is a registered source channel.
func (r *Registry) IsSource(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Contains(r.state.Sources, id)
}

// Destinations returns the destination list, or the legacy destination as a one-element list when
// the list is empty.
func (r *Registry) Destinations() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.state.Destinations) > 0 {
		return slices.Clone(r.state.Destinations)
	}

	if r.state.LegacyDestination != 0 {
		return []int64{r.state.LegacyDestination}
	}

	return nil
}

func (r *Registry) LegacyDestination() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.LegacyDestination
}

// Rules returns a copy of the rule table.
func (r *Registry) Rules() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.clone().Rules
}

func (r *Registry) FilterConfig() filter.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.clone().Filter
}

func (r *Registry) RepostingEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.RepostingEnabled
}

func (r *Registry) SyncDeletions() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.SyncDeletions
}

func (r *Registry) CleanMode() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.CleanMode
}

func (r *Registry) DestinationTag() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.DestinationTag
}

// RewriteOptions returns the rewrite engine options for the current state.
func (r *Registry) RewriteOptions() rewrite.Options {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return rewrite.Options{
		Rules:                 r.rules,
		DestinationTag:        r.state.DestinationTag,
		CleanMode:             r.state.CleanMode,
		CollapseDoubledLabels: r.collapseDoubled,
	}
}

// History returns recent settings changes when the store records them.
func (r *Registry) History(ctx context.Context, limit int) ([]domain.SettingHistory, error) {
	hs, ok := r.store.(HistoryStore)
	if !ok {
		return nil, apperrors.ErrStoreUnsupported
	}

	entries, err := hs.GetRecentSettingHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("reading settings history: %w", err)
	}

	return entries, nil
}

// update applies fn to a copy of the state, persists key and publishes the copy. fn may reject the
// change by returning an error.
func (r *Registry) update(ctx context.Context, key string, changedBy int64, fn func(s *State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.clone()
	if err := fn(&next); err != nil {
		return err
	}

	value := stateValues(next)[key]
	if err := r.store.SaveSettingWithHistory(ctx, key, value, changedBy); err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}

	r.setState(next)

	r.logger.Info().Str("key", key).Int64("changed_by", changedBy).Msg("relay setting changed")

	return nil
}

// isDestination reports whether id is in the destination list or is the legacy destination.
func (s *State) isDestination(id int64) bool {
	return id != 0 && (slices.Contains(s.Destinations, id) || s.LegacyDestination == id)
}

func (r *Registry) AddSource(ctx context.Context, id int64, changedBy int64) error {
	return r.update(ctx, settings.SettingSourceChannels, changedBy, func(s *State) error {
		if s.isDestination(id) {
			return fmt.Errorf("%w: channel %d is already a destination", apperrors.ErrInvalidInput, id)
		}

		return addID(&s.Sources, id)
	})
}

func (r *Registry) RemoveSource(ctx context.Context, id int64, changedBy int64) error {
	return r.update(ctx, settings.SettingSourceChannels, changedBy, func(s *State) error {
		return removeID(&s.Sources, id)
	})
}

func (r *Registry) AddDestination(ctx context.Context, id int64, changedBy int64) error {
	return r.update(ctx, settings.SettingDestinationChannels, changedBy, func(s *State) error {
		if slices.Contains(s.Sources, id) {
			return fmt.Errorf("%w: channel %d is already a source", apperrors.ErrInvalidInput, id)
		}

		return addID(&s.Destinations, id)
	})
}

func (r *Registry) RemoveDestination(ctx context.Context, id int64, changedBy int64) error {
	return r.update(ctx, settings.SettingDestinationChannels, changedBy, func(s *State) error {
		return removeID(&s.Destinations, id)
	})
}

// SetLegacyDestination sets the single destination used while the destination list is empty. Zero
// clears it.
func (r *Registry) SetLegacyDestination(ctx context.Context, id int64, changedBy int64) error {
	return r.update(ctx, settings.SettingLegacyDestination, changedBy, func(s *State) error {
		if id != 0 && slices.Contains(s.Sources, id) {
			return fmt.Errorf("%w: channel %d is already a source", apperrors.ErrInvalidInput, id)
		}

		s.LegacyDestination = id

		return nil
	})
}

// SetRule adds or replaces a rewrite rule. An empty value deletes matched references.
func (r *Registry) SetRule(ctx context.Context, key, value string, changedBy int64) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty rule key", apperrors.ErrInvalidInput)
	}

	return r.update(ctx, settings.SettingTagRules, changedBy, func(s *State) error {
		s.Rules[key] = strings.TrimSpace(value)

		return nil
	})
}

func (r *Registry) RemoveRule(ctx context.Context, key string, changedBy int64) error {
	key = strings.TrimSpace(key)

	return r.update(ctx, settings.SettingTagRules, changedBy, func(s *State) error {
		if _, ok := s.Rules[key]; !ok {
			return fmt.Errorf("rule %q: %w", key, apperrors.ErrNotRegistered)
		}

		delete(s.Rules, key)

		return nil
	})
}

func (r *Registry) SetDestinationTag(ctx context.Context, tag string, changedBy int64) error {
	tag = strings.TrimSpace(tag)
	if tag != "" && rewrite.CanonicalUsername(tag) == "" {
		if _, err := NormalizeReference(tag); err != nil {
			return fmt.Errorf("%w: destination tag %q", apperrors.ErrInvalidInput, tag)
		}
	}

	return r.update(ctx, settings.SettingDestinationTag, changedBy, func(s *State) error {
		s.DestinationTag = tag

		return nil
	})
}

func (r *Registry) SetCleanMode(ctx context.Context, enabled bool, changedBy int64) error {
	return r.update(ctx, settings.SettingCleanMode, changedBy, func(s *State) error {
		s.CleanMode = enabled

		return nil
	})
}

func (r *Registry) SetSyncDeletions(ctx context.Context, enabled bool, changedBy int64) error {
	return r.update(ctx, settings.SettingSyncDeletions, changedBy, func(s *State) error {
		s.SyncDeletions = enabled

		return nil
	})
}

func (r *Registry) SetRepostingEnabled(ctx context.Context, enabled bool, changedBy int64) error {
	return r.update(ctx, settings.SettingRepostingEnabled, changedBy, func(s *State) error {
		s.RepostingEnabled = enabled

		return nil
	})
}

// SetFilterConfig replaces the content filter. Unknown media types are rejected.
func (r *Registry) SetFilterConfig(ctx context.Context, cfg filter.Config, changedBy int64) error {
	for _, name := range slices.Concat(cfg.IncludeMediaTypes, cfg.ExcludeMediaTypes) {
		if _, ok := filter.ParseMediaKind(name); !ok {
			return fmt.Errorf("%w: unknown media type %q", apperrors.ErrInvalidInput, name)
		}
	}

	return r.update(ctx, settings.SettingContentFilter, changedBy, func(s *State) error {
		s.Filter = cfg

		return nil
	})
}

// Resolve normalizes and resolves a channel reference. Numeric ids resolve without the transport
// when no resolver is configured.
func (r *Registry) Resolve(ctx context.Context, raw string) (domain.EntityInfo, Reference, error) {
	ref, err := NormalizeReference(raw)
	if err != nil {
		return domain.EntityInfo{}, ref, err
	}

	if r.resolver == nil {
		if ref.ID != 0 {
			return domain.EntityInfo{ID: ref.ID, Kind: domain.EntityChannel}, ref, nil
		}

		return domain.EntityInfo{}, ref, fmt.Errorf("%w: %s: no resolver", apperrors.ErrEntityResolution, ref)
	}

	info, err := r.resolver.ResolveEntity(ctx, ref)
	if err != nil {
		if errors.Is(err, apperrors.ErrEntityResolution) {
			return domain.EntityInfo{}, ref, err
		}

		return domain.EntityInfo{}, ref, fmt.Errorf("%w: %s: %w", apperrors.ErrEntityResolution, ref, err)
	}

	return info, ref, nil
}

// AddSourceRef resolves raw, joins the channel best-effort and registers it as a source.
func (r *Registry) AddSourceRef(ctx context.Context, raw string, changedBy int64) (domain.EntityInfo, error) {
	info, ref, err := r.Resolve(ctx, raw)
	if err != nil {
		return info, err
	}

	if r.resolver != nil && !info.Accessible {
		if err := r.resolver.Join(ctx, ref); err != nil {
			r.logger.Warn().Err(err).Str("ref", ref.String()).Msg("joining source channel failed")
		}
	}

	return info, r.AddSource(ctx, info.ID, changedBy)
}

// AddDestinationRef resolves raw and registers it as a destination.
func (r *Registry) AddDestinationRef(ctx context.Context, raw string, changedBy int64) (domain.EntityInfo, error) {
	info, _, err := r.Resolve(ctx, raw)
	if err != nil {
		return info, err
	}

	return info, r.AddDestination(ctx, info.ID, changedBy)
}

func addID(ids *[]int64, id int64) error {
	if id == 0 {
		return fmt.Errorf("%w: zero channel id", apperrors.ErrInvalidInput)
	}

	if slices.Contains(*ids, id) {
		return fmt.Errorf("channel %d: %w", id, apperrors.ErrAlreadyExists)
	}

	*ids = append(*ids, id)

	return nil
}

func removeID(ids *[]int64, id int64) error {
	i := slices.Index(*ids, id)
	if i < 0 {
		return fmt.Errorf("channel %d: %w", id, apperrors.ErrNotRegistered)
	}

	*ids = slices.Delete(*ids, i, i+1)

	return nil
}

// SortedRuleKeys returns rule keys in display order.
func SortedRuleKeys(rules map[string]string) []string {
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
