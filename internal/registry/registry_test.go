package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/settings"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/filter"
)

type memoryStore struct {
	values    map[string][]byte
	history   []domain.SettingHistory
	failSaves bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string][]byte{}}
}

func (m *memoryStore) GetSetting(_ context.Context, key string, target interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return nil
	}

	return json.Unmarshal(raw, target)
}

func (m *memoryStore) SaveSettingWithHistory(_ context.Context, key string, value interface{}, changedBy int64) error {
	if m.failSaves {
		return errors.New("store down")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if changedBy != 0 {
		m.history = append(m.history, domain.SettingHistory{
			Key:       key,
			OldValue:  string(m.values[key]),
			NewValue:  string(raw),
			ChangedBy: changedBy,
		})
	}

	m.values[key] = raw

	return nil
}

type historyStore struct {
	*memoryStore
}

func (h historyStore) GetRecentSettingHistory(_ context.Context, limit int) ([]domain.SettingHistory, error) {
	if len(h.history) > limit {
		return h.history[len(h.history)-limit:], nil
	}

	return h.history, nil
}

type fakeResolver struct {
	entities map[string]domain.EntityInfo
	joined   []Reference
	joinErr  error
}

func (f *fakeResolver) ResolveEntity(_ context.Context, ref Reference) (domain.EntityInfo, error) {
	info, ok := f.entities[ref.String()]
	if !ok {
		return domain.EntityInfo{}, apperrors.ErrNotFound
	}

	return info, nil
}

func (f *fakeResolver) Join(_ context.Context, ref Reference) error {
	f.joined = append(f.joined, ref)

	return f.joinErr
}

func newTestRegistry(t *testing.T, store SettingsStore, defaults State, opts ...Option) *Registry {
	t.Helper()

	logger := zerolog.Nop()

	return New(store, defaults, &logger, opts...)
}

func TestRegistry_Destinations(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  []int64
	}{
		{name: "empty", state: State{}, want: nil},
		{name: "legacy only", state: State{LegacyDestination: -1001}, want: []int64{-1001}},
		{name: "list wins", state: State{LegacyDestination: -1001, Destinations: []int64{-1002, -1003}}, want: []int64{-1002, -1003}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, newMemoryStore(), tt.state)
			require.Equal(t, tt.want, r.Destinations())
		})
	}
}

func TestRegistry_LoadOverlaysDefaults(t *testing.T) {
	store := newMemoryStore()
	store.values[settings.SettingSourceChannels] = []byte(`[-1005]`)
	store.values[settings.SettingCleanMode] = []byte(`true`)
	store.values[settings.SettingTagRules] = []byte(`{"@old_name":"@new_name"}`)

	defaults := State{
		Sources:           []int64{-1001},
		LegacyDestination: -1009,
		RepostingEnabled:  true,
		SyncDeletions:     true,
	}

	r := newTestRegistry(t, store, defaults)
	require.NoError(t, r.Load(context.Background()))

	require.Equal(t, []int64{-1005}, r.Sources())
	require.True(t, r.IsSource(-1005))
	require.False(t, r.IsSource(-1001))
	require.True(t, r.CleanMode())
	require.True(t, r.RepostingEnabled())
	require.Equal(t, int64(-1009), r.LegacyDestination())

	opts := r.RewriteOptions()
	v, ok := opts.Rules.Lookup("t.me/old_name", "old_name")
	require.True(t, ok)
	require.Equal(t, "@new_name", v)
	require.True(t, opts.CleanMode)
}

func TestRegistry_SeedPersistsMissingKeys(t *testing.T) {
	store := newMemoryStore()
	store.values[settings.SettingRepostingEnabled] = []byte(`false`)

	r := newTestRegistry(t, store, State{Sources: []int64{-1001}, RepostingEnabled: true})
	require.NoError(t, r.Seed(context.Background()))
	require.NoError(t, r.Load(context.Background()))

	require.Len(t, store.values, len(settings.Keys))
	require.JSONEq(t, `[-1001]`, string(store.values[settings.SettingSourceChannels]))
	require.False(t, r.RepostingEnabled())
	require.Empty(t, store.history)
}

func TestRegistry_Mutations(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	r := newTestRegistry(t, store, State{})

	require.NoError(t, r.AddSource(ctx, -1001, 42))
	require.ErrorIs(t, r.AddSource(ctx, -1001, 42), apperrors.ErrAlreadyExists)
	require.ErrorIs(t, r.AddSource(ctx, 0, 42), apperrors.ErrInvalidInput)
	require.NoError(t, r.AddDestination(ctx, -1002, 42))
	require.NoError(t, r.AddDestination(ctx, -1003, 42))
	require.NoError(t, r.RemoveDestination(ctx, -1002, 42))
	require.ErrorIs(t, r.RemoveDestination(ctx, -1002, 42), apperrors.ErrNotRegistered)
	require.NoError(t, r.SetRule(ctx, "@old_name", "@new_name", 42))
	require.ErrorIs(t, r.SetRule(ctx, " ", "x", 42), apperrors.ErrInvalidInput)
	require.ErrorIs(t, r.RemoveRule(ctx, "@missing", 42), apperrors.ErrNotRegistered)
	require.NoError(t, r.SetDestinationTag(ctx, "@my_channel", 42))
	require.ErrorIs(t, r.SetDestinationTag(ctx, "not a tag!", 42), apperrors.ErrInvalidInput)
	require.NoError(t, r.SetSyncDeletions(ctx, true, 42))
	require.NoError(t, r.SetRepostingEnabled(ctx, true, 42))
	require.NoError(t, r.SetFilterConfig(ctx, filter.Config{Enabled: true, ExcludeMediaTypes: []string{"sticker", "text"}}, 42))
	require.ErrorIs(t, r.SetFilterConfig(ctx, filter.Config{IncludeMediaTypes: []string{"hologram"}}, 42), apperrors.ErrInvalidInput)

	snap := r.Snapshot()
	require.Equal(t, []int64{-1001}, snap.Sources)
	require.Equal(t, []int64{-1003}, snap.Destinations)
	require.Equal(t, map[string]string{"@old_name": "@new_name"}, snap.Rules)
	require.Equal(t, "@my_channel", snap.DestinationTag)
	require.True(t, snap.SyncDeletions)
	require.True(t, snap.Filter.Enabled)

	reloaded := newTestRegistry(t, store, State{})
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, snap, reloaded.Snapshot())

	require.NoError(t, r.RemoveRule(ctx, "@old_name", 42))
	require.Empty(t, r.Rules())
}

func TestRegistry_SourceAndDestinationAreDisjoint(t *testing.T) {
	tests := []struct {
		name     string
		defaults State
		apply    func(r *Registry) error
	}{
		{
			name:     "source already in destination list",
			defaults: State{Destinations: []int64{-1005}},
			apply:    func(r *Registry) error { return r.AddSource(context.Background(), -1005, 42) },
		},
		{
			name:     "source already legacy destination",
			defaults: State{LegacyDestination: -1005},
			apply:    func(r *Registry) error { return r.AddSource(context.Background(), -1005, 42) },
		},
		{
			name:     "destination already a source",
			defaults: State{Sources: []int64{-1005}},
			apply:    func(r *Registry) error { return r.AddDestination(context.Background(), -1005, 42) },
		},
		{
			name:     "legacy destination already a source",
			defaults: State{Sources: []int64{-1005}},
			apply:    func(r *Registry) error { return r.SetLegacyDestination(context.Background(), -1005, 42) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, newMemoryStore(), tt.defaults)
			before := r.Snapshot()

			require.ErrorIs(t, tt.apply(r), apperrors.ErrInvalidInput)
			require.Equal(t, before, r.Snapshot())
		})
	}

	t.Run("clearing legacy destination is allowed", func(t *testing.T) {
		r := newTestRegistry(t, newMemoryStore(), State{Sources: []int64{-1005}, LegacyDestination: -1006})

		require.NoError(t, r.SetLegacyDestination(context.Background(), 0, 42))
		require.Zero(t, r.Snapshot().LegacyDestination)
	})
}

func TestRegistry_FailedSaveKeepsState(t *testing.T) {
	store := newMemoryStore()
	r := newTestRegistry(t, store, State{Sources: []int64{-1001}})

	store.failSaves = true

	require.Error(t, r.AddSource(context.Background(), -1002, 1))
	require.Equal(t, []int64{-1001}, r.Sources())
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := newTestRegistry(t, newMemoryStore(), State{Sources: []int64{-1001}, Rules: map[string]string{"a_name": "b_name"}})

	snap := r.Snapshot()
	snap.Sources[0] = -1
	snap.Rules["x"] = "y"

	require.Equal(t, []int64{-1001}, r.Sources())
	require.Len(t, r.Rules(), 1)
}

func TestRegistry_History(t *testing.T) {
	ctx := context.Background()

	plain := newTestRegistry(t, newMemoryStore(), State{})
	_, err := plain.History(ctx, 10)
	require.ErrorIs(t, err, apperrors.ErrStoreUnsupported)

	hs := historyStore{newMemoryStore()}
	r := newTestRegistry(t, hs, State{})

	require.NoError(t, r.SetCleanMode(ctx, true, 7))
	require.NoError(t, r.SetCleanMode(ctx, false, 8))

	entries, err := r.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(8), entries[0].ChangedBy)
	require.Equal(t, "true", entries[0].OldValue)
	require.Equal(t, "false", entries[0].NewValue)
}

func TestRegistry_AddSourceRef(t *testing.T) {
	ctx := context.Background()
	resolver := &fakeResolver{
		entities: map[string]domain.EntityInfo{
			"@news_channel": {ID: -1007, Title: "News", Username: "news_channel", Kind: domain.EntityChannel},
		},
	}

	r := newTestRegistry(t, newMemoryStore(), State{}, WithResolver(resolver))

	info, err := r.AddSourceRef(ctx, "https://t.me/news_channel", 1)
	require.NoError(t, err)
	require.Equal(t, "News", info.Title)
	require.True(t, r.IsSource(-1007))
	require.Equal(t, []Reference{{Username: "news_channel"}}, resolver.joined)

	_, err = r.AddSourceRef(ctx, "@unknown_chan", 1)
	require.ErrorIs(t, err, apperrors.ErrEntityResolution)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.AddDestinationRef(ctx, "not a ref!", 1)
	require.ErrorIs(t, err, apperrors.ErrInvalidReference)
}

func TestRegistry_ResolveWithoutResolver(t *testing.T) {
	r := newTestRegistry(t, newMemoryStore(), State{})

	info, err := r.AddDestinationRef(context.Background(), "-1001234", 1)
	require.NoError(t, err)
	require.Equal(t, int64(-1001234), info.ID)
	require.Equal(t, []int64{-1001234}, r.Destinations())

	_, _, err = r.Resolve(context.Background(), "@some_channel")
	require.ErrorIs(t, err, apperrors.ErrEntityResolution)
}
