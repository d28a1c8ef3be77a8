package app

import (
	"fmt"
	"slices"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/config"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/settings"
	"github.com/lueurxax/telegram-relay-bot/internal/registry"
)

const (
	sourceKey       = settings.SettingSourceChannels
	destinationKey  = settings.SettingDestinationChannels
	roleSource      = "source"
	roleDestination = "destination"
)

// seedRefs holds seed references that only the transport can turn into channel ids.
type seedRefs struct {
	sources      []string
	destinations []string
}

func (p seedRefs) empty() bool {
	return len(p.sources) == 0 && len(p.destinations) == 0
}

// only keeps the roles whose stored list is being seeded in this run.
func (p seedRefs) only(sources, destinations bool) seedRefs {
	var out seedRefs

	if sources {
		out.sources = p.sources
	}

	if destinations {
		out.destinations = p.destinations
	}

	return out
}

func (p seedRefs) each(fn func(role, raw string)) {
	for _, raw := range p.sources {
		fn(roleSource, raw)
	}

	for _, raw := range p.destinations {
		fn(roleDestination, raw)
	}
}

// registryDefaults builds the registry seed from the environment and the optional rules file.
// Numeric channel references become ids; usernames and links are returned for later resolution.
func registryDefaults(cfg *config.Config) (registry.State, seedRefs, error) {
	var pending seedRefs

	rules, err := cfg.TagRules()
	if err != nil {
		return registry.State{}, pending, err
	}

	state := registry.State{
		Rules:            rules,
		DestinationTag:   cfg.Seed.DestinationTag,
		CleanMode:        cfg.Seed.CleanMode,
		SyncDeletions:    cfg.Seed.SyncDeletions,
		RepostingEnabled: cfg.Seed.RepostingEnabled,
		Filter:           cfg.ContentFilter(),
	}

	if cfg.Seed.DestinationChannel != 0 {
		state.LegacyDestination = domain.MarkChannelID(cfg.Seed.DestinationChannel)
	}

	if state.Sources, pending.sources, err = splitRefs(cfg.Seed.SourceChannels); err != nil {
		return registry.State{}, pending, fmt.Errorf("SOURCE_CHANNELS: %w", err)
	}

	if state.Destinations, pending.destinations, err = splitRefs(cfg.Seed.DestinationChannels); err != nil {
		return registry.State{}, pending, fmt.Errorf("DESTINATION_CHANNELS: %w", err)
	}

	if cfg.Seed.RulesFile != "" {
		rf, err := config.LoadRulesFile(cfg.Seed.RulesFile)
		if err != nil {
			return registry.State{}, pending, err
		}

		applyRulesFile(&state, rf)
	}

	return state, pending, nil
}

func splitRefs(raws []string) ([]int64, []string, error) {
	var (
		ids     []int64
		pending []string
	)

	for _, raw := range raws {
		if raw == "" {
			continue
		}

		ref, err := registry.NormalizeReference(raw)
		if err != nil {
			return nil, nil, err
		}

		switch {
		case ref.ID == 0:
			pending = append(pending, raw)
		case !slices.Contains(ids, ref.ID):
			ids = append(ids, ref.ID)
		}
	}

	return ids, pending, nil
}

// applyRulesFile overrides the sections present in the rules file.
func applyRulesFile(state *registry.State, rf *config.RulesFile) {
	if rf.Rules != nil {
		state.Rules = rf.Rules
	}

	if rf.DestinationTag != nil {
		state.DestinationTag = *rf.DestinationTag
	}

	if rf.CleanMode != nil {
		state.CleanMode = *rf.CleanMode
	}

	if rf.Filter != nil {
		state.Filter = *rf.Filter
	}
}
