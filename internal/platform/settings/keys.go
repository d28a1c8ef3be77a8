// Package settings names the persisted relay settings shared by the relay and bot processes.
package settings

const (
	SettingSourceChannels      = "source_channels"
	SettingDestinationChannels = "destination_channels"
	SettingLegacyDestination   = "destination_channel"
	SettingTagRules            = "tag_rules"
	SettingDestinationTag      = "destination_tag"
	SettingCleanMode           = "clean_mode"
	SettingSyncDeletions       = "sync_deletions"
	SettingRepostingEnabled    = "reposting_enabled"
	SettingContentFilter       = "content_filter"
)

// Keys lists every relay setting in load order.
var Keys = []string{
	SettingSourceChannels,
	SettingDestinationChannels,
	SettingLegacyDestination,
	SettingTagRules,
	SettingDestinationTag,
	SettingCleanMode,
	SettingSyncDeletions,
	SettingRepostingEnabled,
	SettingContentFilter,
}

// DefaultHistoryLimit is the number of changes /history shows.
const DefaultHistoryLimit = 20
