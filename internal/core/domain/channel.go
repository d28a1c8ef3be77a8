package domain

// channelIDOffset is the bot-API offset applied to channel ids (-100 prefix).
const channelIDOffset = 1_000_000_000_000

// EntityKind is the kind of a resolved peer.
type EntityKind string

const (
	EntityChannel    EntityKind = "channel"
	EntitySupergroup EntityKind = "supergroup"
	EntityChat       EntityKind = "chat"
	EntityUser       EntityKind = "user"
)

// EntityInfo describes a resolved channel reference.
type EntityInfo struct {
	ID         int64 // marked id
	Title      string
	Username   string
	Kind       EntityKind
	Accessible bool
}

// MarkChannelID converts a bare MTProto channel id into the marked -100... form.
func MarkChannelID(id int64) int64 {
	if id < 0 {
		return id
	}

	return -(channelIDOffset + id)
}

// UnmarkChannelID converts a marked channel id back into the bare MTProto id.
// Bare ids are returned unchanged.
func UnmarkChannelID(id int64) int64 {
	if id >= 0 {
		return id
	}

	if id <= -channelIDOffset {
		return -id - channelIDOffset
	}

	return -id
}
