package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/htmlutils"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/settings"
	"github.com/lueurxax/telegram-relay-bot/internal/registry"
)

// Status labels.
const (
	StatusEnabled  = "ENABLED"
	StatusDisabled = "DISABLED"
	ToggleOn       = "on"
	ToggleOff      = "off"
)

// DateTimeFormat is used for history timestamps.
const DateTimeFormat = "2006-01-02 15:04:05"

// Reply formats.
const (
	ErrGenericFmt   = "❌ Error: %s"
	ErrSavingFmt    = "❌ Error saving %s: %s"
	noneLabel       = "<i>(none)</i>"
	listItemFmt     = "• <code>%d</code>\n"
	subcmdAdd       = "add"
	subcmdRemove    = "remove"
	subcmdList      = "list"
	subcmdSet       = "set"
	subcmdLegacy    = "legacy"
	ruleDeleteValue = "-"
)

func (b *Bot) handleStatus(_ context.Context, msg *tgbotapi.Message) {
	b.reply(msg, b.formatStatus(b.registry.Snapshot()))
}

func (b *Bot) formatStatus(s registry.State) string {
	var sb strings.Builder

	sb.WriteString("📊 <b>Relay Status</b>\n\n")
	fmt.Fprintf(&sb, "Reposting: <code>%s</code>\n", statusLabel(s.RepostingEnabled))
	fmt.Fprintf(&sb, "Deletion sync: <code>%s</code>\n", statusLabel(s.SyncDeletions))
	fmt.Fprintf(&sb, "Clean mode: <code>%s</code>\n", statusLabel(s.CleanMode))
	fmt.Fprintf(&sb, "Filter: <code>%s</code>\n", statusLabel(s.Filter.Enabled))

	tag := noneLabel
	if s.DestinationTag != "" {
		tag = "<code>" + htmlutils.EscapeString(s.DestinationTag) + "</code>"
	}

	fmt.Fprintf(&sb, "Destination tag: %s\n", tag)
	fmt.Fprintf(&sb, "Rewrite rules: <code>%d</code>\n", len(s.Rules))
	fmt.Fprintf(&sb, "Sources: <code>%d</code>\n", len(s.Sources))

	dests := len(s.Destinations)
	if dests == 0 && s.LegacyDestination != 0 {
		fmt.Fprintf(&sb, "Destinations: <code>1</code> (legacy <code>%d</code>)\n", s.LegacyDestination)
	} else {
		fmt.Fprintf(&sb, "Destinations: <code>%d</code>\n", dests)
	}

	if b.cache != nil {
		fmt.Fprintf(&sb, "Tracked messages: <code>%d</code>\n", b.cache.Len())
	}

	return sb.String()
}

func (b *Bot) handleRelaySwitch(ctx context.Context, msg *tgbotapi.Message, enabled bool) {
	if err := b.registry.SetRepostingEnabled(ctx, enabled, msg.From.ID); err != nil {
		b.reply(msg, fmt.Sprintf(ErrSavingFmt, settings.SettingRepostingEnabled, htmlutils.EscapeString(err.Error())))

		return
	}

	if enabled {
		b.reply(msg, "▶️ Relay started.")

		return
	}

	b.reply(msg, "⏸ Relay stopped. Incoming messages are ignored until <code>/start_relay</code>.")
}

func (b *Bot) handleToggleSetting(ctx context.Context, msg *tgbotapi.Message, cmd string, t toggle) {
	args := strings.TrimSpace(msg.CommandArguments())

	if args != ToggleOn && args != ToggleOff {
		b.reply(msg, fmt.Sprintf("Usage: <code>/%s &lt;on|off&gt;</code>", htmlutils.EscapeString(cmd)))

		return
	}

	enabled := args == ToggleOn

	if err := t.set(ctx, enabled, msg.From.ID); err != nil {
		b.reply(msg, fmt.Sprintf(ErrSavingFmt, htmlutils.EscapeString(cmd), htmlutils.EscapeString(err.Error())))

		return
	}

	b.reply(msg, fmt.Sprintf("✅ <b>%s</b>: <code>%s</code>", t.label, statusLabel(enabled)))
}

func (b *Bot) handleSourceNamespace(ctx context.Context, msg *tgbotapi.Message) {
	sub, rest := splitSubcommand(msg.CommandArguments())

	switch sub {
	case subcmdAdd:
		b.handleChannelAdd(ctx, msg, rest, "source", b.registry.AddSourceRef)
	case subcmdRemove:
		b.handleChannelRemove(ctx, msg, rest, "source", b.registry.RemoveSource)
	case subcmdList, "":
		b.reply(msg, formatChannelList("📥 <b>Sources</b>", b.registry.Snapshot().Sources))
	default:
		b.reply(msg, "Usage: <code>/source add|remove &lt;id|@name|link&gt;</code> or <code>/source list</code>")
	}
}

func (b *Bot) handleDestNamespace(ctx context.Context, msg *tgbotapi.Message) {
	sub, rest := splitSubcommand(msg.CommandArguments())

	switch sub {
	case subcmdAdd:
		b.handleChannelAdd(ctx, msg, rest, "destination", b.registry.AddDestinationRef)
	case subcmdRemove:
		b.handleChannelRemove(ctx, msg, rest, "destination", b.registry.RemoveDestination)
	case subcmdLegacy:
		b.handleLegacyDestination(ctx, msg, rest)
	case subcmdList, "":
		s := b.registry.Snapshot()
		text := formatChannelList("📤 <b>Destinations</b>", s.Destinations)

		if s.LegacyDestination != 0 {
			text += fmt.Sprintf("\nLegacy destination: <code>%d</code>", s.LegacyDestination)
			if len(s.Destinations) > 0 {
				text += " (inactive while the list is non-empty)"
			}
		}

		b.reply(msg, text)
	default:
		b.reply(msg, "Usage: <code>/dest add|remove &lt;id|@name|link&gt;</code>, <code>/dest legacy &lt;id|0&gt;</code> or <code>/dest list</code>")
	}
}

type addRefFunc func(ctx context.Context, raw string, changedBy int64) (domain.EntityInfo, error)

type removeIDFunc func(ctx context.Context, id int64, changedBy int64) error

func (b *Bot) handleChannelAdd(ctx context.Context, msg *tgbotapi.Message, raw, role string, add addRefFunc) {
	if raw == "" {
		b.reply(msg, fmt.Sprintf("Usage: <code>/%s add &lt;id|@name|link&gt;</code>", msg.Command()))

		return
	}

	info, err := add(ctx, raw, msg.From.ID)
	if err != nil {
		b.reply(msg, formatChannelError(raw, err))

		return
	}

	b.reply(msg, fmt.Sprintf("✅ Added %s %s", role, formatEntity(info)))
}

func (b *Bot) handleChannelRemove(ctx context.Context, msg *tgbotapi.Message, raw, role string, remove removeIDFunc) {
	if raw == "" {
		b.reply(msg, fmt.Sprintf("Usage: <code>/%s remove &lt;id|@name|link&gt;</code>", msg.Command()))

		return
	}

	id, err := b.channelID(ctx, raw)
	if err != nil {
		b.reply(msg, formatChannelError(raw, err))

		return
	}

	if err := remove(ctx, id, msg.From.ID); err != nil {
		b.reply(msg, formatChannelError(raw, err))

		return
	}

	b.reply(msg, fmt.Sprintf("🗑 Removed %s <code>%d</code>", role, id))
}

func (b *Bot) handleLegacyDestination(ctx context.Context, msg *tgbotapi.Message, raw string) {
	if raw == "" {
		b.reply(msg, "Usage: <code>/dest legacy &lt;id|@name|link|0&gt;</code>")

		return
	}

	var id int64

	if raw != "0" {
		var err error

		if id, err = b.channelID(ctx, raw); err != nil {
			b.reply(msg, formatChannelError(raw, err))

			return
		}
	}

	if err := b.registry.SetLegacyDestination(ctx, id, msg.From.ID); err != nil {
		b.reply(msg, fmt.Sprintf(ErrSavingFmt, settings.SettingLegacyDestination, htmlutils.EscapeString(err.Error())))

		return
	}

	if id == 0 {
		b.reply(msg, "✅ Legacy destination cleared.")

		return
	}

	b.reply(msg, fmt.Sprintf("✅ Legacy destination set to <code>%d</code>", id))
}

// channelID resolves raw to a marked channel id; numeric references need no lookup.
func (b *Bot) channelID(ctx context.Context, raw string) (int64, error) {
	ref, err := registry.NormalizeReference(raw)
	if err != nil {
		return 0, err
	}

	if ref.ID != 0 {
		return ref.ID, nil
	}

	info, _, err := b.registry.Resolve(ctx, raw)
	if err != nil {
		return 0, err
	}

	return info.ID, nil
}

func (b *Bot) handleRuleNamespace(ctx context.Context, msg *tgbotapi.Message) {
	sub, rest := splitSubcommand(msg.CommandArguments())
	args := strings.Fields(rest)

	switch {
	case sub == subcmdSet && (len(args) == 1 || len(args) == 2):
		value := ""
		if len(args) == 2 && args[1] != ruleDeleteValue {
			value = args[1]
		}

		if err := b.registry.SetRule(ctx, args[0], value, msg.From.ID); err != nil {
			b.reply(msg, fmt.Sprintf(ErrSavingFmt, "rule", htmlutils.EscapeString(err.Error())))

			return
		}

		b.reply(msg, "✅ Rule saved: "+formatRule(args[0], value))
	case sub == subcmdRemove && len(args) == 1:
		if err := b.registry.RemoveRule(ctx, args[0], msg.From.ID); err != nil {
			b.reply(msg, fmt.Sprintf(ErrGenericFmt, htmlutils.EscapeString(err.Error())))

			return
		}

		b.reply(msg, fmt.Sprintf("🗑 Rule <code>%s</code> removed", htmlutils.EscapeString(args[0])))
	case sub == subcmdList || sub == "":
		b.reply(msg, formatRules(b.registry.Snapshot().Rules))
	default:
		b.reply(msg, "Usage:\n"+
			"<code>/rule set &lt;@old|link&gt; [@new|link|-]</code>\n"+
			"<code>/rule remove &lt;@old|link&gt;</code>\n"+
			"<code>/rule list</code>")
	}
}

func (b *Bot) handleTag(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())

	if arg == "" {
		tag := b.registry.Snapshot().DestinationTag
		if tag == "" {
			b.reply(msg, "Destination tag: "+noneLabel+"\nUsage: <code>/tag &lt;@name|off&gt;</code>")

			return
		}

		b.reply(msg, fmt.Sprintf("Destination tag: <code>%s</code>", htmlutils.EscapeString(tag)))

		return
	}

	if arg == ToggleOff {
		arg = ""
	}

	if err := b.registry.SetDestinationTag(ctx, arg, msg.From.ID); err != nil {
		b.reply(msg, fmt.Sprintf(ErrSavingFmt, settings.SettingDestinationTag, htmlutils.EscapeString(err.Error())))

		return
	}

	if arg == "" {
		b.reply(msg, "✅ Destination tag cleared.")

		return
	}

	b.reply(msg, fmt.Sprintf("✅ Destination tag set to <code>%s</code>", htmlutils.EscapeString(arg)))
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	limit := settings.DefaultHistoryLimit

	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			b.reply(msg, "Usage: <code>/history [limit]</code>")

			return
		}

		limit = n
	}

	history, err := b.registry.History(ctx, limit)

	switch {
	case errors.Is(err, apperrors.ErrStoreUnsupported):
		b.reply(msg, "📋 Settings history is only recorded with the postgres store.")

		return
	case err != nil:
		b.reply(msg, fmt.Sprintf("❌ Error fetching history: %s", htmlutils.EscapeString(err.Error())))

		return
	}

	b.reply(msg, formatHistory(history))
}

func formatHistory(history []domain.SettingHistory) string {
	if len(history) == 0 {
		return "📋 No setting history found."
	}

	var sb strings.Builder

	sb.WriteString("📋 <b>Recent Setting Changes:</b>\n\n")

	for _, h := range history {
		fmt.Fprintf(&sb, "• <b>%s</b> changed by <code>%d</code>\n", htmlutils.EscapeString(h.Key), h.ChangedBy)
		fmt.Fprintf(&sb, "  🕒 %s\n", h.ChangedAt.Format(DateTimeFormat))

		if h.NewValue == "" {
			sb.WriteString("  🗑️ <i>Deleted/Reset</i>\n\n")

			continue
		}

		oldVal := noneLabel
		if h.OldValue != "" {
			oldVal = "<code>" + htmlutils.EscapeString(h.OldValue) + "</code>"
		}

		fmt.Fprintf(&sb, "  📥 Old: %s\n", oldVal)
		fmt.Fprintf(&sb, "  📤 New: <code>%s</code>\n\n", htmlutils.EscapeString(h.NewValue))
	}

	return sb.String()
}

func formatChannelList(title string, ids []int64) string {
	if len(ids) == 0 {
		return title + "\n" + noneLabel
	}

	var sb strings.Builder

	sb.WriteString(title + "\n")

	for _, id := range ids {
		fmt.Fprintf(&sb, listItemFmt, id)
	}

	return sb.String()
}

func formatRules(rules map[string]string) string {
	if len(rules) == 0 {
		return "🔁 <b>Rewrite Rules</b>\n" + noneLabel
	}

	var sb strings.Builder

	sb.WriteString("🔁 <b>Rewrite Rules</b>\n")

	for _, key := range registry.SortedRuleKeys(rules) {
		sb.WriteString("• " + formatRule(key, rules[key]) + "\n")
	}

	return sb.String()
}

func formatRule(key, value string) string {
	if value == "" {
		return fmt.Sprintf("<code>%s</code> → <i>removed</i>", htmlutils.EscapeString(key))
	}

	return fmt.Sprintf("<code>%s</code> → <code>%s</code>", htmlutils.EscapeString(key), htmlutils.EscapeString(value))
}

func formatEntity(info domain.EntityInfo) string {
	name := info.Title
	if info.Username != "" {
		name = "@" + info.Username
	}

	if name == "" {
		return fmt.Sprintf("<code>%d</code>", info.ID)
	}

	return fmt.Sprintf("<b>%s</b> (<code>%d</code>)", htmlutils.EscapeString(name), info.ID)
}

func formatChannelError(raw string, err error) string {
	ref := htmlutils.EscapeString(raw)

	switch {
	case errors.Is(err, apperrors.ErrInvalidReference):
		return fmt.Sprintf("❌ <code>%s</code> is not a channel id, @name or t.me link.", ref)
	case errors.Is(err, apperrors.ErrAlreadyExists):
		return fmt.Sprintf("ℹ️ <code>%s</code> is already registered.", ref)
	case errors.Is(err, apperrors.ErrNotRegistered):
		return fmt.Sprintf("ℹ️ <code>%s</code> is not registered.", ref)
	case errors.Is(err, apperrors.ErrNotFound):
		return fmt.Sprintf("❌ Channel <code>%s</code> not found.", ref)
	case errors.Is(err, apperrors.ErrPrivateOrForbidden):
		return fmt.Sprintf("🔒 Channel <code>%s</code> is private or not accessible.", ref)
	case errors.Is(err, apperrors.ErrNotAChannel):
		return fmt.Sprintf("❌ <code>%s</code> is not a channel.", ref)
	default:
		return fmt.Sprintf(ErrGenericFmt, htmlutils.EscapeString(err.Error()))
	}
}

func splitSubcommand(args string) (string, string) {
	args = strings.TrimSpace(args)

	sub, rest, _ := strings.Cut(args, " ")

	return strings.ToLower(sub), strings.TrimSpace(rest)
}

func statusLabel(enabled bool) string {
	if enabled {
		return StatusEnabled
	}

	return StatusDisabled
}
