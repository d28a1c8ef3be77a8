package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleHelp(_ context.Context, msg *tgbotapi.Message) {
	switch strings.ToLower(strings.TrimSpace(msg.CommandArguments())) {
	case CmdFilter:
		b.reply(msg, helpFilterMessage())
	case CmdSource, CmdDest, "channels":
		b.reply(msg, helpChannelsMessage())
	default:
		b.reply(msg, helpSummaryMessage())
	}
}

// helpSummaryMessage returns the main help summary message.
func helpSummaryMessage() string {
	return "\U0001F44B <b>Telegram Relay Bot</b>\n\n" +
		"Relay:\n" +
		"• <code>/status</code> - Current settings\n" +
		"• <code>/start_relay</code> / <code>/stop_relay</code> - Resume or pause reposting\n" +
		"• <code>/sync_deletions &lt;on|off&gt;</code> - Mirror source deletions\n\n" +
		"Channels:\n" +
		"• <code>/source add|remove|list</code>\n" +
		"• <code>/dest add|remove|list|legacy</code>\n\n" +
		"Rewriting:\n" +
		"• <code>/rule set|remove|list</code> - Channel reference rules\n" +
		"• <code>/tag &lt;@name|off&gt;</code> - Tag for unmatched references\n" +
		"• <code>/clean &lt;on|off&gt;</code> - Strip unmatched references\n\n" +
		"• <code>/filter</code> - Content filter\n" +
		"• <code>/history [limit]</code> - Recent setting changes\n\n" +
		"More: <code>/help &lt;channels|filter&gt;</code>"
}

// helpChannelsMessage returns the help message for channel commands.
func helpChannelsMessage() string {
	return "\U0001F4CB <b>Channel Management</b>\n" +
		"References: <code>-100…</code> id, <code>@name</code>, <code>t.me/name</code>, <code>t.me/+hash</code>, <code>t.me/c/&lt;id&gt;</code>\n" +
		"• <code>/source add &lt;ref&gt;</code> - Joins the channel if needed\n" +
		"• <code>/source remove &lt;ref&gt;</code>\n" +
		"• <code>/source list</code>\n" +
		"• <code>/dest add &lt;ref&gt;</code>\n" +
		"• <code>/dest remove &lt;ref&gt;</code>\n" +
		"• <code>/dest legacy &lt;ref|0&gt;</code> - Single destination used while the list is empty\n" +
		"• <code>/dest list</code>"
}

// helpFilterMessage returns the help message for filter commands.
func helpFilterMessage() string {
	return "\U0001F50D <b>Filter</b>\n" +
		"• <code>/filter show</code>\n" +
		"• <code>/filter &lt;on|off&gt;</code>\n" +
		"• <code>/filter include &lt;kw1, kw2&gt;</code> - Require one keyword\n" +
		"• <code>/filter exclude &lt;kw1, kw2&gt;</code> - Reject on any keyword\n" +
		"• <code>/filter media_include &lt;photo, video, text…&gt;</code>\n" +
		"• <code>/filter media_exclude &lt;sticker, voice…&gt;</code>\n" +
		"• <code>/filter clear</code>\n" +
		"An empty list argument clears that list."
}
