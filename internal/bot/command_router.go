package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Command names.
const (
	CmdStart         = "start"
	CmdHelp          = "help"
	CmdStatus        = "status"
	CmdStartRelay    = "start_relay"
	CmdStopRelay     = "stop_relay"
	CmdSource        = "source"
	CmdDest          = "dest"
	CmdRule          = "rule"
	CmdTag           = "tag"
	CmdClean         = "clean"
	CmdSyncDeletions = "sync_deletions"
	CmdFilter        = "filter"
	CmdHistory       = "history"
)

// commandHandler is a function that handles a specific bot command.
type commandHandler func(ctx context.Context, msg *tgbotapi.Message)

// toggleSetter persists an on/off setting.
type toggleSetter func(ctx context.Context, enabled bool, changedBy int64) error

type toggle struct {
	label string
	set   toggleSetter
}

// commandRegistry holds the mapping of command names to their handlers.
type commandRegistry struct {
	bot            *Bot
	handlers       map[string]commandHandler
	toggleSettings map[string]toggle
}

// newCommandRegistry creates a new command registry for the bot.
func (b *Bot) newCommandRegistry() *commandRegistry {
	r := &commandRegistry{
		bot:            b,
		handlers:       make(map[string]commandHandler),
		toggleSettings: make(map[string]toggle),
	}

	r.handlers[CmdStart] = b.handleHelp
	r.handlers[CmdHelp] = b.handleHelp
	r.handlers[CmdStatus] = b.handleStatus
	r.handlers[CmdStartRelay] = func(ctx context.Context, msg *tgbotapi.Message) {
		b.handleRelaySwitch(ctx, msg, true)
	}
	r.handlers[CmdStopRelay] = func(ctx context.Context, msg *tgbotapi.Message) {
		b.handleRelaySwitch(ctx, msg, false)
	}
	r.handlers[CmdSource] = b.handleSourceNamespace
	r.handlers[CmdDest] = b.handleDestNamespace
	r.handlers[CmdRule] = b.handleRuleNamespace
	r.handlers[CmdTag] = b.handleTag
	r.handlers[CmdFilter] = b.handleFilterNamespace
	r.handlers[CmdHistory] = b.handleHistory

	r.toggleSettings[CmdClean] = toggle{label: "Clean mode", set: b.registry.SetCleanMode}
	r.toggleSettings[CmdSyncDeletions] = toggle{label: "Deletion sync", set: b.registry.SetSyncDeletions}

	return r
}

// route handles the command routing for a message.
func (r *commandRegistry) route(ctx context.Context, msg *tgbotapi.Message) bool {
	cmd := msg.Command()

	if t, ok := r.toggleSettings[cmd]; ok {
		r.bot.handleToggleSetting(ctx, msg, cmd, t)

		return true
	}

	if handler, ok := r.handlers[cmd]; ok {
		handler(ctx, msg)

		return true
	}

	return false
}
