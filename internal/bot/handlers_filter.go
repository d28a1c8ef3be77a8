package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lueurxax/telegram-relay-bot/internal/platform/htmlutils"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/settings"
	"github.com/lueurxax/telegram-relay-bot/internal/relay/filter"
)

// Filter subcommands.
const (
	filterShow         = "show"
	filterClear        = "clear"
	filterInclude      = "include"
	filterExclude      = "exclude"
	filterMediaInclude = "media_include"
	filterMediaExclude = "media_exclude"
)

func (b *Bot) handleFilterNamespace(ctx context.Context, msg *tgbotapi.Message) {
	sub, rest := splitSubcommand(msg.CommandArguments())
	cfg := b.registry.Snapshot().Filter

	switch sub {
	case "", filterShow:
		b.reply(msg, formatFilter(cfg))

		return
	case ToggleOn:
		cfg.Enabled = true
	case ToggleOff:
		cfg.Enabled = false
	case filterClear:
		cfg = filter.Config{}
	case filterInclude:
		cfg.IncludeKeywords = parseList(rest)
	case filterExclude:
		cfg.ExcludeKeywords = parseList(rest)
	case filterMediaInclude:
		cfg.IncludeMediaTypes = lowerAll(parseList(rest))
	case filterMediaExclude:
		cfg.ExcludeMediaTypes = lowerAll(parseList(rest))
	default:
		b.reply(msg, helpFilterMessage())

		return
	}

	if err := b.registry.SetFilterConfig(ctx, cfg, msg.From.ID); err != nil {
		b.reply(msg, fmt.Sprintf(ErrSavingFmt, settings.SettingContentFilter, htmlutils.EscapeString(err.Error())))

		return
	}

	b.reply(msg, "✅ Filter updated.\n\n"+formatFilter(cfg))
}

func formatFilter(cfg filter.Config) string {
	var sb strings.Builder

	sb.WriteString("🔍 <b>Content Filter</b>\n")
	fmt.Fprintf(&sb, "Status: <code>%s</code>\n", statusLabel(cfg.Enabled))
	fmt.Fprintf(&sb, "Include keywords: %s\n", formatValues(cfg.IncludeKeywords))
	fmt.Fprintf(&sb, "Exclude keywords: %s\n", formatValues(cfg.ExcludeKeywords))
	fmt.Fprintf(&sb, "Include media: %s\n", formatValues(cfg.IncludeMediaTypes))
	fmt.Fprintf(&sb, "Exclude media: %s\n", formatValues(cfg.ExcludeMediaTypes))

	return sb.String()
}

func formatValues(values []string) string {
	if len(values) == 0 {
		return noneLabel
	}

	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "<code>" + htmlutils.EscapeString(v) + "</code>"
	}

	return strings.Join(quoted, ", ")
}

// parseList splits a comma-separated argument. An empty argument clears the list.
func parseList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}

	return out
}

func lowerAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToLower(v)
	}

	return values
}
