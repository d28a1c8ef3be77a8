package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

func textMsg(text string) domain.Descriptor {
	return domain.Descriptor{Text: text, MediaKind: domain.MediaNone}
}

func mediaMsg(kind domain.MediaKind, caption string) domain.Descriptor {
	return domain.Descriptor{Text: caption, HasMedia: true, MediaKind: kind}
}

func TestAccept(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		msg    domain.Descriptor
		accept bool
		reason string
	}{
		{
			name:   "disabled filter accepts everything",
			cfg:    Config{Enabled: false, ExcludeKeywords: []string{"spam"}},
			msg:    textMsg("spam"),
			accept: true,
		},
		{
			name:   "no constraints",
			cfg:    Config{Enabled: true},
			msg:    textMsg("anything"),
			accept: true,
		},
		{
			name:   "exclude wins over include",
			cfg:    Config{Enabled: true, IncludeKeywords: []string{"content"}, ExcludeKeywords: []string{"spam"}},
			msg:    textMsg("this is spam content"),
			reason: ReasonKeywordExcluded,
		},
		{
			name:   "exclude without include",
			cfg:    Config{Enabled: true, ExcludeKeywords: []string{"spam"}},
			msg:    textMsg("this is spam content"),
			reason: ReasonKeywordExcluded,
		},
		{
			name:   "exclude is case insensitive",
			cfg:    Config{Enabled: true, ExcludeKeywords: []string{"SPAM"}},
			msg:    textMsg("Spam here"),
			reason: ReasonKeywordExcluded,
		},
		{
			name:   "include matches",
			cfg:    Config{Enabled: true, IncludeKeywords: []string{"golang", "rust"}},
			msg:    textMsg("New GoLang release"),
			accept: true,
		},
		{
			name:   "include misses",
			cfg:    Config{Enabled: true, IncludeKeywords: []string{"golang"}},
			msg:    textMsg("weather today"),
			reason: ReasonKeywordMissing,
		},
		{
			name:   "include with no text rejects",
			cfg:    Config{Enabled: true, IncludeKeywords: []string{"golang"}},
			msg:    mediaMsg(domain.MediaPhoto, ""),
			reason: ReasonNoText,
		},
		{
			name:   "caption is searchable",
			cfg:    Config{Enabled: true, IncludeKeywords: []string{"golang"}},
			msg:    mediaMsg(domain.MediaVideo, "golang talk"),
			accept: true,
		},
		{
			name:   "media include list",
			cfg:    Config{Enabled: true, IncludeMediaTypes: []string{"photo", "video"}},
			msg:    mediaMsg(domain.MediaVoice, ""),
			reason: ReasonMediaNotIncluded,
		},
		{
			name:   "media exclude list",
			cfg:    Config{Enabled: true, ExcludeMediaTypes: []string{"sticker"}},
			msg:    mediaMsg(domain.MediaSticker, ""),
			reason: ReasonMediaExcluded,
		},
		{
			name:   "text alias matches text-only messages",
			cfg:    Config{Enabled: true, IncludeMediaTypes: []string{"Text"}},
			msg:    textMsg("hello"),
			accept: true,
		},
		{
			name:   "webpage preview kind",
			cfg:    Config{Enabled: true, ExcludeMediaTypes: []string{"webpage_preview"}},
			msg:    domain.Descriptor{Text: "https://example.com", MediaKind: domain.MediaWebPage, HasWebpagePreview: true},
			reason: ReasonMediaExcluded,
		},
		{
			name:   "blank keywords ignored",
			cfg:    Config{Enabled: true, IncludeKeywords: []string{" ", ""}},
			msg:    textMsg("hello"),
			accept: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.cfg).Accept(tt.msg)

			require.Equal(t, tt.accept, got.Accepted)
			require.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestAccept_NilFilter(t *testing.T) {
	var f *Filter

	require.True(t, f.Accept(textMsg("x")).Accepted)
}

func TestAccept_Monotonicity(t *testing.T) {
	messages := []domain.Descriptor{
		textMsg("golang weekly digest"),
		textMsg("rust news and spam"),
		textMsg("crypto giveaway"),
		textMsg("Ads: buy now"),
		mediaMsg(domain.MediaPhoto, "golang meetup photo"),
		mediaMsg(domain.MediaVideo, ""),
		textMsg(""),
	}

	base := Config{Enabled: true, IncludeKeywords: []string{"golang"}, ExcludeKeywords: []string{"giveaway"}}
	extraKeywords := []string{"spam", "rust", "buy", "photo", "crypto"}

	for _, kw := range extraKeywords {
		withExclude := base
		withExclude.ExcludeKeywords = append(append([]string(nil), base.ExcludeKeywords...), kw)

		withInclude := base
		withInclude.IncludeKeywords = append(append([]string(nil), base.IncludeKeywords...), kw)

		for _, msg := range messages {
			before := New(base).Accept(msg)

			if after := New(withExclude).Accept(msg); after.Accepted {
				require.True(t, before.Accepted, "exclude %q accepted %q", kw, msg.Text)
			}

			if after := New(withInclude).Accept(msg); !after.Accepted {
				require.False(t, before.Accepted, "include %q rejected %q", kw, msg.Text)
			}
		}
	}
}

func TestParseMediaKind(t *testing.T) {
	k, ok := ParseMediaKind(" GIF ")
	require.True(t, ok)
	require.Equal(t, domain.MediaGIF, k)

	k, ok = ParseMediaKind("text")
	require.True(t, ok)
	require.Equal(t, domain.MediaNone, k)

	_, ok = ParseMediaKind("hologram")
	require.False(t, ok)
}
