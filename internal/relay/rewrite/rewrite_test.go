package rewrite

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

const oldToNew = "@newchan"

func slice16(text string, sp domain.Span) string {
	units := utf16.Encode([]rune(text))

	return string(utf16.Decode(units[sp.Offset:sp.End()]))
}

func TestRewrite(t *testing.T) {
	rules := NewRules(map[string]string{"@oldchan": oldToNew})

	tests := []struct {
		name      string
		text      string
		spans     []domain.Span
		opts      Options
		wantText  string
		wantSpans []domain.Span
	}{
		{
			name:     "mention by rule",
			text:     "Check @oldchan for more",
			opts:     Options{Rules: rules},
			wantText: "Check @newchan for more",
		},
		{
			name:      "mention span follows replacement",
			text:      "Check @oldchan for more",
			spans:     []domain.Span{{Offset: 6, Length: 8, Kind: domain.SpanMention}},
			opts:      Options{Rules: rules},
			wantText:  "Check @newchan for more",
			wantSpans: []domain.Span{{Offset: 6, Length: 8, Kind: domain.SpanMention}},
		},
		{
			name:     "markdown link becomes text url",
			text:     "[Click here](t.me/oldchan)",
			opts:     Options{Rules: rules},
			wantText: "Click here",
			wantSpans: []domain.Span{
				{Offset: 0, Length: 10, Kind: domain.SpanTextURL, URL: "t.me/newchan"},
			},
		},
		{
			name:     "markdown link with foreign url keeps target",
			text:     "[site](https://example.com) and @oldchan",
			opts:     Options{Rules: rules},
			wantText: "site and @newchan",
			wantSpans: []domain.Span{
				{Offset: 0, Length: 4, Kind: domain.SpanTextURL, URL: "https://example.com"},
			},
		},
		{
			name:     "destination tag replaces unknown mention",
			text:     "Join @other today",
			opts:     Options{DestinationTag: "@mine"},
			wantText: "Join @mine today",
		},
		{
			name:     "destination tag leaves itself alone",
			text:     "Join @Mine today",
			opts:     Options{DestinationTag: "@mine"},
			wantText: "Join @Mine today",
		},
		{
			name:      "clean mode deletes mention and one space",
			text:      "Check @oldchan for more",
			spans:     []domain.Span{{Offset: 19, Length: 4, Kind: domain.SpanBold}},
			opts:      Options{CleanMode: true},
			wantText:  "Check for more",
			wantSpans: []domain.Span{{Offset: 10, Length: 4, Kind: domain.SpanBold}},
		},
		{
			name:     "rule wins over clean mode",
			text:     "Check @oldchan for more",
			opts:     Options{Rules: rules, CleanMode: true},
			wantText: "Check @newchan for more",
		},
		{
			name:     "link keeps scheme path and query",
			text:     "See https://t.me/oldchan/42?single now",
			opts:     Options{Rules: rules},
			wantText: "See https://t.me/newchan/42?single now",
		},
		{
			name:     "rule keyed by link applies to mention",
			text:     "@oldchan",
			opts:     Options{Rules: NewRules(map[string]string{"t.me/oldchan": "https://t.me/newchan"})},
			wantText: "@newchan",
		},
		{
			name:     "rule keyed by mention applies to telegram.me link",
			text:     "telegram.me/oldchan",
			opts:     Options{Rules: rules},
			wantText: "telegram.me/newchan",
		},
		{
			name:     "trailing punctuation is not part of the link",
			text:     "Follow t.me/oldchan.",
			opts:     Options{Rules: rules},
			wantText: "Follow t.me/newchan.",
		},
		{
			name:     "invite link replaced by destination tag",
			text:     "Join t.me/+AbCdEf123 now",
			opts:     Options{DestinationTag: "@mine"},
			wantText: "Join t.me/mine now",
		},
		{
			name:     "invite rule matches across invite forms",
			text:     "t.me/+AAAA",
			opts:     Options{Rules: NewRules(map[string]string{"https://t.me/joinchat/AAAA": oldToNew})},
			wantText: "t.me/newchan",
		},
		{
			name:     "private post link is not tag substituted",
			text:     "post t.me/c/123/45",
			opts:     Options{DestinationTag: "@mine"},
			wantText: "post t.me/c/123/45",
		},
		{
			name:     "email is not a mention",
			text:     "mail me@oldchan.com",
			opts:     Options{Rules: rules, DestinationTag: "@mine"},
			wantText: "mail me@oldchan.com",
		},
		{
			name:     "lookalike domain is not a link",
			text:     "abt.me/oldchan",
			opts:     Options{Rules: rules},
			wantText: "abt.me/oldchan",
		},
		{
			name:      "code span is left alone",
			text:      "@oldchan",
			spans:     []domain.Span{{Offset: 0, Length: 8, Kind: domain.SpanCode}},
			opts:      Options{Rules: rules},
			wantText:  "@oldchan",
			wantSpans: []domain.Span{{Offset: 0, Length: 8, Kind: domain.SpanCode}},
		},
		{
			name:      "url span text is rewritten",
			text:      "Read t.me/oldchan",
			spans:     []domain.Span{{Offset: 5, Length: 12, Kind: domain.SpanURL}},
			opts:      Options{Rules: rules},
			wantText:  "Read t.me/newchan",
			wantSpans: []domain.Span{{Offset: 5, Length: 12, Kind: domain.SpanURL}},
		},
		{
			name:      "handle inside foreign url span is kept",
			text:      "watch https://youtube.com/@somecreator/videos",
			spans:     []domain.Span{{Offset: 6, Length: 39, Kind: domain.SpanURL}},
			opts:      Options{DestinationTag: "@mychan"},
			wantText:  "watch https://youtube.com/@somecreator/videos",
			wantSpans: []domain.Span{{Offset: 6, Length: 39, Kind: domain.SpanURL}},
		},
		{
			name:     "handle inside unmarked foreign url is kept",
			text:     "watch https://youtube.com/@somecreator/videos and @other",
			opts:     Options{DestinationTag: "@mychan"},
			wantText: "watch https://youtube.com/@somecreator/videos and @mychan",
		},
		{
			name:     "handle after schemeless host path is kept",
			text:     "see medium.com/@writer_one",
			opts:     Options{CleanMode: true},
			wantText: "see medium.com/@writer_one",
		},
		{
			name:     "text url in clean mode drops the link",
			text:     "Visit us",
			spans:    []domain.Span{{Offset: 0, Length: 8, Kind: domain.SpanTextURL, URL: "https://t.me/other"}},
			opts:     Options{CleanMode: true},
			wantText: "Visit us",
		},
		{
			name:      "utf16 offsets around emoji",
			text:      "😀 @oldchan 😀",
			spans:     []domain.Span{{Offset: 3, Length: 8, Kind: domain.SpanMention}},
			opts:      Options{Rules: NewRules(map[string]string{"@oldchan": "@newchan_long"})},
			wantText:  "😀 @newchan_long 😀",
			wantSpans: []domain.Span{{Offset: 3, Length: 13, Kind: domain.SpanMention}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rewrite(Input{Text: tt.text, Spans: tt.spans}, tt.opts)

			require.Equal(t, tt.wantText, got.Text)
			require.Empty(t, got.Errors)

			if len(tt.wantSpans) == 0 {
				require.Empty(t, got.Spans)
			} else {
				require.Equal(t, tt.wantSpans, got.Spans)
			}
		})
	}
}

func TestRewrite_LabelEqualToUsernameKeepsLabel(t *testing.T) {
	in := Input{
		Text:  "oldchan",
		Spans: []domain.Span{{Offset: 0, Length: 7, Kind: domain.SpanTextURL, URL: "https://t.me/oldchan"}},
	}

	got := Rewrite(in, Options{
		Rules:          NewRules(map[string]string{"@oldchan": oldToNew}),
		DestinationTag: "@mine",
	})

	require.Equal(t, "oldchan", got.Text)
	require.Equal(t, []domain.Span{
		{Offset: 0, Length: 7, Kind: domain.SpanTextURL, URL: "https://t.me/newchan"},
	}, got.Spans)
	require.True(t, got.Changed)
}

func TestRewrite_CollapseDoubledLabels(t *testing.T) {
	in := Input{
		Text:  "NewsNews",
		Spans: []domain.Span{{Offset: 0, Length: 8, Kind: domain.SpanTextURL, URL: "https://example.com"}},
	}

	off := Rewrite(in, Options{})
	require.Equal(t, "NewsNews", off.Text)
	require.False(t, off.Changed)

	on := Rewrite(in, Options{CollapseDoubledLabels: true})
	require.Equal(t, "News", on.Text)
	require.Equal(t, []domain.Span{
		{Offset: 0, Length: 4, Kind: domain.SpanTextURL, URL: "https://example.com"},
	}, on.Spans)
}

func TestRewrite_NoRulesIsIdentity(t *testing.T) {
	in := Input{
		Text: "Hello @someone, see t.me/somewhere and **bold**",
		Spans: []domain.Span{
			{Offset: 6, Length: 8, Kind: domain.SpanMention},
			{Offset: 39, Length: 8, Kind: domain.SpanBold},
		},
	}

	got := Rewrite(in, Options{})

	require.Equal(t, in.Text, got.Text)
	require.Equal(t, in.Spans, got.Spans)
	require.False(t, got.Changed)
}

// Each of N mentions is replaced by a name of a different length. Every mention span must slice
// exactly its replacement out of the new text, and the trailing bold span must still cover "end".
func TestRewrite_OffsetsAfterSequentialReplacements(t *testing.T) {
	for n := 0; n <= 5; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var sb strings.Builder

			table := map[string]string{}
			want := make([]string, 0, n)

			var spans []domain.Span

			sb.WriteString("🔥 start ")

			for k := 0; k < n; k++ {
				src := fmt.Sprintf("@source%d", k)

				dst := fmt.Sprintf("@dst%d", k)
				if k%2 == 1 {
					dst = fmt.Sprintf("@destination_channel_%d", k)
				}

				table[src] = dst
				want = append(want, dst)

				offset := utf16Len(sb.String())
				sb.WriteString(src)
				spans = append(spans, domain.Span{Offset: offset, Length: utf16Len(src), Kind: domain.SpanMention})
				sb.WriteString(" и ")
			}

			endOffset := utf16Len(sb.String())
			sb.WriteString("end")
			spans = append(spans, domain.Span{Offset: endOffset, Length: 3, Kind: domain.SpanBold})

			got := Rewrite(Input{Text: sb.String(), Spans: spans}, Options{Rules: NewRules(table)})

			require.Len(t, got.Spans, n+1)

			for k := 0; k < n; k++ {
				require.Equal(t, want[k], slice16(got.Text, got.Spans[k]))
			}

			require.Equal(t, "end", slice16(got.Text, got.Spans[n]))
		})
	}
}

func TestCanonicalUsername(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"@oldchan", "oldchan"},
		{"oldchan", "oldchan"},
		{"t.me/oldchan", "oldchan"},
		{"https://t.me/oldchan/12", "oldchan"},
		{"https://www.telegram.me/oldchan?x=1", "oldchan"},
		{"t.me/joinchat/AAAA", ""},
		{"t.me/+AAAA", ""},
		{"@abc", ""},
		{"not a tag", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CanonicalUsername(tt.input); got != tt.expected {
				t.Errorf("CanonicalUsername(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLexReferences(t *testing.T) {
	text := "@first t.me/second/1 t.me/+hash t.me/c/1/2 x@mail.com"

	tokens := LexReferences(text)

	kinds := make([]TokenKind, 0, len(tokens))
	for _, tok := range tokens {
		kinds = append(kinds, tok.Kind)
	}

	require.Equal(t, []TokenKind{TokenMention, TokenBareLink, TokenInviteLink, TokenOtherLink}, kinds)
	require.Equal(t, "first", tokens[0].Username)
	require.Equal(t, "second", tokens[1].Username)
	require.Equal(t, "/1", tokens[1].Suffix)
	require.Equal(t, "hash", tokens[2].Hash)
}

func TestLexReferences_HandlesInsideURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "scheme url", text: "https://youtube.com/@creator", want: nil},
		{name: "bare host path", text: "tiktok.com/@dancer_1 and @real_one", want: []string{"real_one"}},
		{name: "slash without host", text: "cats/@pets_channel", want: []string{"pets_channel"}},
		{name: "new line resets word", text: "https://example.com/\n@channel", want: []string{"channel"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string

			for _, tok := range LexReferences(tt.text) {
				if tok.Kind == TokenMention {
					got = append(got, tok.Username)
				}
			}

			require.Equal(t, tt.want, got)
		})
	}
}

// Many url spans, each holding a t.me link, must all be rewritten.
func TestRewrite_ManyURLSpans(t *testing.T) {
	const n = 300

	var (
		sb    strings.Builder
		spans []domain.Span
	)

	link := "t.me/oldchan"

	for k := 0; k < n; k++ {
		spans = append(spans, domain.Span{Offset: utf16Len(sb.String()), Length: len(link), Kind: domain.SpanURL})
		sb.WriteString(link)
		sb.WriteString(" @x_")
		sb.WriteString(fmt.Sprint(k % 10))
		sb.WriteString("abc ")
	}

	got := Rewrite(Input{Text: sb.String(), Spans: spans}, Options{Rules: NewRules(map[string]string{"@oldchan": oldToNew})})

	require.Equal(t, n, strings.Count(got.Text, "t.me/newchan"))
	require.NotContains(t, got.Text, "t.me/oldchan")
	require.Len(t, got.Spans, n)

	for _, sp := range got.Spans {
		require.Equal(t, "t.me/newchan", slice16(got.Text, sp))
	}
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func FuzzRewrite(f *testing.F) {
	f.Add("Check @oldchan for more", 6, 8)
	f.Add("[Click here](t.me/oldchan)", 0, 10)
	f.Add("😀 t.me/+abc @x_y_z https://telegram.me/oldchan/1?q", 3, 4)
	f.Add("[a](b)[c](d) @oldchan@oldchan", 1, 2)

	rules := NewRules(map[string]string{"@oldchan": oldToNew, "t.me/+abc": ""})

	f.Fuzz(func(t *testing.T, text string, offset, length int) {
		n := utf16Len(text)
		if offset < 0 || length <= 0 || offset+length > n {
			offset, length = 0, n
		}

		var spans []domain.Span
		if length > 0 {
			spans = []domain.Span{{Offset: offset, Length: length, Kind: domain.SpanBold}}
		}

		for _, clean := range []bool{false, true} {
			got := Rewrite(Input{Text: text, Spans: spans}, Options{Rules: rules, DestinationTag: "@mine", CleanMode: clean})

			total := utf16Len(got.Text)

			for _, sp := range got.Spans {
				if sp.Offset < 0 || sp.Length <= 0 || sp.End() > total {
					t.Fatalf("span %+v out of bounds for %q", sp, got.Text)
				}
			}
		}
	})
}
