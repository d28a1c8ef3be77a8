// Package htmlutils provides text utilities for Telegram messages.
//
// The package handles:
//   - UTF-16 offset conversion (Telegram's native entity unit)
//   - Rendering text plus formatting spans as Telegram HTML
//   - Splitting long HTML replies into sendable parts
package htmlutils

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

// Index maps between byte offsets and UTF-16 offsets of a fixed string.
type Index struct {
	units []int // units[i] is the UTF-16 offset of byte i; len(s)+1 entries
	bytes []int // bytes[u] is the byte offset of UTF-16 unit u; len16+1 entries
}

// NewIndex builds an offset index for s.
func NewIndex(s string) *Index {
	idx := &Index{
		units: make([]int, len(s)+1),
		bytes: make([]int, 0, len(s)+1),
	}

	unit := 0

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		n := utf16.RuneLen(r)

		if n < 1 {
			n = 1
		}

		for b := 0; b < size; b++ {
			idx.units[i+b] = unit
		}

		for u := 0; u < n; u++ {
			idx.bytes = append(idx.bytes, i)
		}

		unit += n
		i += size
	}

	idx.units[len(s)] = unit
	idx.bytes = append(idx.bytes, len(s))

	return idx
}

// ToUTF16 converts a byte offset to a UTF-16 offset, clamping to the string bounds.
func (x *Index) ToUTF16(byteOff int) int {
	switch {
	case byteOff <= 0:
		return 0
	case byteOff >= len(x.units):
		return x.units[len(x.units)-1]
	default:
		return x.units[byteOff]
	}
}

// ToByte converts a UTF-16 offset to a byte offset, clamping to the string bounds.
// An offset inside a surrogate pair maps to the start of the rune.
func (x *Index) ToByte(unitOff int) int {
	switch {
	case unitOff <= 0:
		return 0
	case unitOff >= len(x.bytes):
		return x.bytes[len(x.bytes)-1]
	default:
		return x.bytes[unitOff]
	}
}

type tagEvent struct {
	pos   int // byte offset
	end   int
	order int
	span  domain.Span
}

// RenderHTML renders text and formatting spans (UTF-16 offsets) as Telegram HTML.
// Spans without an HTML form (mentions, bare urls, hashtags) are left to Telegram's auto-detection.
func RenderHTML(text string, spans []domain.Span) string {
	idx := NewIndex(text)

	events := make([]tagEvent, 0, len(spans))

	for i, sp := range spans {
		if _, ok := openTag(sp); !ok || sp.Length <= 0 {
			continue
		}

		start := idx.ToByte(sp.Offset)
		end := idx.ToByte(sp.End())

		if end <= start {
			continue
		}

		events = append(events, tagEvent{pos: start, end: end, order: i, span: sp})
	}

	// Outer spans open first: earlier start, then longer.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}

		return events[i].end > events[j].end
	})

	var sb strings.Builder

	var stack []tagEvent

	next := 0
	pos := 0

	for pos <= len(text) {
		stack = closeEnded(&sb, stack, pos)

		for next < len(events) && events[next].pos == pos {
			tag, _ := openTag(events[next].span)
			sb.WriteString(tag)

			stack = append(stack, events[next])
			next++
		}

		if pos == len(text) {
			break
		}

		_, size := utf8.DecodeRuneInString(text[pos:])
		sb.WriteString(html.EscapeString(text[pos : pos+size]))
		pos += size
	}

	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteString(closeTag(stack[i].span))
	}

	return sb.String()
}

// closeEnded closes every span ending at pos. Spans opened after an ending span are closed and reopened
// so the output stays well nested.
func closeEnded(sb *strings.Builder, stack []tagEvent, pos int) []tagEvent {
	for {
		at := -1

		for i := range stack {
			if stack[i].end <= pos {
				at = i

				break
			}
		}

		if at < 0 {
			return stack
		}

		for i := len(stack) - 1; i >= at; i-- {
			sb.WriteString(closeTag(stack[i].span))
		}

		reopen := append([]tagEvent(nil), stack[at+1:]...)
		stack = stack[:at]

		for _, ev := range reopen {
			if ev.end <= pos {
				continue
			}

			tag, _ := openTag(ev.span)
			sb.WriteString(tag)

			stack = append(stack, ev)
		}
	}
}

func openTag(sp domain.Span) (string, bool) {
	switch sp.Kind {
	case domain.SpanBold:
		return "<b>", true
	case domain.SpanItalic:
		return "<i>", true
	case domain.SpanUnderline:
		return "<u>", true
	case domain.SpanStrike:
		return "<s>", true
	case domain.SpanSpoiler:
		return "<tg-spoiler>", true
	case domain.SpanCode:
		return "<code>", true
	case domain.SpanPre:
		if sp.Language != "" {
			return `<pre><code class="language-` + html.EscapeString(sp.Language) + `">`, true
		}

		return "<pre>", true
	case domain.SpanBlockquote:
		return "<blockquote>", true
	case domain.SpanTextURL:
		return `<a href="` + html.EscapeString(sp.URL) + `">`, true
	case domain.SpanMentionName:
		return `<a href="tg://user?id=` + strconv.FormatInt(sp.UserID, 10) + `">`, true
	case domain.SpanCustomEmoji:
		return `<tg-emoji emoji-id="` + strconv.FormatInt(sp.DocumentID, 10) + `">`, true
	default:
		return "", false
	}
}

func closeTag(sp domain.Span) string {
	switch sp.Kind {
	case domain.SpanBold:
		return "</b>"
	case domain.SpanItalic:
		return "</i>"
	case domain.SpanUnderline:
		return "</u>"
	case domain.SpanStrike:
		return "</s>"
	case domain.SpanSpoiler:
		return "</tg-spoiler>"
	case domain.SpanCode:
		return "</code>"
	case domain.SpanPre:
		if sp.Language != "" {
			return "</code></pre>"
		}

		return "</pre>"
	case domain.SpanBlockquote:
		return "</blockquote>"
	case domain.SpanTextURL, domain.SpanMentionName:
		return "</a>"
	case domain.SpanCustomEmoji:
		return "</tg-emoji>"
	default:
		return ""
	}
}

// EscapeString escapes text for Telegram HTML parse mode.
func EscapeString(s string) string {
	return html.EscapeString(s)
}

// SplitLines splits text into parts no longer than limit bytes, breaking on line boundaries.
// A single line longer than limit is emitted as its own part.
func SplitLines(text string, limit int) []string {
	if len(text) <= limit || limit <= 0 {
		return []string{text}
	}

	var parts []string

	var sb strings.Builder

	for _, line := range strings.SplitAfter(text, "\n") {
		if sb.Len() > 0 && sb.Len()+len(line) > limit {
			parts = append(parts, sb.String())
			sb.Reset()
		}

		sb.WriteString(line)
	}

	if sb.Len() > 0 {
		parts = append(parts, sb.String())
	}

	return parts
}
