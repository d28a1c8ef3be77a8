// Package rewrite rewrites channel references in message text while keeping formatting spans aligned.
//
// A rewrite runs in four steps over one buffer:
//  1. [label](url) markdown links become text_url spans over their label.
//  2. @mentions are replaced by rule, destination tag or clean-mode deletion.
//  3. t.me links outside url/text_url spans are replaced the same way.
//  4. url and text_url spans are rewritten: url text in place, text_url targets independently of
//     their label.
//
// Span offsets on input and output are UTF-16 code units.
package rewrite

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/htmlutils"
)

// ErrInvalidTarget indicates a rewritten link target did not parse as a URL.
var ErrInvalidTarget = errors.New("rewritten target is not a valid url")

// Options configures a rewrite.
type Options struct {
	Rules          *Rules
	DestinationTag string
	CleanMode      bool

	// CollapseDoubledLabels collapses a text_url label made of two identical halves ("abcabc")
	// into one half. It works around senders that duplicate link labels and may hit legitimate
	// repeated text, so it is off unless enabled.
	CollapseDoubledLabels bool
}

// Input is the text to rewrite.
type Input struct {
	Text  string
	Spans []domain.Span
}

// Result is the rewritten text. Errors lists occurrences left unmodified because they failed.
type Result struct {
	Text    string
	Spans   []domain.Span
	Errors  []error
	Changed bool
}

// bspan is a span in byte offsets of the current buffer.
type bspan struct {
	start   int
	end     int
	span    domain.Span
	dropped bool
}

type decision int

const (
	keep decision = iota
	replace
	remove
)

type engine struct {
	opts        Options
	tagUsername string
	errs        []error
}

// Rewrite applies the rewrite steps to in.
func Rewrite(in Input, opts Options) Result {
	e := &engine{
		opts:        opts,
		tagUsername: CanonicalUsername(opts.DestinationTag),
	}

	text, spans := in.Text, toByteSpans(in.Text, in.Spans)
	text, spans = e.extractMarkdown(text, spans)
	text, spans = e.rewriteReferences(text, spans)

	out := Result{
		Text:   text,
		Spans:  toUTF16Spans(text, spans),
		Errors: e.errs,
	}

	out.Changed = out.Text != in.Text || !spansEqual(out.Spans, in.Spans)

	return out
}

// extractMarkdown converts [label](url) into text_url spans and strips the syntax.
func (e *engine) extractMarkdown(text string, spans []bspan) (string, []bspan) {
	var edits editList

	var added []bspan

	for _, tok := range LexMarkdown(text) {
		if coveredBy(spans, tok.Start, tok.End, domain.SpanCode, domain.SpanPre) {
			continue
		}

		edits.add(tok.Start, tok.LabelStart, "")
		edits.add(tok.LabelEnd, tok.End, "")

		added = append(added, bspan{
			start: tok.LabelStart,
			end:   tok.LabelEnd,
			span:  domain.Span{Kind: domain.SpanTextURL, URL: tok.URL},
		})
	}

	if edits.empty() {
		return text, spans
	}

	newText, m := edits.apply(text)

	merged := make([]bspan, 0, len(spans)+len(added))

	for _, sp := range append(append([]bspan(nil), spans...), added...) {
		sp.start, sp.end = m.rangeOf(sp.start, sp.end)
		merged = append(merged, sp)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].start < merged[j].start
	})

	return newText, merged
}

// rewriteReferences runs mention, link and span rewriting as one edit pass over text.
func (e *engine) rewriteReferences(text string, spans []bspan) (string, []bspan) {
	var edits editList

	tokens := LexReferences(text)
	guards := e.rewriteTextURLTargets(text, spans, &edits)

	skipped := make([]bool, len(tokens))
	for i, tok := range tokens {
		skipped[i] = coveredRange(guards, tok.Start, tok.End) ||
			coveredBy(spans, tok.Start, tok.End, domain.SpanCode, domain.SpanPre)
	}

	// Mentions and links outside url/text_url spans.
	for i, tok := range tokens {
		if skipped[i] {
			continue
		}

		if tok.Kind == TokenMention {
			// An @handle in url text belongs to a foreign URL.
			if !coveredBy(spans, tok.Start, tok.End, domain.SpanURL) {
				e.rewriteMention(text, tok, &edits)
			}

			continue
		}

		if coveredBy(spans, tok.Start, tok.End, domain.SpanURL, domain.SpanTextURL) {
			continue
		}

		e.rewriteLink(text, tok, &edits)
	}

	// Links forming the visible text of url spans, or the label of text_url spans.
	for _, sp := range spans {
		if sp.span.Kind != domain.SpanURL && sp.span.Kind != domain.SpanTextURL {
			continue
		}

		first := sort.Search(len(tokens), func(i int) bool { return tokens[i].Start >= sp.start })

		for i := first; i < len(tokens) && tokens[i].Start < sp.end; i++ {
			tok := tokens[i]
			if tok.Kind == TokenMention || skipped[i] || tok.End > sp.end {
				continue
			}

			e.rewriteLink(text, tok, &edits)
		}
	}

	if edits.empty() {
		return text, spans
	}

	newText, m := edits.apply(text)

	out := make([]bspan, 0, len(spans))

	for _, sp := range spans {
		sp.start, sp.end = m.rangeOf(sp.start, sp.end)
		out = append(out, sp)
	}

	return newText, out
}

// rewriteTextURLTargets rewrites t.me targets of text_url spans in place and returns label ranges
// that must not be edited.
func (e *engine) rewriteTextURLTargets(text string, spans []bspan, edits *editList) [][2]int {
	var guards [][2]int

	for i := range spans {
		sp := &spans[i]
		if sp.span.Kind != domain.SpanTextURL {
			continue
		}

		label := text[sp.start:sp.end]

		if e.opts.CollapseDoubledLabels {
			if half, doubled := doubledHalf(label); doubled {
				edits.add(sp.start+len(half), sp.end, "")
				guards = append(guards, [2]int{sp.start, sp.end})
			}
		}

		tok, ok := ParseLink(strings.TrimSpace(sp.span.URL))
		if !ok {
			continue
		}

		if tok.Username != "" && strings.EqualFold(label, tok.Username) {
			guards = append(guards, [2]int{sp.start, sp.end})
		}

		switch repl, d := e.decideLink(tok); d {
		case replace:
			target := e.renderLink(tok, repl)

			if _, err := url.Parse(withScheme(target)); err != nil {
				e.errs = append(e.errs, fmt.Errorf("%w: %q: %w", ErrInvalidTarget, target, err))
			} else {
				sp.span.URL = target
			}
		case remove:
			// The label stays as plain text.
			sp.dropped = true
		case keep:
		}
	}

	return guards
}

func (e *engine) rewriteMention(text string, tok Token, edits *editList) {
	repl, d := e.decide(tok.Literal, tok.Username)

	switch d {
	case replace:
		if name := CanonicalUsername(repl); name != "" {
			repl = "@" + name
		}

		if repl != tok.Literal {
			edits.add(tok.Start, tok.End, repl)
		}
	case remove:
		start, end := widenDeletion(text, tok.Start, tok.End)
		edits.add(start, end, "")
	case keep:
	}
}

func (e *engine) rewriteLink(text string, tok Token, edits *editList) {
	repl, d := e.decideLink(tok)

	switch d {
	case replace:
		if out := e.renderLink(tok, repl); out != tok.Literal {
			edits.add(tok.Start, tok.End, out)
		}
	case remove:
		start, end := widenDeletion(text, tok.Start, tok.End)
		edits.add(start, end, "")
	case keep:
	}
}

// decide resolves a mention or username link: rule, then destination tag or clean mode.
func (e *engine) decide(literal, username string) (string, decision) {
	if v, ok := e.opts.Rules.Lookup(literal, username); ok {
		return ruleDecision(v)
	}

	if username != "" && e.tagUsername != "" && fold(username) == fold(e.tagUsername) {
		return "", keep
	}

	return e.fallback()
}

func (e *engine) decideLink(tok Token) (string, decision) {
	switch tok.Kind {
	case TokenBareLink:
		return e.decide(tok.Literal, tok.Username)
	case TokenInviteLink:
		if v, ok := e.opts.Rules.LookupInvite(tok.Literal, tok.Hash); ok {
			return ruleDecision(v)
		}

		return e.fallback()
	default:
		if v, ok := e.opts.Rules.LookupExact(tok.Literal); ok {
			return ruleDecision(v)
		}

		return "", keep
	}
}

func (e *engine) fallback() (string, decision) {
	if e.opts.CleanMode {
		return "", remove
	}

	if e.opts.DestinationTag != "" {
		return e.opts.DestinationTag, replace
	}

	return "", keep
}

func ruleDecision(v string) (string, decision) {
	if strings.TrimSpace(v) == "" {
		return "", remove
	}

	return v, replace
}

// renderLink writes replacement value repl in the form of the link token tok.
func (e *engine) renderLink(tok Token, repl string) string {
	if name := CanonicalUsername(repl); name != "" {
		if tok.Kind == TokenBareLink {
			return tok.render(name)
		}

		return tok.Scheme + tok.Host + "/" + name
	}

	target, ok := ParseLink(strings.TrimSpace(repl))
	if !ok {
		return repl
	}

	// Keep the occurrence's protocol style.
	return tok.Scheme + target.Host + strings.TrimPrefix(target.Literal, target.Scheme+target.Host)
}

func withScheme(link string) string {
	if strings.Contains(link, "://") {
		return link
	}

	return "https://" + link
}

// doubledHalf reports whether label is two identical halves and returns the half.
func doubledHalf(label string) (string, bool) {
	if len(label) < 2 || len(label)%2 != 0 {
		return "", false
	}

	half := label[:len(label)/2]
	if strings.TrimSpace(half) == "" || half != label[len(label)/2:] {
		return "", false
	}

	return half, true
}

func coveredBy(spans []bspan, start, end int, kinds ...domain.SpanKind) bool {
	for _, sp := range spans {
		if sp.start <= start && end <= sp.end && hasKind(kinds, sp.span.Kind) {
			return true
		}
	}

	return false
}

func coveredRange(ranges [][2]int, start, end int) bool {
	for _, r := range ranges {
		if r[0] <= start && end <= r[1] {
			return true
		}
	}

	return false
}

func hasKind(kinds []domain.SpanKind, k domain.SpanKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}

	return false
}

func toByteSpans(text string, spans []domain.Span) []bspan {
	if len(spans) == 0 {
		return nil
	}

	idx := htmlutils.NewIndex(text)
	out := make([]bspan, 0, len(spans))

	for _, sp := range spans {
		start := idx.ToByte(sp.Offset)
		end := idx.ToByte(sp.End())

		if end < start {
			end = start
		}

		out = append(out, bspan{start: start, end: end, span: sp})
	}

	return out
}

// toUTF16Spans converts spans back to UTF-16 offsets, dropping spans that collapsed to nothing.
func toUTF16Spans(text string, spans []bspan) []domain.Span {
	if len(spans) == 0 {
		return nil
	}

	idx := htmlutils.NewIndex(text)
	out := make([]domain.Span, 0, len(spans))

	for _, sp := range spans {
		if sp.end <= sp.start || sp.dropped {
			continue
		}

		s := sp.span
		s.Offset = idx.ToUTF16(sp.start)
		s.Length = idx.ToUTF16(sp.end) - s.Offset
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Offset < out[j].Offset
	})

	return out
}

func spansEqual(a, b []domain.Span) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
