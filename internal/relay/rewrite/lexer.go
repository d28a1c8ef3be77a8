package rewrite

import (
	"regexp"
	"sort"
	"strings"
)

// TokenKind is the kind of a channel reference found in text.
type TokenKind int

const (
	TokenMention TokenKind = iota
	TokenBareLink
	TokenMarkdownLink
	TokenInviteLink
	TokenOtherLink
)

func (k TokenKind) String() string {
	switch k {
	case TokenMention:
		return "mention"
	case TokenBareLink:
		return "bare_link"
	case TokenMarkdownLink:
		return "markdown_link"
	case TokenInviteLink:
		return "invite_link"
	case TokenOtherLink:
		return "other_link"
	default:
		return "unknown"
	}
}

// Token is one reference occurrence. Offsets are bytes into the scanned text.
type Token struct {
	Kind  TokenKind
	Start int
	End   int

	// Link parts. Literal is the full matched text.
	Literal  string
	Scheme   string // "", "http://" or "https://"
	Host     string // as written, including "www." if present
	Username string
	Hash     string // invite hash
	Suffix   string // path and query after the username or hash

	// Markdown parts.
	LabelStart int
	LabelEnd   int
	URL        string
}

var (
	markdownLinkRegex = regexp.MustCompile(`\[([^\[\]\n]+)\]\(([^()\s]+)\)`)
	tmeLinkRegex      = regexp.MustCompile(`(?i)(https?://)?((?:www\.)?(?:t|telegram)\.me)/([^\s<>()\[\]"'` + "`" + `]*)`)
	mentionRegex      = regexp.MustCompile(`@(` + usernamePattern + `)`)
	invitePathRegex   = regexp.MustCompile(`^(?:joinchat/|\+)([a-zA-Z0-9_-]+)`)
	userPathRegex     = regexp.MustCompile(`^(` + usernamePattern + `)(?:[/?#]|$)`)
)

const trailingPunct = ".,!?:;"

// LexMarkdown finds [label](url) links.
func LexMarkdown(text string) []Token {
	matches := markdownLinkRegex.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]Token, 0, len(matches))

	for _, m := range matches {
		tokens = append(tokens, Token{
			Kind:       TokenMarkdownLink,
			Start:      m[0],
			End:        m[1],
			Literal:    text[m[0]:m[1]],
			LabelStart: m[2],
			LabelEnd:   m[3],
			URL:        text[m[4]:m[5]],
		})
	}

	return tokens
}

// LexReferences returns mentions and t.me links in text order. Mentions never overlap links.
func LexReferences(text string) []Token {
	links := lexLinks(text)
	tokens := append([]Token(nil), links...)

	for _, m := range mentionRegex.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]

		if start > 0 && isWordByte(text[start-1]) {
			continue
		}

		if end < len(text) && isWordByte(text[end]) {
			continue
		}

		if overlapsAny(links, start, end) || insideForeignURL(text, start) {
			continue
		}

		tokens = append(tokens, Token{
			Kind:     TokenMention,
			Start:    start,
			End:      end,
			Literal:  text[start:end],
			Username: text[m[2]:m[3]],
		})
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Start < tokens[j].Start
	})

	return tokens
}

func lexLinks(text string) []Token {
	var tokens []Token

	for _, m := range tmeLinkRegex.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]

		// "abt.me/x" or "foo.t.me/x" are not Telegram links.
		if m[2] < 0 && start > 0 && (isWordByte(text[start-1]) || text[start-1] == '.' || text[start-1] == '/') {
			continue
		}

		for end > m[6] && strings.IndexByte(trailingPunct, text[end-1]) >= 0 {
			end--
		}

		tok, ok := parseLink(text[start:end])
		if !ok {
			continue
		}

		tok.Start = start
		tok.End = end
		tokens = append(tokens, tok)
	}

	return tokens
}

// ParseLink parses a single t.me link. It reports false when s is not entirely a t.me link.
func ParseLink(s string) (Token, bool) {
	m := tmeLinkRegex.FindStringSubmatchIndex(s)
	if m == nil || m[0] != 0 || m[1] != len(s) {
		return Token{}, false
	}

	return parseLink(s)
}

func parseLink(literal string) (Token, bool) {
	m := tmeLinkRegex.FindStringSubmatch(literal)
	if m == nil {
		return Token{}, false
	}

	tok := Token{
		Literal: literal,
		Scheme:  m[1],
		Host:    m[2],
	}

	path := m[3]

	if path == "" {
		return Token{}, false
	}

	if inv := invitePathRegex.FindStringSubmatch(path); inv != nil {
		tok.Kind = TokenInviteLink
		tok.Hash = inv[1]
		tok.Suffix = path[len(inv[0]):]

		return tok, true
	}

	if u := userPathRegex.FindStringSubmatch(path); u != nil && !reservedPaths[strings.ToLower(u[1])] {
		tok.Kind = TokenBareLink
		tok.Username = u[1]
		tok.Suffix = path[len(u[1]):]

		return tok, true
	}

	tok.Kind = TokenOtherLink
	tok.Suffix = path

	return tok, true
}

// render builds the link text for username in the token's own form.
func (t Token) render(username string) string {
	return t.Scheme + t.Host + "/" + username + t.Suffix
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// insideForeignURL reports whether the @ at pos continues a URL path such as youtube.com/@name.
func insideForeignURL(text string, pos int) bool {
	wordStart := strings.LastIndexAny(text[:pos], " \t\r\n") + 1
	prefix := text[wordStart:pos]

	slash := strings.IndexByte(prefix, '/')
	if slash < 0 {
		return false
	}

	return strings.Contains(prefix, "://") || strings.Contains(prefix[:slash], ".")
}

func overlapsAny(tokens []Token, start, end int) bool {
	for _, t := range tokens {
		if start < t.End && t.Start < end {
			return true
		}
	}

	return false
}
