package rewrite

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

var (
	usernamePattern = `[a-zA-Z][a-zA-Z0-9_]{3,31}`
	usernameRegex   = regexp.MustCompile(`^` + usernamePattern + `$`)
	linkTagRegex    = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?(?:t|telegram)\.me/(` + usernamePattern + `)(?:[/?#].*)?$`)
)

// reservedPaths are t.me path segments that look like usernames but are not channels.
var reservedPaths = map[string]bool{
	"joinchat":     true,
	"addstickers":  true,
	"addemoji":     true,
	"addtheme":     true,
	"addlist":      true,
	"setlanguage":  true,
	"share":        true,
	"proxy":        true,
	"socks":        true,
	"login":        true,
	"confirmphone": true,
	"invoice":      true,
	"boost":        true,
	"contact":      true,
}

// CanonicalUsername extracts the channel username from any tag form: "@name", "name",
// "t.me/name", "https://t.me/name/123". It returns "" when the tag carries no username.
func CanonicalUsername(tag string) string {
	tag = strings.TrimSpace(tag)

	if strings.HasPrefix(tag, "@") {
		name := tag[1:]
		if usernameRegex.MatchString(name) {
			return name
		}

		return ""
	}

	if m := linkTagRegex.FindStringSubmatch(tag); m != nil {
		if reservedPaths[strings.ToLower(m[1])] {
			return ""
		}

		return m[1]
	}

	if usernameRegex.MatchString(tag) {
		return tag
	}

	return ""
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Rules is a rewrite rule table with form-tolerant lookup.
type Rules struct {
	exact    map[string]string
	byName   map[string]string
	byInvite map[string]string
}

// NewRules indexes a rule table. When several keys share a canonical username the
// lexicographically smallest key wins the username lookup; exact lookups are unaffected.
func NewRules(table map[string]string) *Rules {
	r := &Rules{
		exact:    make(map[string]string, len(table)),
		byName:   make(map[string]string, len(table)),
		byInvite: make(map[string]string),
	}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		v := table[k]
		r.exact[strings.TrimSpace(k)] = v

		if name := CanonicalUsername(k); name != "" {
			folded := fold(name)
			if _, ok := r.byName[folded]; !ok {
				r.byName[folded] = v
			}

			continue
		}

		if tok, ok := ParseLink(strings.TrimSpace(k)); ok && tok.Kind == TokenInviteLink {
			if _, seen := r.byInvite[tok.Hash]; !seen {
				r.byInvite[tok.Hash] = v
			}
		}
	}

	return r
}

// Len returns the number of rules.
func (r *Rules) Len() int {
	if r == nil {
		return 0
	}

	return len(r.exact)
}

// Lookup resolves a replacement for an occurrence: exact literal match first, then the canonical
// username across key forms.
func (r *Rules) Lookup(literal, username string) (string, bool) {
	if r == nil {
		return "", false
	}

	if v, ok := r.exact[literal]; ok {
		return v, true
	}

	if username == "" {
		return "", false
	}

	v, ok := r.byName[fold(username)]

	return v, ok
}

// LookupInvite resolves a replacement for an invite link: exact literal first, then any rule keyed
// by a link with the same invite hash.
func (r *Rules) LookupInvite(literal, hash string) (string, bool) {
	if r == nil {
		return "", false
	}

	if v, ok := r.exact[literal]; ok {
		return v, true
	}

	v, ok := r.byInvite[hash]

	return v, ok
}

// LookupExact resolves a replacement by literal key only.
func (r *Rules) LookupExact(literal string) (string, bool) {
	if r == nil {
		return "", false
	}

	v, ok := r.exact[literal]

	return v, ok
}
