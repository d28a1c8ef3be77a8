// Package filter decides whether an inbound message is relayed, by media type and keywords.
package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

// Rejection reasons reported in Decision.Reason.
const (
	ReasonMediaNotIncluded = "media_not_included"
	ReasonMediaExcluded    = "media_excluded"
	ReasonNoText           = "no_searchable_text"
	ReasonKeywordMissing   = "keyword_missing"
	ReasonKeywordExcluded  = "keyword_excluded"
)

// textAlias names text-only messages in media type lists.
const textAlias = "text"

// Config is the content filter configuration.
type Config struct {
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	IncludeKeywords   []string `json:"include_keywords,omitempty" yaml:"include_keywords"`
	ExcludeKeywords   []string `json:"exclude_keywords,omitempty" yaml:"exclude_keywords"`
	IncludeMediaTypes []string `json:"include_media_types,omitempty" yaml:"include_media_types"`
	ExcludeMediaTypes []string `json:"exclude_media_types,omitempty" yaml:"exclude_media_types"`
}

// IsZero reports whether no constraint is configured.
func (c Config) IsZero() bool {
	return len(c.IncludeKeywords) == 0 && len(c.ExcludeKeywords) == 0 &&
		len(c.IncludeMediaTypes) == 0 && len(c.ExcludeMediaTypes) == 0
}

// Decision is the filter verdict. Reason is empty for accepted messages.
type Decision struct {
	Accepted bool
	Reason   string
}

// Filter is an immutable predicate built from a Config.
type Filter struct {
	enabled      bool
	include      []string
	exclude      []string
	includeMedia map[domain.MediaKind]bool
	excludeMedia map[domain.MediaKind]bool
}

// New normalizes cfg into a Filter. Keywords are case-folded once; blank entries are ignored.
func New(cfg Config) *Filter {
	caser := cases.Fold()

	return &Filter{
		enabled:      cfg.Enabled,
		include:      foldKeywords(caser, cfg.IncludeKeywords),
		exclude:      foldKeywords(caser, cfg.ExcludeKeywords),
		includeMedia: mediaSet(cfg.IncludeMediaTypes),
		excludeMedia: mediaSet(cfg.ExcludeMediaTypes),
	}
}

// Accept applies the media-type gate, then the keyword gate. A disabled filter accepts everything.
func (f *Filter) Accept(d domain.Descriptor) Decision {
	if f == nil || !f.enabled {
		return Decision{Accepted: true}
	}

	kind := d.MediaKind
	if kind == "" {
		kind = domain.MediaNone
	}

	if len(f.includeMedia) > 0 && !f.includeMedia[kind] {
		return Decision{Reason: ReasonMediaNotIncluded}
	}

	if f.excludeMedia[kind] {
		return Decision{Reason: ReasonMediaExcluded}
	}

	text := strings.TrimSpace(d.SearchableText())

	if text == "" {
		if len(f.include) > 0 {
			return Decision{Reason: ReasonNoText}
		}

		return Decision{Accepted: true}
	}

	folded := cases.Fold().String(text)

	if containsAny(folded, f.exclude) {
		return Decision{Reason: ReasonKeywordExcluded}
	}

	if len(f.include) > 0 && !containsAny(folded, f.include) {
		return Decision{Reason: ReasonKeywordMissing}
	}

	return Decision{Accepted: true}
}

// ParseMediaKind maps a configured media type name to a kind.
func ParseMediaKind(name string) (domain.MediaKind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == textAlias {
		return domain.MediaNone, true
	}

	for _, k := range domain.AllMediaKinds {
		if string(k) == name {
			return k, true
		}
	}

	return "", false
}

func foldKeywords(caser cases.Caser, keywords []string) []string {
	out := make([]string, 0, len(keywords))

	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}

		out = append(out, caser.String(kw))
	}

	return out
}

func mediaSet(names []string) map[domain.MediaKind]bool {
	set := make(map[domain.MediaKind]bool, len(names))

	for _, name := range names {
		if k, ok := ParseMediaKind(name); ok {
			set[k] = true
		}
	}

	return set
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}

	return false
}
