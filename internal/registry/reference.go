package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
	apperrors "github.com/lueurxax/telegram-relay-bot/internal/core/errors"
)

var (
	usernameRegex   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{3,31}$`)
	inviteHashRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{8,}$`)
)

// Reference is a normalized channel reference. Exactly one of ID, Username and InviteHash is set.
type Reference struct {
	ID         int64 // marked id
	Username   string
	InviteHash string
}

func (r Reference) String() string {
	switch {
	case r.ID != 0:
		return strconv.FormatInt(r.ID, 10)
	case r.Username != "":
		return "@" + r.Username
	case r.InviteHash != "":
		return "https://t.me/+" + r.InviteHash
	default:
		return ""
	}
}

// NormalizeReference parses a channel reference: t.me and telegram.me links (public, joinchat/,
// +hash, c/<id>), @name, bare name, or a numeric id. Positive numeric ids are treated as bare channel
// ids and marked.
func NormalizeReference(raw string) (Reference, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Reference{}, fmt.Errorf("%w: empty", apperrors.ErrInvalidReference)
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id == 0 {
			return Reference{}, fmt.Errorf("%w: zero id", apperrors.ErrInvalidReference)
		}

		return Reference{ID: domain.MarkChannelID(id)}, nil
	}

	if strings.HasPrefix(s, "@") {
		return usernameRef(raw, s[1:])
	}

	if strings.HasPrefix(s, "+") {
		return inviteRef(raw, s[1:])
	}

	if path, ok := tmePath(s); ok {
		return pathRef(raw, path)
	}

	return usernameRef(raw, s)
}

// tmePath strips scheme and host from a t.me or telegram.me link.
func tmePath(s string) (string, bool) {
	lower := strings.ToLower(s)

	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, prefix) {
			s, lower = s[len(prefix):], lower[len(prefix):]

			break
		}
	}

	if strings.HasPrefix(lower, "www.") {
		s, lower = s[4:], lower[4:]
	}

	for _, host := range []string{"t.me/", "telegram.me/"} {
		if strings.HasPrefix(lower, host) {
			path := s[len(host):]
			if i := strings.IndexAny(path, "?#"); i >= 0 {
				path = path[:i]
			}

			return strings.Trim(path, "/"), true
		}
	}

	return "", false
}

func pathRef(raw, path string) (Reference, error) {
	parts := strings.Split(path, "/")

	switch {
	case strings.HasPrefix(parts[0], "+"):
		return inviteRef(raw, parts[0][1:])
	case strings.EqualFold(parts[0], "joinchat") && len(parts) > 1:
		return inviteRef(raw, parts[1])
	case parts[0] == "c" && len(parts) > 1:
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || id <= 0 {
			return Reference{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidReference, raw)
		}

		return Reference{ID: domain.MarkChannelID(id)}, nil
	default:
		return usernameRef(raw, parts[0])
	}
}

func usernameRef(raw, name string) (Reference, error) {
	if !usernameRegex.MatchString(name) {
		return Reference{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidReference, raw)
	}

	return Reference{Username: name}, nil
}

func inviteRef(raw, hash string) (Reference, error) {
	if !inviteHashRegex.MatchString(hash) {
		return Reference{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidReference, raw)
	}

	return Reference{InviteHash: hash}, nil
}
