// Package classify derives the semantic media kind and file extension of a message attachment.
package classify

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

// maxAnimationSeconds is the longest MP4 still treated as a GIF-style animation.
const maxAnimationSeconds = 15

const (
	mimeMP4      = "video/mp4"
	mimeWebP     = "image/webp"
	mimeGIF      = "image/gif"
	extBinary    = ".bin"
	defaultPhoto = "image/jpeg"
)

// mimeExtensions is consulted before the mimetype registry so common Telegram types get stable
// extensions.
var mimeExtensions = map[string]string{
	"image/jpeg":              ".jpg",
	"image/png":               ".png",
	"image/gif":               ".gif",
	"image/webp":              ".webp",
	"video/mp4":               ".mp4",
	"video/quicktime":         ".mov",
	"video/webm":              ".webm",
	"audio/mpeg":              ".mp3",
	"audio/ogg":               ".ogg",
	"audio/mp4":               ".m4a",
	"audio/x-m4a":             ".m4a",
	"application/pdf":         ".pdf",
	"application/zip":         ".zip",
	"application/x-tgsticker": ".tgs",
}

var kindExtensions = map[domain.MediaKind]string{
	domain.MediaPhoto:    ".jpg",
	domain.MediaVideo:    ".mp4",
	domain.MediaGIF:      ".mp4",
	domain.MediaRound:    ".mp4",
	domain.MediaVoice:    ".ogg",
	domain.MediaAudio:    ".mp3",
	domain.MediaSticker:  ".webp",
	domain.MediaDocument: extBinary,
}

// Classification is the classifier verdict for one payload.
type Classification struct {
	Kind      domain.MediaKind
	MimeType  string
	FileName  string
	Extension string

	// IsMedia is false for link previews and unsupported payloads; those are never downloaded.
	IsMedia bool
}

// Classify inspects a payload. A nil payload classifies as no media.
func Classify(p *domain.MediaPayload) Classification {
	if p == nil {
		return Classification{Kind: domain.MediaNone}
	}

	switch p.Source {
	case domain.SourceWebPage:
		return Classification{Kind: domain.MediaWebPage}
	case domain.SourceUnsupported:
		return Classification{Kind: domain.MediaNone}
	case domain.SourcePhoto:
		return finish(p, domain.MediaPhoto, firstNonEmpty(p.MimeType, defaultPhoto))
	case domain.SourceDocument:
	}

	return finish(p, documentKind(p), p.MimeType)
}

// documentKind applies the attribute checks in order, first match wins.
func documentKind(p *domain.MediaPayload) domain.MediaKind {
	mime := strings.ToLower(p.MimeType)

	switch {
	case p.RoundVideo:
		return domain.MediaRound
	case p.Animated && mime == mimeMP4 && p.Duration <= maxAnimationSeconds:
		return domain.MediaGIF
	case p.Video:
		return domain.MediaVideo
	case p.Voice:
		return domain.MediaVoice
	case p.Audio:
		return domain.MediaAudio
	case p.Sticker:
		return domain.MediaSticker
	}

	switch {
	case mime == mimeWebP || mime == mimeGIF:
		return domain.MediaSticker
	case strings.HasPrefix(mime, "image/"):
		return domain.MediaPhoto
	case strings.HasPrefix(mime, "video/"):
		return domain.MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return domain.MediaAudio
	default:
		return domain.MediaDocument
	}
}

func finish(p *domain.MediaPayload, kind domain.MediaKind, mime string) Classification {
	ext := Extension(p.FileName, mime, kind)

	name := p.FileName
	if name == "" {
		name = string(kind) + ext
	}

	return Classification{
		Kind:      kind,
		MimeType:  mime,
		FileName:  name,
		Extension: ext,
		IsMedia:   true,
	}
}

// Extension infers a file extension: explicit filename extension, then the MIME table, then the
// mimetype registry, then the per-kind default.
func Extension(fileName, mime string, kind domain.MediaKind) string {
	if ext := filepath.Ext(fileName); ext != "" && len(ext) > 1 {
		return strings.ToLower(ext)
	}

	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	if ext, ok := mimeExtensions[mime]; ok {
		return ext
	}

	if mime != "" {
		if m := mimetype.Lookup(mime); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}

	if ext, ok := kindExtensions[kind]; ok {
		return ext
	}

	return extBinary
}

// DetectStaged sniffs a staged file and returns its MIME type and extension. It is used when
// classification could only produce the generic binary extension.
func DetectStaged(path string) (string, string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", "", fmt.Errorf("detecting staged file type: %w", err)
	}

	return m.String(), m.Extension(), nil
}

// IsGeneric reports whether ext carries no type information.
func IsGeneric(ext string) bool {
	return ext == "" || ext == extBinary
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
