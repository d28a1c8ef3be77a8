package domain

import "time"

// SpanKind identifies the kind of a formatting span.
type SpanKind string

// Formatting span kinds. Mention, URL and TextURL take part in rewriting; the rest are carried through
// with corrected offsets.
const (
	SpanMention     SpanKind = "mention"
	SpanURL         SpanKind = "url"
	SpanTextURL     SpanKind = "text_url"
	SpanMentionName SpanKind = "mention_name"
	SpanBold        SpanKind = "bold"
	SpanItalic      SpanKind = "italic"
	SpanUnderline   SpanKind = "underline"
	SpanStrike      SpanKind = "strike"
	SpanSpoiler     SpanKind = "spoiler"
	SpanCode        SpanKind = "code"
	SpanPre         SpanKind = "pre"
	SpanBlockquote  SpanKind = "blockquote"
	SpanHashtag     SpanKind = "hashtag"
	SpanCashtag     SpanKind = "cashtag"
	SpanBotCommand  SpanKind = "bot_command"
	SpanEmail       SpanKind = "email"
	SpanPhone       SpanKind = "phone"
	SpanCustomEmoji SpanKind = "custom_emoji"
)

// Span is a formatting annotation over a text buffer. Offset and Length are UTF-16 code units.
type Span struct {
	Offset     int
	Length     int
	Kind       SpanKind
	URL        string // target of text_url spans
	Language   string // pre blocks
	UserID     int64  // mention_name spans
	DocumentID int64  // custom_emoji spans
}

// End returns the exclusive end offset of the span.
func (s Span) End() int {
	return s.Offset + s.Length
}

// MediaKind is the semantic kind of a media payload.
type MediaKind string

const (
	MediaNone     MediaKind = "none"
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaGIF      MediaKind = "gif"
	MediaRound    MediaKind = "round"
	MediaVoice    MediaKind = "voice"
	MediaAudio    MediaKind = "audio"
	MediaSticker  MediaKind = "sticker"
	MediaDocument MediaKind = "document"
	MediaWebPage  MediaKind = "webpage_preview"
)

// AllMediaKinds lists every kind accepted in filter configuration.
var AllMediaKinds = []MediaKind{
	MediaNone, MediaPhoto, MediaVideo, MediaGIF, MediaRound, MediaVoice,
	MediaAudio, MediaSticker, MediaDocument, MediaWebPage,
}

// MediaSource is the transport-level shape of a media payload before classification.
type MediaSource int

const (
	SourceUnsupported MediaSource = iota
	SourcePhoto
	SourceDocument
	SourceWebPage
)

// MediaPayload is a transport-neutral view of a message attachment.
type MediaPayload struct {
	Source     MediaSource
	MimeType   string
	FileName   string // from the filename attribute, if any
	Size       int64
	Width      int
	Height     int
	Duration   float64 // seconds
	Video      bool    // carries a video attribute
	RoundVideo bool
	Animated   bool
	Voice      bool
	Audio      bool
	Sticker    bool
	Performer  string
	Title      string
	WebPage    *WebPage
}

// WebPage is link preview metadata generated by the transport.
type WebPage struct {
	URL         string
	SiteName    string
	Title       string
	Description string
}

// InboundMessage is a message observed on a source channel.
type InboundMessage struct {
	ChannelID int64 // marked channel id (-100...)
	ID        int
	Text      string
	Spans     []Span
	Media     *MediaPayload
	GroupedID int64
	Date      time.Time
	EditDate  time.Time

	// Ref is an opaque handle the transport uses to download the media.
	Ref any
}

// SourceKey identifies a source message.
type SourceKey struct {
	ChannelID int64
	MessageID int
}

// Key returns the source key of the message.
func (m *InboundMessage) Key() SourceKey {
	return SourceKey{ChannelID: m.ChannelID, MessageID: m.ID}
}

// MediaDescriptor describes classified and staged media.
type MediaDescriptor struct {
	Kind       MediaKind
	MimeType   string
	FileName   string
	Extension  string
	StagedPath string
	Payload    *MediaPayload
}

// Descriptor is the normalized representation of one inbound message.
type Descriptor struct {
	Source             SourceKey
	Text               string
	Spans              []Span
	HasMedia           bool
	Media              *MediaDescriptor
	MediaKind          MediaKind
	HasWebpagePreview  bool
	WebPage            *WebPage
	RequiresHTMLBackup bool
}

// SearchableText returns the text the content filter matches keywords against.
// For media messages this is the caption, which travels in Text as well.
func (d *Descriptor) SearchableText() string {
	return d.Text
}
