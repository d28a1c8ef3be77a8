package telegramclient

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

func TestInboundMessage(t *testing.T) {
	msg := &tg.Message{
		ID:        42,
		PeerID:    &tg.PeerChannel{ChannelID: 1234567890},
		Message:   "hello @old",
		Date:      1700000000,
		GroupedID: 9,
		Entities: []tg.MessageEntityClass{
			&tg.MessageEntityBold{Offset: 0, Length: 5},
			&tg.MessageEntityMention{Offset: 6, Length: 4},
		},
	}

	in, ok := inboundMessage(msg)
	require.True(t, ok)
	require.Equal(t, int64(-1001234567890), in.ChannelID)
	require.Equal(t, 42, in.ID)
	require.Equal(t, "hello @old", in.Text)
	require.Equal(t, int64(9), in.GroupedID)
	require.Nil(t, in.Media)
	require.True(t, in.EditDate.IsZero())
	require.Equal(t, []domain.Span{
		{Offset: 0, Length: 5, Kind: domain.SpanBold},
		{Offset: 6, Length: 4, Kind: domain.SpanMention},
	}, in.Spans)

	_, ok = inboundMessage(&tg.MessageService{ID: 1, PeerID: &tg.PeerChannel{ChannelID: 1}})
	require.False(t, ok)

	_, ok = inboundMessage(&tg.Message{ID: 1, PeerID: &tg.PeerUser{UserID: 1}})
	require.False(t, ok)
}

func TestSpansRoundTrip(t *testing.T) {
	spans := []domain.Span{
		{Offset: 0, Length: 3, Kind: domain.SpanTextURL, URL: "https://t.me/x"},
		{Offset: 4, Length: 2, Kind: domain.SpanPre, Language: "go"},
		{Offset: 7, Length: 2, Kind: domain.SpanCustomEmoji, DocumentID: 77},
		{Offset: 10, Length: 5, Kind: domain.SpanURL},
		{Offset: 16, Length: 1, Kind: domain.SpanSpoiler},
	}

	require.Equal(t, spans, spansFromEntities(entitiesFromSpans(spans)))
	require.Nil(t, spansFromEntities(nil))
	require.Nil(t, entitiesFromSpans(nil))
}

func TestEntitiesFromSpans_MentionName(t *testing.T) {
	out := entitiesFromSpans([]domain.Span{{Offset: 1, Length: 2, Kind: domain.SpanMentionName, UserID: 5}})

	require.Len(t, out, 1)

	e, ok := out[0].(*tg.InputMessageEntityMentionName)
	require.True(t, ok)
	require.Equal(t, &tg.InputUser{UserID: 5}, e.UserID)
}

func TestMediaPayload(t *testing.T) {
	tests := []struct {
		name  string
		media tg.MessageMediaClass
		want  *domain.MediaPayload
	}{
		{
			name:  "no media",
			media: nil,
			want:  nil,
		},
		{
			name:  "empty media",
			media: &tg.MessageMediaEmpty{},
			want:  nil,
		},
		{
			name: "photo picks largest size",
			media: &tg.MessageMediaPhoto{Photo: &tg.Photo{Sizes: []tg.PhotoSizeClass{
				&tg.PhotoSize{Type: "s", W: 90, H: 60, Size: 1000},
				&tg.PhotoSize{Type: "y", W: 1280, H: 960, Size: 90000},
				&tg.PhotoSizeProgressive{Type: "x", W: 800, H: 600, Sizes: []int{10, 20}},
			}}},
			want: &domain.MediaPayload{Source: domain.SourcePhoto, MimeType: photoMimeType, Width: 1280, Height: 960, Size: 90000},
		},
		{
			name: "round video",
			media: &tg.MessageMediaDocument{Document: &tg.Document{
				MimeType: "video/mp4",
				Size:     2048,
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeVideo{RoundMessage: true, Duration: 7, W: 240, H: 240},
				},
			}},
			want: &domain.MediaPayload{
				Source: domain.SourceDocument, MimeType: "video/mp4", Size: 2048,
				Video: true, RoundVideo: true, Duration: 7, Width: 240, Height: 240,
			},
		},
		{
			name: "voice note",
			media: &tg.MessageMediaDocument{Document: &tg.Document{
				MimeType:   "audio/ogg",
				Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Voice: true, Duration: 3}},
			}},
			want: &domain.MediaPayload{Source: domain.SourceDocument, MimeType: "audio/ogg", Voice: true, Duration: 3},
		},
		{
			name: "audio with file name",
			media: &tg.MessageMediaDocument{Document: &tg.Document{
				MimeType: "audio/mpeg",
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeAudio{Duration: 200, Title: "Song", Performer: "Band"},
					&tg.DocumentAttributeFilename{FileName: "song.mp3"},
				},
			}},
			want: &domain.MediaPayload{
				Source: domain.SourceDocument, MimeType: "audio/mpeg", FileName: "song.mp3",
				Audio: true, Duration: 200, Title: "Song", Performer: "Band",
			},
		},
		{
			name: "animated sticker",
			media: &tg.MessageMediaDocument{Document: &tg.Document{
				MimeType: "application/x-tgsticker",
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeSticker{Stickerset: &tg.InputStickerSetEmpty{}},
					&tg.DocumentAttributeImageSize{W: 512, H: 512},
				},
			}},
			want: &domain.MediaPayload{
				Source: domain.SourceDocument, MimeType: "application/x-tgsticker",
				Sticker: true, Width: 512, Height: 512,
			},
		},
		{
			name: "web page",
			media: &tg.MessageMediaWebPage{Webpage: &tg.WebPage{
				URL: "https://example.com", SiteName: "Example", Title: "T", Description: "D",
			}},
			want: &domain.MediaPayload{Source: domain.SourceWebPage, WebPage: &domain.WebPage{
				URL: "https://example.com", SiteName: "Example", Title: "T", Description: "D",
			}},
		},
		{
			name:  "pending web page",
			media: &tg.MessageMediaWebPage{Webpage: &tg.WebPagePending{}},
			want:  &domain.MediaPayload{Source: domain.SourceWebPage, WebPage: &domain.WebPage{}},
		},
		{
			name:  "poll",
			media: &tg.MessageMediaPoll{},
			want:  &domain.MediaPayload{Source: domain.SourceUnsupported},
		},
		{
			name:  "empty document",
			media: &tg.MessageMediaDocument{Document: &tg.DocumentEmpty{}},
			want:  &domain.MediaPayload{Source: domain.SourceUnsupported},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, mediaPayload(tt.media))
		})
	}
}

func TestFileLocation(t *testing.T) {
	loc, err := fileLocation(&tg.MessageMediaDocument{Document: &tg.Document{ID: 1, AccessHash: 2, FileReference: []byte{3}}})
	require.NoError(t, err)
	require.Equal(t, &tg.InputDocumentFileLocation{ID: 1, AccessHash: 2, FileReference: []byte{3}}, loc)

	loc, err = fileLocation(&tg.MessageMediaPhoto{Photo: &tg.Photo{ID: 5, Sizes: []tg.PhotoSizeClass{
		&tg.PhotoSize{Type: "m", W: 320, H: 240},
		&tg.PhotoSize{Type: "w", W: 2560, H: 1920},
	}}})
	require.NoError(t, err)
	require.Equal(t, "w", loc.(*tg.InputPhotoFileLocation).ThumbSize)

	_, err = fileLocation(&tg.MessageMediaPhoto{Photo: &tg.PhotoEmpty{}})
	require.Error(t, err)

	_, err = fileLocation(nil)
	require.Error(t, err)
}
