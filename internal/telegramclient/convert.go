package telegramclient

import (
	"time"

	"github.com/gotd/td/tg"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

const photoMimeType = "image/jpeg"

// inboundMessage maps a channel message to the domain form. Service messages and messages outside
// channels are skipped.
func inboundMessage(m tg.MessageClass) (*domain.InboundMessage, bool) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return nil, false
	}

	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil, false
	}

	in := &domain.InboundMessage{
		ChannelID: domain.MarkChannelID(peer.ChannelID),
		ID:        msg.ID,
		Text:      msg.Message,
		Spans:     spansFromEntities(msg.Entities),
		Media:     mediaPayload(msg.Media),
		GroupedID: msg.GroupedID,
		Date:      time.Unix(int64(msg.Date), 0).UTC(),
		Ref:       msg.Media,
	}

	if msg.EditDate != 0 {
		in.EditDate = time.Unix(int64(msg.EditDate), 0).UTC()
	}

	return in, true
}

// spansFromEntities converts MTProto entities. Offsets are UTF-16 on both sides.
func spansFromEntities(entities []tg.MessageEntityClass) []domain.Span {
	if len(entities) == 0 {
		return nil
	}

	spans := make([]domain.Span, 0, len(entities))

	for _, e := range entities {
		sp := domain.Span{Offset: e.GetOffset(), Length: e.GetLength()}

		switch v := e.(type) {
		case *tg.MessageEntityMention:
			sp.Kind = domain.SpanMention
		case *tg.MessageEntityURL:
			sp.Kind = domain.SpanURL
		case *tg.MessageEntityTextURL:
			sp.Kind = domain.SpanTextURL
			sp.URL = v.URL
		case *tg.MessageEntityMentionName:
			sp.Kind = domain.SpanMentionName
			sp.UserID = v.UserID
		case *tg.MessageEntityBold:
			sp.Kind = domain.SpanBold
		case *tg.MessageEntityItalic:
			sp.Kind = domain.SpanItalic
		case *tg.MessageEntityUnderline:
			sp.Kind = domain.SpanUnderline
		case *tg.MessageEntityStrike:
			sp.Kind = domain.SpanStrike
		case *tg.MessageEntitySpoiler:
			sp.Kind = domain.SpanSpoiler
		case *tg.MessageEntityCode:
			sp.Kind = domain.SpanCode
		case *tg.MessageEntityPre:
			sp.Kind = domain.SpanPre
			sp.Language = v.Language
		case *tg.MessageEntityBlockquote:
			sp.Kind = domain.SpanBlockquote
		case *tg.MessageEntityHashtag:
			sp.Kind = domain.SpanHashtag
		case *tg.MessageEntityCashtag:
			sp.Kind = domain.SpanCashtag
		case *tg.MessageEntityBotCommand:
			sp.Kind = domain.SpanBotCommand
		case *tg.MessageEntityEmail:
			sp.Kind = domain.SpanEmail
		case *tg.MessageEntityPhone:
			sp.Kind = domain.SpanPhone
		case *tg.MessageEntityCustomEmoji:
			sp.Kind = domain.SpanCustomEmoji
			sp.DocumentID = v.DocumentID
		default:
			continue
		}

		spans = append(spans, sp)
	}

	return spans
}

// entitiesFromSpans is the inverse of spansFromEntities.
func entitiesFromSpans(spans []domain.Span) []tg.MessageEntityClass {
	if len(spans) == 0 {
		return nil
	}

	out := make([]tg.MessageEntityClass, 0, len(spans))

	for _, sp := range spans {
		off, n := sp.Offset, sp.Length

		var e tg.MessageEntityClass

		switch sp.Kind {
		case domain.SpanMention:
			e = &tg.MessageEntityMention{Offset: off, Length: n}
		case domain.SpanURL:
			e = &tg.MessageEntityURL{Offset: off, Length: n}
		case domain.SpanTextURL:
			e = &tg.MessageEntityTextURL{Offset: off, Length: n, URL: sp.URL}
		case domain.SpanMentionName:
			e = &tg.InputMessageEntityMentionName{Offset: off, Length: n, UserID: &tg.InputUser{UserID: sp.UserID}}
		case domain.SpanBold:
			e = &tg.MessageEntityBold{Offset: off, Length: n}
		case domain.SpanItalic:
			e = &tg.MessageEntityItalic{Offset: off, Length: n}
		case domain.SpanUnderline:
			e = &tg.MessageEntityUnderline{Offset: off, Length: n}
		case domain.SpanStrike:
			e = &tg.MessageEntityStrike{Offset: off, Length: n}
		case domain.SpanSpoiler:
			e = &tg.MessageEntitySpoiler{Offset: off, Length: n}
		case domain.SpanCode:
			e = &tg.MessageEntityCode{Offset: off, Length: n}
		case domain.SpanPre:
			e = &tg.MessageEntityPre{Offset: off, Length: n, Language: sp.Language}
		case domain.SpanBlockquote:
			e = &tg.MessageEntityBlockquote{Offset: off, Length: n}
		case domain.SpanHashtag:
			e = &tg.MessageEntityHashtag{Offset: off, Length: n}
		case domain.SpanCashtag:
			e = &tg.MessageEntityCashtag{Offset: off, Length: n}
		case domain.SpanBotCommand:
			e = &tg.MessageEntityBotCommand{Offset: off, Length: n}
		case domain.SpanEmail:
			e = &tg.MessageEntityEmail{Offset: off, Length: n}
		case domain.SpanPhone:
			e = &tg.MessageEntityPhone{Offset: off, Length: n}
		case domain.SpanCustomEmoji:
			e = &tg.MessageEntityCustomEmoji{Offset: off, Length: n, DocumentID: sp.DocumentID}
		default:
			continue
		}

		out = append(out, e)
	}

	return out
}

// mediaPayload extracts the attributes the classifier needs. Nil means no attachment.
func mediaPayload(media tg.MessageMediaClass) *domain.MediaPayload {
	switch m := media.(type) {
	case nil, *tg.MessageMediaEmpty:
		return nil
	case *tg.MessageMediaPhoto:
		p := &domain.MediaPayload{Source: domain.SourcePhoto, MimeType: photoMimeType}

		if photo, ok := m.Photo.(*tg.Photo); ok {
			if size, ok := largestPhotoSize(photo); ok {
				p.Width, p.Height, p.Size = size.w, size.h, int64(size.bytes)
			}
		}

		return p
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return &domain.MediaPayload{Source: domain.SourceUnsupported}
		}

		return documentPayload(doc, m.Round, m.Voice)
	case *tg.MessageMediaWebPage:
		p := &domain.MediaPayload{Source: domain.SourceWebPage}

		if wp, ok := m.Webpage.(*tg.WebPage); ok {
			p.WebPage = &domain.WebPage{
				URL:         wp.URL,
				SiteName:    wp.SiteName,
				Title:       wp.Title,
				Description: wp.Description,
			}
		} else {
			p.WebPage = &domain.WebPage{}
		}

		return p
	default:
		return &domain.MediaPayload{Source: domain.SourceUnsupported}
	}
}

func documentPayload(doc *tg.Document, round, voice bool) *domain.MediaPayload {
	p := &domain.MediaPayload{
		Source:     domain.SourceDocument,
		MimeType:   doc.MimeType,
		Size:       doc.Size,
		RoundVideo: round,
		Voice:      voice,
	}

	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			p.FileName = a.FileName
		case *tg.DocumentAttributeVideo:
			p.Video = true
			p.RoundVideo = p.RoundVideo || a.RoundMessage
			p.Duration = a.Duration
			p.Width, p.Height = a.W, a.H
		case *tg.DocumentAttributeAudio:
			p.Audio = !a.Voice
			p.Voice = p.Voice || a.Voice
			p.Duration = float64(a.Duration)
			p.Title = a.Title
			p.Performer = a.Performer
		case *tg.DocumentAttributeAnimated:
			p.Animated = true
		case *tg.DocumentAttributeSticker:
			p.Sticker = true
		case *tg.DocumentAttributeImageSize:
			if p.Width == 0 {
				p.Width, p.Height = a.W, a.H
			}
		}
	}

	return p
}

type photoSize struct {
	kind  string
	w, h  int
	bytes int
}

// largestPhotoSize picks the size with the most pixels.
func largestPhotoSize(photo *tg.Photo) (photoSize, bool) {
	var (
		best  photoSize
		found bool
	)

	for _, size := range photo.Sizes {
		var s photoSize

		switch v := size.(type) {
		case *tg.PhotoSize:
			s = photoSize{kind: v.Type, w: v.W, h: v.H, bytes: v.Size}
		case *tg.PhotoSizeProgressive:
			s = photoSize{kind: v.Type, w: v.W, h: v.H}
			if n := len(v.Sizes); n > 0 {
				s.bytes = v.Sizes[n-1]
			}
		default:
			continue
		}

		if !found || s.w*s.h > best.w*best.h {
			best, found = s, true
		}
	}

	return best, found
}
