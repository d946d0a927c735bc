package telegram

import (
	"time"

	"github.com/gotd/td/tg"
)

// ParseMessage converts a raw message into a Message. Service messages and
// empty constructors yield ok=false.
func ParseMessage(msg tg.MessageClass, channelID int64) (Message, bool) {
	m, ok := msg.(*tg.Message)
	if !ok {
		return Message{}, false
	}

	return Message{
		ID:        m.ID,
		ChannelID: channelID,
		Date:      time.Unix(int64(m.Date), 0),
		Media:     parseMedia(m.Media),
	}, true
}

// parseMedia extracts photo and document attachments. Web page previews,
// polls, geo points and the like are not downloadable and return nil.
func parseMedia(mc tg.MessageMediaClass) *Media {
	switch mm := mc.(type) {
	case *tg.MessageMediaPhoto:
		return parsePhoto(mm)
	case *tg.MessageMediaDocument:
		return parseDocument(mm)
	default:
		return nil
	}
}

func parsePhoto(mm *tg.MessageMediaPhoto) *Media {
	media := &Media{Kind: MediaPhoto}

	p, ok := mm.Photo.(*tg.Photo)
	if !ok {
		// expired self-destructing photo, nothing to fetch
		return media
	}

	sizeType, size := largestPhotoSize(p.Sizes)
	if sizeType == "" {
		return media
	}

	media.Size = size
	media.SizeKnown = true
	media.PhotoType = sizeType
	media.Location = &tg.InputPhotoFileLocation{
		ID:            p.ID,
		AccessHash:    p.AccessHash,
		FileReference: p.FileReference,
		ThumbSize:     sizeType,
	}
	return media
}

// largestPhotoSize returns the variant with the largest declared byte size.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, int64) {
	var (
		bestType string
		bestSize int64
	)
	for _, s := range sizes {
		var (
			t string
			n int64
		)
		switch ps := s.(type) {
		case *tg.PhotoSize:
			t, n = ps.Type, int64(ps.Size)
		case *tg.PhotoSizeProgressive:
			t = ps.Type
			for _, v := range ps.Sizes {
				if int64(v) > n {
					n = int64(v)
				}
			}
		default:
			continue
		}
		if n > bestSize {
			bestType, bestSize = t, n
		}
	}
	return bestType, bestSize
}

func parseDocument(mm *tg.MessageMediaDocument) *Media {
	doc, ok := mm.Document.(*tg.Document)
	if !ok {
		return &Media{Kind: MediaDocument}
	}

	media := &Media{
		Kind:      MediaDocument,
		MIMEType:  doc.MimeType,
		Size:      doc.Size,
		SizeKnown: true,
		Location:  &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		},
	}

	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			media.FileName = a.FileName
		case *tg.DocumentAttributeVideo:
			media.HasVideo = true
		}
	}
	return media
}

// extractMessages flattens any history/search response into Messages. The
// second result is the raw message count, service messages included.
func extractMessages(res tg.MessagesMessagesClass, channelID int64) ([]Message, int) {
	var raw []tg.MessageClass
	switch h := res.(type) {
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	case *tg.MessagesMessages:
		raw = h.Messages
	}

	out := make([]Message, 0, len(raw))
	for _, msg := range raw {
		if m, ok := ParseMessage(msg, channelID); ok {
			out = append(out, m)
		}
	}
	return out, len(raw)
}
