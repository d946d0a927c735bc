package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_Photo_PicksLargestVariant(t *testing.T) {
	raw := &tg.Message{
		ID:   42,
		Date: 1700000000,
		Media: &tg.MessageMediaPhoto{
			Photo: &tg.Photo{
				ID:            7,
				AccessHash:    8,
				FileReference: []byte{1, 2},
				Sizes: []tg.PhotoSizeClass{
					&tg.PhotoStrippedSize{Type: "i", Bytes: []byte{0}},
					&tg.PhotoSize{Type: "m", W: 320, H: 240, Size: 12000},
					&tg.PhotoSizeProgressive{Type: "y", W: 1280, H: 960, Sizes: []int{10000, 50000, 204800}},
					&tg.PhotoSize{Type: "x", W: 800, H: 600, Size: 90000},
				},
			},
		},
	}

	msg, ok := ParseMessage(raw, 100)
	require.True(t, ok)
	require.NotNil(t, msg.Media)

	assert.Equal(t, 42, msg.ID)
	assert.Equal(t, int64(100), msg.ChannelID)
	assert.Equal(t, MediaPhoto, msg.Media.Kind)
	assert.Equal(t, int64(204800), msg.Media.Size)
	assert.True(t, msg.Media.SizeKnown)
	assert.Equal(t, "y", msg.Media.PhotoType)

	loc, ok := msg.Media.Location.(*tg.InputPhotoFileLocation)
	require.True(t, ok)
	assert.Equal(t, int64(7), loc.ID)
	assert.Equal(t, "y", loc.ThumbSize)
}

func TestParseMessage_PhotoWithoutSizes(t *testing.T) {
	raw := &tg.Message{ID: 1, Media: &tg.MessageMediaPhoto{Photo: &tg.Photo{ID: 1}}}

	msg, ok := ParseMessage(raw, 1)
	require.True(t, ok)
	require.NotNil(t, msg.Media)
	assert.Equal(t, MediaPhoto, msg.Media.Kind)
	assert.Zero(t, msg.Media.Size)
	assert.False(t, msg.Media.SizeKnown)
	assert.Nil(t, msg.Media.Location)
}

func TestParseMessage_Document(t *testing.T) {
	tests := []struct {
		name      string
		doc       *tg.Document
		wantName  string
		wantVideo bool
	}{
		{
			name: "video with filename",
			doc: &tg.Document{
				ID: 1, MimeType: "video/mp4", Size: 5 << 20,
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeVideo{Duration: 12, W: 1920, H: 1080},
					&tg.DocumentAttributeFilename{FileName: "clip.mp4"},
				},
			},
			wantName:  "clip.mp4",
			wantVideo: true,
		},
		{
			name: "plain file",
			doc: &tg.Document{
				ID: 2, MimeType: "application/pdf", Size: 1024,
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeFilename{FileName: "report.pdf"},
				},
			},
			wantName: "report.pdf",
		},
		{
			name:     "empty file",
			doc:      &tg.Document{ID: 4, MimeType: "text/plain", Size: 0},
			wantName: "",
		},
		{
			name:     "no attributes",
			doc:      &tg.Document{ID: 3, MimeType: "video/quicktime", Size: 10},
			wantName: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := ParseMessage(&tg.Message{ID: 5, Media: &tg.MessageMediaDocument{Document: tt.doc}}, 9)
			require.True(t, ok)
			require.NotNil(t, msg.Media)

			assert.Equal(t, MediaDocument, msg.Media.Kind)
			assert.Equal(t, tt.doc.MimeType, msg.Media.MIMEType)
			assert.Equal(t, tt.doc.Size, msg.Media.Size)
			assert.True(t, msg.Media.SizeKnown)
			assert.Equal(t, tt.wantName, msg.Media.FileName)
			assert.Equal(t, tt.wantVideo, msg.Media.HasVideo)
			assert.IsType(t, &tg.InputDocumentFileLocation{}, msg.Media.Location)
		})
	}
}

func TestParseMessage_NonDownloadableMedia(t *testing.T) {
	msg, ok := ParseMessage(&tg.Message{ID: 3, Media: &tg.MessageMediaGeo{Geo: &tg.GeoPointEmpty{}}}, 1)
	require.True(t, ok)
	assert.Nil(t, msg.Media)

	msg, ok = ParseMessage(&tg.Message{ID: 4, Message: "text only"}, 1)
	require.True(t, ok)
	assert.Nil(t, msg.Media)
}

func TestParseMessage_ServiceMessage(t *testing.T) {
	_, ok := ParseMessage(&tg.MessageService{ID: 1}, 1)
	assert.False(t, ok)
}

func TestExtractMessages_CountsServiceMessages(t *testing.T) {
	res := &tg.MessagesChannelMessages{
		Messages: []tg.MessageClass{
			&tg.Message{ID: 3},
			&tg.MessageService{ID: 2},
			&tg.Message{ID: 1},
		},
	}

	msgs, raw := extractMessages(res, 1)
	assert.Len(t, msgs, 2)
	assert.Equal(t, 3, raw)
}
