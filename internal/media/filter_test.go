package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tgdown/internal/telegram"
)

var (
	photo        = &telegram.Media{Kind: telegram.MediaPhoto, Size: 1000}
	videoAttr    = &telegram.Media{Kind: telegram.MediaDocument, MIMEType: "application/octet-stream", HasVideo: true}
	videoMIME    = &telegram.Media{Kind: telegram.MediaDocument, MIMEType: "Video/MP4"}
	document     = &telegram.Media{Kind: telegram.MediaDocument, MIMEType: "application/pdf"}
	unknownKind  = &telegram.Media{}
	noAttachment *telegram.Media
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		media *telegram.Media
		want  Class
	}{
		{"photo", photo, ClassPhoto},
		{"video attribute", videoAttr, ClassVideo},
		{"video mime", videoMIME, ClassVideo},
		{"document", document, ClassOther},
		{"unknown kind", unknownKind, ClassNone},
		{"nil", noAttachment, ClassNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.media))
		})
	}
}

func TestFilter_ShouldDownload(t *testing.T) {
	tests := []struct {
		policy Policy
		media  *telegram.Media
		want   bool
	}{
		{PolicyAll, photo, true},
		{PolicyAll, videoAttr, true},
		{PolicyAll, document, true},
		{PolicyAll, noAttachment, false},
		{PolicyPhoto, photo, true},
		{PolicyPhoto, videoMIME, false},
		{PolicyPhoto, document, false},
		{PolicyVideo, videoAttr, true},
		{PolicyVideo, videoMIME, true},
		{PolicyVideo, photo, false},
		{PolicyVideo, document, false},
		{PolicyVideo, noAttachment, false},
		{Policy("audio"), photo, false},
	}

	for _, tt := range tests {
		f := Filter{Policy: tt.policy}
		got := f.ShouldDownload(tt.media)
		assert.Equal(t, tt.want, got, "policy=%s class=%s", tt.policy, Classify(tt.media))
	}
}

func TestFilter_AcceptedMatchesPolicyClass(t *testing.T) {
	all := []*telegram.Media{photo, videoAttr, videoMIME, document, unknownKind, noAttachment}

	for _, m := range all {
		if (Filter{Policy: PolicyVideo}).ShouldDownload(m) {
			assert.Equal(t, ClassVideo, Classify(m))
		}
		if (Filter{Policy: PolicyPhoto}).ShouldDownload(m) {
			assert.Equal(t, ClassPhoto, Classify(m))
		}
		if Classify(m) != ClassNone {
			assert.True(t, (Filter{Policy: PolicyAll}).ShouldDownload(m))
		}
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(" Photo ")
	require.NoError(t, err)
	assert.Equal(t, PolicyPhoto, p)

	_, err = ParsePolicy("audio")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestPolicy_HistoryFilter(t *testing.T) {
	assert.Equal(t, telegram.HistoryPhotos, PolicyPhoto.HistoryFilter())
	assert.Equal(t, telegram.HistoryAll, PolicyVideo.HistoryFilter())
	assert.Equal(t, telegram.HistoryAll, PolicyAll.HistoryFilter())
}
