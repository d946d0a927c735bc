package telegram

import (
	"time"

	"github.com/gotd/td/tg"
)

// Channel represents a resolved telegram channel.
type Channel struct {
	ID         int64  // channel id
	AccessHash int64  // access hash for api calls
	Username   string // channel username (without @), may be empty
	Title      string // display title at resolution time
}

// InputPeer returns the peer used in history and search requests.
func (c *Channel) InputPeer() *tg.InputPeerChannel {
	return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
}

// InputChannel returns the channel reference used in channels.* requests.
func (c *Channel) InputChannel() *tg.InputChannel {
	return &tg.InputChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
}

// MediaKind is the attachment class of a message.
type MediaKind int

const (
	MediaPhoto MediaKind = iota + 1
	MediaDocument
)

func (k MediaKind) String() string {
	switch k {
	case MediaPhoto:
		return "photo"
	case MediaDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Media is the downloadable attachment of a message, reduced to the
// metadata needed for filtering, naming, dedup and transfer.
type Media struct {
	Kind      MediaKind
	MIMEType  string // documents only
	FileName  string // from the filename attribute, if any
	HasVideo  bool   // document carries a video attribute
	Size      int64  // declared byte size
	SizeKnown bool   // false when the server declared no size
	Location  tg.InputFileLocationClass
	PhotoType string // size variant type for photos
}

// Message represents a parsed channel message.
type Message struct {
	ID        int       // message id (unique within channel)
	ChannelID int64     // channel id
	Date      time.Time // message creation timestamp
	Media     *Media    // nil when the message has no downloadable media
}

// HistoryFilter narrows history enumeration server-side.
type HistoryFilter int

const (
	HistoryAll HistoryFilter = iota
	HistoryPhotos
)

// ProgressFunc receives transfer progress. total is 0 when unknown.
type ProgressFunc func(done, total int64)
