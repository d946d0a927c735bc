// Package collector runs the ingestion pipeline: a backlog scanner and a
// live listener feed one bounded queue drained by a single download worker.
package collector

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/tgdown/internal/telegram"
)

// HistorySource enumerates channel history oldest-first.
type HistorySource interface {
	IterateHistory(ctx context.Context, ch *telegram.Channel, filter telegram.HistoryFilter, fn func(telegram.Message) error) error
}

// LiveSource pushes new channel messages and reports the current title.
type LiveSource interface {
	Subscribe(ctx context.Context, ch *telegram.Channel, fn func(telegram.Message)) error
	ChannelTitle(ctx context.Context, ch *telegram.Channel) (string, error)
}

// Downloader transfers message media to a local path.
type Downloader interface {
	Download(ctx context.Context, msg telegram.Message, path string, progress telegram.ProgressFunc) (int64, error)
}

// Source is everything the pipeline needs from the protocol client.
// *telegram.Client implements it.
type Source interface {
	HistorySource
	LiveSource
	Downloader
	ResolveChannel(ctx context.Context, ident string) (*telegram.Channel, error)
}

// Item is a discovered media message waiting in the queue.
type Item struct {
	Message      telegram.Message
	ChannelTitle string
}

// EventPublisher announces saved files.
type EventPublisher interface {
	PublishMediaSaved(ctx context.Context, event MediaSavedEvent) error
}

// MediaSavedEvent is emitted after a file is kept.
type MediaSavedEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	ChannelID   int64     `json:"channel_id"`
	MessageID   int       `json:"message_id"`
	Folder      string    `json:"folder"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"` // sniffed from the saved bytes
	MD5         string    `json:"md5"`
	SavedAt     time.Time `json:"saved_at"`
}
