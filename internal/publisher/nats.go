// Package publisher announces saved media on NATS.
package publisher

import (
	"context"
	"fmt"

	"github.com/blockedby/tgdown/internal/collector"
)

// Stream and subject names for saved-media events.
const (
	StreamName       = "MEDIA"
	SubjectWildcard  = "media.>"
	SubjectMediaSave = "media.saved"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATSPublisher implements collector.EventPublisher
type NATSPublisher struct {
	js NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(client NATSClient) *NATSPublisher {
	return &NATSPublisher{js: client}
}

// PublishMediaSaved publishes a saved-file event.
func (p *NATSPublisher) PublishMediaSaved(ctx context.Context, event collector.MediaSavedEvent) error {
	if err := p.js.Publish(ctx, SubjectMediaSave, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

var _ collector.EventPublisher = (*NATSPublisher)(nil)
