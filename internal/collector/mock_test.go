package collector

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"

	"github.com/blockedby/tgdown/internal/telegram"
)

// MockSource is an in-memory channel with scripted history and downloads.
type MockSource struct {
	mu sync.Mutex

	Channel    *telegram.Channel
	ResolveErr error
	Title      string
	TitleErr   error

	History    []telegram.Message
	HistoryErr error

	// Content overrides the bytes served for a message id. By default a
	// message serves Media.Size bytes derived from its id.
	Content     map[int][]byte
	DownloadErr map[int]error

	// Block, when set, holds every transfer until it is closed. Started
	// receives the message id of each transfer as it begins.
	Block   chan struct{}
	Started chan int

	Filters       []telegram.HistoryFilter
	Downloads     []int
	TransferCtxOK []bool

	live       func(telegram.Message)
	subscribed chan struct{}
}

func NewMockSource(title string) *MockSource {
	return &MockSource{
		Channel:    &telegram.Channel{ID: 777, AccessHash: 1, Title: title},
		Title:      title,
		Content:    make(map[int][]byte),
		subscribed: make(chan struct{}),
	}
}

func (m *MockSource) ResolveChannel(_ context.Context, _ string) (*telegram.Channel, error) {
	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}
	ch := *m.Channel
	return &ch, nil
}

func (m *MockSource) ChannelTitle(_ context.Context, _ *telegram.Channel) (string, error) {
	if m.TitleErr != nil {
		return "", m.TitleErr
	}
	return m.Title, nil
}

func (m *MockSource) IterateHistory(ctx context.Context, _ *telegram.Channel, filter telegram.HistoryFilter, fn func(telegram.Message) error) error {
	m.mu.Lock()
	m.Filters = append(m.Filters, filter)
	history := append([]telegram.Message(nil), m.History...)
	m.mu.Unlock()

	for _, msg := range history {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	return m.HistoryErr
}

func (m *MockSource) Subscribe(_ context.Context, _ *telegram.Channel, fn func(telegram.Message)) error {
	m.mu.Lock()
	m.live = fn
	m.mu.Unlock()
	close(m.subscribed)
	return nil
}

// Post delivers msg as a live event.
func (m *MockSource) Post(msg telegram.Message) {
	<-m.subscribed
	m.mu.Lock()
	fn := m.live
	m.mu.Unlock()
	fn(msg)
}

func (m *MockSource) Download(ctx context.Context, msg telegram.Message, path string, progress telegram.ProgressFunc) (int64, error) {
	m.mu.Lock()
	m.Downloads = append(m.Downloads, msg.ID)
	content, ok := m.Content[msg.ID]
	dlErr := m.DownloadErr[msg.ID]
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- msg.ID
	}
	if m.Block != nil {
		<-m.Block
	}

	m.mu.Lock()
	m.TransferCtxOK = append(m.TransferCtxOK, ctx.Err() == nil)
	m.mu.Unlock()

	if dlErr != nil {
		// leave a partial file behind like an interrupted transfer would
		_ = os.WriteFile(path, []byte("partial"), 0o644)
		return 0, dlErr
	}
	if !ok {
		content = bytes.Repeat([]byte{byte(msg.ID)}, int(msg.Media.Size))
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return 0, err
	}
	if progress != nil {
		progress(int64(len(content)), msg.Media.Size)
	}
	return int64(len(content)), nil
}

func (m *MockSource) DownloadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Downloads)
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	Events []MediaSavedEvent
	Err    error
}

func (p *MockPublisher) PublishMediaSaved(_ context.Context, event MediaSavedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return p.Err
}

var errTransfer = errors.New("connection reset")

func photoMsg(id int, size int64) telegram.Message {
	return telegram.Message{
		ID:        id,
		ChannelID: 777,
		Media:     &telegram.Media{Kind: telegram.MediaPhoto, Size: size, SizeKnown: true, PhotoType: "y"},
	}
}

func videoMsg(id int, size int64) telegram.Message {
	return telegram.Message{
		ID:        id,
		ChannelID: 777,
		Media: &telegram.Media{
			Kind:      telegram.MediaDocument,
			MIMEType:  "video/mp4",
			HasVideo:  true,
			Size:      size,
			SizeKnown: true,
		},
	}
}

func docMsg(id int, name string, size int64) telegram.Message {
	return telegram.Message{
		ID:        id,
		ChannelID: 777,
		Media: &telegram.Media{
			Kind:      telegram.MediaDocument,
			MIMEType:  "application/octet-stream",
			FileName:  name,
			Size:      size,
			SizeKnown: true,
		},
	}
}
