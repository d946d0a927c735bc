package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/blockedby/tgdown/internal/dedup"
	"github.com/blockedby/tgdown/internal/logger"
	"github.com/blockedby/tgdown/internal/media"
	"github.com/blockedby/tgdown/internal/queue"
	"github.com/blockedby/tgdown/internal/telegram"
)

// errors
var (
	ErrUnknownSize = errors.New("remote size unknown")
	ErrNoFreeName  = errors.New("no free file name")
)

// maxCollisions bounds the search for an alternative file name.
const maxCollisions = 1000

// WorkerConfig holds the worker settings.
type WorkerConfig struct {
	Root      string // download root, one subfolder per channel title
	SizeDedup bool   // skip items whose size is already present in the folder
}

// Worker is the single consumer of the queue. It owns every dedup.Index,
// so nothing else may touch them once Run has started.
type Worker struct {
	source    Downloader
	queue     *queue.Queue[Item]
	cfg       WorkerConfig
	counters  *Counters
	publisher EventPublisher
	log       *logger.Logger

	indexes map[string]*dedup.Index
	now     func() time.Time
}

// NewWorker creates a download worker. publisher may be nil.
func NewWorker(source Downloader, q *queue.Queue[Item], cfg WorkerConfig, counters *Counters, publisher EventPublisher, log *logger.Logger) *Worker {
	return &Worker{
		source:    source,
		queue:     q,
		cfg:       cfg,
		counters:  counters,
		publisher: publisher,
		log:       log,
		indexes:   make(map[string]*dedup.Index),
		now:       time.Now,
	}
}

// Warm opens the dedup index of the folder for title. Call it before Run
// for the target channel so no item is checked against an empty index.
func (w *Worker) Warm(title string) (*dedup.Index, error) {
	folder := media.FolderName(title)
	if idx, ok := w.indexes[folder]; ok {
		return idx, nil
	}

	idx, err := dedup.Open(filepath.Join(w.cfg.Root, folder), w.log)
	if err != nil {
		return nil, err
	}
	w.indexes[folder] = idx
	return idx, nil
}

// Run takes items off the queue one at a time until ctx is done. A
// transfer in progress when ctx is canceled is finished first.
func (w *Worker) Run(ctx context.Context) error {
	for {
		item, err := w.queue.Get(ctx)
		if err != nil {
			return nil
		}
		w.Process(ctx, item)
	}
}

// Process handles one item. Errors are logged and counted, never returned.
func (w *Worker) Process(ctx context.Context, item Item) {
	if err := w.process(ctx, item); err != nil {
		w.counters.failed.Add(1)
		w.log.Error().Err(err).Int("message_id", item.Message.ID).Msg("item failed")
	}
}

func (w *Worker) process(ctx context.Context, item Item) error {
	msg := item.Message
	if msg.Media == nil {
		return telegram.ErrNoMedia
	}

	idx, err := w.Warm(item.ChannelTitle)
	if err != nil {
		return err
	}

	if !msg.Media.SizeKnown {
		return fmt.Errorf("%w: message %d", ErrUnknownSize, msg.ID)
	}
	size := msg.Media.Size

	name := media.FileName(msg)
	if strings.HasSuffix(name, dedup.PartSuffix) {
		// warm-up would remove it as a leftover transfer
		name += ".bin"
	}

	log := w.log.With().Int("message_id", msg.ID).Str("file", name).Int64("size", size).Logger()

	if w.cfg.SizeDedup && idx.HasSize(size) {
		w.counters.skippedSize.Add(1)
		log.Info().Msg("skipped, size already present")
		return nil
	}

	path, exists, err := resolvePath(idx.Dir(), name, msg.ID, size)
	if err != nil {
		return err
	}
	if exists {
		w.counters.skippedSize.Add(1)
		log.Info().Str("path", path).Msg("skipped, file already exists")
		return nil
	}

	// a started transfer is finished even when shutdown begins
	part := path + dedup.PartSuffix
	progress := newProgressLogger(&log, size, w.now)
	if _, err := w.source.Download(context.WithoutCancel(ctx), msg, part, progress.report); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("transfer: %w", err)
	}
	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("move into place: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	progress.done(info.Size())
	idx.AddSize(info.Size())

	hash, err := dedup.HashFile(path)
	if err != nil {
		return err
	}

	if idx.HasHash(hash) {
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to delete duplicate")
		}
		w.counters.skippedHash.Add(1)
		log.Info().Str("md5", hash).Msg("duplicate content, deleted")
		return nil
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(path); err == nil {
		contentType = mt.String()
	}

	if err := idx.AddHash(hash); err != nil {
		// the file is kept; a lagging sidecar can only miss a duplicate later
		log.Error().Err(err).Msg("failed to persist hash index")
	}
	w.counters.downloaded.Add(1)
	log.Info().Str("path", path).Str("md5", hash).Msg("saved")

	w.publish(ctx, MediaSavedEvent{
		EventID:     uuid.New(),
		ChannelID:   msg.ChannelID,
		MessageID:   msg.ID,
		Folder:      filepath.Base(idx.Dir()),
		Path:        path,
		Size:        info.Size(),
		ContentType: contentType,
		MD5:         hash,
		SavedAt:     w.now(),
	})
	return nil
}

func (w *Worker) publish(ctx context.Context, event MediaSavedEvent) {
	if w.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.publisher.PublishMediaSaved(ctx, event); err != nil {
		w.log.Warn().Err(err).Int("message_id", event.MessageID).Msg("failed to publish saved event")
	}
}

// resolvePath finds where name should be written. A file with the same
// size already at a candidate path counts as downloaded (exists=true); a
// different-size file is never overwritten and the next alternative name
// is tried instead. Names reserved for the hash index are always taken.
func resolvePath(dir, name string, msgID int, size int64) (path string, exists bool, err error) {
	for n := 0; n <= maxCollisions; n++ {
		candidate := name
		if n > 0 {
			candidate = media.CollisionName(name, msgID, n)
		}
		if dedup.Reserved(candidate) {
			continue
		}
		path = filepath.Join(dir, candidate)

		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() == size {
			return path, true, nil
		}
	}
	return "", false, fmt.Errorf("%w for %s", ErrNoFreeName, name)
}
