package collector

import (
	"context"

	"github.com/blockedby/tgdown/internal/logger"
	"github.com/blockedby/tgdown/internal/media"
	"github.com/blockedby/tgdown/internal/queue"
	"github.com/blockedby/tgdown/internal/telegram"
)

// Listener enqueues eligible messages as they are posted.
type Listener struct {
	source   LiveSource
	queue    *queue.Queue[Item]
	filter   media.Filter
	counters *Counters
	log      *logger.Logger
}

// NewListener creates a live listener.
func NewListener(source LiveSource, q *queue.Queue[Item], filter media.Filter, counters *Counters, log *logger.Logger) *Listener {
	return &Listener{
		source:   source,
		queue:    q,
		filter:   filter,
		counters: counters,
		log:      log,
	}
}

// Run subscribes to ch and blocks until ctx is done.
func (l *Listener) Run(ctx context.Context, ch *telegram.Channel) error {
	err := l.source.Subscribe(ctx, ch, func(msg telegram.Message) {
		l.handle(ctx, ch, msg)
	})
	if err != nil {
		return err
	}

	l.log.Info().Str("channel", ch.Title).Msg("listening for new messages")
	<-ctx.Done()
	return nil
}

// handle runs on the subscription's delivery goroutine, so a full queue
// holds back further deliveries.
func (l *Listener) handle(ctx context.Context, ch *telegram.Channel, msg telegram.Message) {
	if !l.filter.ShouldDownload(msg.Media) {
		l.counters.skippedFilter.Add(1)
		return
	}
	if ctx.Err() != nil {
		return
	}

	// the title decides the folder and may have changed since resolution
	title, err := l.source.ChannelTitle(ctx, ch)
	if err != nil {
		l.log.Warn().Err(err).Msg("failed to fetch channel title, using cached one")
		title = ch.Title
	}

	if err := l.queue.Put(ctx, Item{Message: msg, ChannelTitle: title}); err != nil {
		l.log.Debug().Int("message_id", msg.ID).Msg("live item dropped on shutdown")
		return
	}
	l.log.Info().Int("message_id", msg.ID).Int("queue", l.queue.Len()).Msg("new message queued")
}
