package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockedby/tgdown/internal/logger"
	"github.com/blockedby/tgdown/internal/media"
	"github.com/blockedby/tgdown/internal/queue"
	"github.com/blockedby/tgdown/internal/telegram"
)

// scanProgressEvery is how many accepted items pass between progress lines.
const scanProgressEvery = 20

// Scanner walks the channel backlog once, oldest-first, and enqueues every
// eligible message.
type Scanner struct {
	source   HistorySource
	queue    *queue.Queue[Item]
	filter   media.Filter
	counters *Counters
	log      *logger.Logger
}

// NewScanner creates a backlog scanner.
func NewScanner(source HistorySource, q *queue.Queue[Item], filter media.Filter, counters *Counters, log *logger.Logger) *Scanner {
	return &Scanner{
		source:   source,
		queue:    q,
		filter:   filter,
		counters: counters,
		log:      log,
	}
}

// Run scans until the history is exhausted or ctx is done. Cancellation is
// not an error.
func (s *Scanner) Run(ctx context.Context, ch *telegram.Channel) error {
	s.log.Info().Str("channel", ch.Title).Str("policy", string(s.filter.Policy)).Msg("scanning history")

	var seen, accepted int
	err := s.source.IterateHistory(ctx, ch, s.filter.Policy.HistoryFilter(), func(msg telegram.Message) error {
		seen++
		if !s.filter.ShouldDownload(msg.Media) {
			s.counters.skippedFilter.Add(1)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.queue.Put(ctx, Item{Message: msg, ChannelTitle: ch.Title}); err != nil {
			return err
		}

		accepted++
		if accepted%scanProgressEvery == 0 {
			s.log.Info().
				Int("accepted", accepted).
				Int("seen", seen).
				Int("last_message_id", msg.ID).
				Msg("history scan progress")
		}
		return nil
	})

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.log.Info().Int("accepted", accepted).Msg("history scan interrupted")
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan history: %w", err)
	}

	s.log.Info().Int("accepted", accepted).Int("seen", seen).Msg("history scan complete")
	return nil
}
