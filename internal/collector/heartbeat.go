package collector

import (
	"context"
	"time"

	"github.com/blockedby/tgdown/internal/logger"
)

// Heartbeat periodically logs queue depth and counters.
type Heartbeat struct {
	interval time.Duration
	depth    func() int
	counters *Counters
	log      *logger.Logger
}

// NewHeartbeat creates a heartbeat reporter. A non-positive interval
// disables it.
func NewHeartbeat(interval time.Duration, depth func() int, counters *Counters, log *logger.Logger) *Heartbeat {
	return &Heartbeat{interval: interval, depth: depth, counters: counters, log: log}
}

// Run reports until ctx is done.
func (h *Heartbeat) Run(ctx context.Context) error {
	if h.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *Heartbeat) beat() {
	s := h.counters.Snapshot()
	h.log.Info().
		Int("queue", h.depth()).
		Int64("downloaded", s.Downloaded).
		Int64("skipped_size", s.SkippedSize).
		Int64("skipped_hash", s.SkippedHash).
		Int64("skipped_filter", s.SkippedFilter).
		Int64("failed", s.Failed).
		Msg("heartbeat")
}
