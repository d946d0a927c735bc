package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blockedby/tgdown/internal/logger"
	"github.com/blockedby/tgdown/internal/media"
	"github.com/blockedby/tgdown/internal/queue"
	"github.com/blockedby/tgdown/internal/telegram"
)

// errors
var (
	ErrShutdownTimeout = errors.New("in-flight transfer did not finish before the shutdown timeout")
)

// State is the lifecycle phase of the controller.
type State string

const (
	StateStarting State = "STARTING"
	StateWarming  State = "WARMING"
	StateRunning  State = "RUNNING"
	StateDraining State = "DRAINING"
	StateStopped  State = "STOPPED"
)

// Options configures the pipeline.
type Options struct {
	Channel           string
	Root              string
	Policy            media.Policy
	History           bool
	SizeDedup         bool
	QueueSize         int
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
}

// Status is a snapshot for the status endpoint.
type Status struct {
	State      State  `json:"state"`
	Channel    string `json:"channel,omitempty"`
	QueueDepth int    `json:"queue_depth"`
	QueueCap   int    `json:"queue_capacity"`
	Counters   Stats  `json:"counters"`
}

// Controller sequences startup and shutdown of the pipeline.
type Controller struct {
	source Source
	opts   Options
	log    *logger.Logger

	queue    *queue.Queue[Item]
	counters *Counters
	filter   media.Filter
	worker   *Worker

	mu      sync.RWMutex
	state   State
	channel string
}

// NewController wires the queue, producers and worker. publisher may be nil.
func NewController(source Source, opts Options, publisher EventPublisher, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Get()
	}
	q := queue.New[Item](opts.QueueSize)
	counters := &Counters{}

	return &Controller{
		source:   source,
		opts:     opts,
		log:      log,
		queue:    q,
		counters: counters,
		filter:   media.Filter{Policy: opts.Policy},
		worker: NewWorker(source, q, WorkerConfig{
			Root:      opts.Root,
			SizeDedup: opts.SizeDedup,
		}, counters, publisher, log.Component("worker")),
		state: StateStarting,
	}
}

// Counters returns the live counters.
func (c *Controller) Counters() *Counters {
	return c.counters
}

// Status returns the current lifecycle state, queue depth and counters.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		State:      c.state,
		Channel:    c.channel,
		QueueDepth: c.queue.Len(),
		QueueCap:   c.queue.Cap(),
		Counters:   c.counters.Snapshot(),
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.log.Debug().Str("state", string(s)).Msg("state changed")
}

// Run resolves the channel, warms its dedup index and runs the pipeline
// until ctx is canceled. On cancellation producers stop at once, the
// worker finishes its current transfer (bounded by ShutdownTimeout) and
// queued items are abandoned. The caller disconnects the session after
// Run returns.
func (c *Controller) Run(ctx context.Context) error {
	ch, err := c.source.ResolveChannel(ctx, c.opts.Channel)
	if err != nil {
		c.setState(StateStopped)
		return fmt.Errorf("resolve channel: %w", err)
	}

	c.setState(StateWarming)
	c.mu.Lock()
	c.channel = ch.Title
	c.mu.Unlock()

	idx, err := c.worker.Warm(ch.Title)
	if err != nil {
		c.setState(StateStopped)
		return fmt.Errorf("warm dedup index: %w", err)
	}
	c.log.Info().
		Str("channel", ch.Title).
		Str("folder", idx.Dir()).
		Int("known_hashes", idx.HashCount()).
		Msg("destination ready")

	c.setState(StateRunning)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.worker.Run(gctx)
	})
	g.Go(func() error {
		return NewHeartbeat(c.opts.HeartbeatInterval, c.queue.Len, c.counters, c.log.Component("heartbeat")).Run(gctx)
	})
	g.Go(func() error {
		return NewListener(c.source, c.queue, c.filter, c.counters, c.log.Component("listener")).Run(gctx, ch)
	})
	if c.opts.History {
		g.Go(func() error {
			scanner := NewScanner(c.source, c.queue, c.filter, c.counters, c.log.Component("scanner"))
			if err := scanner.Run(gctx, ch); err != nil {
				// the live side keeps running without the backlog
				c.log.Error().Err(err).Msg("history scan failed")
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err = <-done:
	case <-gctx.Done():
		c.setState(StateDraining)
		c.log.Info().Msg("shutting down, waiting for the current transfer")
		err = c.awaitDrain(done)
	}

	if n := c.queue.Len(); n > 0 {
		c.log.Warn().Int("abandoned", n).Msg("queued items abandoned")
	}
	c.setState(StateStopped)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Controller) awaitDrain(done <-chan error) error {
	if c.opts.ShutdownTimeout <= 0 {
		return <-done
	}

	timer := time.NewTimer(c.opts.ShutdownTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

var _ Source = (*telegram.Client)(nil)
