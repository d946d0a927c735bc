package collector

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// progressInterval throttles transfer progress lines.
const progressInterval = 5 * time.Second

// progressLogger turns transfer callbacks into throttled log lines.
type progressLogger struct {
	log     *zerolog.Logger
	total   int64
	now     func() time.Time
	started time.Time
	last    time.Time
}

func newProgressLogger(log *zerolog.Logger, total int64, now func() time.Time) *progressLogger {
	t := now()
	return &progressLogger{log: log, total: total, now: now, started: t, last: t}
}

func (p *progressLogger) report(done, total int64) {
	if total <= 0 {
		total = p.total
	}
	t := p.now()
	if t.Sub(p.last) < progressInterval {
		return
	}
	p.last = t

	e := p.log.Info().
		Str("done", humanize.Bytes(uint64(done))).
		Str("total", humanize.Bytes(uint64(total))).
		Str("speed", p.speed(done, t))
	if total > 0 {
		e = e.Str("percent", humanize.FtoaWithDigits(float64(done)*100/float64(total), 1))
	}
	e.Msg("downloading")
}

func (p *progressLogger) done(size int64) {
	t := p.now()
	p.log.Info().
		Str("size", humanize.Bytes(uint64(size))).
		Dur("elapsed", t.Sub(p.started).Round(time.Millisecond)).
		Str("speed", p.speed(size, t)).
		Msg("transfer complete")
}

func (p *progressLogger) speed(done int64, t time.Time) string {
	elapsed := t.Sub(p.started).Seconds()
	if elapsed <= 0 {
		return "n/a"
	}
	return humanize.Bytes(uint64(float64(done)/elapsed)) + "/s"
}
