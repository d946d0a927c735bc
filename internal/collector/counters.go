package collector

import "sync/atomic"

// Counters are process-lifetime totals. They are observability only and
// safe for concurrent use.
type Counters struct {
	downloaded    atomic.Int64
	skippedSize   atomic.Int64
	skippedHash   atomic.Int64
	skippedFilter atomic.Int64
	failed        atomic.Int64
}

// Stats is a point-in-time copy of Counters.
type Stats struct {
	Downloaded    int64 `json:"downloaded"`
	SkippedSize   int64 `json:"skipped_size"`
	SkippedHash   int64 `json:"skipped_hash"`
	SkippedFilter int64 `json:"skipped_filter"`
	Failed        int64 `json:"failed"`
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Stats {
	return Stats{
		Downloaded:    c.downloaded.Load(),
		SkippedSize:   c.skippedSize.Load(),
		SkippedHash:   c.skippedHash.Load(),
		SkippedFilter: c.skippedFilter.Load(),
		Failed:        c.failed.Load(),
	}
}
