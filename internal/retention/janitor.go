// Package retention expires stale refinement context.
//
// Refinement context is only useful while a conversation is live. The
// memory and Postgres stores keep rows until something deletes them, so
// the janitor runs as a background goroutine that periodically removes
// every context whose last update is older than the configured TTL.
// Redis expires keys natively and needs no janitor.
package retention

import (
	"context"
	"time"

	"github.com/agentoven/concierge/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// MinInterval is the floor for the sweep interval.
const MinInterval = time.Minute

// Purger is implemented by stores that support bulk expiry.
type Purger interface {
	Kind() string
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CycleStats tracks what happened in a single sweep.
type CycleStats struct {
	Cutoff  time.Time
	Purged  int
	Elapsed time.Duration
	Err     error
}

// Janitor periodically purges refinement context older than ttl.
type Janitor struct {
	store    Purger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewJanitor creates a janitor. It returns nil when ttl is zero (keep
// forever) so callers can skip starting it.
func NewJanitor(s Purger, ttl, interval time.Duration) *Janitor {
	if s == nil || ttl <= 0 {
		return nil
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Janitor{
		store:    s,
		ttl:      ttl,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs sweeps until ctx is canceled.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().
		Str("store", j.store.Kind()).
		Dur("ttl", j.ttl).
		Dur("interval", j.interval).
		Msg("Retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	j.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle performs one sweep.
func (j *Janitor) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	stats := CycleStats{Cutoff: j.now().Add(-j.ttl)}

	stats.Purged, stats.Err = j.store.PurgeBefore(ctx, stats.Cutoff)
	stats.Elapsed = time.Since(start)
	telemetry.RecordRefinementOp("purge", stats.Err)

	if stats.Err != nil {
		log.Warn().Err(stats.Err).Str("store", j.store.Kind()).Msg("Retention cycle failed")
		return stats
	}
	if stats.Purged > 0 {
		log.Info().
			Int("purged", stats.Purged).
			Time("cutoff", stats.Cutoff).
			Dur("elapsed", stats.Elapsed).
			Msg("Retention cycle complete")
	}
	return stats
}
