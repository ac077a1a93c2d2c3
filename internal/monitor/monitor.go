// Package monitor runs the periodic maintenance tick: collapsing
// duplicate peers and deactivating peers whose heartbeats went quiet.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/vibemesh/vibemesh/internal/log"
	"github.com/vibemesh/vibemesh/internal/registry"
	"github.com/vibemesh/vibemesh/internal/reward"
)

// seenMarkRetention is how long reward idempotency marks are kept before
// the tick prunes them.
const seenMarkRetention = 24 * time.Hour

// Monitor owns the maintenance loop. Ticks run on a single goroutine, so
// at most one pass is in flight at any time; a slow pass delays the next
// tick instead of overlapping it.
type Monitor struct {
	reg        *registry.Registry
	rewards    *reward.Engine
	interval   time.Duration
	staleAfter time.Duration
	logger     zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New creates a monitor ticking every interval, deactivating peers whose
// last heartbeat is older than staleAfter.
func New(reg *registry.Registry, rewards *reward.Engine, interval, staleAfter time.Duration) *Monitor {
	return &Monitor{
		reg:        reg,
		rewards:    rewards,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     klog.Monitor,
	}
}

// Start launches the tick loop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		m.logger.Info().
			Dur("interval", m.interval).
			Dur("stale_after", m.staleAfter).
			Msg("Liveness monitor started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RunTick(ctx, time.Now())
			}
		}
	}()
}

// Stop cancels the loop and waits for any in-flight tick to finish.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		}
		m.logger.Info().Msg("Liveness monitor stopped")
	})
}

// RunTick performs one maintenance pass: duplicate collapse first, then
// staleness, then pruning of expired reward marks. Running it again with
// no intervening heartbeats changes nothing.
func (m *Monitor) RunTick(ctx context.Context, now time.Time) {
	deduped := m.dedupPass(ctx)
	if ctx.Err() != nil {
		return
	}
	deactivated := m.stalenessPass(ctx, now)
	if ctx.Err() != nil {
		return
	}
	if _, err := m.rewards.PruneSeen(seenMarkRetention); err != nil {
		m.logger.Error().Err(err).Msg("Pruning reward marks failed")
	}
	if deduped > 0 || deactivated > 0 {
		m.logger.Info().
			Int("duplicates_collapsed", deduped).
			Int("stale_deactivated", deactivated).
			Msg("Maintenance tick complete")
	}
}

// dedupPass collapses each fingerprint group with more than one active
// record down to its canonical record. Each group commits independently,
// so cancellation between groups leaves every touched group consistent.
func (m *Monitor) dedupPass(ctx context.Context) int {
	var collapsed int
	for fp, group := range m.reg.GroupByFingerprint(true) {
		if len(group) < 2 {
			continue
		}
		if ctx.Err() != nil {
			return collapsed
		}
		losers, err := m.reg.DedupGroup(fp)
		if err != nil {
			m.logger.Error().Err(err).Str("fingerprint", fp.String()).Msg("Duplicate collapse failed")
			continue
		}
		collapsed += len(losers)
	}
	return collapsed
}

// stalenessPass deactivates active peers whose heartbeat gap exceeds
// the staleness window; a gap of exactly the window is not yet stale.
// The registry re-checks the timestamp under its own lock, so a
// heartbeat racing this pass wins.
func (m *Monitor) stalenessPass(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-m.staleAfter).Unix()
	var deactivated int
	for _, rec := range m.reg.ListActive() {
		if ctx.Err() != nil {
			return deactivated
		}
		if rec.LastHeartbeatAt >= cutoff {
			continue
		}
		applied, err := m.reg.DeactivateIfStale(rec.NodeID, cutoff)
		if err != nil {
			m.logger.Error().Err(err).Str("node_id", rec.NodeID).Msg("Staleness deactivation failed")
			continue
		}
		if applied {
			deactivated++
		}
	}
	return deactivated
}
