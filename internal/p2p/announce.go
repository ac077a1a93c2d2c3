package p2p

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibemesh/vibemesh/internal/ingest"
	klog "github.com/vibemesh/vibemesh/internal/log"
	"github.com/vibemesh/vibemesh/pkg/crypto"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// Broadcaster publishes a heartbeat to the mesh.
type Broadcaster interface {
	BroadcastHeartbeat(ev *ingest.HeartbeatEvent) error
}

// Announcer periodically emits this node's own signed heartbeat: once to
// the mesh and once to the local ingestion path, so the node counts
// itself without waiting for its own gossip to echo back.
type Announcer struct {
	nodeID   string
	wallet   types.Address
	signer   *crypto.PrivateKey
	hardware types.HardwareSnapshot
	interval time.Duration

	broadcast Broadcaster
	apply     func(*ingest.HeartbeatEvent) error
	logger    zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewAnnouncer creates an announcer for the given identity and hardware.
func NewAnnouncer(nodeID string, wallet types.Address, signer *crypto.PrivateKey, hw types.HardwareSnapshot, interval time.Duration, broadcast Broadcaster, apply func(*ingest.HeartbeatEvent) error) *Announcer {
	return &Announcer{
		nodeID:    nodeID,
		wallet:    wallet,
		signer:    signer,
		hardware:  hw,
		interval:  interval,
		broadcast: broadcast,
		apply:     apply,
		logger:    klog.P2P,
	}
}

// Start begins the announce loop. The first heartbeat goes out
// immediately.
func (a *Announcer) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		a.announce()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.announce()
			}
		}
	}()
}

// Stop halts the loop and waits for any in-flight announce to finish.
func (a *Announcer) Stop() {
	a.once.Do(func() {
		if a.cancel != nil {
			a.cancel()
			<-a.done
		}
	})
}

// announce builds, signs, applies, and broadcasts one heartbeat.
func (a *Announcer) announce() {
	ev := ingest.NewEvent(a.nodeID, a.wallet, a.hardware, time.Now())
	if err := ev.Sign(a.signer); err != nil {
		a.logger.Error().Err(err).Msg("Signing own heartbeat failed")
		return
	}

	if err := a.apply(ev); err != nil {
		a.logger.Error().Err(err).Msg("Applying own heartbeat failed")
	}
	if err := a.broadcast.BroadcastHeartbeat(ev); err != nil {
		a.logger.Warn().Err(err).Msg("Broadcasting heartbeat failed")
		return
	}
	a.logger.Debug().Str("event_id", ev.EventID).Msg("Heartbeat announced")
}
