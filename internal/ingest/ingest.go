package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/vibemesh/vibemesh/internal/log"
	"github.com/vibemesh/vibemesh/internal/registry"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// Per-event failure modes. All of them drop the event without touching
// state; none of them may take down the ingestion loop.
var (
	// ErrMalformed means the event failed shape validation.
	ErrMalformed = errors.New("malformed heartbeat")
	// ErrBadSignature means the signature or node_id/pubkey binding failed.
	ErrBadSignature = errors.New("heartbeat signature invalid")
	// ErrWalletMismatch means the event claims a different wallet than the
	// one on file for its node_id, a possible spoofing attempt.
	ErrWalletMismatch = errors.New("wallet address does not match record on file")
)

// Crediter receives validated heartbeats for reward accounting.
type Crediter interface {
	Credit(eventID string, wallet types.Address, hw types.HardwareSnapshot, canonical bool) error
}

// Ingestor applies validated heartbeat events. This is the only path that
// can transition a peer record to active; it never deactivates other
// records (collapsing duplicates is the monitor's job, keeping this hot
// path free of group scans on write).
type Ingestor struct {
	reg     *registry.Registry
	rewards Crediter
	logger  zerolog.Logger
}

// New creates an ingestor feeding the given registry and reward engine.
func New(reg *registry.Registry, rewards Crediter) *Ingestor {
	return &Ingestor{reg: reg, rewards: rewards, logger: klog.Ingest}
}

// Ingest validates one heartbeat event and, on success, upserts the peer
// record and forwards the event for reward crediting.
func (ing *Ingestor) Ingest(ev *HeartbeatEvent) error {
	now := time.Now()

	if err := ev.Validate(now); err != nil {
		ing.logger.Warn().Err(err).Str("node_id", ev.NodeID).Msg("Dropping malformed heartbeat")
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !ev.Verify() {
		ing.logger.Warn().Str("node_id", ev.NodeID).Msg("Dropping heartbeat with invalid signature")
		return ErrBadSignature
	}

	if prior, ok := ing.reg.Get(ev.NodeID); ok && prior.WalletAddress != ev.WalletAddress {
		ing.logger.Warn().
			Str("node_id", ev.NodeID).
			Str("claimed_wallet", ev.WalletAddress.String()).
			Str("wallet_on_file", prior.WalletAddress.String()).
			Msg("Dropping heartbeat: wallet mismatch, possible spoofing attempt")
		return ErrWalletMismatch
	}

	if _, err := ing.reg.Upsert(ev.NodeID, ev.WalletAddress, ev.HardwareSnapshot, ev.Timestamp); err != nil {
		return fmt.Errorf("upsert peer %s: %w", ev.NodeID, err)
	}

	// Canonical status is decided at credit time: a duplicate that lost
	// its fingerprint group earns nothing even though its record updated.
	canonical := ing.reg.IsCanonical(ev.NodeID)
	if err := ing.rewards.Credit(ev.EventID, ev.WalletAddress, ev.HardwareSnapshot, canonical); err != nil {
		return fmt.Errorf("credit event %s: %w", ev.EventID, err)
	}

	ing.logger.Debug().
		Str("node_id", ev.NodeID).
		Bool("canonical", canonical).
		Msg("Heartbeat applied")
	return nil
}
