package reward

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/vibemesh/vibemesh/internal/log"
	"github.com/vibemesh/vibemesh/internal/storage"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// Engine accrues VIBE for canonical heartbeats and settles pending
// balances. Every mutation writes its ledger entry and idempotency mark
// in one storage batch, so a crash between the two cannot double-credit.
type Engine struct {
	mu sync.Mutex

	db        storage.DB
	batcher   storage.Batcher
	baseMilli types.Amount
	logger    zerolog.Logger
}

// NewEngine creates a reward engine storing its ledger in db, paying
// baseMilli milli-VIBE per canonical heartbeat before hardware bonuses.
// The db must support atomic batches.
func NewEngine(db storage.DB, baseMilli types.Amount) (*Engine, error) {
	batcher, ok := db.(storage.Batcher)
	if !ok {
		return nil, fmt.Errorf("reward engine requires a batching store")
	}
	if baseMilli == 0 {
		return nil, fmt.Errorf("base reward rate must be positive")
	}
	return &Engine{
		db:        db,
		batcher:   batcher,
		baseMilli: baseMilli,
		logger:    klog.Reward,
	}, nil
}

// Credit accrues the reward for one heartbeat event. Redeliveries of an
// already-seen event id are no-ops, as are events from non-canonical
// duplicates; both still leave a seen mark so replays stay cheap.
func (e *Engine) Credit(eventID string, wallet types.Address, hw types.HardwareSnapshot, canonical bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.db.Get(seenKey(eventID)); err == nil {
		e.logger.Debug().Str("event_id", eventID).Msg("Event already credited, skipping")
		return nil
	}

	now := time.Now().Unix()
	var credited types.Amount
	if canonical {
		credited = RewardFor(e.baseMilli, hw)
	}

	entry, err := e.loadEntry(wallet)
	if err != nil {
		return err
	}
	if credited > 0 {
		entry.PendingDistribution += credited
		entry.TotalEarned += credited
		entry.LastRewardAt = now
	}

	batch := e.batcher.NewBatch()
	if credited > 0 {
		if err := e.putEntry(batch, &entry); err != nil {
			return err
		}
	}
	mark, err := json.Marshal(seenMark{WalletAddress: wallet, Credited: credited, SeenAt: now})
	if err != nil {
		return fmt.Errorf("marshal seen mark: %w", err)
	}
	if err := batch.Put(seenKey(eventID), mark); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit credit for event %s: %w", eventID, err)
	}

	if credited > 0 {
		e.logger.Debug().
			Str("wallet", wallet.String()).
			Str("amount", credited.String()).
			Msg("Reward credited")
	}
	return nil
}

// Settle moves the wallet's entire pending distribution into its settled
// balance. batchID makes the call idempotent: replaying a settlement
// returns the amount moved the first time and changes nothing.
func (e *Engine) Settle(wallet types.Address, batchID string) (types.Amount, error) {
	if batchID == "" {
		return 0, fmt.Errorf("settlement batch id is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if data, err := e.db.Get(settledKey(wallet, batchID)); err == nil {
		var mark settledMark
		if err := json.Unmarshal(data, &mark); err != nil {
			return 0, fmt.Errorf("unmarshal settled mark: %w", err)
		}
		return mark.Moved, nil
	}

	entry, err := e.loadEntry(wallet)
	if err != nil {
		return 0, err
	}
	moved := entry.PendingDistribution
	entry.Balance += moved
	entry.PendingDistribution = 0

	batch := e.batcher.NewBatch()
	if err := e.putEntry(batch, &entry); err != nil {
		return 0, err
	}
	mark, err := json.Marshal(settledMark{Moved: moved, SettledAt: time.Now().Unix()})
	if err != nil {
		return 0, fmt.Errorf("marshal settled mark: %w", err)
	}
	if err := batch.Put(settledKey(wallet, batchID), mark); err != nil {
		return 0, err
	}
	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("commit settlement %s: %w", batchID, err)
	}

	e.logger.Info().
		Str("wallet", wallet.String()).
		Str("batch_id", batchID).
		Str("moved", moved.String()).
		Msg("Pending rewards settled")
	return moved, nil
}

// Balance returns the wallet's ledger entry. Unknown wallets yield a
// zeroed entry rather than an error.
func (e *Engine) Balance(wallet types.Address) (LedgerEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadEntry(wallet)
}

// PruneSeen drops idempotency marks older than maxAge. Settlement marks
// are kept forever. Returns the number of marks removed.
func (e *Engine) PruneSeen(maxAge time.Duration) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).Unix()
	var stale [][]byte
	err := e.db.ForEach(prefixSeen, func(key, value []byte) error {
		var mark seenMark
		if err := json.Unmarshal(value, &mark); err != nil || mark.SeenAt <= cutoff {
			stale = append(stale, append([]byte{}, key...))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan seen marks: %w", err)
	}
	for _, key := range stale {
		if err := e.db.Delete(key); err != nil {
			return 0, fmt.Errorf("delete seen mark: %w", err)
		}
	}
	if len(stale) > 0 {
		e.logger.Debug().Int("pruned", len(stale)).Msg("Expired event marks pruned")
	}
	return len(stale), nil
}
