package reward

import (
	"encoding/json"
	"fmt"

	"github.com/vibemesh/vibemesh/internal/storage"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// Key layout inside the engine's keyspace:
//
//	l/<wallet>             -> LedgerEntry JSON
//	e/<event_id>           -> seenMark JSON (idempotency record)
//	b/<wallet>/<batch_id>  -> settledMark JSON
var (
	prefixLedger  = []byte("l/")
	prefixSeen    = []byte("e/")
	prefixSettled = []byte("b/")
)

// LedgerEntry is the persisted reward state of one wallet. Amounts are
// milli-VIBE. PendingDistribution accrues per heartbeat and moves to
// Balance on settlement.
type LedgerEntry struct {
	WalletAddress       types.Address `json:"wallet_address"`
	Balance             types.Amount  `json:"balance"`
	PendingDistribution types.Amount  `json:"pending_distribution"`
	TotalEarned         types.Amount  `json:"total_earned"`
	LastRewardAt        int64         `json:"last_reward_at"` // unix seconds
}

// seenMark records that an event id was already processed.
type seenMark struct {
	WalletAddress types.Address `json:"wallet_address"`
	Credited      types.Amount  `json:"credited"`
	SeenAt        int64         `json:"seen_at"` // unix seconds
}

// settledMark records a completed settlement batch for a wallet.
type settledMark struct {
	Moved     types.Amount `json:"moved"`
	SettledAt int64        `json:"settled_at"` // unix seconds
}

func ledgerKey(wallet types.Address) []byte {
	return append(append([]byte{}, prefixLedger...), wallet[:]...)
}

func seenKey(eventID string) []byte {
	return append(append([]byte{}, prefixSeen...), eventID...)
}

func settledKey(wallet types.Address, batchID string) []byte {
	key := append(append([]byte{}, prefixSettled...), wallet[:]...)
	key = append(key, '/')
	return append(key, batchID...)
}

func (e *Engine) loadEntry(wallet types.Address) (LedgerEntry, error) {
	data, err := e.db.Get(ledgerKey(wallet))
	if err != nil {
		return LedgerEntry{WalletAddress: wallet}, nil
	}
	var entry LedgerEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return LedgerEntry{}, fmt.Errorf("unmarshal ledger entry for %s: %w", wallet, err)
	}
	return entry, nil
}

func (e *Engine) putEntry(batch storage.Batch, entry *LedgerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	return batch.Put(ledgerKey(entry.WalletAddress), data)
}
