package registry

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

var prefixPeer = []byte("p/") // p/<node_id> -> PeerRecord JSON

// Registry is the concurrency-safe peer table. Reads take a shared lock;
// writes are serialized and guarded by timestamp comparison, so a
// deactivation decided against stale data can never overwrite a record
// that has since received a newer heartbeat.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*PeerRecord

	db      storage.DB
	batcher storage.Batcher
	logger  zerolog.Logger
}

// New creates a registry backed by db and warms the in-memory index from
// previously persisted records. The db must support atomic batches.
func New(db storage.DB) (*Registry, error) {
	batcher, ok := db.(storage.Batcher)
	if !ok {
		return nil, fmt.Errorf("registry requires a batching store")
	}
	r := &Registry{
		records: make(map[string]*PeerRecord),
		db:      db,
		batcher: batcher,
		logger:  klog.Registry,
	}
	err := db.ForEach(prefixPeer, func(key, value []byte) error {
		var rec PeerRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			r.logger.Warn().Str("key", string(key)).Msg("Skipping corrupt peer record")
			return nil
		}
		r.records[rec.NodeID] = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load peer records: %w", err)
	}
	return r, nil
}

func peerKey(nodeID string) []byte {
	return append(append([]byte{}, prefixPeer...), nodeID...)
}

// Upsert records a heartbeat for nodeID: creates the record if absent,
// refreshes the hardware snapshot and last_heartbeat_at, and flips it
// active. A heartbeat strictly older than the stored one is ignored
// (newer timestamp always wins, regardless of arrival order).
// Returns the resulting record.
func (r *Registry) Upsert(nodeID string, wallet types.Address, hw types.HardwareSnapshot, heartbeatAt int64) (PeerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Unix()
	rec, ok := r.records[nodeID]
	if !ok {
		rec = &PeerRecord{
			NodeID:        nodeID,
			WalletAddress: wallet,
			CreatedAt:     now,
		}
		r.records[nodeID] = rec
	} else if heartbeatAt < rec.LastHeartbeatAt {
		return *rec, nil // Stale delivery, keep the newer state.
	}

	rec.Hardware = hw
	rec.IsActive = true
	rec.LastHeartbeatAt = heartbeatAt
	rec.UpdatedAt = now

	if err := r.put(nil, rec); err != nil {
		return *rec, err
	}
	return *rec, nil
}

// Get returns a copy of the record for nodeID.
func (r *Registry) Get(nodeID string) (PeerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[nodeID]
	if !ok {
		return PeerRecord{}, false
	}
	return *rec, true
}

// ListActive returns copies of all active records.
func (r *Registry) ListActive() []PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []PeerRecord
	for _, rec := range r.records {
		if rec.IsActive {
			out = append(out, *rec)
		}
	}
	return out
}

// ListAll returns copies of every record, active or not.
func (r *Registry) ListAll() []PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out
}

// Count returns the total number of records, active or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// GroupByFingerprint buckets records by hardware fingerprint. Each group
// is ordered canonical-first: newest heartbeat, then larger node_id.
func (r *Registry) GroupByFingerprint(activeOnly bool) map[types.Fingerprint][]PeerRecord {
	r.mu.RLock()
	groups := make(map[types.Fingerprint][]PeerRecord)
	for _, rec := range r.records {
		if activeOnly && !rec.IsActive {
			continue
		}
		fp := rec.Fingerprint()
		groups[fp] = append(groups[fp], *rec)
	}
	r.mu.RUnlock()

	for _, group := range groups {
		sortCanonicalFirst(group)
	}
	return groups
}

// IsCanonical reports whether nodeID is the active, non-duplicate record
// of its fingerprint group right now.
func (r *Registry) IsCanonical(nodeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[nodeID]
	if !ok || !rec.IsActive {
		return false
	}
	fp := rec.Fingerprint()
	var group []PeerRecord
	for _, other := range r.records {
		if other.IsActive && other.Fingerprint() == fp {
			group = append(group, *other)
		}
	}
	sortCanonicalFirst(group)
	return group[0].NodeID == nodeID
}

// SetActive flips a record's active status unconditionally.
func (r *Registry) SetActive(nodeID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[nodeID]
	if !ok {
		return fmt.Errorf("unknown peer %s", nodeID)
	}
	if rec.IsActive == active {
		return nil
	}
	rec.IsActive = active
	rec.UpdatedAt = time.Now().Unix()
	return r.put(nil, rec)
}

// DeactivateIfStale deactivates nodeID only if its last heartbeat is
// strictly before cutoff; a heartbeat at exactly the cutoff has not
// exceeded the staleness window yet. This is the compare-and-swap that
// resolves races between a maintenance decision and a concurrent
// heartbeat: a record refreshed with a newer timestamp is left active.
// Returns whether the flip was applied.
func (r *Registry) DeactivateIfStale(nodeID string, cutoff int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[nodeID]
	if !ok || !rec.IsActive || rec.LastHeartbeatAt >= cutoff {
		return false, nil
	}
	rec.IsActive = false
	rec.UpdatedAt = time.Now().Unix()
	if err := r.put(nil, rec); err != nil {
		return false, err
	}
	r.logger.Info().
		Str("node_id", nodeID).
		Int64("last_heartbeat_at", rec.LastHeartbeatAt).
		Msg("Peer deactivated: heartbeat stale")
	return true, nil
}

// DedupGroup deactivates every active record sharing fp except the
// canonical one. The whole group is re-read and flipped under one lock
// hold and committed in a single storage batch, so a tick can never leave
// a group half-reconciled. Idempotent. Returns the deactivated node IDs.
func (r *Registry) DedupGroup(fp types.Fingerprint) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var group []*PeerRecord
	for _, rec := range r.records {
		if rec.IsActive && rec.Fingerprint() == fp {
			group = append(group, rec)
		}
	}
	if len(group) < 2 {
		return nil, nil
	}

	copies := make([]PeerRecord, len(group))
	for i, rec := range group {
		copies[i] = *rec
	}
	sortCanonicalFirst(copies)
	canonical := copies[0].NodeID

	now := time.Now().Unix()
	batch := r.batcher.NewBatch()
	var losers []string
	for _, rec := range group {
		if rec.NodeID == canonical {
			continue
		}
		flipped := *rec
		flipped.IsActive = false
		flipped.UpdatedAt = now
		if err := r.put(batch, &flipped); err != nil {
			return nil, err
		}
		losers = append(losers, rec.NodeID)
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("commit dedup batch: %w", err)
	}

	// Storage committed; now update the in-memory index.
	for _, rec := range group {
		if rec.NodeID != canonical {
			rec.IsActive = false
			rec.UpdatedAt = now
		}
	}
	r.logger.Info().
		Str("fingerprint", fp.String()).
		Str("canonical", canonical).
		Strs("deactivated", losers).
		Msg("Duplicate peers collapsed")
	return losers, nil
}

// put persists a record, through the batch when one is given.
func (r *Registry) put(batch storage.Batch, rec *PeerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal peer record: %w", err)
	}
	if batch != nil {
		return batch.Put(peerKey(rec.NodeID), data)
	}
	return r.db.Put(peerKey(rec.NodeID), data)
}
