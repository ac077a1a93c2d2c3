package p2p

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/vibemesh/vibemesh/internal/storage"
)

const (
	addrKeyPrefix     = "peer/"
	staleThreshold    = 24 * time.Hour
	persistInterval   = 5 * time.Minute
	maxPersistedAddrs = 500
)

// AddrRecord is a persisted transport peer: its libp2p ID and the
// multiaddrs it was last reachable on. Used to rejoin the mesh after a
// restart without waiting for discovery.
type AddrRecord struct {
	ID       string   `json:"id"`        // base58 peer ID
	Addrs    []string `json:"addrs"`     // multiaddr strings
	LastSeen int64    `json:"last_seen"` // unix seconds
	Source   string   `json:"source"`    // "dht", "mdns", "seed", "gossip"
}

// AddrBook persists transport peer addresses in a storage.DB under the
// "peer/" prefix.
type AddrBook struct {
	db storage.DB
}

// NewAddrBook creates an address book backed by the given DB.
func NewAddrBook(db storage.DB) *AddrBook {
	return &AddrBook{db: db}
}

func addrKey(id string) []byte {
	return []byte(addrKeyPrefix + id)
}

// Save persists an address record. At capacity, new peers are silently
// skipped; known peers always update.
func (ab *AddrBook) Save(rec AddrRecord) error {
	key := addrKey(rec.ID)

	exists, err := ab.db.Has(key)
	if err != nil {
		return fmt.Errorf("check peer exists: %w", err)
	}
	if !exists {
		count, err := ab.Count()
		if err != nil {
			return fmt.Errorf("count peers: %w", err)
		}
		if count >= maxPersistedAddrs {
			return nil
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal addr record: %w", err)
	}
	return ab.db.Put(key, data)
}

// Load retrieves a single address record by peer ID.
func (ab *AddrBook) Load(id peer.ID) (*AddrRecord, error) {
	data, err := ab.db.Get(addrKey(id.String()))
	if err != nil {
		return nil, fmt.Errorf("get addr record: %w", err)
	}
	var rec AddrRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal addr record: %w", err)
	}
	return &rec, nil
}

// LoadAll returns all persisted address records.
func (ab *AddrBook) LoadAll() ([]AddrRecord, error) {
	var records []AddrRecord
	err := ab.db.ForEach([]byte(addrKeyPrefix), func(key, value []byte) error {
		var rec AddrRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // Skip corrupt records.
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate addr records: %w", err)
	}
	return records, nil
}

// Delete removes an address record.
func (ab *AddrBook) Delete(id peer.ID) error {
	return ab.db.Delete(addrKey(id.String()))
}

// PruneStale removes records not seen within threshold, plus any corrupt
// entries. Returns the number pruned.
func (ab *AddrBook) PruneStale(threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold).Unix()
	var toDelete [][]byte

	err := ab.db.ForEach([]byte(addrKeyPrefix), func(key, value []byte) error {
		var rec AddrRecord
		if err := json.Unmarshal(value, &rec); err != nil || rec.LastSeen < cutoff {
			toDelete = append(toDelete, append([]byte{}, key...))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("iterate for prune: %w", err)
	}

	for _, k := range toDelete {
		if err := ab.db.Delete(k); err != nil {
			return 0, fmt.Errorf("delete stale addr: %w", err)
		}
	}
	return len(toDelete), nil
}

// Count returns the number of persisted address records.
func (ab *AddrBook) Count() (int, error) {
	count := 0
	err := ab.db.ForEach([]byte(addrKeyPrefix), func(key, value []byte) error {
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count addrs: %w", err)
	}
	return count, nil
}
