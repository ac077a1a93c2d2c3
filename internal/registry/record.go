// Package registry maintains the durable table of peer records: who has
// announced, what hardware they claim, and whether they are currently
// counted as alive. Records are never deleted, only status-flipped, so
// the table doubles as an audit trail.
package registry

import (
	"sort"

	"github.com/vibemesh/vibemesh/pkg/types"
)

// PeerRecord is a persisted peer entry.
type PeerRecord struct {
	NodeID          string                 `json:"node_id"`
	WalletAddress   types.Address          `json:"wallet_address"`
	Hardware        types.HardwareSnapshot `json:"hardware"`
	IsActive        bool                   `json:"is_active"`
	LastHeartbeatAt int64                  `json:"last_heartbeat_at"` // unix seconds
	CreatedAt       int64                  `json:"created_at"`
	UpdatedAt       int64                  `json:"updated_at"`
}

// Fingerprint returns the hardware tuple used for duplicate detection.
func (r *PeerRecord) Fingerprint() types.Fingerprint {
	return types.FingerprintOf(r.Hardware)
}

// sortCanonicalFirst orders a fingerprint group so that the canonical
// record comes first: greatest last_heartbeat_at wins, ties broken by the
// lexicographically larger node_id. The ordering is total and stable for
// a fixed set of records.
func sortCanonicalFirst(group []PeerRecord) {
	sort.Slice(group, func(i, j int) bool {
		if group[i].LastHeartbeatAt != group[j].LastHeartbeatAt {
			return group[i].LastHeartbeatAt > group[j].LastHeartbeatAt
		}
		return group[i].NodeID > group[j].NodeID
	})
}
