// Package ingest validates inbound heartbeat announcements and applies
// them to the peer registry and reward engine.
package ingest

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vibemesh/vibemesh/pkg/crypto"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// maxClockSkew is how far into the future a heartbeat timestamp may lie
// before the event is rejected as malformed.
const maxClockSkew = 2 * time.Minute

// HeartbeatEvent is a signed liveness-and-capacity announcement.
// EventID is a UUID minted by the announcing node; it is the idempotency
// key for reward crediting and is covered by the signature.
type HeartbeatEvent struct {
	EventID                string        `json:"event_id"`
	NodeID                 string        `json:"node_id"`
	WalletAddress          types.Address `json:"wallet_address"`
	types.HardwareSnapshot               // flattened: cpu_cores, ram_mb, gpu_model, gpu_available, storage_gb
	Timestamp              int64         `json:"timestamp"` // unix seconds
	PubKey                 []byte        `json:"pubkey"`    // 33-byte compressed public key
	Signature              []byte        `json:"signature"` // Schnorr sig over BLAKE3(SigningBytes)
}

// NewEvent builds an unsigned heartbeat for the given identity fields.
func NewEvent(nodeID string, wallet types.Address, hw types.HardwareSnapshot, now time.Time) *HeartbeatEvent {
	return &HeartbeatEvent{
		EventID:          uuid.NewString(),
		NodeID:           nodeID,
		WalletAddress:    wallet,
		HardwareSnapshot: hw,
		Timestamp:        now.Unix(),
	}
}

// SigningBytes returns the canonical byte encoding that is signed and
// verified for a heartbeat. String fields carry a length prefix so no
// two field assignments can share an encoding.
func (ev *HeartbeatEvent) SigningBytes() []byte {
	buf := make([]byte, 0, 160)
	buf = appendString(buf, ev.EventID)
	buf = appendString(buf, ev.NodeID)
	buf = append(buf, ev.WalletAddress[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(ev.CPUCores))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(ev.RAMMB))
	buf = appendString(buf, ev.GPUModel)
	if ev.GPUAvailable {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(ev.StorageGB))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(ev.Timestamp))
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// Sign attaches the announcer's public key and Schnorr signature.
func (ev *HeartbeatEvent) Sign(signer *crypto.PrivateKey) error {
	ev.PubKey = signer.PublicKey()
	hash := crypto.Hash(ev.SigningBytes())
	sig, err := signer.Sign(hash[:])
	if err != nil {
		return fmt.Errorf("sign heartbeat: %w", err)
	}
	ev.Signature = sig
	return nil
}

// Verify checks the signature and that the claimed node_id is actually
// derived from the embedded public key, so a node cannot announce under
// another node's identifier.
func (ev *HeartbeatEvent) Verify() bool {
	if len(ev.PubKey) != crypto.PubKeySize || len(ev.Signature) == 0 {
		return false
	}
	if crypto.NodeIDFromPubKey(ev.PubKey) != ev.NodeID {
		return false
	}
	hash := crypto.Hash(ev.SigningBytes())
	return crypto.VerifySignature(hash[:], ev.Signature, ev.PubKey)
}

// Validate checks the structural shape of the event.
func (ev *HeartbeatEvent) Validate(now time.Time) error {
	if _, err := uuid.Parse(ev.EventID); err != nil {
		return fmt.Errorf("event_id: %w", err)
	}
	if !crypto.ValidNodeID(ev.NodeID) {
		return fmt.Errorf("node_id %q has invalid shape", ev.NodeID)
	}
	if ev.WalletAddress.IsZero() {
		return fmt.Errorf("wallet_address is missing")
	}
	if err := ev.HardwareSnapshot.Validate(); err != nil {
		return fmt.Errorf("hardware: %w", err)
	}
	if ev.Timestamp <= 0 {
		return fmt.Errorf("timestamp is missing")
	}
	if ev.Timestamp > now.Add(maxClockSkew).Unix() {
		return fmt.Errorf("timestamp %d is too far in the future", ev.Timestamp)
	}
	return nil
}
