// Package crypto provides the hashing and signing primitives of VibeMesh.
package crypto

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/vibemesh/vibemesh/pkg/types"
)

// NodeIDSize is the number of digest bytes used for a node ID.
// A node ID is the hex encoding of the first 8 bytes of BLAKE3(pubkey).
const NodeIDSize = 8

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// AddressFromPubKey derives a wallet address from a compressed public key.
// Address = BLAKE3(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// NodeIDFromPubKey derives the short node identifier from a compressed
// public key. The same key always yields the same node ID, and the ID
// cannot be chosen independently of the key.
func NodeIDFromPubKey(pubKey []byte) string {
	h := Hash(pubKey)
	return hex.EncodeToString(h[:NodeIDSize])
}

// ValidNodeID reports whether s has the shape of a derived node ID.
func ValidNodeID(s string) bool {
	if len(s) != NodeIDSize*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
