// Package types defines the shared value types of the VibeMesh core.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressSize is the length of a wallet address in bytes.
const AddressSize = 20

// AddressPrefix is the display prefix for wallet addresses.
const AddressPrefix = "vm:"

// Address is a 160-bit wallet address (hash of the node's public key).
type Address [AddressSize]byte

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the prefixed hex representation (e.g. "vm:ab12...").
func (a Address) String() string {
	return AddressPrefix + hex.EncodeToString(a[:])
}

// Hex returns the raw hex-encoded address without prefix.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the address as a byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// ParseAddress decodes an address from its string form, with or without
// the "vm:" prefix.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(s, AddressPrefix)
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != AddressSize {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// MarshalJSON encodes the address as a prefixed hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an address from a prefixed or bare hex string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
