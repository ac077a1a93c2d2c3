package crypto

import (
	"testing"

	"github.com/vibemesh/vibemesh/pkg/types"
)

func TestSignVerify(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	hash := Hash([]byte("heartbeat payload"))
	sig, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if !VerifySignature(hash[:], sig, key.PublicKey()) {
		t.Error("valid signature rejected")
	}

	other := Hash([]byte("different payload"))
	if VerifySignature(other[:], sig, key.PublicKey()) {
		t.Error("signature verified against wrong hash")
	}

	otherKey, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if VerifySignature(hash[:], sig, otherKey.PublicKey()) {
		t.Error("signature verified against wrong key")
	}
}

func TestSign_RejectsBadHashLength(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if _, err := key.Sign([]byte("short")); err == nil {
		t.Error("expected error for non-32-byte hash")
	}
}

func TestVerifySignature_Garbage(t *testing.T) {
	hash := Hash([]byte("data"))
	if VerifySignature(hash[:], []byte("not-a-sig"), []byte("not-a-key")) {
		t.Error("garbage inputs verified")
	}
}

func TestNodeIDFromPubKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := key.PublicKey()

	id := NodeIDFromPubKey(pub)
	if id != NodeIDFromPubKey(pub) {
		t.Error("node ID not deterministic")
	}
	if !ValidNodeID(id) {
		t.Errorf("derived node ID %q fails ValidNodeID", id)
	}
	if len(id) != NodeIDSize*2 {
		t.Errorf("node ID length = %d, want %d", len(id), NodeIDSize*2)
	}
}

func TestValidNodeID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"0123456789abcdef", true},
		{"0123456789ABCDEF", true},
		{"0123456789abcde", false},  // too short
		{"0123456789abcdef0", false}, // too long
		{"0123456789abcdeg", false},  // non-hex
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidNodeID(tt.id); got != tt.want {
			t.Errorf("ValidNodeID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestAddressFromPubKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := key.PublicKey()

	addr := AddressFromPubKey(pub)
	if addr.IsZero() {
		t.Error("derived address is zero")
	}
	if addr != AddressFromPubKey(pub) {
		t.Error("address not deterministic")
	}

	// Address and node ID are both prefixes of BLAKE3(pubkey).
	h := Hash(pub)
	var want types.Address
	copy(want[:], h[:types.AddressSize])
	if addr != want {
		t.Errorf("address = %s, want %s", addr, want)
	}
}
