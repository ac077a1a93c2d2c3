// Package identity derives and durably persists the node's cryptographic
// identity: a BIP-39 mnemonic, the secp256k1 keypair derived from it, and
// the node ID and wallet address derived from the public key.
package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/vibemesh/vibemesh/pkg/crypto"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// MnemonicEntropyBits is the entropy size for 24-word mnemonics.
const MnemonicEntropyBits = 256

// BIP-44 derivation path for the node key: m/44'/7341'/0'/0/0.
const (
	purposeBIP44 = bip32.FirstHardenedChild + 44
	coinTypeVibe = bip32.FirstHardenedChild + 7341
)

// Identity is a node's durable cryptographic identity. NodeID and
// WalletAddress are pure functions of the public key; re-deriving from the
// same mnemonic always yields the same pair.
type Identity struct {
	NodeID        string
	WalletAddress types.Address
	Mnemonic      string
	PublicKey     []byte // 33-byte compressed secp256k1 key

	signer *crypto.PrivateKey
}

// Signer returns the private key for signing heartbeats.
func (id *Identity) Signer() *crypto.PrivateKey {
	return id.signer
}

// Generate creates a fresh identity from new random entropy.
func Generate() (*Identity, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return nil, fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("generate mnemonic: %w", err)
	}
	return FromMnemonic(mnemonic)
}

// FromMnemonic deterministically derives an identity from a BIP-39 seed
// phrase. The phrase must carry a valid checksum.
func FromMnemonic(mnemonic string) (*Identity, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrMnemonicInvalid
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	key := master
	for _, idx := range []uint32{purposeBIP44, coinTypeVibe, bip32.FirstHardenedChild, 0, 0} {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
	}

	signer, err := crypto.PrivateKeyFromBytes(privateKeyBytes(key))
	if err != nil {
		return nil, fmt.Errorf("node key: %w", err)
	}

	pub := signer.PublicKey()
	return &Identity{
		NodeID:        crypto.NodeIDFromPubKey(pub),
		WalletAddress: crypto.AddressFromPubKey(pub),
		Mnemonic:      mnemonic,
		PublicKey:     pub,
		signer:        signer,
	}, nil
}

// privateKeyBytes extracts the raw 32-byte scalar from a bip32 key.
// bip32 private keys are 33 bytes with a leading 0x00.
func privateKeyBytes(key *bip32.Key) []byte {
	raw := key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyHex returns the hex encoding of the compressed public key.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.PublicKey)
}
