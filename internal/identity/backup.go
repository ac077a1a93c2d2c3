package identity

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Encrypted backup format: salt(16) | nonce(24) | ciphertext.
// The key is derived with Argon2id; the payload is the mnemonic, which is
// sufficient to re-derive the full identity.
const backupSaltSize = 16

// Argon2id parameters for backup key derivation.
const (
	backupArgonMemory  = 64 * 1024 // KiB
	backupArgonIters   = 3
	backupArgonThreads = 4
)

func backupKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, backupArgonIters, backupArgonMemory, backupArgonThreads, chacha20poly1305.KeySize)
}

// ExportEncrypted returns a passphrase-protected backup of the identity.
func (id *Identity) ExportEncrypted(passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("passphrase must not be empty")
	}

	salt := make([]byte, backupSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := backupKey(passphrase, salt)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, backupSaltSize+len(nonce))
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, []byte(id.Mnemonic), nil), nil
}

// ImportEncrypted decrypts a backup produced by ExportEncrypted and
// re-derives the identity from the recovered mnemonic.
func ImportEncrypted(data, passphrase []byte) (*Identity, error) {
	minSize := backupSaltSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(data) < minSize {
		return nil, fmt.Errorf("backup too short: %d bytes, need at least %d", len(data), minSize)
	}

	salt := data[:backupSaltSize]
	nonce := data[backupSaltSize : backupSaltSize+chacha20poly1305.NonceSizeX]
	ciphertext := data[backupSaltSize+chacha20poly1305.NonceSizeX:]

	key := backupKey(passphrase, salt)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	mnemonic, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt backup: %w", err)
	}
	return FromMnemonic(string(mnemonic))
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
