package identity

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/vibemesh/vibemesh/internal/log"
	"github.com/vibemesh/vibemesh/pkg/crypto"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// FileName is the identity file name inside the identity directory.
const FileName = "identity.json"

// identityFile is the on-disk JSON format.
type identityFile struct {
	NodeID        string `json:"node_id"`
	WalletAddress string `json:"wallet_address"`
	Mnemonic      string `json:"mnemonic"`
	PublicKey     string `json:"public_key"` // hex, compressed
}

// Manager loads and persists the node identity under a single directory.
type Manager struct {
	dir    string
	logger zerolog.Logger
}

// NewManager creates a manager rooted at dir. The directory is created
// lazily with owner-only permissions on first persist.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, logger: klog.Identity}
}

// Path returns the identity file path.
func (m *Manager) Path() string {
	return filepath.Join(m.dir, FileName)
}

// LoadOrCreate returns the node identity, creating and persisting one if
// none exists. When importMnemonic is non-empty it takes precedence: the
// identity is re-derived from that phrase (the previous file, if any, is
// backed up first).
//
// A corrupt or unreadable existing file is fatal. The file is left
// untouched so the operator can recover it.
func (m *Manager) LoadOrCreate(importMnemonic string) (*Identity, error) {
	path := m.Path()

	if importMnemonic != "" {
		id, err := FromMnemonic(importMnemonic)
		if err != nil {
			return nil, fmt.Errorf("import seed phrase: %w", err)
		}
		if err := m.persist(id); err != nil {
			return nil, err
		}
		m.logger.Info().
			Str("node_id", id.NodeID).
			Str("wallet", id.WalletAddress.String()).
			Msg("Identity imported from seed phrase")
		return id, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return m.load(path, data)
	case os.IsNotExist(err):
		// No identity yet, fall through to create.
	default:
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}

	id, err := Generate()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := m.persist(id); err != nil {
		return nil, err
	}
	m.logger.Info().
		Str("node_id", id.NodeID).
		Str("wallet", id.WalletAddress.String()).
		Msg("New identity created")
	return id, nil
}

// Load returns the persisted identity. Unlike LoadOrCreate it fails when
// no identity exists.
func (m *Manager) Load() (*Identity, error) {
	path := m.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no identity at %s", path)
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return m.load(path, data)
}

// Save persists the given identity, backing up any existing file first.
func (m *Manager) Save(id *Identity) error {
	return m.persist(id)
}

// load validates a previously persisted identity. The node_id and wallet
// address must survive restarts unchanged, so everything is re-derived
// from the stored mnemonic and compared against the stored fields.
func (m *Manager) load(path string, data []byte) (*Identity, error) {
	var f identityFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &CorruptionError{Path: path, Reason: "unparsable JSON"}
	}
	if f.NodeID == "" || f.WalletAddress == "" || f.Mnemonic == "" || f.PublicKey == "" {
		return nil, &CorruptionError{Path: path, Reason: "missing required fields"}
	}

	id, err := FromMnemonic(f.Mnemonic)
	if err != nil {
		return nil, &CorruptionError{Path: path, Reason: "mnemonic does not decode to valid key material"}
	}

	pub, err := hex.DecodeString(f.PublicKey)
	if err != nil || len(pub) != crypto.PubKeySize {
		return nil, &CorruptionError{Path: path, Reason: "malformed public key"}
	}
	wallet, err := types.ParseAddress(f.WalletAddress)
	if err != nil {
		return nil, &CorruptionError{Path: path, Reason: "malformed wallet address"}
	}
	if id.NodeID != f.NodeID || !bytes.Equal(id.PublicKey, pub) || id.WalletAddress != wallet {
		return nil, &CorruptionError{Path: path, Reason: "stored fields do not match the key material"}
	}

	m.logger.Debug().Str("node_id", id.NodeID).Msg("Identity loaded")
	return id, nil
}

// persist writes the identity atomically: temp file in the same directory,
// fsync, rename. An existing file is backed up first. After the rename the
// file is read back and compared against the in-memory state.
func (m *Manager) persist(id *Identity) error {
	path := m.Path()

	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return &IOError{Op: "create dir", Path: m.dir, Err: err}
	}
	// MkdirAll leaves pre-existing directories alone, so enforce the mode.
	if err := os.Chmod(m.dir, 0700); err != nil {
		return &IOError{Op: "chmod dir", Path: m.dir, Err: err}
	}

	if err := m.backupExisting(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(identityFile{
		NodeID:        id.NodeID,
		WalletAddress: id.WalletAddress.String(),
		Mnemonic:      id.Mnemonic,
		PublicKey:     id.PublicKeyHex(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, FileName+".tmp-*")
	if err != nil {
		return &IOError{Op: "create temp", Path: m.dir, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if err := tmp.Chmod(0600); err != nil {
		cleanup()
		return &IOError{Op: "chmod", Path: tmpPath, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return &IOError{Op: "fsync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "rename", Path: path, Err: err}
	}

	// Read-back verification: the persisted bytes must round-trip to the
	// same identity before we report success.
	persisted, err := os.ReadFile(path)
	if err != nil {
		return &IOError{Op: "verify read", Path: path, Err: err}
	}
	if !bytes.Equal(persisted, data) {
		return &IOError{Op: "verify", Path: path, Err: fmt.Errorf("persisted content differs from in-memory state")}
	}
	return nil
}

// backupExisting copies the current identity file to a timestamped sibling
// before it is overwritten.
func (m *Manager) backupExisting(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &IOError{Op: "read for backup", Path: path, Err: err}
	}
	backup := fmt.Sprintf("%s.backup-%s", path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.WriteFile(backup, data, 0600); err != nil {
		return &IOError{Op: "write backup", Path: backup, Err: err}
	}
	m.logger.Info().Str("backup", backup).Msg("Identity backup written")
	return nil
}
