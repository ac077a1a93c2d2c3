package identity

import (
	"errors"
	"fmt"
)

// ErrMnemonicInvalid is returned when a seed phrase fails BIP-39 validation.
var ErrMnemonicInvalid = errors.New("invalid mnemonic: wrong word count, unknown word, or bad checksum")

// CorruptionError means the identity file exists but cannot be trusted.
// It aborts startup: regenerating a replacement identity would orphan the
// reward history accrued under the previous wallet, so recovery is left
// to the operator.
type CorruptionError struct {
	Path   string
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("identity file %s is corrupt (%s); restore it from the most recent %s.backup-* copy — a replacement identity will NOT be generated automatically",
		e.Path, e.Reason, e.Path)
}

// IOError means the identity file could not be read or written
// (permissions, disk failure). Fatal at startup.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("identity %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
