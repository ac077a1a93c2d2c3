package ingest

import (
	"errors"
	"testing"
	"time"

	klog "github.com/vibemesh/vibemesh/internal/log"
	"github.com/vibemesh/vibemesh/internal/registry"
	"github.com/vibemesh/vibemesh/internal/storage"
	"github.com/vibemesh/vibemesh/pkg/crypto"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// recordingCrediter captures Credit calls for assertions.
type recordingCrediter struct {
	calls []creditCall
}

type creditCall struct {
	eventID   string
	wallet    types.Address
	canonical bool
}

func (rc *recordingCrediter) Credit(eventID string, wallet types.Address, hw types.HardwareSnapshot, canonical bool) error {
	rc.calls = append(rc.calls, creditCall{eventID: eventID, wallet: wallet, canonical: canonical})
	return nil
}

func newTestIngestor(t *testing.T) (*Ingestor, *registry.Registry, *recordingCrediter) {
	t.Helper()
	klog.Init("error", false, "")
	reg, err := registry.New(storage.NewMemory())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	rc := &recordingCrediter{}
	return New(reg, rc), reg, rc
}

func TestIngest_Valid(t *testing.T) {
	ing, reg, rc := newTestIngestor(t)

	ev, _ := signedEvent(t)
	if err := ing.Ingest(ev); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	rec, ok := reg.Get(ev.NodeID)
	if !ok {
		t.Fatal("peer record not created")
	}
	if !rec.IsActive {
		t.Error("peer record not active")
	}
	if rec.WalletAddress != ev.WalletAddress {
		t.Error("wallet not recorded")
	}

	if len(rc.calls) != 1 {
		t.Fatalf("Credit called %d times, want 1", len(rc.calls))
	}
	if rc.calls[0].eventID != ev.EventID {
		t.Errorf("credited event %q, want %q", rc.calls[0].eventID, ev.EventID)
	}
	if !rc.calls[0].canonical {
		t.Error("sole peer not credited as canonical")
	}
}

func TestIngest_Malformed(t *testing.T) {
	ing, reg, rc := newTestIngestor(t)

	ev, _ := signedEvent(t)
	ev.EventID = "not-a-uuid"

	err := ing.Ingest(ev)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if reg.Count() != 0 {
		t.Error("malformed event touched the registry")
	}
	if len(rc.calls) != 0 {
		t.Error("malformed event was credited")
	}
}

func TestIngest_BadSignature(t *testing.T) {
	ing, reg, rc := newTestIngestor(t)

	ev, _ := signedEvent(t)
	ev.CPUCores++ // still structurally valid, but the signature no longer covers it

	err := ing.Ingest(ev)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
	if reg.Count() != 0 {
		t.Error("unverified event touched the registry")
	}
	if len(rc.calls) != 0 {
		t.Error("unverified event was credited")
	}
}

func TestIngest_WalletMismatch(t *testing.T) {
	ing, reg, rc := newTestIngestor(t)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := key.PublicKey()
	nodeID := crypto.NodeIDFromPubKey(pub)
	wallet := crypto.AddressFromPubKey(pub)

	ev := NewEvent(nodeID, wallet, testHW(), time.Now())
	if err := ev.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := ing.Ingest(ev); err != nil {
		t.Fatalf("Ingest first: %v", err)
	}

	// Same node, different claimed wallet. The signature is valid (the
	// wallet field is attacker-chosen), so only the record check can stop it.
	other := wallet
	other[0] ^= 1
	ev2 := NewEvent(nodeID, other, testHW(), time.Now())
	if err := ev2.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	err = ing.Ingest(ev2)
	if !errors.Is(err, ErrWalletMismatch) {
		t.Fatalf("err = %v, want ErrWalletMismatch", err)
	}
	rec, _ := reg.Get(nodeID)
	if rec.WalletAddress != wallet {
		t.Error("wallet on file was overwritten")
	}
	if len(rc.calls) != 1 {
		t.Errorf("Credit called %d times, want 1", len(rc.calls))
	}
}

func TestIngest_DuplicateHardwareCanonicalAtCreditTime(t *testing.T) {
	ing, _, rc := newTestIngestor(t)

	// Two distinct keys announcing identical hardware.
	ev1, key1 := signedEvent(t)
	if err := ing.Ingest(ev1); err != nil {
		t.Fatalf("Ingest first: %v", err)
	}

	key2, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub2 := key2.PublicKey()
	ev2 := NewEvent(crypto.NodeIDFromPubKey(pub2), crypto.AddressFromPubKey(pub2), testHW(), time.Unix(ev1.Timestamp+100, 0))
	if err := ev2.Sign(key2); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := ing.Ingest(ev2); err != nil {
		t.Fatalf("Ingest second: %v", err)
	}

	// A repeat heartbeat from the first node, still older than the
	// second node's, loses the fingerprint group and earns nothing.
	ev3 := NewEvent(ev1.NodeID, ev1.WalletAddress, testHW(), time.Unix(ev1.Timestamp+50, 0))
	if err := ev3.Sign(key1); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := ing.Ingest(ev3); err != nil {
		t.Fatalf("Ingest third: %v", err)
	}

	if len(rc.calls) != 3 {
		t.Fatalf("Credit called %d times, want 3", len(rc.calls))
	}
	if !rc.calls[0].canonical {
		t.Error("first announcer was not canonical at credit time")
	}
	if !rc.calls[1].canonical {
		t.Error("newer duplicate should be canonical at credit time")
	}
	if rc.calls[2].canonical {
		t.Error("older duplicate credited as canonical")
	}
}
