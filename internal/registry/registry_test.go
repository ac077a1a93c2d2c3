package registry

import (
	"testing"

	klog "github.com/vibemesh/vibemesh/internal/log"
	"github.com/vibemesh/vibemesh/internal/storage"
	"github.com/vibemesh/vibemesh/pkg/types"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryDB) {
	t.Helper()
	klog.Init("error", false, "")
	db := storage.NewMemory()
	reg, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return reg, db
}

func testWallet(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func testHW(cores int) types.HardwareSnapshot {
	return types.HardwareSnapshot{
		CPUCores:  cores,
		RAMMB:     8192,
		GPUModel:  "none",
		StorageGB: 256,
	}
}

func TestRegistry_UpsertCreateAndRefresh(t *testing.T) {
	reg, _ := newTestRegistry(t)

	rec, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(4), 1000)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !rec.IsActive {
		t.Error("new record not active")
	}
	if rec.LastHeartbeatAt != 1000 {
		t.Errorf("last_heartbeat_at = %d, want 1000", rec.LastHeartbeatAt)
	}

	rec, err = reg.Upsert("aaaa000000000001", testWallet(1), testHW(8), 2000)
	if err != nil {
		t.Fatalf("Upsert refresh: %v", err)
	}
	if rec.Hardware.CPUCores != 8 {
		t.Errorf("hardware not refreshed: cores = %d, want 8", rec.Hardware.CPUCores)
	}
	if rec.LastHeartbeatAt != 2000 {
		t.Errorf("last_heartbeat_at = %d, want 2000", rec.LastHeartbeatAt)
	}
	if reg.Count() != 1 {
		t.Errorf("count = %d, want 1", reg.Count())
	}
}

func TestRegistry_UpsertIgnoresOlderHeartbeat(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(8), 2000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rec, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(4), 1000)
	if err != nil {
		t.Fatalf("Upsert stale: %v", err)
	}
	if rec.LastHeartbeatAt != 2000 {
		t.Errorf("stale heartbeat overwrote newer state: got %d, want 2000", rec.LastHeartbeatAt)
	}
	if rec.Hardware.CPUCores != 8 {
		t.Errorf("stale heartbeat refreshed hardware: cores = %d, want 8", rec.Hardware.CPUCores)
	}
}

func TestRegistry_UpsertReactivates(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(4), 1000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := reg.SetActive("aaaa000000000001", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	rec, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(4), 2000)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !rec.IsActive {
		t.Error("heartbeat did not reactivate record")
	}
}

func TestRegistry_IsCanonical(t *testing.T) {
	reg, _ := newTestRegistry(t)

	// Same fingerprint, one heartbeat 100s newer.
	if _, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(4), 1000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := reg.Upsert("bbbb000000000002", testWallet(2), testHW(4), 1100); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if reg.IsCanonical("aaaa000000000001") {
		t.Error("older duplicate reported canonical")
	}
	if !reg.IsCanonical("bbbb000000000002") {
		t.Error("newest duplicate not canonical")
	}

	// Different fingerprint is its own group.
	if _, err := reg.Upsert("cccc000000000003", testWallet(3), testHW(32), 500); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !reg.IsCanonical("cccc000000000003") {
		t.Error("sole member of its group not canonical")
	}
}

func TestRegistry_IsCanonicalTieBreak(t *testing.T) {
	reg, _ := newTestRegistry(t)

	// Equal timestamps: the lexicographically larger node_id wins.
	if _, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(4), 1000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := reg.Upsert("bbbb000000000002", testWallet(2), testHW(4), 1000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if !reg.IsCanonical("bbbb000000000002") {
		t.Error("larger node_id not canonical on timestamp tie")
	}
	if reg.IsCanonical("aaaa000000000001") {
		t.Error("smaller node_id reported canonical on timestamp tie")
	}
}

func TestRegistry_DedupGroup(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(4), 1000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := reg.Upsert("bbbb000000000002", testWallet(2), testHW(4), 1100); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	fp := types.FingerprintOf(testHW(4))
	losers, err := reg.DedupGroup(fp)
	if err != nil {
		t.Fatalf("DedupGroup: %v", err)
	}
	if len(losers) != 1 || losers[0] != "aaaa000000000001" {
		t.Errorf("losers = %v, want [aaaa000000000001]", losers)
	}

	// Losers are deactivated, never deleted.
	rec, ok := reg.Get("aaaa000000000001")
	if !ok {
		t.Fatal("deduped record was deleted")
	}
	if rec.IsActive {
		t.Error("deduped record still active")
	}
	winner, _ := reg.Get("bbbb000000000002")
	if !winner.IsActive {
		t.Error("canonical record deactivated")
	}

	// Idempotent: a second pass finds nothing to collapse.
	losers, err = reg.DedupGroup(fp)
	if err != nil {
		t.Fatalf("DedupGroup second pass: %v", err)
	}
	if len(losers) != 0 {
		t.Errorf("second pass deactivated %v", losers)
	}
}

func TestRegistry_DeactivateIfStale(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(4), 1000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Heartbeat newer than cutoff: the flip must be skipped.
	applied, err := reg.DeactivateIfStale("aaaa000000000001", 500)
	if err != nil {
		t.Fatalf("DeactivateIfStale: %v", err)
	}
	if applied {
		t.Error("record with fresh heartbeat deactivated")
	}

	// Heartbeat at exactly the cutoff: the gap has not exceeded the
	// staleness window, so the record stays active.
	applied, err = reg.DeactivateIfStale("aaaa000000000001", 1000)
	if err != nil {
		t.Fatalf("DeactivateIfStale: %v", err)
	}
	if applied {
		t.Error("record at the staleness boundary deactivated")
	}

	applied, err = reg.DeactivateIfStale("aaaa000000000001", 1001)
	if err != nil {
		t.Fatalf("DeactivateIfStale: %v", err)
	}
	if !applied {
		t.Error("stale record not deactivated")
	}

	// Already inactive: no-op.
	applied, err = reg.DeactivateIfStale("aaaa000000000001", 1001)
	if err != nil {
		t.Fatalf("DeactivateIfStale repeat: %v", err)
	}
	if applied {
		t.Error("inactive record deactivated again")
	}
}

func TestRegistry_ListAndStats(t *testing.T) {
	reg, _ := newTestRegistry(t)

	hw := types.HardwareSnapshot{CPUCores: 8, RAMMB: 16384, GPUModel: "RTX 4090", GPUAvailable: true, StorageGB: 1000}
	if _, err := reg.Upsert("aaaa000000000001", testWallet(1), hw, 1000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := reg.Upsert("bbbb000000000002", testWallet(2), testHW(4), 1000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := reg.SetActive("bbbb000000000002", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	if n := len(reg.ListActive()); n != 1 {
		t.Errorf("ListActive = %d records, want 1", n)
	}
	if n := len(reg.ListAll()); n != 2 {
		t.Errorf("ListAll = %d records, want 2", n)
	}

	stats := reg.Stats()
	if stats.ActivePeers != 1 {
		t.Errorf("active_peers = %d, want 1", stats.ActivePeers)
	}
	if stats.TotalCPUCores != 8 {
		t.Errorf("total_cpu_cores = %d, want 8", stats.TotalCPUCores)
	}
	if stats.TotalGPUs != 1 {
		t.Errorf("total_gpus = %d, want 1", stats.TotalGPUs)
	}
}

func TestRegistry_WarmReload(t *testing.T) {
	reg, db := newTestRegistry(t)

	if _, err := reg.Upsert("aaaa000000000001", testWallet(1), testHW(4), 1000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := reg.SetActive("aaaa000000000001", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	// A second registry over the same store sees the persisted state.
	reloaded, err := New(db)
	if err != nil {
		t.Fatalf("New reload: %v", err)
	}
	rec, ok := reloaded.Get("aaaa000000000001")
	if !ok {
		t.Fatal("record lost across reload")
	}
	if rec.IsActive {
		t.Error("active flag not persisted")
	}
	if rec.LastHeartbeatAt != 1000 {
		t.Errorf("last_heartbeat_at = %d, want 1000", rec.LastHeartbeatAt)
	}
}
