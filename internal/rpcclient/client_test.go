package rpcclient

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vibemesh/vibemesh/config"
	"github.com/vibemesh/vibemesh/internal/identity"
	klog "github.com/vibemesh/vibemesh/internal/log"
	"github.com/vibemesh/vibemesh/internal/registry"
	"github.com/vibemesh/vibemesh/internal/reward"
	"github.com/vibemesh/vibemesh/internal/rpc"
	"github.com/vibemesh/vibemesh/internal/storage"
	"github.com/vibemesh/vibemesh/pkg/types"
)

type testEnv struct {
	client  *Client
	ident   *identity.Identity
	reg     *registry.Registry
	rewards *reward.Engine
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	klog.Init("error", false, "")

	ident, err := identity.Generate()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	db := storage.NewMemory()
	reg, err := registry.New(storage.NewPrefixDB(db, []byte("registry/")))
	if err != nil {
		t.Fatalf("create registry: %v", err)
	}
	rewards, err := reward.NewEngine(storage.NewPrefixDB(db, []byte("reward/")), 100)
	if err != nil {
		t.Fatalf("create reward engine: %v", err)
	}

	// Start RPC server on a random port, no P2P.
	srv := rpc.New("127.0.0.1:0", "testnet", ident, reg, rewards, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	url := "http://" + srv.Addr() + "/"
	return &testEnv{
		client:  New(url),
		ident:   ident,
		reg:     reg,
		rewards: rewards,
	}
}

func testHW(cores int) types.HardwareSnapshot {
	return types.HardwareSnapshot{
		CPUCores:  cores,
		RAMMB:     8192,
		GPUModel:  "none",
		StorageGB: 256,
	}
}

func TestClient_Ping(t *testing.T) {
	env := setupTestEnv(t)

	var result rpc.PingResult
	if err := env.client.Call("vibe_ping", nil, &result); err != nil {
		t.Fatalf("Call error: %v", err)
	}

	if !result.Pong {
		t.Error("pong = false")
	}
	if result.Version != config.Version {
		t.Errorf("version = %q, want %q", result.Version, config.Version)
	}
	if result.Network != "testnet" {
		t.Errorf("network = %q, want %q", result.Network, "testnet")
	}
}

func TestClient_IdentityGetInfo(t *testing.T) {
	env := setupTestEnv(t)

	var raw json.RawMessage
	if err := env.client.Call("identity_getInfo", nil, &raw); err != nil {
		t.Fatalf("Call error: %v", err)
	}

	var result rpc.IdentityInfoResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.NodeID != env.ident.NodeID {
		t.Errorf("node_id = %q, want %q", result.NodeID, env.ident.NodeID)
	}
	if result.WalletAddress != env.ident.WalletAddress.String() {
		t.Errorf("wallet = %q, want %q", result.WalletAddress, env.ident.WalletAddress)
	}

	// The mnemonic must never leave the node.
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal fields: %v", err)
	}
	if _, ok := fields["mnemonic"]; ok {
		t.Error("identity_getInfo exposed the mnemonic")
	}
}

func TestClient_PeerListAndGet(t *testing.T) {
	env := setupTestEnv(t)

	if _, err := env.reg.Upsert("aaaa000000000001", env.ident.WalletAddress, testHW(4), time.Now().Unix()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := env.reg.Upsert("bbbb000000000002", env.ident.WalletAddress, testHW(8), time.Now().Unix()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := env.reg.SetActive("bbbb000000000002", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	var all rpc.PeerListResult
	if err := env.client.Call("peer_list", nil, &all); err != nil {
		t.Fatalf("peer_list: %v", err)
	}
	if all.Count != 2 {
		t.Errorf("peer_list count = %d, want 2", all.Count)
	}

	var active rpc.PeerListResult
	if err := env.client.Call("peer_list", rpc.PeerListParam{ActiveOnly: true}, &active); err != nil {
		t.Fatalf("peer_list active: %v", err)
	}
	if active.Count != 1 {
		t.Errorf("active peer_list count = %d, want 1", active.Count)
	}

	var entry rpc.PeerEntry
	if err := env.client.Call("peer_get", rpc.NodeIDParam{NodeID: "aaaa000000000001"}, &entry); err != nil {
		t.Fatalf("peer_get: %v", err)
	}
	if entry.CPUCores != 4 {
		t.Errorf("cpu_cores = %d, want 4", entry.CPUCores)
	}
	if !entry.IsActive {
		t.Error("peer_get entry not active")
	}
}

func TestClient_PeerGet_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	var entry rpc.PeerEntry
	err := env.client.Call("peer_get", rpc.NodeIDParam{NodeID: "dddd00000000000d"}, &entry)
	if err == nil {
		t.Fatal("expected error for unknown peer")
	}
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32000 {
		t.Errorf("error code = %d, want -32000", rpcErr.Code)
	}
}

func TestClient_NetGetStats(t *testing.T) {
	env := setupTestEnv(t)

	hw := types.HardwareSnapshot{CPUCores: 16, RAMMB: 32768, GPUModel: "RTX 4090", GPUAvailable: true, StorageGB: 2000}
	if _, err := env.reg.Upsert("aaaa000000000001", env.ident.WalletAddress, hw, time.Now().Unix()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	var stats rpc.NetStatsResult
	if err := env.client.Call("net_getStats", nil, &stats); err != nil {
		t.Fatalf("net_getStats: %v", err)
	}
	if stats.ActivePeers != 1 {
		t.Errorf("active_peers = %d, want 1", stats.ActivePeers)
	}
	if stats.TotalCPUCores != 16 {
		t.Errorf("total_cpu_cores = %d, want 16", stats.TotalCPUCores)
	}
	if stats.TotalGPUs != 1 {
		t.Errorf("total_gpus = %d, want 1", stats.TotalGPUs)
	}
	if stats.ConnectedPeers != 0 {
		t.Errorf("connected_peers = %d, want 0 with p2p disabled", stats.ConnectedPeers)
	}
}

func TestClient_NetGetNodeInfo_P2PDisabled(t *testing.T) {
	env := setupTestEnv(t)

	var raw json.RawMessage
	err := env.client.Call("net_getNodeInfo", nil, &raw)
	if err == nil {
		t.Fatal("expected error with p2p disabled")
	}
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32000 {
		t.Errorf("error code = %d, want -32000", rpcErr.Code)
	}
}

func TestClient_RewardBalanceAndSettle(t *testing.T) {
	env := setupTestEnv(t)
	wallet := env.ident.WalletAddress

	hw := types.HardwareSnapshot{CPUCores: 32, RAMMB: 65536, GPUModel: "RTX 4090", GPUAvailable: true, StorageGB: 2000}
	if err := env.rewards.Credit("evt-1", wallet, hw, true); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	var balance rpc.BalanceResult
	if err := env.client.Call("reward_getBalance", rpc.WalletParam{Wallet: wallet.String()}, &balance); err != nil {
		t.Fatalf("reward_getBalance: %v", err)
	}
	if balance.PendingDistribution != "0.39" {
		t.Errorf("pending = %q, want %q", balance.PendingDistribution, "0.39")
	}
	if balance.Balance != "0" {
		t.Errorf("balance = %q, want %q", balance.Balance, "0")
	}

	var settle rpc.SettleResult
	params := rpc.SettleParam{Wallet: wallet.String(), BatchID: "B1"}
	if err := env.client.Call("reward_settle", params, &settle); err != nil {
		t.Fatalf("reward_settle: %v", err)
	}
	if settle.Moved != "0.39" {
		t.Errorf("moved = %q, want %q", settle.Moved, "0.39")
	}

	// Replaying the same batch id moves nothing more.
	var replay rpc.SettleResult
	if err := env.client.Call("reward_settle", params, &replay); err != nil {
		t.Fatalf("reward_settle replay: %v", err)
	}
	if replay.Moved != "0.39" {
		t.Errorf("replay moved = %q, want %q", replay.Moved, "0.39")
	}

	if err := env.client.Call("reward_getBalance", rpc.WalletParam{Wallet: wallet.String()}, &balance); err != nil {
		t.Fatalf("reward_getBalance after settle: %v", err)
	}
	if balance.Balance != "0.39" {
		t.Errorf("balance = %q after settle, want %q", balance.Balance, "0.39")
	}
	if balance.PendingDistribution != "0" {
		t.Errorf("pending = %q after settle, want %q", balance.PendingDistribution, "0")
	}
}

func TestClient_RewardSettle_MissingBatchID(t *testing.T) {
	env := setupTestEnv(t)

	var settle rpc.SettleResult
	err := env.client.Call("reward_settle", rpc.SettleParam{Wallet: env.ident.WalletAddress.String()}, &settle)
	if err == nil {
		t.Fatal("expected error for missing batch_id")
	}
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("error code = %d, want -32602", rpcErr.Code)
	}
}

func TestClient_Call_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)

	var raw json.RawMessage
	err := env.client.Call("nonexistent_method", nil, &raw)
	if err == nil {
		t.Fatal("expected error for unknown method")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("error code = %d, want -32601", rpcErr.Code)
	}
}

func TestClient_Call_InvalidEndpoint(t *testing.T) {
	client := New("http://127.0.0.1:1/") // port 1 — should refuse

	var result rpc.PingResult
	if err := client.Call("vibe_ping", nil, &result); err == nil {
		t.Fatal("expected connection error")
	}
}
