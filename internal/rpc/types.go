package rpc

import (
	"github.com/vibemesh/vibemesh/internal/registry"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// NodeIDParam is used by endpoints that take a single node ID.
type NodeIDParam struct {
	NodeID string `json:"node_id"`
}

// WalletParam is used by reward_getBalance.
type WalletParam struct {
	Wallet string `json:"wallet"`
}

// SettleParam is used by reward_settle.
type SettleParam struct {
	Wallet  string `json:"wallet"`
	BatchID string `json:"batch_id"`
}

// PeerListParam is used by peer_list.
type PeerListParam struct {
	ActiveOnly bool `json:"active_only,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// PingResult is returned by vibe_ping.
type PingResult struct {
	Pong    bool   `json:"pong"`
	Version string `json:"version"`
	Network string `json:"network"`
}

// IdentityInfoResult is returned by identity_getInfo. The mnemonic is
// never exposed over RPC.
type IdentityInfoResult struct {
	NodeID        string `json:"node_id"`
	WalletAddress string `json:"wallet_address"`
	PubKey        string `json:"pubkey"`
}

// PeerEntry describes a single registry record in RPC responses.
type PeerEntry struct {
	NodeID          string `json:"node_id"`
	WalletAddress   string `json:"wallet_address"`
	CPUCores        int    `json:"cpu_cores"`
	RAMMB           int    `json:"ram_mb"`
	GPUModel        string `json:"gpu_model"`
	GPUAvailable    bool   `json:"gpu_available"`
	StorageGB       int    `json:"storage_gb"`
	IsActive        bool   `json:"is_active"`
	LastHeartbeatAt int64  `json:"last_heartbeat_at"`
}

// NewPeerEntry converts a registry record for RPC responses.
func NewPeerEntry(rec registry.PeerRecord) PeerEntry {
	return PeerEntry{
		NodeID:          rec.NodeID,
		WalletAddress:   rec.WalletAddress.String(),
		CPUCores:        rec.Hardware.CPUCores,
		RAMMB:           rec.Hardware.RAMMB,
		GPUModel:        rec.Hardware.GPUModel,
		GPUAvailable:    rec.Hardware.GPUAvailable,
		StorageGB:       rec.Hardware.StorageGB,
		IsActive:        rec.IsActive,
		LastHeartbeatAt: rec.LastHeartbeatAt,
	}
}

// PeerListResult is returned by peer_list.
type PeerListResult struct {
	Count int         `json:"count"`
	Peers []PeerEntry `json:"peers"`
}

// NetStatsResult is returned by net_getStats.
type NetStatsResult struct {
	ActivePeers    int `json:"active_peers"`
	TotalCPUCores  int `json:"total_cpu_cores"`
	TotalRAMMB     int `json:"total_ram_mb"`
	TotalStorageGB int `json:"total_storage_gb"`
	TotalGPUs      int `json:"total_gpus"`
	ConnectedPeers int `json:"connected_peers"`
}

// NodeInfoResult is returned by net_getNodeInfo.
type NodeInfoResult struct {
	ID    string   `json:"id"`
	Addrs []string `json:"addrs"`
}

// BalanceResult is returned by reward_getBalance. Amounts are decimal
// VIBE strings.
type BalanceResult struct {
	Wallet              string `json:"wallet"`
	Balance             string `json:"balance"`
	PendingDistribution string `json:"pending_distribution"`
	TotalEarned         string `json:"total_earned"`
	LastRewardAt        int64  `json:"last_reward_at"`
}

// SettleResult is returned by reward_settle.
type SettleResult struct {
	Wallet  string `json:"wallet"`
	BatchID string `json:"batch_id"`
	Moved   string `json:"moved"` // decimal VIBE
}
