package rpc

import (
	"encoding/hex"
	"fmt"

	"github.com/vibemesh/vibemesh/config"
	"github.com/vibemesh/vibemesh/pkg/crypto"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// handlePing implements vibe_ping.
func (s *Server) handlePing(req *Request) (interface{}, *Error) {
	return PingResult{
		Pong:    true,
		Version: config.Version,
		Network: s.network,
	}, nil
}

// handleIdentityGetInfo implements identity_getInfo.
func (s *Server) handleIdentityGetInfo(req *Request) (interface{}, *Error) {
	return IdentityInfoResult{
		NodeID:        s.ident.NodeID,
		WalletAddress: s.ident.WalletAddress.String(),
		PubKey:        hex.EncodeToString(s.ident.PublicKey),
	}, nil
}

// handlePeerList implements peer_list. With no params or active_only
// false, every known record is returned, including deactivated ones.
func (s *Server) handlePeerList(req *Request) (interface{}, *Error) {
	var params PeerListParam
	if req.Params != nil {
		if rpcErr := parseParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}

	var entries []PeerEntry
	if params.ActiveOnly {
		for _, rec := range s.reg.ListActive() {
			entries = append(entries, NewPeerEntry(rec))
		}
	} else {
		for _, rec := range s.reg.ListAll() {
			entries = append(entries, NewPeerEntry(rec))
		}
	}

	return PeerListResult{Count: len(entries), Peers: entries}, nil
}

// handlePeerGet implements peer_get.
func (s *Server) handlePeerGet(req *Request) (interface{}, *Error) {
	var params NodeIDParam
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if !crypto.ValidNodeID(params.NodeID) {
		return nil, &Error{Code: CodeInvalidParams, Message: "invalid node_id"}
	}

	rec, ok := s.reg.Get(params.NodeID)
	if !ok {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("peer %s not found", params.NodeID)}
	}
	return NewPeerEntry(rec), nil
}

// handleNetGetStats implements net_getStats.
func (s *Server) handleNetGetStats(req *Request) (interface{}, *Error) {
	stats := s.reg.Stats()
	result := NetStatsResult{
		ActivePeers:    stats.ActivePeers,
		TotalCPUCores:  stats.TotalCPUCores,
		TotalRAMMB:     stats.TotalRAMMB,
		TotalStorageGB: stats.TotalStorageGB,
		TotalGPUs:      stats.TotalGPUs,
	}
	if s.p2pNode != nil {
		result.ConnectedPeers = s.p2pNode.PeerCount()
	}
	return result, nil
}

// handleNetGetNodeInfo implements net_getNodeInfo.
func (s *Server) handleNetGetNodeInfo(req *Request) (interface{}, *Error) {
	if s.p2pNode == nil {
		return nil, &Error{Code: CodeNotFound, Message: "p2p disabled"}
	}
	return NodeInfoResult{
		ID:    s.p2pNode.ID().String(),
		Addrs: s.p2pNode.Addrs(),
	}, nil
}

// handleRewardGetBalance implements reward_getBalance.
func (s *Server) handleRewardGetBalance(req *Request) (interface{}, *Error) {
	var params WalletParam
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	wallet, err := types.ParseAddress(params.Wallet)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid wallet: %v", err)}
	}

	entry, err := s.rewards.Balance(wallet)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return BalanceResult{
		Wallet:              wallet.String(),
		Balance:             entry.Balance.String(),
		PendingDistribution: entry.PendingDistribution.String(),
		TotalEarned:         entry.TotalEarned.String(),
		LastRewardAt:        entry.LastRewardAt,
	}, nil
}

// handleRewardSettle implements reward_settle.
func (s *Server) handleRewardSettle(req *Request) (interface{}, *Error) {
	var params SettleParam
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	wallet, err := types.ParseAddress(params.Wallet)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid wallet: %v", err)}
	}
	if params.BatchID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "batch_id required"}
	}

	moved, err := s.rewards.Settle(wallet, params.BatchID)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return SettleResult{
		Wallet:  wallet.String(),
		BatchID: params.BatchID,
		Moved:   moved.String(),
	}, nil
}
