// Package node provides a reusable mesh node that can be embedded in any
// binary (daemon, CLI, tests).
package node

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/vibemesh/vibemesh/config"
	"github.com/vibemesh/vibemesh/internal/identity"
	"github.com/vibemesh/vibemesh/internal/ingest"
	klog "github.com/vibemesh/vibemesh/internal/log"
	"github.com/vibemesh/vibemesh/internal/monitor"
	"github.com/vibemesh/vibemesh/internal/p2p"
	"github.com/vibemesh/vibemesh/internal/registry"
	"github.com/vibemesh/vibemesh/internal/reward"
	"github.com/vibemesh/vibemesh/internal/rpc"
	"github.com/vibemesh/vibemesh/internal/storage"
	"github.com/vibemesh/vibemesh/pkg/types"
)

// Node is a fully-initialized mesh node.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db       storage.DB
	ident    *identity.Identity
	reg      *registry.Registry
	rewards  *reward.Engine
	ingestor *ingest.Ingestor
	mon      *monitor.Monitor

	// Networking
	p2pNode   *p2p.Node
	announcer *p2p.Announcer

	// RPC
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, storage, identity, registry, rewards, P2P, RPC) but does NOT
// start background goroutines. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = logsDir + "/vibemesh.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("version", config.Version).
		Msg("Starting VibeMesh Node")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
	}
	logger.Info().Str("path", cfg.DBDir()).Msg("Database opened")

	// ── 3. Identity ─────────────────────────────────────────────────
	ident, err := identity.NewManager(cfg.IdentityDir()).LoadOrCreate(cfg.ImportMnemonic)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load identity: %w", err)
	}
	logger.Info().
		Str("node_id", ident.NodeID).
		Str("wallet", ident.WalletAddress.String()).
		Msg("Identity ready")

	// ── 4. Peer registry ────────────────────────────────────────────
	reg, err := registry.New(storage.NewPrefixDB(db, []byte("registry/")))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open peer registry: %w", err)
	}
	logger.Info().Int("known_peers", reg.Count()).Msg("Peer registry loaded")

	// ── 5. Reward engine ────────────────────────────────────────────
	rewards, err := reward.NewEngine(storage.NewPrefixDB(db, []byte("reward/")), types.Amount(cfg.Reward.BaseRateMilli))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create reward engine: %w", err)
	}

	// ── 6. Ingestion ────────────────────────────────────────────────
	ingestor := ingest.New(reg, rewards)

	// ── 7. Monitor ──────────────────────────────────────────────────
	mon := monitor.New(reg, rewards, cfg.Monitor.Interval, cfg.Monitor.StaleAfter)

	// ── 8. P2P ──────────────────────────────────────────────────────
	var p2pNode *p2p.Node
	if cfg.P2P.Enabled {
		p2pNode = p2p.New(p2p.Config{
			ListenAddr: cfg.P2P.ListenAddr,
			Port:       cfg.P2P.Port,
			Seeds:      cfg.P2P.Seeds,
			MaxPeers:   cfg.P2P.MaxPeers,
			NoDiscover: cfg.P2P.NoDiscover,
			DB:         db,
			DHTServer:  cfg.P2P.DHTServer,
			NetworkID:  networkID(cfg.Network),
			DataDir:    cfg.NetworkDataDir(),
		})

		p2pNode.SetHeartbeatHandler(func(ev *ingest.HeartbeatEvent) {
			// Drops are logged by the ingestor; nothing else to do here.
			_ = ingestor.Ingest(ev)
		})

		if err := p2pNode.Start(); err != nil {
			db.Close()
			return nil, fmt.Errorf("start P2P: %w", err)
		}

		logger.Info().
			Str("id", p2pNode.ID().String()).
			Int("port", cfg.P2P.Port).
			Bool("discovery", !cfg.P2P.NoDiscover).
			Msg("P2P node started")
	} else {
		logger.Warn().Msg("P2P disabled by config; node will run offline")
	}

	// ── 9. Announcer ────────────────────────────────────────────────
	var broadcast p2p.Broadcaster = offlineBroadcaster{}
	if p2pNode != nil {
		broadcast = p2pNode
	}
	announcer := p2p.NewAnnouncer(
		ident.NodeID, ident.WalletAddress, ident.Signer(),
		cfg.Hardware.Snapshot(), cfg.P2P.AnnounceInterval,
		broadcast, ingestor.Ingest,
	)

	// ── 10. RPC ─────────────────────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		rpcServer = rpc.New(addr, string(cfg.Network), ident, reg, rewards, p2pNode, cfg.RPC)
		if err := rpcServer.Start(); err != nil {
			if p2pNode != nil {
				p2pNode.Stop()
			}
			db.Close()
			return nil, fmt.Errorf("start RPC: %w", err)
		}
		logger.Info().Str("addr", rpcServer.Addr()).Msg("RPC server started")
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		ident:     ident,
		reg:       reg,
		rewards:   rewards,
		ingestor:  ingestor,
		mon:       mon,
		p2pNode:   p2pNode,
		announcer: announcer,
		rpcServer: rpcServer,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start launches background goroutines: maintenance ticks and the
// heartbeat announcer.
func (n *Node) Start() error {
	n.mon.Start(n.ctx)
	n.announcer.Start(n.ctx)

	n.logger.Info().
		Str("node_id", n.ident.NodeID).
		Int("active_peers", n.reg.Stats().ActivePeers).
		Msg("Node started successfully")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.announcer.Stop()
	n.mon.Stop()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	if n.p2pNode != nil {
		n.p2pNode.Stop()
	}
	if n.ident != nil {
		n.ident.Signer().Zero()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Identity returns this node's mesh identity.
func (n *Node) Identity() *identity.Identity {
	return n.ident
}

// networkID returns the discovery namespace suffix for a network.
func networkID(network config.NetworkType) string {
	return "vibemesh-" + string(network) + "-1"
}

// offlineBroadcaster drops heartbeats when P2P is disabled; the node
// still applies its own heartbeat locally.
type offlineBroadcaster struct{}

func (offlineBroadcaster) BroadcastHeartbeat(*ingest.HeartbeatEvent) error { return nil }
