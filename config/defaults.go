package config

import (
	"runtime"
	"time"
)

// Version is the node software version reported over RPC.
const Version = "0.1.0"

// Liveness defaults shared by every node on a network.
const (
	DefaultMonitorInterval  = 60 * time.Second
	DefaultStaleAfter       = 5 * time.Minute
	DefaultAnnounceInterval = 30 * time.Second

	// DefaultBaseRateMilli is 0.1 VIBE per heartbeat in milli-VIBE.
	DefaultBaseRateMilli = 100
)

// DefaultMainnet returns the default node configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		P2P: P2PConfig{
			Enabled:    true,
			ListenAddr: "0.0.0.0",
			Port:       31414,
			MaxPeers:   50,
			// Seed multiaddrs, e.g.
			//   "/dns4/seed1.vibemesh.io/tcp/31414/p2p/12D3KooW..."
			Seeds:            []string{},
			AnnounceInterval: DefaultAnnounceInterval,
		},
		RPC: RPCConfig{
			Enabled: true,
			Addr:    "127.0.0.1",
			Port:    8714,
		},
		Monitor: MonitorConfig{
			Interval:   DefaultMonitorInterval,
			StaleAfter: DefaultStaleAfter,
		},
		Reward: RewardConfig{
			BaseRateMilli: DefaultBaseRateMilli,
		},
		Hardware: HardwareConfig{
			CPUCores:  runtime.NumCPU(),
			RAMMB:     8192,
			GPUModel:  "none",
			StorageGB: 100,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default node configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.P2P.Port = 31415
	cfg.RPC.Port = 8715
	return cfg
}

// Default returns the default node configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
