// Package config handles node configuration.
//
// Configuration is split into two categories:
//   - Mesh rules: reward rates and liveness thresholds, which must match
//     across the network for consistent accounting
//   - Node settings: runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/vibemesh/vibemesh/pkg/types"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds node-specific runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// P2P networking
	P2P P2PConfig

	// RPC server
	RPC RPCConfig

	// Dedup/liveness maintenance
	Monitor MonitorConfig

	// Reward accounting
	Reward RewardConfig

	// Announced hardware capacity
	Hardware HardwareConfig

	// Logging
	Log LogConfig

	// ImportMnemonic, when set, recovers the node identity from an existing
	// seed phrase instead of generating one (not persisted in config file).
	ImportMnemonic string
}

// P2PConfig holds peer-to-peer network settings.
type P2PConfig struct {
	Enabled          bool          `conf:"p2p.enabled"`
	ListenAddr       string        `conf:"p2p.listen"`
	Port             int           `conf:"p2p.port"`
	Seeds            []string      `conf:"p2p.seeds"`
	MaxPeers         int           `conf:"p2p.maxpeers"`
	NoDiscover       bool          `conf:"p2p.nodiscover"`
	DHTServer        bool          `conf:"p2p.dhtserver"` // Run DHT in server mode (for seeds)
	AnnounceInterval time.Duration `conf:"p2p.announce_secs"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed_ips"`  // IPs/CIDRs allowed to connect (empty = all)
	CORSOrigins []string `conf:"rpc.cors_origins"` // Allowed CORS origins (empty = no CORS)
}

// MonitorConfig holds dedup/liveness maintenance settings.
type MonitorConfig struct {
	Interval   time.Duration `conf:"monitor.interval_secs"`
	StaleAfter time.Duration `conf:"monitor.stale_secs"`
}

// RewardConfig holds reward accounting settings.
type RewardConfig struct {
	// BaseRateMilli is the per-heartbeat base reward in milli-VIBE,
	// before hardware multipliers.
	BaseRateMilli uint64 `conf:"reward.base_rate_milli"`
}

// HardwareConfig is the operator-declared capacity this node announces.
type HardwareConfig struct {
	CPUCores     int    `conf:"hw.cpu_cores"`
	RAMMB        int    `conf:"hw.ram_mb"`
	GPUModel     string `conf:"hw.gpu_model"`
	GPUAvailable bool   `conf:"hw.gpu_available"`
	StorageGB    int    `conf:"hw.storage_gb"`
}

// Snapshot converts the configured capacity into a hardware snapshot.
func (h HardwareConfig) Snapshot() types.HardwareSnapshot {
	return types.HardwareSnapshot{
		CPUCores:     h.CPUCores,
		RAMMB:        h.RAMMB,
		GPUModel:     h.GPUModel,
		GPUAvailable: h.GPUAvailable,
		StorageGB:    h.StorageGB,
	}
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.vibemesh
//	macOS:   ~/Library/Application Support/VibeMesh
//	Windows: %APPDATA%\VibeMesh
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vibemesh"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "VibeMesh")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "VibeMesh")
		}
		return filepath.Join(home, "AppData", "Roaming", "VibeMesh")
	default:
		return filepath.Join(home, ".vibemesh")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the key-value database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.NetworkDataDir(), "db")
}

// IdentityDir returns the identity storage directory.
func (c *Config) IdentityDir() string {
	return filepath.Join(c.NetworkDataDir(), "identity")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "vibemesh.conf")
}
