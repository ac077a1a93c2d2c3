package config

import (
	"fmt"
	"os"
)

// argsAfterProgram returns the command-line arguments without the program name.
func argsAfterProgram() []string {
	if len(os.Args) == 0 {
		return nil
	}
	return os.Args[1:]
}

// Validate checks the configuration for values that would prevent startup.
func Validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}
	if cfg.P2P.Enabled {
		if cfg.P2P.Port <= 0 || cfg.P2P.Port > 65535 {
			return fmt.Errorf("invalid p2p port %d", cfg.P2P.Port)
		}
		if cfg.P2P.AnnounceInterval <= 0 {
			return fmt.Errorf("announce interval must be positive")
		}
	}
	if cfg.RPC.Enabled {
		if cfg.RPC.Port <= 0 || cfg.RPC.Port > 65535 {
			return fmt.Errorf("invalid rpc port %d", cfg.RPC.Port)
		}
	}
	if cfg.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if cfg.Monitor.StaleAfter <= cfg.P2P.AnnounceInterval {
		return fmt.Errorf("staleness threshold %s must exceed the announce interval %s",
			cfg.Monitor.StaleAfter, cfg.P2P.AnnounceInterval)
	}
	if cfg.Reward.BaseRateMilli == 0 {
		return fmt.Errorf("reward base rate must be positive")
	}
	if err := cfg.Hardware.Snapshot().Validate(); err != nil {
		return fmt.Errorf("hardware config: %w", err)
	}
	return nil
}
