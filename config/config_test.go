package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	main := DefaultMainnet()
	if err := Validate(main); err != nil {
		t.Errorf("mainnet defaults invalid: %v", err)
	}
	test := DefaultTestnet()
	if err := Validate(test); err != nil {
		t.Errorf("testnet defaults invalid: %v", err)
	}

	if main.P2P.Port == test.P2P.Port {
		t.Error("mainnet and testnet share a p2p port")
	}
	if main.RPC.Port == test.RPC.Port {
		t.Error("mainnet and testnet share an rpc port")
	}
	if Default(Testnet).Network != Testnet {
		t.Error("Default(Testnet) returned wrong network")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty datadir", func(c *Config) { c.DataDir = "" }},
		{"bad p2p port", func(c *Config) { c.P2P.Port = 70000 }},
		{"bad rpc port", func(c *Config) { c.RPC.Port = -1 }},
		{"zero monitor interval", func(c *Config) { c.Monitor.Interval = 0 }},
		{"stale not exceeding announce", func(c *Config) { c.Monitor.StaleAfter = c.P2P.AnnounceInterval }},
		{"zero base rate", func(c *Config) { c.Reward.BaseRateMilli = 0 }},
		{"bad hardware", func(c *Config) { c.Hardware.CPUCores = 0 }},
	}
	for _, tt := range tests {
		cfg := DefaultTestnet()
		tt.mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Errorf("%s: Validate succeeded, want error", tt.name)
		}
	}
}

func TestValidate_DisabledSubsystemsSkipPortChecks(t *testing.T) {
	cfg := DefaultTestnet()
	cfg.P2P.Enabled = false
	cfg.P2P.Port = -1
	cfg.RPC.Enabled = false
	cfg.RPC.Port = -1
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate with disabled subsystems: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vibemesh.conf")
	content := `# comment
network = testnet

p2p.port = 31999
p2p.seeds = /dns4/a.example/tcp/31414/p2p/X, /dns4/b.example/tcp/31414/p2p/Y
rpc.allowed_ips = "127.0.0.1, 10.0.0.0/8"
hw.gpu_model = 'RTX 4090'
hw.gpu_available = yes
monitor.stale_secs = 600
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Network != Testnet {
		t.Errorf("network = %q, want testnet", cfg.Network)
	}
	if cfg.P2P.Port != 31999 {
		t.Errorf("p2p port = %d, want 31999", cfg.P2P.Port)
	}
	if len(cfg.P2P.Seeds) != 2 {
		t.Errorf("seeds = %v, want 2 entries", cfg.P2P.Seeds)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.0/8" {
		t.Errorf("allowed_ips = %v", cfg.RPC.AllowedIPs)
	}
	if cfg.Hardware.GPUModel != "RTX 4090" {
		t.Errorf("gpu_model = %q", cfg.Hardware.GPUModel)
	}
	if !cfg.Hardware.GPUAvailable {
		t.Error("gpu_available not parsed")
	}
	if cfg.Monitor.StaleAfter != 600*time.Second {
		t.Errorf("stale_after = %s, want 10m", cfg.Monitor.StaleAfter)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("LoadFile missing: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("expected empty map, got %v", values)
	}
}

func TestApplyFileConfig_UnknownKey(t *testing.T) {
	cfg := DefaultMainnet()
	err := ApplyFileConfig(cfg, map[string]string{"no.such.key": "1"})
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestHardwareConfig_Snapshot(t *testing.T) {
	hc := HardwareConfig{CPUCores: 12, RAMMB: 32768, GPUModel: "none", StorageGB: 2000}
	hw := hc.Snapshot()
	if hw.CPUCores != 12 || hw.RAMMB != 32768 || hw.StorageGB != 2000 {
		t.Errorf("snapshot mismatch: %+v", hw)
	}
	if err := hw.Validate(); err != nil {
		t.Errorf("snapshot invalid: %v", err)
	}
}
