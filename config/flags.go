package config

import (
	"flag"
	"fmt"
	"time"
)

// Load builds the effective configuration: defaults for the selected
// network, overlaid with the config file, overlaid with command-line
// flags. It returns the config and any remaining positional arguments.
func Load() (*Config, []string, error) {
	fs := flag.NewFlagSet("vibemeshd", flag.ContinueOnError)

	network := fs.String("network", string(Mainnet), "network to join (mainnet or testnet)")
	dataDir := fs.String("datadir", "", "data directory (default: platform-specific)")
	confPath := fs.String("config", "", "config file path (default: <datadir>/vibemesh.conf)")

	p2pPort := fs.Int("p2p.port", 0, "P2P listen port")
	p2pSeeds := fs.String("p2p.seeds", "", "comma-separated seed multiaddrs")
	noDiscover := fs.Bool("p2p.nodiscover", false, "disable mDNS/DHT peer discovery")
	dhtServer := fs.Bool("p2p.dhtserver", false, "run the DHT in server mode")

	rpcAddr := fs.String("rpc.addr", "", "RPC listen address")
	rpcPort := fs.Int("rpc.port", 0, "RPC listen port")
	rpcOff := fs.Bool("rpc.disable", false, "disable the RPC server")

	monInterval := fs.Int("monitor.interval", 0, "dedup/liveness pass interval in seconds")
	monStale := fs.Int("monitor.stale", 0, "heartbeat staleness threshold in seconds")

	hwCores := fs.Int("hw.cpu-cores", 0, "announced CPU core count")
	hwRAM := fs.Int("hw.ram-mb", 0, "announced RAM in MB")
	hwGPU := fs.String("hw.gpu-model", "", "announced GPU model (\"none\" when absent)")
	hwGPUOn := fs.Bool("hw.gpu", false, "announce an available GPU")
	hwStorage := fs.Int("hw.storage-gb", 0, "announced storage in GB")

	logLevel := fs.String("log.level", "", "log level (debug, info, warn, error)")
	logJSON := fs.Bool("log.json", false, "log JSON to stdout")
	logFile := fs.String("log.file", "", "also write JSON logs to this file")

	importMnemonic := fs.String("import-mnemonic", "", "recover identity from an existing seed phrase")

	if err := fs.Parse(argsAfterProgram()); err != nil {
		return nil, nil, err
	}

	cfg := Default(NetworkType(*network))
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return nil, nil, fmt.Errorf("unknown network %q", *network)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	// Config file (if present) overrides defaults.
	path := cfg.ConfigFile()
	if *confPath != "" {
		path = *confPath
	}
	values, err := LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config file %s: %w", path, err)
	}
	if err := ApplyFileConfig(cfg, values); err != nil {
		return nil, nil, err
	}

	// Flags override the file.
	if *p2pPort != 0 {
		cfg.P2P.Port = *p2pPort
	}
	if *p2pSeeds != "" {
		cfg.P2P.Seeds = parseStringList(*p2pSeeds)
	}
	if *noDiscover {
		cfg.P2P.NoDiscover = true
	}
	if *dhtServer {
		cfg.P2P.DHTServer = true
	}
	if *rpcAddr != "" {
		cfg.RPC.Addr = *rpcAddr
	}
	if *rpcPort != 0 {
		cfg.RPC.Port = *rpcPort
	}
	if *rpcOff {
		cfg.RPC.Enabled = false
	}
	if *monInterval != 0 {
		cfg.Monitor.Interval = time.Duration(*monInterval) * time.Second
	}
	if *monStale != 0 {
		cfg.Monitor.StaleAfter = time.Duration(*monStale) * time.Second
	}
	if *hwCores != 0 {
		cfg.Hardware.CPUCores = *hwCores
	}
	if *hwRAM != 0 {
		cfg.Hardware.RAMMB = *hwRAM
	}
	if *hwGPU != "" {
		cfg.Hardware.GPUModel = *hwGPU
	}
	if *hwGPUOn {
		cfg.Hardware.GPUAvailable = true
	}
	if *hwStorage != 0 {
		cfg.Hardware.StorageGB = *hwStorage
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logJSON {
		cfg.Log.JSON = true
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	cfg.ImportMnemonic = *importMnemonic

	if err := Validate(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}
