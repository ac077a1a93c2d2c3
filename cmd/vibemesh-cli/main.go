// vibemesh-cli is a command-line client for interacting with a vibemeshd
// node and managing the local node identity.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/vibemesh/vibemesh/config"
	"github.com/vibemesh/vibemesh/internal/identity"
	"github.com/vibemesh/vibemesh/internal/rpc"
	"github.com/vibemesh/vibemesh/internal/rpcclient"
)

// identityDir returns the identity path matching vibemeshd's layout:
// <datadir>/<network>/identity
func identityDir(dataDir, network string) string {
	return filepath.Join(dataDir, network, "identity")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := "http://127.0.0.1:8714"
	dataDir := config.DefaultDataDir()
	network := "mainnet"

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	idDir := identityDir(dataDir, network)
	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(client)
	case "peers":
		cmdPeers(client, cmdArgs)
	case "peer":
		cmdPeer(client, cmdArgs)
	case "stats":
		cmdStats(client)
	case "balance":
		cmdBalance(client, cmdArgs)
	case "settle":
		cmdSettle(client, cmdArgs)
	case "identity":
		cmdIdentity(client, cmdArgs, idDir)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: vibemesh-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8714)
  --datadir <path>    Data directory (default: ~/.vibemesh)
  --network <net>     mainnet (default) or testnet

Commands:
  status                          Show node status
  peers [--active]                List known peers
  peer <node_id>                  Show a single peer record
  stats                           Show aggregate network capacity
  balance <wallet>                Show a wallet's reward balances
  settle --wallet <w> --batch <id>
                                  Move pending rewards to the settled balance

  identity init                   Create a new node identity
  identity import --mnemonic "word1 word2 ..."
                                  Recover identity from a seed phrase
  identity show                   Show the local identity (no mnemonic)
  identity export --out <file>    Write an encrypted identity backup
  identity restore --in <file>    Restore identity from an encrypted backup
`)
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(client *rpcclient.Client) {
	var ping rpc.PingResult
	if err := client.Call("vibe_ping", struct{}{}, &ping); err != nil {
		fatal("vibe_ping: %v", err)
	}
	fmt.Printf("Version:  %s\n", ping.Version)
	fmt.Printf("Network:  %s\n", ping.Network)

	var stats rpc.NetStatsResult
	if err := client.Call("net_getStats", struct{}{}, &stats); err != nil {
		fatal("net_getStats: %v", err)
	}
	fmt.Printf("Active:   %d peers\n", stats.ActivePeers)
	fmt.Printf("Links:    %d connections\n", stats.ConnectedPeers)
}

// ── peers ───────────────────────────────────────────────────────────────

func cmdPeers(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("peers", flag.ExitOnError)
	activeOnly := fs.Bool("active", false, "Only list active peers")
	fs.Parse(args)

	var result rpc.PeerListResult
	if err := client.Call("peer_list", rpc.PeerListParam{ActiveOnly: *activeOnly}, &result); err != nil {
		fatal("peer_list: %v", err)
	}

	if result.Count == 0 {
		fmt.Println("No peers known.")
		return
	}
	for _, p := range result.Peers {
		status := "inactive"
		if p.IsActive {
			status = "active"
		}
		last := time.Unix(p.LastHeartbeatAt, 0).UTC().Format("2006-01-02 15:04:05")
		fmt.Printf("%s  %-8s  cpu=%d ram=%dMB gpu=%s storage=%dGB  last=%s\n",
			p.NodeID, status, p.CPUCores, p.RAMMB, p.GPUModel, p.StorageGB, last)
	}
}

func cmdPeer(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: vibemesh-cli peer <node_id>")
	}

	var p rpc.PeerEntry
	if err := client.Call("peer_get", rpc.NodeIDParam{NodeID: args[0]}, &p); err != nil {
		fatal("peer_get: %v", err)
	}

	fmt.Printf("Node ID:   %s\n", p.NodeID)
	fmt.Printf("Wallet:    %s\n", p.WalletAddress)
	fmt.Printf("Active:    %t\n", p.IsActive)
	fmt.Printf("CPU:       %d cores\n", p.CPUCores)
	fmt.Printf("RAM:       %d MB\n", p.RAMMB)
	fmt.Printf("GPU:       %s (available: %t)\n", p.GPUModel, p.GPUAvailable)
	fmt.Printf("Storage:   %d GB\n", p.StorageGB)
	ts := time.Unix(p.LastHeartbeatAt, 0).UTC()
	fmt.Printf("Last seen: %s\n", ts.Format("2006-01-02 15:04:05 UTC"))
}

// ── stats ───────────────────────────────────────────────────────────────

func cmdStats(client *rpcclient.Client) {
	var stats rpc.NetStatsResult
	if err := client.Call("net_getStats", struct{}{}, &stats); err != nil {
		fatal("net_getStats: %v", err)
	}

	fmt.Printf("Active peers:   %d\n", stats.ActivePeers)
	fmt.Printf("CPU cores:      %d\n", stats.TotalCPUCores)
	fmt.Printf("RAM:            %d MB\n", stats.TotalRAMMB)
	fmt.Printf("Storage:        %d GB\n", stats.TotalStorageGB)
	fmt.Printf("GPUs:           %d\n", stats.TotalGPUs)
}

// ── rewards ─────────────────────────────────────────────────────────────

func cmdBalance(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: vibemesh-cli balance <wallet>")
	}

	var result rpc.BalanceResult
	if err := client.Call("reward_getBalance", rpc.WalletParam{Wallet: args[0]}, &result); err != nil {
		fatal("reward_getBalance: %v", err)
	}

	fmt.Printf("Wallet:   %s\n", result.Wallet)
	fmt.Printf("Balance:  %s VIBE\n", result.Balance)
	fmt.Printf("Pending:  %s VIBE\n", result.PendingDistribution)
	fmt.Printf("Earned:   %s VIBE\n", result.TotalEarned)
	if result.LastRewardAt > 0 {
		ts := time.Unix(result.LastRewardAt, 0).UTC()
		fmt.Printf("Last:     %s\n", ts.Format("2006-01-02 15:04:05 UTC"))
	}
}

func cmdSettle(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("settle", flag.ExitOnError)
	wallet := fs.String("wallet", "", "Wallet address")
	batch := fs.String("batch", "", "Settlement batch ID (replays are no-ops)")
	fs.Parse(args)

	if *wallet == "" || *batch == "" {
		fatal("Usage: vibemesh-cli settle --wallet <w> --batch <id>")
	}

	var result rpc.SettleResult
	if err := client.Call("reward_settle", rpc.SettleParam{Wallet: *wallet, BatchID: *batch}, &result); err != nil {
		fatal("reward_settle: %v", err)
	}

	fmt.Printf("Settled %s VIBE (batch %s)\n", result.Moved, result.BatchID)
}

// ── identity ────────────────────────────────────────────────────────────

func cmdIdentity(client *rpcclient.Client, args []string, idDir string) {
	if len(args) < 1 {
		fatal("Usage: vibemesh-cli identity <init|import|show|export|restore> [flags]")
	}

	switch args[0] {
	case "init":
		cmdIdentityInit(idDir)
	case "import":
		cmdIdentityImport(args[1:], idDir)
	case "show":
		cmdIdentityShow(client, idDir)
	case "export":
		cmdIdentityExport(args[1:], idDir)
	case "restore":
		cmdIdentityRestore(args[1:], idDir)
	default:
		fatal("Unknown identity command: %s", args[0])
	}
}

func cmdIdentityInit(idDir string) {
	mgr := identity.NewManager(idDir)
	if _, err := mgr.Load(); err == nil {
		fatal("identity already exists at %s (use \"identity import\" to replace it)", mgr.Path())
	}

	id, err := identity.Generate()
	if err != nil {
		fatal("generate identity: %v", err)
	}
	if err := mgr.Save(id); err != nil {
		fatal("save identity: %v", err)
	}

	fmt.Println("Seed phrase (write this down!):")
	fmt.Printf("  %s\n\n", id.Mnemonic)
	fmt.Printf("Node ID: %s\n", id.NodeID)
	fmt.Printf("Wallet:  %s\n", id.WalletAddress)
}

func cmdIdentityImport(args []string, idDir string) {
	fs := flag.NewFlagSet("identity import", flag.ExitOnError)
	mnemonic := fs.String("mnemonic", "", "BIP-39 seed phrase (24 words)")
	fs.Parse(args)

	if *mnemonic == "" {
		fatal("Usage: vibemesh-cli identity import --mnemonic \"word1 word2 ...\"")
	}

	id, err := identity.FromMnemonic(*mnemonic)
	if err != nil {
		fatal("import: %v", err)
	}
	if err := identity.NewManager(idDir).Save(id); err != nil {
		fatal("save identity: %v", err)
	}

	fmt.Printf("Identity imported.\n")
	fmt.Printf("Node ID: %s\n", id.NodeID)
	fmt.Printf("Wallet:  %s\n", id.WalletAddress)
}

func cmdIdentityShow(client *rpcclient.Client, idDir string) {
	// Prefer the local file; fall back to a running node.
	if id, err := identity.NewManager(idDir).Load(); err == nil {
		fmt.Printf("Node ID: %s\n", id.NodeID)
		fmt.Printf("Wallet:  %s\n", id.WalletAddress)
		fmt.Printf("PubKey:  %s\n", id.PublicKeyHex())
		return
	}

	var info rpc.IdentityInfoResult
	if err := client.Call("identity_getInfo", struct{}{}, &info); err != nil {
		fatal("no local identity and identity_getInfo failed: %v", err)
	}
	fmt.Printf("Node ID: %s\n", info.NodeID)
	fmt.Printf("Wallet:  %s\n", info.WalletAddress)
	fmt.Printf("PubKey:  %s\n", info.PubKey)
}

func cmdIdentityExport(args []string, idDir string) {
	fs := flag.NewFlagSet("identity export", flag.ExitOnError)
	out := fs.String("out", "", "Output file for the encrypted backup")
	fs.Parse(args)

	if *out == "" {
		fatal("Usage: vibemesh-cli identity export --out <file>")
	}

	id, err := identity.NewManager(idDir).Load()
	if err != nil {
		fatal("load identity: %v", err)
	}

	password, err := readPassword("Enter passphrase: ")
	if err != nil {
		fatal("read passphrase: %v", err)
	}
	confirm, err := readPassword("Confirm passphrase: ")
	if err != nil {
		fatal("read passphrase: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passphrases do not match")
	}

	backup, err := id.ExportEncrypted(password)
	if err != nil {
		fatal("export: %v", err)
	}
	if err := os.WriteFile(*out, backup, 0600); err != nil {
		fatal("write backup: %v", err)
	}

	fmt.Printf("Encrypted backup written to %s\n", *out)
}

func cmdIdentityRestore(args []string, idDir string) {
	fs := flag.NewFlagSet("identity restore", flag.ExitOnError)
	in := fs.String("in", "", "Encrypted backup file")
	fs.Parse(args)

	if *in == "" {
		fatal("Usage: vibemesh-cli identity restore --in <file>")
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		fatal("read backup: %v", err)
	}

	password, err := readPassword("Enter passphrase: ")
	if err != nil {
		fatal("read passphrase: %v", err)
	}

	id, err := identity.ImportEncrypted(data, password)
	if err != nil {
		fatal("restore: %v", err)
	}
	if err := identity.NewManager(idDir).Save(id); err != nil {
		fatal("save identity: %v", err)
	}

	fmt.Printf("Identity restored.\n")
	fmt.Printf("Node ID: %s\n", id.NodeID)
	fmt.Printf("Wallet:  %s\n", id.WalletAddress)
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
