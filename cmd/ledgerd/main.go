// Command ledgerd is the node-operator entry point for the ledger shell: it
// loads a configuration document and a genesis bootstrap document, wires a
// node.Node from them, and runs it until a termination signal arrives.
//
// Usage:
//
//	ledgerd init --datadir ./data
//	ledgerd start --config config.yaml
//	ledgerd query --config ./data/config.yaml value/<key>
//
// Grounded in the teacher's cmd/eth2030 entry point (a run(args)-int
// function, a startup banner, SIGINT/SIGTERM-driven graceful shutdown), with
// urfave/cli/v2 in place of the teacher's hand-rolled flag.FlagSet and
// fatih/color in place of the teacher's plain log.Printf banner.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"

	"github.com/anoma-network/ledger/config"
	"github.com/anoma-network/ledger/log"
	"github.com/anoma-network/ledger/node"
	"github.com/anoma-network/ledger/shielded"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := &cli.App{
		Name:    "ledgerd",
		Usage:   "ledger shell node",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Commands: []*cli.Command{
			initCommand(),
			startCommand(),
			queryCommand(),
		},
	}
	if err := app.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		return 1
	}
	return 0
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write a default config.yaml and genesis.toml into --datadir",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "datadir", Value: "./data", Usage: "directory to write config.yaml and genesis.toml into"},
			&cli.StringFlag{Name: "chain-id", Value: "ledger-shell-1", Usage: "chain id to stamp into config.yaml and genesis.toml"},
		},
		Action: func(c *cli.Context) error {
			datadir := c.String("datadir")
			chainID := c.String("chain-id")

			if err := os.MkdirAll(datadir, 0o755); err != nil {
				return fmt.Errorf("create datadir: %w", err)
			}

			cfg := config.Default()
			cfg.Ledger.DataDir = datadir
			cfg.Ledger.ChainID = chainID
			cfgBytes, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			if err := os.WriteFile(datadir+"/config.yaml", cfgBytes, 0o644); err != nil {
				return fmt.Errorf("write config.yaml: %w", err)
			}

			genesis := config.Genesis{ChainID: chainID}
			f, err := os.Create(datadir + "/genesis.toml")
			if err != nil {
				return fmt.Errorf("create genesis.toml: %w", err)
			}
			defer f.Close()
			if err := toml.NewEncoder(f).Encode(genesis); err != nil {
				return fmt.Errorf("write genesis.toml: %w", err)
			}

			color.Green("wrote %s/config.yaml and %s/genesis.toml", datadir, datadir)
			color.Yellow("edit genesis.toml to add validators and balances before running `ledgerd start`")
			return nil
		},
	}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "run the ledger node until SIGINT/SIGTERM",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to config.yaml"},
			&cli.StringFlag{Name: "genesis", Value: "genesis.toml", Usage: "path to genesis.toml, read only for an empty datadir"},
			&cli.IntFlag{Name: "decrypt-threshold", Value: 1, Usage: "shares required to open a wrapper's encrypted payload"},
			&cli.IntFlag{Name: "decrypt-total", Value: 1, Usage: "total validator shares for threshold decryption"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}

			var gen *config.Genesis
			if _, err := os.Stat(cfg.Ledger.DataDir + "/db"); os.IsNotExist(err) {
				gen, err = loadGenesis(c.String("genesis"))
				if err != nil {
					return err
				}
			}

			prim, err := shielded.NewThresholdPrimitive(c.Int("decrypt-threshold"), c.Int("decrypt-total"))
			if err != nil {
				return fmt.Errorf("construct decryption primitive: %w", err)
			}

			n, err := node.New(cfg, gen, prim, sandboxStub{})
			if err != nil {
				return fmt.Errorf("construct node: %w", err)
			}

			banner(cfg)

			if err := n.Start(); err != nil {
				return fmt.Errorf("start node: %w", err)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			log.Info("received signal, shutting down", "signal", sig.String())

			if err := n.Stop(); err != nil {
				return fmt.Errorf("stop node: %w", err)
			}
			color.Cyan("shutdown complete")
			return nil
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "run one read-only query against an existing datadir and exit",
		ArgsUsage: "<path> [hex-data]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to config.yaml"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("usage: ledgerd query <path> [hex-data]")
			}
			path := c.Args().Get(0)
			var data []byte
			if c.NArg() > 1 {
				raw, err := hex.DecodeString(c.Args().Get(1))
				if err != nil {
					return fmt.Errorf("decode hex data argument: %w", err)
				}
				data = raw
			}

			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			cfg.RPC.Enabled = false

			prim, err := shielded.NewThresholdPrimitive(1, 1)
			if err != nil {
				return err
			}
			n, err := node.New(cfg, nil, prim, sandboxStub{})
			if err != nil {
				return fmt.Errorf("open datadir (run `ledgerd init` and start it at least once first): %w", err)
			}
			defer n.Stop()

			res := n.App.Query(path, data)
			fmt.Printf("code=%d\n", res.Code)
			if len(res.Value) > 0 {
				fmt.Printf("value=%s\n", hex.EncodeToString(res.Value))
			}
			for _, kv := range res.Pairs {
				fmt.Printf("%s=%s\n", hex.EncodeToString(kv.Key), hex.EncodeToString(kv.Value))
			}
			return nil
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := config.Load(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func loadGenesis(path string) (*config.Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis %s: %w", path, err)
	}
	gen, err := config.LoadGenesis(data)
	if err != nil {
		return nil, fmt.Errorf("parse genesis %s: %w", path, err)
	}
	return gen, nil
}

func banner(cfg *config.Config) {
	color.Cyan("ledgerd %s starting", version)
	fmt.Printf("  chain id:   %s\n", cfg.Ledger.ChainID)
	fmt.Printf("  network:    %s\n", cfg.Ledger.Network)
	fmt.Printf("  datadir:    %s\n", cfg.Ledger.DataDir)
	fmt.Printf("  rpc:        %v %s\n", cfg.RPC.Enabled, cfg.RPC.RPCAddr())
	fmt.Printf("  gossip:     %v\n", cfg.Gossip.Enabled)
}
