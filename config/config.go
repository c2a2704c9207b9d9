// Package config implements the shell's configuration document (spec.md §6
// "Configuration", SPEC_FULL.md §4.M) and the companion genesis bootstrap
// document. Grounded on the teacher's node.NodeConfig/LoadConfig/
// DefaultNodeConfig/MergeNodeConfig shape (a struct-of-sections with
// defaults and an override merge), generalized from the teacher's
// hand-rolled TOML-like line parser to a real YAML decode.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"

	"github.com/anoma-network/ledger/pos"
)

// LedgerConfig is the ledger section: storage path, consensus-engine path,
// bind address, chain id, network.
type LedgerConfig struct {
	DataDir         string `yaml:"datadir"`
	ConsensusEngine string `yaml:"consensus_engine"`
	BindAddr        string `yaml:"bind_addr"`
	ChainID         string `yaml:"chain_id"`
	Network         string `yaml:"network"`
	MinEpochDuration int    `yaml:"min_epoch_duration"`
	MinEpochBlocks   int    `yaml:"min_epoch_blocks"`
	PoS             PoSConfig `yaml:"pos"`
}

// PoSConfig mirrors spec.md §6's enumerated PoS options.
type PoSConfig struct {
	PipelineLength      uint64             `yaml:"pipeline_length"`
	UnbondingLength     uint64             `yaml:"unbonding_length"`
	VotesPerToken       string             `yaml:"votes_per_token"` // "num/den", e.g. "1/1000"
	MaxActiveValidators int                `yaml:"max_active_validators"`
	SlashRates          map[string]float64 `yaml:"slash_rates"`
}

// RPCConfig is the RPC endpoint section.
type RPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// RPCAddr returns the "host:port" address to bind the RPC/event-stream
// listener to.
func (r RPCConfig) RPCAddr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

// GossipConfig is the intent-gossip overlay section. Extra holds any
// implementation-specific knobs the overlay wants that this shell doesn't
// model directly, decoded via mapstructure into a free-form bag.
type GossipConfig struct {
	Enabled bool                   `yaml:"enabled"`
	Seeds   []string               `yaml:"seeds"`
	Extra   map[string]interface{} `yaml:"extra"`
}

// Config is the full shell configuration document.
type Config struct {
	Ledger LedgerConfig `yaml:"ledger"`
	RPC    RPCConfig    `yaml:"rpc"`
	Gossip GossipConfig `yaml:"gossip"`
}

// Default returns a Config populated with spec.md §6's stated defaults.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			DataDir:          "./data",
			ConsensusEngine:  "tcp://127.0.0.1:26658",
			BindAddr:         "0.0.0.0:26657",
			ChainID:          "ledger-shell-1",
			Network:          "mainnet",
			MinEpochDuration: 86400,
			MinEpochBlocks:   4,
			PoS: PoSConfig{
				PipelineLength:      2,
				UnbondingLength:     6,
				VotesPerToken:       "1/1000",
				MaxActiveValidators: 128,
				SlashRates: map[string]float64{
					"duplicate_vote":      0.01,
					"light_client_attack": 0.05,
				},
			},
		},
		RPC: RPCConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    26657,
		},
		Gossip: GossipConfig{
			Enabled: false,
		},
	}
}

// Load decodes a YAML configuration document, starting from Default and
// overlaying whatever the document sets.
func Load(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DecodeGossipExtra decodes the free-form gossip.extra bag into dst, a
// pointer to an implementation-specific struct, via mapstructure so the
// overlay can evolve its own knobs without this shell's schema changing.
func (c *Config) DecodeGossipExtra(dst interface{}) error {
	if len(c.Gossip.Extra) == 0 {
		return nil
	}
	return mapstructure.Decode(c.Gossip.Extra, dst)
}

// Validate checks the configuration for correctness, mirroring the
// teacher's ValidateNodeConfig's per-section checks.
func (c *Config) Validate() error {
	if c.Ledger.DataDir == "" {
		return fmt.Errorf("config: ledger.datadir must not be empty")
	}
	if c.Ledger.ChainID == "" {
		return fmt.Errorf("config: ledger.chain_id must not be empty")
	}
	if c.Ledger.MinEpochDuration <= 0 {
		return fmt.Errorf("config: ledger.min_epoch_duration must be positive")
	}
	if c.Ledger.MinEpochBlocks <= 0 {
		return fmt.Errorf("config: ledger.min_epoch_blocks must be positive")
	}
	if c.Ledger.PoS.MaxActiveValidators <= 0 {
		return fmt.Errorf("config: ledger.pos.max_active_validators must be positive")
	}
	if c.RPC.Enabled && c.RPC.Host == "" {
		return fmt.Errorf("config: rpc.host must not be empty when rpc is enabled")
	}
	if c.RPC.Port < 0 || c.RPC.Port > 65535 {
		return fmt.Errorf("config: invalid rpc.port: %d", c.RPC.Port)
	}
	return nil
}

// PosParams converts the YAML-decoded PoSConfig into pos.Params, parsing
// votes_per_token's "num/den" rational notation.
func (c *Config) PosParams() (pos.Params, error) {
	num, den, err := parseRational(c.Ledger.PoS.VotesPerToken)
	if err != nil {
		return pos.Params{}, fmt.Errorf("config: ledger.pos.votes_per_token: %w", err)
	}
	rates := make(map[pos.SlashKind]float64, len(c.Ledger.PoS.SlashRates))
	for name, rate := range c.Ledger.PoS.SlashRates {
		kind, ok := slashKindFromName(name)
		if !ok {
			return pos.Params{}, fmt.Errorf("config: unknown slash_rates key %q", name)
		}
		rates[kind] = rate
	}
	return pos.Params{
		PipelineLength:      c.Ledger.PoS.PipelineLength,
		UnbondingLength:     c.Ledger.PoS.UnbondingLength,
		MaxActiveValidators: c.Ledger.PoS.MaxActiveValidators,
		VotesPerTokenNum:    num,
		VotesPerTokenDen:    den,
		SlashRates:          rates,
	}, nil
}

func parseRational(s string) (num, den int64, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected num/den, got %q", s)
	}
	num, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	den, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if den == 0 {
		return 0, 0, fmt.Errorf("denominator must not be zero")
	}
	return num, den, nil
}

func slashKindFromName(name string) (pos.SlashKind, bool) {
	switch name {
	case "duplicate_vote":
		return pos.SlashDuplicateVote, true
	case "light_client_attack":
		return pos.SlashLightClientAttack, true
	default:
		return 0, false
	}
}

// Merge overlays override onto base with the teacher's MergeNodeConfig
// non-zero-wins discipline: scalar fields are copied one by one when
// non-zero, while the PoS section is replaced whole when its
// max_active_validators is non-zero and the gossip section is replaced whole
// when it lists any seeds.
func Merge(base, override *Config) *Config {
	result := *base

	if override.Ledger.DataDir != "" {
		result.Ledger.DataDir = override.Ledger.DataDir
	}
	if override.Ledger.ConsensusEngine != "" {
		result.Ledger.ConsensusEngine = override.Ledger.ConsensusEngine
	}
	if override.Ledger.BindAddr != "" {
		result.Ledger.BindAddr = override.Ledger.BindAddr
	}
	if override.Ledger.ChainID != "" {
		result.Ledger.ChainID = override.Ledger.ChainID
	}
	if override.Ledger.Network != "" {
		result.Ledger.Network = override.Ledger.Network
	}
	if override.Ledger.MinEpochDuration != 0 {
		result.Ledger.MinEpochDuration = override.Ledger.MinEpochDuration
	}
	if override.Ledger.MinEpochBlocks != 0 {
		result.Ledger.MinEpochBlocks = override.Ledger.MinEpochBlocks
	}
	if override.Ledger.PoS.MaxActiveValidators != 0 {
		result.Ledger.PoS = override.Ledger.PoS
	}

	if override.RPC.Host != "" {
		result.RPC.Host = override.RPC.Host
	}
	if override.RPC.Port != 0 {
		result.RPC.Port = override.RPC.Port
	}

	if len(override.Gossip.Seeds) > 0 {
		result.Gossip = override.Gossip
	}

	return &result
}
