package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/anoma-network/ledger/abci"
	"github.com/anoma-network/ledger/addr"
)

// Genesis is the TOML-decoded bootstrap document: chain id, initial token
// balances and the initial validator set (SPEC_FULL.md §4.M, grounded in the
// original's apps/src/lib/config/mod.rs genesis shape). It carries no PoS
// parameters; ToABCI takes those from the Config it is given.
type Genesis struct {
	ChainID string `toml:"chain_id"`

	Validators []GenesisValidator `toml:"validator"`
	Balances   []GenesisBalance   `toml:"balance"`
}

type GenesisValidator struct {
	// PubKeyHex seeds an implicit address; Established validators are out
	// of scope for genesis bootstrap since they'd need a stored VP the
	// genesis document can't express.
	PubKeyHex       string `toml:"pubkey"`
	ConsensusKeyHex string `toml:"consensus_key"`
	TotalDeltas     int64  `toml:"total_deltas"`
}

type GenesisBalance struct {
	Token  string `toml:"token"` // "PoS" | "EthBridge" | "MASP"
	Owner  string `toml:"owner"` // hex address, addr.Address.Hex() format
	Amount uint64 `toml:"amount"`
}

// LoadGenesis decodes a TOML genesis document.
func LoadGenesis(data []byte) (*Genesis, error) {
	var g Genesis
	if _, err := toml.Decode(string(data), &g); err != nil {
		return nil, fmt.Errorf("config: decode genesis: %w", err)
	}
	return &g, nil
}

// ToABCI converts the TOML-decoded document plus this Config's PosParams
// into the abci.Genesis InitChain consumes.
func (g *Genesis) ToABCI(cfg *Config) (abci.Genesis, error) {
	params, err := cfg.PosParams()
	if err != nil {
		return abci.Genesis{}, err
	}

	out := abci.Genesis{
		ChainID:   g.ChainID,
		PosParams: params,
	}

	for _, v := range g.Validators {
		pubkey, err := hexBytes(v.PubKeyHex)
		if err != nil {
			return abci.Genesis{}, fmt.Errorf("config: genesis validator pubkey: %w", err)
		}
		consensusKey, err := hexBytes(v.ConsensusKeyHex)
		if err != nil {
			return abci.Genesis{}, fmt.Errorf("config: genesis validator consensus_key: %w", err)
		}
		out.Validators = append(out.Validators, abci.GenesisValidator{
			Address:      addr.NewImplicit(pubkey),
			ConsensusKey: consensusKey,
			TotalDeltas:  v.TotalDeltas,
		})
	}

	for _, b := range g.Balances {
		token, err := tokenFromName(b.Token)
		if err != nil {
			return abci.Genesis{}, err
		}
		owner, ok := addr.ParseHex(b.Owner)
		if !ok {
			return abci.Genesis{}, fmt.Errorf("config: genesis balance owner %q is not a valid address", b.Owner)
		}
		out.Balances = append(out.Balances, abci.GenesisBalance{Token: token, Owner: owner, Amount: b.Amount})
	}

	return out, nil
}

func tokenFromName(name string) (addr.Address, error) {
	switch name {
	case "PoS":
		return addr.PoS, nil
	case "EthBridge":
		return addr.EthBridge, nil
	case "MASP":
		return addr.MASP, nil
	default:
		return addr.Address{}, fmt.Errorf("config: unknown genesis balance token %q", name)
	}
}

func hexBytes(s string) ([]byte, error) {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		b, err := parseHexByte(s[i*2 : i*2+2])
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func parseHexByte(s string) (byte, error) {
	var v byte
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= byte(c - '0')
		case c >= 'a' && c <= 'f':
			v |= byte(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= byte(c-'A') + 10
		default:
			return 0, fmt.Errorf("config: invalid hex byte %q", s)
		}
	}
	return v, nil
}
