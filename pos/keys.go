package pos

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/epoch"
)

// Storage keys live under segment 0 = the PoS internal address, per spec.md
// §6 "Persisted state layout": "PoS keys use segment 0 = PoS internal
// address; the remainder identifies entity and field."
const keyPrefix = "PoS/"

func validatorKey(field string, v addr.Address, e epoch.Number) []byte {
	return []byte(fmt.Sprintf("%svalidator/%s/%s/%020d", keyPrefix, field, v.Hex(), e))
}

// StateKey, ConsensusKeyKey, TotalDeltasKey, VotingPowerKey are the per-
// validator, per-epoch keys of spec.md §3's ValidatorStates / Consensus
// Keys / TotalDeltas / VotingPowers maps.
func StateKey(v addr.Address, e epoch.Number) []byte         { return validatorKey("state", v, e) }
func ConsensusKeyKey(v addr.Address, e epoch.Number) []byte  { return validatorKey("consensus_key", v, e) }
func TotalDeltasKey(v addr.Address, e epoch.Number) []byte   { return validatorKey("total_deltas", v, e) }
func VotingPowerKey(v addr.Address, e epoch.Number) []byte   { return validatorKey("voting_power", v, e) }

// SlashesKey is the (unindexed-by-epoch) ordered slash list for a validator.
func SlashesKey(v addr.Address) []byte {
	return []byte(fmt.Sprintf("%svalidator/slashes/%s", keyPrefix, v.Hex()))
}

// BondKey is the storage key for a single (BondId, activation epoch) entry.
func BondKey(id BondId, activation epoch.Number) []byte {
	return []byte(fmt.Sprintf("%sbond/%s/%s/%020d", keyPrefix, id.Source.Hex(), id.Validator.Hex(), activation))
}

// BondPrefix returns the prefix under which every activation-epoch entry for
// id is stored, for prefix-scan enumeration.
func BondPrefix(id BondId) []byte {
	return []byte(fmt.Sprintf("%sbond/%s/%s/", keyPrefix, id.Source.Hex(), id.Validator.Hex()))
}

// UnbondKeyBytes is the storage key for a single (BondId, UnbondKey) entry.
func UnbondKeyBytes(id BondId, uk UnbondKey) []byte {
	return []byte(fmt.Sprintf("%sunbond/%s/%s/%020d/%020d", keyPrefix, id.Source.Hex(), id.Validator.Hex(), uk.Activation, uk.Withdraw))
}

// UnbondPrefix returns the prefix under which every unbond entry for id is
// stored.
func UnbondPrefix(id BondId) []byte {
	return []byte(fmt.Sprintf("%sunbond/%s/%s/", keyPrefix, id.Source.Hex(), id.Validator.Hex()))
}

// ValidatorSetKey is the global active/inactive split for one epoch.
func ValidatorSetKey(e epoch.Number) []byte {
	return []byte(fmt.Sprintf("%svalidator_set/%020d", keyPrefix, e))
}

// TotalVotingPowerKey is the global sum of active voting power for one epoch.
func TotalVotingPowerKey(e epoch.Number) []byte {
	return []byte(fmt.Sprintf("%stotal_voting_power/%020d", keyPrefix, e))
}

// ParamsKey is the single global PosParams record.
func ParamsKey() []byte { return []byte(keyPrefix + "params") }

// BalanceKey is the PoS internal address's own balance of the staking token,
// spec.md §4.H rule 5 "balance conservation".
func BalanceKey() []byte { return []byte(keyPrefix + "balance") }

// IsPoSKey reports whether key falls in the PoS keyspace, used by the
// applier to decide whether the native VP must run (spec.md §4.F.2).
func IsPoSKey(key []byte) bool { return bytes.HasPrefix(key, []byte(keyPrefix)) }

// --- value codecs -----------------------------------------------------

func encodeInt64(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func decodeInt64(b []byte) (int64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b)), true
}

func encodeState(s ValidatorState) []byte { return []byte{byte(s)} }

func decodeState(b []byte) (ValidatorState, bool) {
	if len(b) != 1 {
		return 0, false
	}
	return ValidatorState(b[0]), true
}

// encodeSlashes/decodeSlashes give the validator's slash list a fixed-width
// record layout: epoch(8) || height(8) || rate-as-micro-units(8) || kind(1).
func encodeSlashes(slashes []Slash) []byte {
	var buf bytes.Buffer
	for _, s := range slashes {
		buf.Write(encodeInt64(int64(s.Epoch)))
		buf.Write(encodeInt64(int64(s.Height)))
		buf.Write(encodeInt64(int64(s.Rate * 1_000_000)))
		buf.WriteByte(byte(s.Kind))
	}
	return buf.Bytes()
}

const slashRecordLen = 8 + 8 + 8 + 1

// encodeValidatorSet/decodeValidatorSet serialize a ValidatorSet as two
// length-prefixed address lists: active, then inactive.
func encodeValidatorSet(vs ValidatorSet) []byte {
	var buf bytes.Buffer
	writeAddrList(&buf, vs.Active)
	writeAddrList(&buf, vs.Inactive)
	return buf.Bytes()
}

func writeAddrList(buf *bytes.Buffer, addrs []addr.Address) {
	buf.Write(encodeInt64(int64(len(addrs))))
	for _, a := range addrs {
		buf.WriteByte(byte(a.Kind))
		buf.Write(a.Bytes[:])
	}
}

func readAddrList(b []byte) ([]addr.Address, []byte, bool) {
	n, ok := decodeInt64(b[:8])
	if !ok || n < 0 {
		return nil, nil, false
	}
	b = b[8:]
	out := make([]addr.Address, n)
	for i := int64(0); i < n; i++ {
		if len(b) < 1+addr.Length {
			return nil, nil, false
		}
		out[i].Kind = addr.Kind(b[0])
		copy(out[i].Bytes[:], b[1:1+addr.Length])
		b = b[1+addr.Length:]
	}
	return out, b, true
}

func decodeValidatorSet(b []byte) (ValidatorSet, bool) {
	if len(b) < 8 {
		return ValidatorSet{}, false
	}
	active, rest, ok := readAddrList(b)
	if !ok {
		return ValidatorSet{}, false
	}
	if len(rest) < 8 {
		return ValidatorSet{}, false
	}
	inactive, rest, ok := readAddrList(rest)
	if !ok || len(rest) != 0 {
		return ValidatorSet{}, false
	}
	return ValidatorSet{Active: active, Inactive: inactive}, true
}

// encodeParams/decodeParams give PosParams a fixed-width record: pipeline
// length, unbonding length, max active validators, votes-per-token num/den,
// then the two named slash rates (as micro-units), in that fixed order.
func encodeParams(p Params) []byte {
	var buf bytes.Buffer
	buf.Write(encodeInt64(int64(p.PipelineLength)))
	buf.Write(encodeInt64(int64(p.UnbondingLength)))
	buf.Write(encodeInt64(int64(p.MaxActiveValidators)))
	buf.Write(encodeInt64(p.VotesPerTokenNum))
	buf.Write(encodeInt64(p.VotesPerTokenDen))
	buf.Write(encodeInt64(int64(p.SlashRates[SlashDuplicateVote] * 1_000_000)))
	buf.Write(encodeInt64(int64(p.SlashRates[SlashLightClientAttack] * 1_000_000)))
	return buf.Bytes()
}

const paramsRecordLen = 8 * 7

func decodeParams(b []byte) (Params, bool) {
	if len(b) != paramsRecordLen {
		return Params{}, false
	}
	field := func(i int) int64 { v, _ := decodeInt64(b[i*8 : i*8+8]); return v }
	return Params{
		PipelineLength:      uint64(field(0)),
		UnbondingLength:     uint64(field(1)),
		MaxActiveValidators: int(field(2)),
		VotesPerTokenNum:    field(3),
		VotesPerTokenDen:    field(4),
		SlashRates: map[SlashKind]float64{
			SlashDuplicateVote:     float64(field(5)) / 1_000_000,
			SlashLightClientAttack: float64(field(6)) / 1_000_000,
		},
	}, true
}

func decodeSlashes(b []byte) ([]Slash, bool) {
	if len(b)%slashRecordLen != 0 {
		return nil, false
	}
	n := len(b) / slashRecordLen
	out := make([]Slash, n)
	for i := 0; i < n; i++ {
		rec := b[i*slashRecordLen : (i+1)*slashRecordLen]
		ep, _ := decodeInt64(rec[0:8])
		h, _ := decodeInt64(rec[8:16])
		rateMicro, _ := decodeInt64(rec[16:24])
		out[i] = Slash{
			Epoch:  epoch.Number(ep),
			Height: uint64(h),
			Rate:   float64(rateMicro) / 1_000_000,
			Kind:   SlashKind(rec[24]),
		}
	}
	return out, true
}
