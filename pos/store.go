package pos

import (
	"errors"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/epoch"
	"github.com/anoma-network/ledger/storage"
)

// ErrCorruptEntry is returned when a stored PoS value fails to decode; per
// spec.md §7 class 2 ("decoding errors on a stored value yield a skipped
// entry plus a diagnostic event"), callers log and treat this as absence
// rather than propagating a fatal error.
var ErrCorruptEntry = errors.New("pos: corrupt stored entry")

// Reader is the read half of storage.View, narrowed to what the PoS
// accessors need. Both storage.Snapshot and storage.WriteSet's PostView
// satisfy it.
type Reader interface {
	Get(key []byte) ([]byte, bool)
}

// Writer is the write half a WriteSet provides.
type Writer interface {
	Put(key, value []byte)
	Delete(key []byte)
}

// GetState reads a validator's lifecycle state at epoch e.
func GetState(r Reader, v addr.Address, e epoch.Number) (ValidatorState, bool, error) {
	b, ok := r.Get(StateKey(v, e))
	if !ok {
		return 0, false, nil
	}
	s, ok := decodeState(b)
	if !ok {
		return 0, false, ErrCorruptEntry
	}
	return s, true, nil
}

func PutState(w Writer, v addr.Address, e epoch.Number, s ValidatorState) {
	w.Put(StateKey(v, e), encodeState(s))
}

// GetTotalDeltas reads ValidatorTotalDeltas(v, e); absence reads as zero.
func GetTotalDeltas(r Reader, v addr.Address, e epoch.Number) (int64, error) {
	b, ok := r.Get(TotalDeltasKey(v, e))
	if !ok {
		return 0, nil
	}
	d, ok := decodeInt64(b)
	if !ok {
		return 0, ErrCorruptEntry
	}
	return d, nil
}

func PutTotalDeltas(w Writer, v addr.Address, e epoch.Number, delta int64) {
	w.Put(TotalDeltasKey(v, e), encodeInt64(delta))
}

// GetVotingPower reads ValidatorVotingPowers(v, e); absence reads as zero.
func GetVotingPower(r Reader, v addr.Address, e epoch.Number) (int64, error) {
	b, ok := r.Get(VotingPowerKey(v, e))
	if !ok {
		return 0, nil
	}
	p, ok := decodeInt64(b)
	if !ok {
		return 0, ErrCorruptEntry
	}
	return p, nil
}

func PutVotingPower(w Writer, v addr.Address, e epoch.Number, power int64) {
	w.Put(VotingPowerKey(v, e), encodeInt64(power))
}

// GetSlashes reads a validator's full ordered slash list.
func GetSlashes(r Reader, v addr.Address) ([]Slash, error) {
	b, ok := r.Get(SlashesKey(v))
	if !ok {
		return nil, nil
	}
	s, ok := decodeSlashes(b)
	if !ok {
		return nil, ErrCorruptEntry
	}
	return s, nil
}

func PutSlashes(w Writer, v addr.Address, slashes []Slash) {
	w.Put(SlashesKey(v), encodeSlashes(slashes))
}

// GetBond reads the delta recorded for a bond's activation epoch; absence
// reads as zero (no bond entry yet).
func GetBond(r Reader, id BondId, activation epoch.Number) (int64, error) {
	b, ok := r.Get(BondKey(id, activation))
	if !ok {
		return 0, nil
	}
	d, ok := decodeInt64(b)
	if !ok {
		return 0, ErrCorruptEntry
	}
	return d, nil
}

func PutBond(w Writer, id BondId, activation epoch.Number, delta int64) {
	w.Put(BondKey(id, activation), encodeInt64(delta))
}

// GetUnbond reads the delta recorded for an (activation, withdraw) pair.
func GetUnbond(r Reader, id BondId, uk UnbondKey) (int64, error) {
	b, ok := r.Get(UnbondKeyBytes(id, uk))
	if !ok {
		return 0, nil
	}
	d, ok := decodeInt64(b)
	if !ok {
		return 0, ErrCorruptEntry
	}
	return d, nil
}

func PutUnbond(w Writer, id BondId, uk UnbondKey, delta int64) {
	w.Put(UnbondKeyBytes(id, uk), encodeInt64(delta))
}

func DeleteUnbond(w Writer, id BondId, uk UnbondKey) { w.Delete(UnbondKeyBytes(id, uk)) }

// parseTrailingEpoch extracts the fixed-width "%020d" epoch suffix following
// prefix in key.
func parseTrailingEpoch(key, prefix []byte) (epoch.Number, bool) {
	if len(key) <= len(prefix) {
		return 0, false
	}
	suffix := key[len(prefix):]
	var n uint64
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return epoch.Number(n), true
}

// IterateBonds walks every activation-epoch entry recorded for id against a
// storage façade (not just a Reader, since enumeration needs prefix scan).
func IterateBonds(store *storage.Store, id BondId) (map[epoch.Number]int64, error) {
	prefix := BondPrefix(id)
	it := store.IteratePrefix(prefix)
	defer it.Release()

	out := make(map[epoch.Number]int64)
	for it.Next() {
		a, ok := parseTrailingEpoch(it.Key(), prefix)
		if !ok {
			continue
		}
		d, ok := decodeInt64(it.Value())
		if !ok {
			continue
		}
		out[a] = d
	}
	return out, nil
}

// GetTotalVotingPower reads TotalVotingPowers(e); absence reads as zero.
func GetTotalVotingPower(r Reader, e epoch.Number) (int64, error) {
	b, ok := r.Get(TotalVotingPowerKey(e))
	if !ok {
		return 0, nil
	}
	v, ok := decodeInt64(b)
	if !ok {
		return 0, ErrCorruptEntry
	}
	return v, nil
}

func PutTotalVotingPower(w Writer, e epoch.Number, total int64) {
	w.Put(TotalVotingPowerKey(e), encodeInt64(total))
}

// GetValidatorSet reads the active/inactive split recorded for epoch e.
func GetValidatorSet(r Reader, e epoch.Number) (ValidatorSet, bool, error) {
	b, ok := r.Get(ValidatorSetKey(e))
	if !ok {
		return ValidatorSet{}, false, nil
	}
	vs, ok := decodeValidatorSet(b)
	if !ok {
		return ValidatorSet{}, false, ErrCorruptEntry
	}
	return vs, true, nil
}

func PutValidatorSet(w Writer, e epoch.Number, vs ValidatorSet) {
	w.Put(ValidatorSetKey(e), encodeValidatorSet(vs))
}

// GetBalance reads the PoS internal address's own staking-token balance.
func GetBalance(r Reader) (int64, error) {
	b, ok := r.Get(BalanceKey())
	if !ok {
		return 0, nil
	}
	v, ok := decodeInt64(b)
	if !ok {
		return 0, ErrCorruptEntry
	}
	return v, nil
}

func PutBalance(w Writer, balance int64) { w.Put(BalanceKey(), encodeInt64(balance)) }

// GetParams reads the single global PosParams record, falling back to
// DefaultParams when genesis has not written one yet.
func GetParams(r Reader) (Params, error) {
	b, ok := r.Get(ParamsKey())
	if !ok {
		return DefaultParams(), nil
	}
	p, ok := decodeParams(b)
	if !ok {
		return Params{}, ErrCorruptEntry
	}
	return p, nil
}

func PutParams(w Writer, p Params) { w.Put(ParamsKey(), encodeParams(p)) }
