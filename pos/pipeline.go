package pos

import (
	"fmt"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/epoch"
	"github.com/anoma-network/ledger/storage"
)

// FoldPipeline is the epoch-boundary hook spec.md §4.B names: "take all
// pending bonds scheduled for activation at the new epoch, lift their
// deltas into ValidatorTotalDeltas, recompute VotingPowers, recompute the
// active/inactive split of ValidatorSets." It runs once per epoch crossing,
// outside of any single tx's write set, so it is exempt from the native VP
// gate that guards per-tx PoS writes.
//
// The validator universe is the active+inactive split recorded for prev,
// plus every validator that has a bond activating at next even if it was
// not in prev's split.
func FoldPipeline(store *storage.Store, prev, next epoch.Number) error {
	pre := store.Snapshot()
	ws := storage.NewWriteSet(pre)

	params, err := GetParams(ws)
	if err != nil {
		ws.Discard()
		return fmt.Errorf("pos: fold pipeline: %w", err)
	}

	vs, _, err := GetValidatorSet(ws, prev)
	if err != nil {
		ws.Discard()
		return fmt.Errorf("pos: fold pipeline: %w", err)
	}
	validators := append(append([]addr.Address{}, vs.Active...), vs.Inactive...)

	pending, err := pendingActivations(store, next)
	if err != nil {
		ws.Discard()
		return fmt.Errorf("pos: fold pipeline: %w", err)
	}
	for v := range pending {
		if !containsAddr(validators, v) {
			validators = append(validators, v)
		}
	}

	powers := make(map[addr.Address]int64, len(validators))
	for _, v := range validators {
		state, ok, err := GetState(ws, v, prev)
		if err != nil {
			ws.Discard()
			return fmt.Errorf("pos: fold pipeline: %w", err)
		}
		if !ok {
			state = StateCandidate
		}
		PutState(ws, v, next, state)

		if ck, ok := ws.Get(ConsensusKeyKey(v, prev)); ok {
			ws.Put(ConsensusKeyKey(v, next), ck)
		}

		total, err := GetTotalDeltas(ws, v, prev)
		if err != nil {
			ws.Discard()
			return fmt.Errorf("pos: fold pipeline: %w", err)
		}
		total += pending[v]
		PutTotalDeltas(ws, v, next, total)

		power := params.VotingPower(total)
		PutVotingPower(ws, v, next, power)
		powers[v] = power
	}

	newVS := ComputeValidatorSet(powers, params.MaxActiveValidators)
	PutValidatorSet(ws, next, newVS)

	var totalPower int64
	for _, a := range newVS.Active {
		totalPower += powers[a]
	}
	PutTotalVotingPower(ws, next, totalPower)

	if _, err := store.Commit(ws); err != nil {
		return fmt.Errorf("pos: fold pipeline commit: %w", err)
	}
	return nil
}

// pendingActivations sums, per validator, every recorded bond delta whose
// activation epoch is exactly next, scanning the full PoS bond keyspace
// since a validator may receive bonds from sources not yet in its known
// universe.
func pendingActivations(store *storage.Store, next epoch.Number) (map[addr.Address]int64, error) {
	prefix := []byte(keyPrefix + "bond/")
	it := store.IteratePrefix(prefix)
	defer it.Release()

	out := make(map[addr.Address]int64)
	for it.Next() {
		validator, activation, ok := parseBondKey(it.Key()[len(keyPrefix):])
		if !ok || activation != next {
			continue
		}
		d, ok := decodeInt64(it.Value())
		if !ok {
			continue
		}
		out[validator] += d
	}
	return out, nil
}

func containsAddr(addrs []addr.Address, target addr.Address) bool {
	for _, a := range addrs {
		if a.Equal(target) {
			return true
		}
	}
	return false
}
