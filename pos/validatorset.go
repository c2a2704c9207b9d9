package pos

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/anoma-network/ledger/addr"
)

// powerEntry pairs a validator with its voting power for sorting.
type powerEntry struct {
	addr  addr.Address
	power int64
}

// ComputeValidatorSet recomputes the active/inactive split from a map of
// candidate validator -> voting power, per spec.md §4.H rule 3 ("promotion/
// demotion ... must be consistent with the voting-power ordering"). Ties
// break on address bytes for determinism across nodes.
func ComputeValidatorSet(powers map[addr.Address]int64, maxActive int) ValidatorSet {
	entries := make([]powerEntry, 0, len(powers))
	for a, p := range powers {
		entries = append(entries, powerEntry{addr: a, power: p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].power != entries[j].power {
			return entries[i].power > entries[j].power
		}
		return lessAddr(entries[i].addr, entries[j].addr)
	})

	// membership is tracked with a bitset over the sorted candidate index,
	// mirroring the teacher's active/eligible bit tracking in the epoch
	// processor's churn-limit handling, generalized from a fixed committee
	// size to this spec's max_active_validators cutoff.
	active := bitset.New(uint(len(entries)))
	cut := maxActive
	if cut > len(entries) {
		cut = len(entries)
	}
	for i := 0; i < cut; i++ {
		if entries[i].power > 0 {
			active.Set(uint(i))
		}
	}

	var set ValidatorSet
	for i, e := range entries {
		if active.Test(uint(i)) {
			set.Active = append(set.Active, e.addr)
		} else {
			set.Inactive = append(set.Inactive, e.addr)
		}
	}
	return set
}

func lessAddr(a, b addr.Address) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	for i := range a.Bytes {
		if a.Bytes[i] != b.Bytes[i] {
			return a.Bytes[i] < b.Bytes[i]
		}
	}
	return false
}

// ActiveSet is a membership test structure over one epoch's active
// validators, backed by a hash set (deckarep/golang-set/v2) the same way
// the teacher tracks ad-hoc validator-index membership in committee
// assignment.
type ActiveSet struct {
	set mapset.Set[addr.Address]
}

// NewActiveSet builds a membership set from a ValidatorSet's active slice.
func NewActiveSet(vs ValidatorSet) *ActiveSet {
	return &ActiveSet{set: mapset.NewSet(vs.Active...)}
}

// Contains reports whether v is in the active set.
func (a *ActiveSet) Contains(v addr.Address) bool { return a.set.Contains(v) }

// Len reports the active set's cardinality.
func (a *ActiveSet) Len() int { return a.set.Cardinality() }
