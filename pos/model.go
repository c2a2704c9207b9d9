// Package pos implements the proof-of-stake data model (spec.md component
// G), the native validity predicate that gates writes to it (component H),
// and the slash engine (component J). Grounded in the teacher's
// consensus.ValidatorRegistry (index/lifecycle bookkeeping under a single
// mutex) and consensus.epoch_processor (epoch-indexed participation
// tracking), generalized from beacon-chain slot/epoch accounting to this
// spec's bond/unbond/slash economy.
package pos

import (
	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/epoch"
)

// ValidatorState is the lifecycle stage of a validator at a given epoch.
type ValidatorState uint8

const (
	StatePending ValidatorState = iota
	StateCandidate
	StateInactive
)

func (s ValidatorState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCandidate:
		return "candidate"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// SlashKind enumerates the infraction kinds spec.md §6 assigns a rate to.
type SlashKind uint8

const (
	SlashDuplicateVote SlashKind = iota
	SlashLightClientAttack
)

func (k SlashKind) String() string {
	switch k {
	case SlashDuplicateVote:
		return "duplicate_vote"
	case SlashLightClientAttack:
		return "light_client_attack"
	default:
		return "unknown"
	}
}

// Slash is one piece of consensus-reported infraction evidence.
type Slash struct {
	Epoch  epoch.Number
	Height uint64
	Rate   float64
	Kind   SlashKind
}

// BondId names the (source, validator) pair a bond or unbond belongs to.
type BondId struct {
	Source    addr.Address
	Validator addr.Address
}

// UnbondKey is the (activation, withdraw) epoch pair an unbond entry is
// indexed by (spec.md §3 "Unbonds(id): epoch → map of (activation, withdraw)
// epoch pair → delta").
type UnbondKey struct {
	Activation epoch.Number
	Withdraw   epoch.Number
}

// ValidatorSet is the active/inactive split of validators at one epoch,
// each sorted by descending voting power (spec.md §3 "ValidatorSets").
type ValidatorSet struct {
	Active   []addr.Address
	Inactive []addr.Address
}
