package pos

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/epoch"
)

// Request bundles everything the native VP needs (spec.md §4.H: "Receives:
// the set of changed keys, the tx data, the set of verifier addresses, and
// pre/post views of storage").
type Request struct {
	Changes       []Change
	TxData        []byte
	Verifiers     map[addr.Address]bool
	CurrentEpoch  epoch.Number
	Params        Params
	Slashes       map[addr.Address][]Slash // post-tx slash lists, keyed by validator
	ProposalID    []byte                    // non-nil iff tx_data carries an accepted governance proposal id
}

// Validate runs the declarative validator of spec.md §4.H and returns every
// rule violation found; the VP itself passes iff the returned slice is
// empty.
func Validate(req Request) []error {
	var errs []error

	for _, c := range req.Changes {
		kind, ok := classify(c.Key)
		if !ok {
			errs = append(errs, fmt.Errorf("pos: unrecognized PoS key %q", c.Key)) // rule 8
			continue
		}
		switch kind.field {
		case fieldConsensusKey:
			if !req.Verifiers[kind.validator] {
				errs = append(errs, fmt.Errorf("pos: consensus key change for %s not authorized by its own signature", kind.validator)) // rule 6
			}
		case fieldParams:
			if len(req.ProposalID) == 0 {
				errs = append(errs, errors.New("pos: PosParams change without an accepted governance proposal id")) // rule 7
			}
		case fieldBond:
			wantActivation := req.CurrentEpoch + epoch.Number(req.Params.PipelineLength)
			if c.Pre == nil && c.Post != nil && kind.epoch1 != wantActivation {
				errs = append(errs, fmt.Errorf("pos: new bond activation epoch %d, want current+pipeline_length=%d", kind.epoch1, wantActivation)) // rule 2
			}
		case fieldUnbond:
			wantWithdraw := req.CurrentEpoch + epoch.Number(req.Params.UnbondingLength)
			if c.Pre == nil && c.Post != nil && kind.epoch2 != wantWithdraw {
				errs = append(errs, fmt.Errorf("pos: new unbond withdraw epoch %d, want current+unbonding_length=%d", kind.epoch2, wantWithdraw)) // rule 2
			}
		case fieldValidatorSet:
			if vs, ok := decodeValidatorSet(c.Post); ok {
				if len(vs.Active) > req.Params.MaxActiveValidators {
					errs = append(errs, fmt.Errorf("pos: active set size %d exceeds max_active_validators=%d", len(vs.Active), req.Params.MaxActiveValidators)) // rule 3
				}
				if hasDuplicate(vs.Active) || hasDuplicate(vs.Inactive) {
					errs = append(errs, errors.New("pos: validator set contains a duplicate address"))
				}
			} else if c.Post != nil {
				errs = append(errs, errors.New("pos: malformed validator set value"))
			}
		}
	}

	errs = append(errs, crossCheckVotingPower(req)...)  // rule 4
	errs = append(errs, crossCheckSumConsistency(req)...) // rule 1
	errs = append(errs, crossCheckBalance(req)...)        // rule 5

	return errs
}

// crossCheckVotingPower enforces rule 4: VotingPowers(v,e) ==
// floor(TotalDeltas(v,e) * votes_per_token), for every (validator, epoch)
// pair whose voting-power key the change set writes. The comparison uses the
// total-deltas value the same change set writes for that pair (zero when it
// writes none); pairs where only total deltas change are not checked.
func crossCheckVotingPower(req Request) []error {
	var errs []error
	touched := map[vEpoch]changePair{}
	for _, c := range req.Changes {
		k, ok := classify(c.Key)
		if !ok {
			continue
		}
		switch k.field {
		case fieldTotalDeltas:
			key := vEpoch{k.validator, k.epoch1}
			cp := touched[key]
			cp.totalDeltasPost = c.Post
			cp.sawTotalDeltas = true
			touched[key] = cp
		case fieldVotingPower:
			key := vEpoch{k.validator, k.epoch1}
			cp := touched[key]
			cp.votingPowerPost = c.Post
			cp.sawVotingPower = true
			touched[key] = cp
		}
	}
	for ve, cp := range touched {
		if !cp.sawVotingPower {
			continue
		}
		delta := mustInt64(cp.totalDeltasPost)
		want := req.Params.VotingPower(delta)
		got := mustInt64(cp.votingPowerPost)
		if got != want {
			errs = append(errs, fmt.Errorf("pos: voting power for %s at epoch %d is %d, want floor(%d * %d/%d) = %d",
				ve.validator, ve.epoch, got, delta, req.Params.VotesPerTokenNum, req.Params.VotesPerTokenDen, want))
		}
	}
	return errs
}

type vEpoch struct {
	validator addr.Address
	epoch     epoch.Number
}

type changePair struct {
	totalDeltasPost []byte
	votingPowerPost []byte
	sawTotalDeltas  bool
	sawVotingPower  bool
}

// crossCheckSumConsistency enforces rule 1: for each validator touched by a
// bond/unbond/total_deltas change, the net bond+unbond movement must equal
// the net change in ValidatorTotalDeltas.
func crossCheckSumConsistency(req Request) []error {
	var errs []error
	netMovement := map[addr.Address]int64{}
	netTotalDeltaChange := map[addr.Address]int64{}
	touchedValidators := map[addr.Address]bool{}

	for _, c := range req.Changes {
		k, ok := classify(c.Key)
		if !ok {
			continue
		}
		switch k.field {
		case fieldBond:
			netMovement[k.validator] += mustInt64(c.Post) - mustInt64(c.Pre)
			touchedValidators[k.validator] = true
		case fieldUnbond:
			// an unbond entry appearing moves value out of bond-space by
			// the same magnitude pre-slashing (spec.md §4.H rule 1); it
			// does not itself change PoS total deltas a second time.
			touchedValidators[k.validator] = true
		case fieldTotalDeltas:
			netTotalDeltaChange[k.validator] += mustInt64(c.Post) - mustInt64(c.Pre)
			touchedValidators[k.validator] = true
		}
	}

	for v := range touchedValidators {
		if netMovement[v] != netTotalDeltaChange[v] {
			errs = append(errs, fmt.Errorf("pos: validator %s net bond movement %d does not match total-deltas change %d", v, netMovement[v], netTotalDeltaChange[v]))
		}
	}
	return errs
}

// crossCheckBalance enforces rule 5: the PoS internal balance's net change
// equals the signed net of all bond/unbond movements in this change set.
func crossCheckBalance(req Request) []error {
	var netMovement int64
	var balancePre, balancePost []byte
	var sawBalance bool

	for _, c := range req.Changes {
		k, ok := classify(c.Key)
		if !ok {
			continue
		}
		switch k.field {
		case fieldBond:
			netMovement += mustInt64(c.Post) - mustInt64(c.Pre)
		case fieldBalance:
			balancePre, balancePost = c.Pre, c.Post
			sawBalance = true
		}
	}
	if !sawBalance {
		if netMovement != 0 {
			return []error{fmt.Errorf("pos: bond movement of %d recorded with no corresponding balance change", netMovement)}
		}
		return nil
	}
	got := mustInt64(balancePost) - mustInt64(balancePre)
	if got != netMovement {
		return []error{fmt.Errorf("pos: PoS balance changed by %d, want net bond movement %d", got, netMovement)}
	}
	return nil
}

func hasDuplicate(addrs []addr.Address) bool {
	seen := make(map[addr.Address]bool, len(addrs))
	for _, a := range addrs {
		if seen[a] {
			return true
		}
		seen[a] = true
	}
	return false
}

func mustInt64(b []byte) int64 {
	v, _ := decodeInt64(b)
	return v
}

// --- key classification -------------------------------------------------

type fieldKind uint8

const (
	fieldState fieldKind = iota
	fieldConsensusKey
	fieldTotalDeltas
	fieldVotingPower
	fieldSlashes
	fieldBond
	fieldUnbond
	fieldValidatorSet
	fieldTotalVotingPower
	fieldParams
	fieldBalance
)

type classifiedKey struct {
	field     fieldKind
	validator addr.Address
	epoch1    epoch.Number // activation epoch (bond) or the entity's own epoch
	epoch2    epoch.Number // withdraw epoch (unbond only)
}

// classify maps a raw storage key back to the logical entity it names. The
// shell owns this key scheme (keys.go), so classification is exact string
// matching rather than heuristic.
func classify(key []byte) (classifiedKey, bool) {
	if !bytes.HasPrefix(key, []byte(keyPrefix)) {
		return classifiedKey{}, false
	}
	rest := key[len(keyPrefix):]

	switch {
	case bytes.Equal(rest, []byte("params")):
		return classifiedKey{field: fieldParams}, true
	case bytes.Equal(rest, []byte("balance")):
		return classifiedKey{field: fieldBalance}, true
	case bytes.HasPrefix(rest, []byte("validator_set/")):
		e, ok := parseFields(rest, "validator_set/")
		return classifiedKey{field: fieldValidatorSet, epoch1: e}, ok
	case bytes.HasPrefix(rest, []byte("total_voting_power/")):
		e, ok := parseFields(rest, "total_voting_power/")
		return classifiedKey{field: fieldTotalVotingPower, epoch1: e}, ok
	case bytes.HasPrefix(rest, []byte("validator/state/")):
		v, e, ok := parseValidatorEpoch(rest, "validator/state/")
		return classifiedKey{field: fieldState, validator: v, epoch1: e}, ok
	case bytes.HasPrefix(rest, []byte("validator/consensus_key/")):
		v, e, ok := parseValidatorEpoch(rest, "validator/consensus_key/")
		return classifiedKey{field: fieldConsensusKey, validator: v, epoch1: e}, ok
	case bytes.HasPrefix(rest, []byte("validator/total_deltas/")):
		v, e, ok := parseValidatorEpoch(rest, "validator/total_deltas/")
		return classifiedKey{field: fieldTotalDeltas, validator: v, epoch1: e}, ok
	case bytes.HasPrefix(rest, []byte("validator/voting_power/")):
		v, e, ok := parseValidatorEpoch(rest, "validator/voting_power/")
		return classifiedKey{field: fieldVotingPower, validator: v, epoch1: e}, ok
	case bytes.HasPrefix(rest, []byte("validator/slashes/")):
		v, ok := parseAddrOnly(rest, "validator/slashes/")
		return classifiedKey{field: fieldSlashes, validator: v}, ok
	case bytes.HasPrefix(rest, []byte("bond/")):
		v, e, ok := parseBondKey(rest)
		return classifiedKey{field: fieldBond, validator: v, epoch1: e}, ok
	case bytes.HasPrefix(rest, []byte("unbond/")):
		v, a, w, ok := parseUnbondKey(rest)
		return classifiedKey{field: fieldUnbond, validator: v, epoch1: a, epoch2: w}, ok
	default:
		return classifiedKey{}, false
	}
}

func parseFields(rest []byte, prefix string) (epoch.Number, bool) {
	suffix := rest[len(prefix):]
	e, ok := parseEpochDigits(suffix)
	return e, ok
}

func parseEpochDigits(b []byte) (epoch.Number, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return epoch.Number(n), true
}

// parseValidatorEpoch splits "<hex-addr>/<epoch>" following prefix. Address
// hex form is "kind:0x....", which contains no '/', so a plain split works.
func parseValidatorEpoch(rest []byte, prefix string) (addr.Address, epoch.Number, bool) {
	suffix := rest[len(prefix):]
	parts := bytes.Split(suffix, []byte("/"))
	if len(parts) != 2 {
		return addr.Address{}, 0, false
	}
	a, ok := addr.ParseHex(string(parts[0]))
	if !ok {
		return addr.Address{}, 0, false
	}
	e, ok := parseEpochDigits(parts[1])
	return a, e, ok
}

func parseAddrOnly(rest []byte, prefix string) (addr.Address, bool) {
	suffix := rest[len(prefix):]
	return addr.ParseHex(string(suffix))
}

func parseBondKey(rest []byte) (addr.Address, epoch.Number, bool) {
	suffix := rest[len("bond/"):]
	parts := bytes.Split(suffix, []byte("/"))
	if len(parts) != 3 {
		return addr.Address{}, 0, false
	}
	v, ok := addr.ParseHex(string(parts[1]))
	if !ok {
		return addr.Address{}, 0, false
	}
	e, ok := parseEpochDigits(parts[2])
	return v, e, ok
}

func parseUnbondKey(rest []byte) (addr.Address, epoch.Number, epoch.Number, bool) {
	suffix := rest[len("unbond/"):]
	parts := bytes.Split(suffix, []byte("/"))
	if len(parts) != 4 {
		return addr.Address{}, 0, 0, false
	}
	v, ok := addr.ParseHex(string(parts[1]))
	if !ok {
		return addr.Address{}, 0, 0, false
	}
	a, ok := parseEpochDigits(parts[2])
	if !ok {
		return addr.Address{}, 0, 0, false
	}
	w, ok := parseEpochDigits(parts[3])
	return v, a, w, ok
}
