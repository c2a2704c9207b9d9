package pos

import (
	"testing"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/epoch"
)

func TestClassifyRoundTripsBondKey(t *testing.T) {
	id := BondId{Source: addr.NewImplicit([]byte("src")), Validator: addr.NewImplicit([]byte("val"))}
	key := BondKey(id, 7)
	ck, ok := classify(key)
	if !ok {
		t.Fatalf("classify failed for %q", key)
	}
	if ck.field != fieldBond || ck.epoch1 != 7 || !ck.validator.Equal(id.Validator) {
		t.Fatalf("unexpected classification: %+v", ck)
	}
}

func TestValidateRejectsUnrecognizedKey(t *testing.T) {
	errs := Validate(Request{Changes: []Change{{Key: []byte("PoS/not_a_real_field")}}})
	if len(errs) == 0 {
		t.Fatal("expected catch-all rejection of an unrecognized PoS key")
	}
}

func TestValidateRejectsBackdatedBondActivation(t *testing.T) {
	id := BondId{Source: addr.NewImplicit([]byte("s")), Validator: addr.NewImplicit([]byte("v"))}
	params := DefaultParams()
	// current epoch 10, pipeline 2 => legal activation is 12; backdate to 5
	changes := []Change{{Key: BondKey(id, 5), Pre: nil, Post: encodeInt64(100)}}
	errs := Validate(Request{Changes: changes, CurrentEpoch: 10, Params: params})
	if len(errs) == 0 {
		t.Fatal("expected rejection of backdated bond activation epoch")
	}
}

func TestValidateAcceptsProperlyDatedBondActivation(t *testing.T) {
	id := BondId{Source: addr.NewImplicit([]byte("s")), Validator: addr.NewImplicit([]byte("v"))}
	params := DefaultParams()
	activation := epoch.Number(10) + epoch.Number(params.PipelineLength)
	v := id.Validator

	changes := []Change{
		{Key: BondKey(id, activation), Pre: nil, Post: encodeInt64(100)},
		{Key: TotalDeltasKey(v, activation), Pre: encodeInt64(0), Post: encodeInt64(100)},
		{Key: BalanceKey(), Pre: encodeInt64(0), Post: encodeInt64(100)},
	}
	errs := Validate(Request{Changes: changes, CurrentEpoch: 10, Params: params})
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateRejectsSumInconsistency(t *testing.T) {
	id := BondId{Source: addr.NewImplicit([]byte("s")), Validator: addr.NewImplicit([]byte("v"))}
	params := DefaultParams()
	activation := epoch.Number(10) + epoch.Number(params.PipelineLength)
	v := id.Validator

	changes := []Change{
		{Key: BondKey(id, activation), Pre: nil, Post: encodeInt64(100)},
		// total deltas only moved by 50, not 100 -- inconsistent
		{Key: TotalDeltasKey(v, activation), Pre: encodeInt64(0), Post: encodeInt64(50)},
		{Key: BalanceKey(), Pre: encodeInt64(0), Post: encodeInt64(100)},
	}
	errs := Validate(Request{Changes: changes, CurrentEpoch: 10, Params: params})
	if len(errs) == 0 {
		t.Fatal("expected rejection of bond/total-deltas sum inconsistency")
	}
}

func TestValidateRejectsVotingPowerIncoherence(t *testing.T) {
	v := addr.NewImplicit([]byte("v"))
	params := DefaultParams()
	changes := []Change{
		{Key: TotalDeltasKey(v, 5), Pre: encodeInt64(0), Post: encodeInt64(1000)},
		{Key: VotingPowerKey(v, 5), Pre: encodeInt64(0), Post: encodeInt64(999)}, // should be floor(1000/1000)=1
	}
	errs := Validate(Request{Changes: changes, CurrentEpoch: 5, Params: params})
	if len(errs) == 0 {
		t.Fatal("expected rejection of voting-power incoherence")
	}
}

func TestValidateRejectsUnauthorizedConsensusKeyChange(t *testing.T) {
	v := addr.NewImplicit([]byte("v"))
	changes := []Change{{Key: ConsensusKeyKey(v, 1), Pre: nil, Post: []byte("newkey")}}
	errs := Validate(Request{Changes: changes, Verifiers: map[addr.Address]bool{}})
	if len(errs) == 0 {
		t.Fatal("expected rejection: consensus key change without validator's own verifier entry")
	}

	errs = Validate(Request{Changes: changes, Verifiers: map[addr.Address]bool{v: true}})
	if len(errs) != 0 {
		t.Fatalf("expected no errors when validator authorizes its own consensus key change, got %v", errs)
	}
}

func TestValidateRejectsParamsChangeWithoutProposal(t *testing.T) {
	changes := []Change{{Key: ParamsKey(), Pre: nil, Post: []byte("x")}}
	if errs := Validate(Request{Changes: changes}); len(errs) == 0 {
		t.Fatal("expected rejection of PosParams change with no governance proposal id")
	}
	if errs := Validate(Request{Changes: changes, ProposalID: []byte("prop-1")}); len(errs) != 0 {
		t.Fatalf("expected no errors with a proposal id present, got %v", errs)
	}
}

func TestValidateRejectsOversizedActiveSet(t *testing.T) {
	vs := ValidatorSet{Active: []addr.Address{addr.NewImplicit([]byte("a")), addr.NewImplicit([]byte("b"))}}
	changes := []Change{{Key: ValidatorSetKey(1), Pre: nil, Post: encodeValidatorSet(vs)}}
	errs := Validate(Request{Changes: changes, Params: Params{MaxActiveValidators: 1}})
	if len(errs) == 0 {
		t.Fatal("expected rejection of active set exceeding max_active_validators")
	}
}
