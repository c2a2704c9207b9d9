package pos

// Params are the PoS economy's tunable constants (spec.md §6 configuration
// and §3 "PosParams"). VotesPerToken is kept as a rational numerator/
// denominator pair rather than a float so VotingPower computation stays
// exact and reproducible across nodes.
type Params struct {
	PipelineLength      uint64
	UnbondingLength     uint64
	MaxActiveValidators int
	VotesPerTokenNum    int64
	VotesPerTokenDen    int64
	SlashRates          map[SlashKind]float64
}

// DefaultParams mirrors spec.md §6's stated defaults: pipeline_length=2,
// unbonding_length=6, votes_per_token=1/1000, max_active_validators=128,
// slash_rates={duplicate_vote: 0.01, light_client_attack: 0.05}.
func DefaultParams() Params {
	return Params{
		PipelineLength:      2,
		UnbondingLength:     6,
		MaxActiveValidators: 128,
		VotesPerTokenNum:    1,
		VotesPerTokenDen:    1000,
		SlashRates: map[SlashKind]float64{
			SlashDuplicateVote:     0.01,
			SlashLightClientAttack: 0.05,
		},
	}
}

// VotingPower converts a non-negative total delta into a voting power via
// floor(delta * votes_per_token), per spec.md §8 invariant.
func (p Params) VotingPower(totalDelta int64) int64 {
	if totalDelta <= 0 {
		return 0
	}
	return (totalDelta * p.VotesPerTokenNum) / p.VotesPerTokenDen
}

// GCWindow is pipeline_length+unbonding_length. Application.Commit uses it
// as a height distance to drop old in-memory results bitmaps; stored
// epoch-indexed deltas are not garbage-collected.
func (p Params) GCWindow() uint64 { return p.PipelineLength + p.UnbondingLength }
