package pos

import "github.com/anoma-network/ledger/epoch"

// EffectiveDelta applies spec.md §4.J's slash formula to a single bond
// delta: effective(δ) = δ − Σ { rate_j * δ : slash_j.epoch ∈ [activation, withdraw) }.
// Slashes compose additively on the raw delta (never on the running
// remainder), and the summed rate is clamped to [0,1] before subtraction so
// a bond can never be driven negative by over-slashing (spec.md §9 open
// question (b), resolved in favor of clamping).
func EffectiveDelta(delta int64, activation epoch.Number, withdraw *epoch.Number, slashes []Slash) int64 {
	rate := SlashRateInRange(activation, withdraw, slashes)
	reduction := float64(delta) * rate
	return delta - int64(reduction)
}

// SlashRateInRange sums the rates of every slash whose epoch falls in
// [activation, withdraw), clamped to 1.0. withdraw == nil means "no upper
// bound yet" (the bond has not been unbonded), matching an always-bonded
// delta being exposed to every slash from its activation epoch onward.
func SlashRateInRange(activation epoch.Number, withdraw *epoch.Number, slashes []Slash) float64 {
	var sum float64
	for _, s := range slashes {
		if s.Epoch < activation {
			continue
		}
		if withdraw != nil && s.Epoch >= *withdraw {
			continue
		}
		sum += s.Rate
	}
	if sum > 1.0 {
		sum = 1.0
	}
	if sum < 0 {
		sum = 0
	}
	return sum
}

// EffectiveBondTotal sums the effective (post-slash) value of every
// activation-epoch entry in a bond, as of withdraw being open-ended (the
// bond has not yet been moved to an unbond).
func EffectiveBondTotal(deltas map[epoch.Number]int64, slashes []Slash) int64 {
	var total int64
	for activation, delta := range deltas {
		total += EffectiveDelta(delta, activation, nil, slashes)
	}
	return total
}

// EffectiveUnbondAmount computes the amount an unbond entry actually yields
// at withdrawal, per spec.md §8's testable invariant: "the withdrawn amount
// equals original − Σ(rate_j : slash_j.epoch ∈ [A, E+unbonding_length)),
// clamped to ≥ 0".
func EffectiveUnbondAmount(original int64, activation, withdraw epoch.Number, slashes []Slash) int64 {
	w := withdraw
	eff := EffectiveDelta(original, activation, &w, slashes)
	if eff < 0 {
		eff = 0
	}
	return eff
}
