package rebalance

import (
	"sort"

	"github.com/stakeops/rebalancer/core/types"
)

// Plan computes the target allocation for the run. Every validator with
// a verdict receives an entry; only eligible validators can receive a
// non-zero target. Deterministic given identical inputs.
//
// Eligible validators start from an equal share of the budget, clamped
// to the per-validator cap budget*maxConcentration. Surplus released by
// clamped validators is redistributed among the remaining uncapped
// validators until no validator exceeds its cap or nothing remains to
// redistribute. Integer division floors; any remainder stays unallocated
// so the total never exceeds the budget.
func Plan(verdicts map[types.Pubkey]types.Verdict, budget uint64, maxConcentration float64) types.Allocation {
	alloc := make(types.Allocation, len(verdicts))
	for identity := range verdicts {
		alloc[identity] = 0
	}

	eligible := make([]types.Pubkey, 0, len(verdicts))
	for identity, verdict := range verdicts {
		if verdict.Eligible() {
			eligible = append(eligible, identity)
		}
	}
	if len(eligible) == 0 || budget == 0 {
		return alloc
	}

	// Ascending identity order breaks every tie the same way on every run.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Less(eligible[j]) })

	cap := uint64(float64(budget) * maxConcentration)
	if cap == 0 {
		return alloc
	}

	pool := budget
	active := eligible

	// Fixed point: each pass either clamps at least one validator or
	// distributes the pool and stops, so the loop is bounded by the
	// number of eligible validators.
	for iter := 0; iter < len(eligible) && len(active) > 0 && pool > 0; iter++ {
		share := pool / uint64(len(active))
		if share == 0 {
			break
		}

		remaining := active[:0]
		clamped := false
		for _, identity := range active {
			headroom := cap - alloc[identity]
			if headroom <= share {
				alloc[identity] = cap
				pool -= headroom
				clamped = true
			} else {
				remaining = append(remaining, identity)
			}
		}
		active = remaining

		if !clamped {
			for _, identity := range active {
				alloc[identity] += share
				pool -= share
			}
			break
		}
	}

	return alloc
}
