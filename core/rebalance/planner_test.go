package rebalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakeops/rebalancer/core/types"
)

func eligibleVerdicts(keys ...types.Pubkey) map[types.Pubkey]types.Verdict {
	verdicts := make(map[types.Pubkey]types.Verdict, len(keys))
	for _, key := range keys {
		verdicts[key] = types.Verdict{Kind: types.VerdictEligible}
	}
	return verdicts
}

func TestPlanEqualSplit(t *testing.T) {
	a, b := testKey(1), testKey(2)
	alloc := Plan(eligibleVerdicts(a, b), 1000, 0.6)

	assert.Equal(t, uint64(500), alloc[a])
	assert.Equal(t, uint64(500), alloc[b])
	assert.Equal(t, uint64(1000), alloc.Total())
}

func TestPlanNoClampWithRemainder(t *testing.T) {
	a, b, c := testKey(1), testKey(2), testKey(3)
	alloc := Plan(eligibleVerdicts(a, b, c), 1000, 0.34)

	// 333 each; the indivisible remainder stays unallocated.
	for _, key := range []types.Pubkey{a, b, c} {
		assert.Equal(t, uint64(333), alloc[key])
	}
	assert.Equal(t, uint64(999), alloc.Total())
}

func TestPlanClampAll(t *testing.T) {
	a, b, c := testKey(1), testKey(2), testKey(3)
	alloc := Plan(eligibleVerdicts(a, b, c), 1000, 0.3)

	// Every validator hits the cap; the surplus has nowhere to go.
	for _, key := range []types.Pubkey{a, b, c} {
		assert.Equal(t, uint64(300), alloc[key])
	}
	assert.Equal(t, uint64(900), alloc.Total())
}

func TestPlanCapDependsOnSetSize(t *testing.T) {
	keys := []types.Pubkey{testKey(1), testKey(2), testKey(3), testKey(4)}
	alloc := Plan(eligibleVerdicts(keys...), 1000, 0.4)

	// Base share 250 < cap 400, so nothing clamps and everyone gets 250.
	for _, key := range keys {
		assert.Equal(t, uint64(250), alloc[key])
	}

	// With two validators the cap binds: 400 each, 200 undistributed.
	alloc = Plan(eligibleVerdicts(keys[0], keys[1]), 1000, 0.4)
	assert.Equal(t, uint64(400), alloc[keys[0]])
	assert.Equal(t, uint64(400), alloc[keys[1]])
	assert.Equal(t, uint64(800), alloc.Total())
}

func TestPlanNonEligibleGetZero(t *testing.T) {
	a, b, c := testKey(1), testKey(2), testKey(3)
	verdicts := map[types.Pubkey]types.Verdict{
		a: {Kind: types.VerdictEligible},
		b: {Kind: types.VerdictPoor, Reason: types.ReasonDelinquent},
		c: {Kind: types.VerdictExcluded, Reason: types.ReasonBlacklisted},
	}

	alloc := Plan(verdicts, 1000, 1.0)
	require.Len(t, alloc, 3)
	assert.Equal(t, uint64(1000), alloc[a])
	assert.Equal(t, uint64(0), alloc[b])
	assert.Equal(t, uint64(0), alloc[c])
}

func TestPlanEdgeCases(t *testing.T) {
	a := testKey(1)

	alloc := Plan(eligibleVerdicts(a), 0, 0.5)
	assert.Equal(t, uint64(0), alloc[a])

	alloc = Plan(map[types.Pubkey]types.Verdict{}, 1000, 0.5)
	assert.Empty(t, alloc)

	// Cap rounds to zero: nothing can be allocated.
	alloc = Plan(eligibleVerdicts(a), 10, 0.05)
	assert.Equal(t, uint64(0), alloc[a])
}

func TestPlanNeverExceedsBudget(t *testing.T) {
	keys := make([]types.Pubkey, 0, 7)
	for n := byte(1); n <= 7; n++ {
		keys = append(keys, testKey(n))
	}
	verdicts := eligibleVerdicts(keys...)

	for _, budget := range []uint64{1, 10, 999, 1000, 12345} {
		for _, conc := range []float64{0.01, 0.15, 0.3, 0.5, 1.0} {
			alloc := Plan(verdicts, budget, conc)
			assert.LessOrEqual(t, alloc.Total(), budget)
		}
	}
}

func TestPlanDeterministic(t *testing.T) {
	verdicts := eligibleVerdicts(testKey(3), testKey(1), testKey(2))
	first := Plan(verdicts, 1000, 0.4)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Plan(verdicts, 1000, 0.4))
	}
}
