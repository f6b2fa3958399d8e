package rebalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakeops/rebalancer/core/types"
)

func testKey(n byte) types.Pubkey {
	var pk types.Pubkey
	pk[31] = n
	return pk
}

func goodValidator(n byte) types.ValidatorSnapshot {
	return types.ValidatorSnapshot{
		Identity:    testKey(n),
		VoteAccount: testKey(n + 100),
		Commission:  5,
		SelfStake:   2000,
		Version:     "1.14.17",
	}
}

func basePolicy() types.Policy {
	return types.Policy{
		MaxCommission:    10,
		MinSelfStake:     1000,
		MaxConcentration: 0.1,
	}
}

func TestClassifyEligibleAndCommission(t *testing.T) {
	a := goodValidator(1)
	b := goodValidator(2)
	b.Commission = 15

	verdicts := Classify([]types.ValidatorSnapshot{a, b}, basePolicy())
	require.Len(t, verdicts, 2)

	assert.Equal(t, types.Verdict{Kind: types.VerdictEligible}, verdicts[a.Identity])
	assert.Equal(t, types.Verdict{Kind: types.VerdictPoor, Reason: types.ReasonCommissionTooHigh}, verdicts[b.Identity])
}

func TestClassifyDelinquent(t *testing.T) {
	v := goodValidator(1)
	v.Delinquent = true

	verdicts := Classify([]types.ValidatorSnapshot{v}, basePolicy())
	assert.Equal(t, types.Verdict{Kind: types.VerdictPoor, Reason: types.ReasonDelinquent}, verdicts[v.Identity])
}

func TestClassifySelfStake(t *testing.T) {
	v := goodValidator(1)
	v.SelfStake = 999

	verdicts := Classify([]types.ValidatorSnapshot{v}, basePolicy())
	assert.Equal(t, types.Verdict{Kind: types.VerdictPoor, Reason: types.ReasonInsufficientSelfStake}, verdicts[v.Identity])
}

func TestClassifyBlacklistWinsOverEverything(t *testing.T) {
	v := goodValidator(1)
	v.Delinquent = true
	v.Commission = 99

	policy := basePolicy()
	policy.Blacklist = map[types.Pubkey]struct{}{v.Identity: {}}

	verdicts := Classify([]types.ValidatorSnapshot{v}, policy)
	assert.Equal(t, types.Verdict{Kind: types.VerdictExcluded, Reason: types.ReasonBlacklisted}, verdicts[v.Identity])
}

func TestClassifyDuplicateIdentity(t *testing.T) {
	a := goodValidator(1)
	b := goodValidator(1)
	b.VoteAccount = testKey(200)

	verdicts := Classify([]types.ValidatorSnapshot{a, b}, basePolicy())
	require.Len(t, verdicts, 1)
	assert.Equal(t, types.Verdict{Kind: types.VerdictExcluded, Reason: types.ReasonDuplicateIdentity}, verdicts[a.Identity])
}

func TestClassifyVersion(t *testing.T) {
	policy := basePolicy()
	policy.MinVersion = "1.14.0"

	current := goodValidator(1)
	stale := goodValidator(2)
	stale.Version = "1.13.6"
	garbled := goodValidator(3)
	garbled.Version = "unknown"

	verdicts := Classify([]types.ValidatorSnapshot{current, stale, garbled}, policy)
	assert.Equal(t, types.Verdict{Kind: types.VerdictEligible}, verdicts[current.Identity])
	assert.Equal(t, types.Verdict{Kind: types.VerdictPoor, Reason: types.ReasonStaleSoftware}, verdicts[stale.Identity])
	assert.Equal(t, types.Verdict{Kind: types.VerdictPoor, Reason: types.ReasonStaleSoftware}, verdicts[garbled.Identity])

	// Empty minimum disables the check entirely.
	policy.MinVersion = ""
	verdicts = Classify([]types.ValidatorSnapshot{garbled}, policy)
	assert.True(t, verdicts[garbled.Identity].Eligible())
}

func TestClassifyDeterministic(t *testing.T) {
	snapshot := []types.ValidatorSnapshot{goodValidator(1), goodValidator(2), goodValidator(3)}
	snapshot[1].Commission = 50
	policy := basePolicy()

	first := Classify(snapshot, policy)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(snapshot, policy))
	}
}
