package rebalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakeops/rebalancer/core/state"
	"github.com/stakeops/rebalancer/core/types"
	"github.com/stakeops/rebalancer/utils"
)

var reserveKey = testKey(250)

func newTestResolver(validators []types.ValidatorSnapshot, accounts []types.StakeAccountState, minChange uint64) *Resolver {
	snap := state.NewRunSnapshot(types.EpochInfo{Epoch: 1}, validators, accounts, reserveKey)
	pool := state.NewAccountPool(snap.UnallocatedAccounts(reserveKey))
	return NewResolver(snap, pool, reserveKey, minChange, utils.NewNopLogger())
}

func validatorWithVote(n byte) types.ValidatorSnapshot {
	return types.ValidatorSnapshot{Identity: testKey(n), VoteAccount: testKey(n + 100)}
}

func eligibleOnly(validators ...types.ValidatorSnapshot) map[types.Pubkey]types.Verdict {
	verdicts := make(map[types.Pubkey]types.Verdict)
	for _, v := range validators {
		verdicts[v.Identity] = types.Verdict{Kind: types.VerdictEligible}
	}
	return verdicts
}

func TestResolveTopUpExistingAccount(t *testing.T) {
	v := validatorWithVote(1)
	acct := testKey(10)
	r := newTestResolver(
		[]types.ValidatorSnapshot{v},
		[]types.StakeAccountState{{Account: acct, Voter: v.VoteAccount, Balance: 300, State: types.StakeActive}},
		10,
	)

	chains, skipped := r.Resolve(types.Allocation{v.Identity: 500}, eligibleOnly(v), 1000)
	require.Empty(t, skipped)
	require.Len(t, chains, 1)
	require.Len(t, chains[0].Ops, 1)

	op := chains[0].Ops[0]
	assert.Equal(t, types.OpIncreaseStake, op.Kind)
	assert.Equal(t, acct, op.Account)
	assert.Equal(t, uint64(200), op.Amount)
}

func TestResolveIncreaseClampedToReserve(t *testing.T) {
	v := validatorWithVote(1)
	acct := testKey(10)
	accounts := []types.StakeAccountState{{Account: acct, Voter: v.VoteAccount, Balance: 300, State: types.StakeActive}}

	r := newTestResolver([]types.ValidatorSnapshot{v}, accounts, 10)
	chains, skipped := r.Resolve(types.Allocation{v.Identity: 500}, eligibleOnly(v), 150)
	require.Empty(t, skipped)
	require.Len(t, chains, 1)
	assert.Equal(t, uint64(150), chains[0].Ops[0].Amount)

	// A reserve below the minimum change cannot fund anything.
	r = newTestResolver([]types.ValidatorSnapshot{v}, accounts, 10)
	chains, skipped = r.Resolve(types.Allocation{v.Identity: 500}, eligibleOnly(v), 5)
	assert.Empty(t, chains)
	require.Len(t, skipped, 1)
	assert.Equal(t, "reserve depleted", skipped[0].Reason)
}

func TestResolveNewDelegationFundsFromReserve(t *testing.T) {
	v := validatorWithVote(1)
	handle := testKey(10)
	r := newTestResolver(
		[]types.ValidatorSnapshot{v},
		[]types.StakeAccountState{{Account: handle, Balance: 0, State: types.StakeInactive}},
		10,
	)

	chains, skipped := r.Resolve(types.Allocation{v.Identity: 400}, eligibleOnly(v), 1000)
	require.Empty(t, skipped)
	require.Len(t, chains, 1)
	require.Len(t, chains[0].Ops, 2)

	topUp := chains[0].Ops[0]
	assert.Equal(t, types.OpIncreaseStake, topUp.Kind)
	assert.Equal(t, handle, topUp.Account)
	assert.Equal(t, uint64(400), topUp.Amount)

	delegate := chains[0].Ops[1]
	assert.Equal(t, types.OpDelegate, delegate.Kind)
	assert.Equal(t, handle, delegate.Account)
	assert.Equal(t, v.VoteAccount, delegate.Validator)
	assert.Equal(t, uint64(400), delegate.Amount)
}

func TestResolveSplitOversizedPoolAccount(t *testing.T) {
	v := validatorWithVote(1)
	first := testKey(10)
	spare := testKey(11)
	r := newTestResolver(
		[]types.ValidatorSnapshot{v},
		[]types.StakeAccountState{
			{Account: first, Balance: 1000, State: types.StakeInactive},
			{Account: spare, Balance: 0, State: types.StakeInactive},
		},
		10,
	)

	chains, skipped := r.Resolve(types.Allocation{v.Identity: 400}, eligibleOnly(v), 1000)
	require.Empty(t, skipped)
	require.Len(t, chains, 1)
	require.Len(t, chains[0].Ops, 2)

	// The surplus is carved off before the delegation executes.
	split := chains[0].Ops[0]
	assert.Equal(t, types.OpSplit, split.Kind)
	assert.Equal(t, first, split.Account)
	assert.Equal(t, spare, split.Destination)
	assert.Equal(t, uint64(600), split.Amount)

	delegate := chains[0].Ops[1]
	assert.Equal(t, types.OpDelegate, delegate.Kind)
	assert.Equal(t, first, delegate.Account)
	assert.Equal(t, uint64(400), delegate.Amount)
}

func TestResolveDelegatesWholeBalanceWithoutSpareHandle(t *testing.T) {
	v := validatorWithVote(1)
	only := testKey(10)
	r := newTestResolver(
		[]types.ValidatorSnapshot{v},
		[]types.StakeAccountState{{Account: only, Balance: 1000, State: types.StakeInactive}},
		10,
	)

	chains, skipped := r.Resolve(types.Allocation{v.Identity: 400}, eligibleOnly(v), 1000)
	require.Empty(t, skipped)
	require.Len(t, chains, 1)
	require.Len(t, chains[0].Ops, 1)
	assert.Equal(t, types.OpDelegate, chains[0].Ops[0].Kind)
	assert.Equal(t, uint64(1000), chains[0].Ops[0].Amount)
}

func TestResolvePoolExhausted(t *testing.T) {
	v := validatorWithVote(1)
	r := newTestResolver([]types.ValidatorSnapshot{v}, nil, 10)

	chains, skipped := r.Resolve(types.Allocation{v.Identity: 400}, eligibleOnly(v), 1000)
	assert.Empty(t, chains)
	require.Len(t, skipped, 1)
	assert.Equal(t, types.OutcomeSkipped, skipped[0].Outcome)
	assert.Equal(t, "account pool exhausted", skipped[0].Reason)
}

func TestResolveMinChangeThreshold(t *testing.T) {
	v := validatorWithVote(1)
	acct := testKey(10)
	accounts := []types.StakeAccountState{{Account: acct, Voter: v.VoteAccount, Balance: 500, State: types.StakeActive}}

	// Tiny increase.
	r := newTestResolver([]types.ValidatorSnapshot{v}, accounts, 10)
	chains, skipped := r.Resolve(types.Allocation{v.Identity: 503}, eligibleOnly(v), 1000)
	assert.Empty(t, chains)
	require.Len(t, skipped, 1)
	assert.Equal(t, "delta below minimum change", skipped[0].Reason)

	// Tiny decrease.
	r = newTestResolver([]types.ValidatorSnapshot{v}, accounts, 10)
	chains, skipped = r.Resolve(types.Allocation{v.Identity: 497}, eligibleOnly(v), 1000)
	assert.Empty(t, chains)
	require.Len(t, skipped, 1)
	assert.Equal(t, "delta below minimum change", skipped[0].Reason)
}

func TestResolveExcludedDeactivatesEverything(t *testing.T) {
	v := validatorWithVote(1)
	r := newTestResolver(
		[]types.ValidatorSnapshot{v},
		[]types.StakeAccountState{
			{Account: testKey(10), Voter: v.VoteAccount, Balance: 3, State: types.StakeActive},
			{Account: testKey(11), Voter: v.VoteAccount, Balance: 200, State: types.StakeActivating},
			{Account: testKey(12), Voter: v.VoteAccount, Balance: 100, State: types.StakeDeactivating},
		},
		1000, // far above every balance: exclusion ignores the threshold
	)

	verdicts := map[types.Pubkey]types.Verdict{
		v.Identity: {Kind: types.VerdictExcluded, Reason: types.ReasonBlacklisted},
	}
	chains, skipped := r.Resolve(types.Allocation{v.Identity: 0}, verdicts, 1000)
	require.Empty(t, skipped)
	require.Len(t, chains, 1)
	require.Len(t, chains[0].Ops, 2)
	for _, op := range chains[0].Ops {
		assert.Equal(t, types.OpDeactivate, op.Kind)
	}
}

func TestResolvePartialDecrease(t *testing.T) {
	v := validatorWithVote(1)
	acct := testKey(10)
	r := newTestResolver(
		[]types.ValidatorSnapshot{v},
		[]types.StakeAccountState{{Account: acct, Voter: v.VoteAccount, Balance: 800, State: types.StakeActive}},
		50,
	)

	chains, skipped := r.Resolve(types.Allocation{v.Identity: 500}, eligibleOnly(v), 1000)
	require.Empty(t, skipped)
	require.Len(t, chains, 1)
	require.Len(t, chains[0].Ops, 1)

	op := chains[0].Ops[0]
	assert.Equal(t, types.OpDecreaseStake, op.Kind)
	assert.Equal(t, acct, op.Account)
	assert.Equal(t, uint64(300), op.Amount)
}

func TestResolveDecreaseLeavesNoDust(t *testing.T) {
	v := validatorWithVote(1)
	acct := testKey(10)
	r := newTestResolver(
		[]types.ValidatorSnapshot{v},
		[]types.StakeAccountState{{Account: acct, Voter: v.VoteAccount, Balance: 320, State: types.StakeActive}},
		50,
	)

	// Decreasing by 300 would strand a 20-unit sliver; the whole account
	// deactivates instead.
	chains, skipped := r.Resolve(types.Allocation{v.Identity: 20}, eligibleOnly(v), 1000)
	require.Empty(t, skipped)
	require.Len(t, chains, 1)
	require.Len(t, chains[0].Ops, 1)
	assert.Equal(t, types.OpDeactivate, chains[0].Ops[0].Kind)
	assert.Equal(t, acct, chains[0].Ops[0].Account)
}

func TestResolveMergesInactiveIntoReserve(t *testing.T) {
	v := validatorWithVote(1)
	active := testKey(10)
	cooled := testKey(11)
	r := newTestResolver(
		[]types.ValidatorSnapshot{v},
		[]types.StakeAccountState{
			{Account: active, Voter: v.VoteAccount, Balance: 500, State: types.StakeActive},
			{Account: cooled, Voter: v.VoteAccount, Balance: 120, State: types.StakeInactive},
		},
		10,
	)

	// Delegated balance already matches the target; only the reclaim runs.
	chains, skipped := r.Resolve(types.Allocation{v.Identity: 500}, eligibleOnly(v), 1000)
	require.Empty(t, skipped)
	require.Len(t, chains, 1)
	require.Len(t, chains[0].Ops, 1)

	merge := chains[0].Ops[0]
	assert.Equal(t, types.OpMerge, merge.Kind)
	assert.Equal(t, cooled, merge.Account)
	assert.Equal(t, reserveKey, merge.Destination)
}

func TestResolveIdempotentAtTarget(t *testing.T) {
	v := validatorWithVote(1)
	r := newTestResolver(
		[]types.ValidatorSnapshot{v},
		[]types.StakeAccountState{{Account: testKey(10), Voter: v.VoteAccount, Balance: 500, State: types.StakeActive}},
		10,
	)

	chains, skipped := r.Resolve(types.Allocation{v.Identity: 500}, eligibleOnly(v), 1000)
	assert.Empty(t, chains)
	assert.Empty(t, skipped)
}

func TestResolveFundsSmallestPositionFirst(t *testing.T) {
	a := validatorWithVote(1)
	b := validatorWithVote(2)
	r := newTestResolver(
		[]types.ValidatorSnapshot{a, b},
		[]types.StakeAccountState{
			{Account: testKey(10), Voter: a.VoteAccount, Balance: 100, State: types.StakeActive},
			{Account: testKey(20), Balance: 0, State: types.StakeInactive},
		},
		10,
	)

	// Both want 400; the reserve covers only one. The zero-stake
	// validator is funded first, the other is skipped.
	chains, skipped := r.Resolve(
		types.Allocation{a.Identity: 400, b.Identity: 400},
		eligibleOnly(a, b),
		350,
	)

	require.Len(t, chains, 1)
	assert.Equal(t, b.Identity, chains[0].Validator)
	require.Len(t, chains[0].Ops, 2)
	assert.Equal(t, uint64(350), chains[0].Ops[1].Amount)

	require.Len(t, skipped, 1)
	assert.Equal(t, a.Identity, skipped[0].Validator)
	assert.Equal(t, "reserve depleted", skipped[0].Reason)
}
