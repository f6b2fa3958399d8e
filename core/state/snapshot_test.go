package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakeops/rebalancer/core/types"
)

func TestRunSnapshotIndexes(t *testing.T) {
	identity := testKey(1)
	vote := testKey(2)
	reserve := testKey(50)

	validators := []types.ValidatorSnapshot{
		{Identity: identity, VoteAccount: vote},
	}
	accounts := []types.StakeAccountState{
		{Account: testKey(10), Voter: vote, Balance: 300, State: types.StakeActive},
		{Account: testKey(11), Voter: vote, Balance: 200, State: types.StakeActivating},
		{Account: testKey(12), Voter: vote, Balance: 100, State: types.StakeDeactivating},
		{Account: testKey(13), Balance: 500, State: types.StakeInactive},
		{Account: reserve, Balance: 10_000, State: types.StakeInactive},
	}

	snap := NewRunSnapshot(types.EpochInfo{Epoch: 42}, validators, accounts, reserve)

	acct, ok := snap.Account(testKey(10))
	require.True(t, ok)
	assert.Equal(t, uint64(300), acct.Balance)

	// Active plus activating, not deactivating.
	assert.Equal(t, uint64(500), snap.DelegatedBalance(vote))
	assert.Len(t, snap.AccountsFor(vote), 3)

	id, ok := snap.IdentityFor(vote)
	require.True(t, ok)
	assert.Equal(t, identity, id)

	// The reserve and delegated accounts never enter the pool.
	free := snap.UnallocatedAccounts(reserve)
	require.Len(t, free, 1)
	assert.Equal(t, testKey(13), free[0])
}

func TestRunSnapshotReserveExcludedFromDelegation(t *testing.T) {
	vote := testKey(2)
	reserve := testKey(50)

	accounts := []types.StakeAccountState{
		// A misconfigured reserve that reports a voter must still not
		// count as the validator's stake.
		{Account: reserve, Voter: vote, Balance: 10_000, State: types.StakeActive},
	}

	snap := NewRunSnapshot(types.EpochInfo{}, nil, accounts, reserve)
	assert.Equal(t, uint64(0), snap.DelegatedBalance(vote))
	assert.Empty(t, snap.AccountsFor(vote))
}
