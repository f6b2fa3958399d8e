package state

import (
	"sort"
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

func TestAccountPoolClaimOrder(t *testing.T) {
	accounts := []types.Pubkey{testKey(7), testKey(3), testKey(9), testKey(1)}
	pool := NewAccountPool(accounts)

	expected := make([]types.Pubkey, len(accounts))
	copy(expected, accounts)
	sort.Slice(expected, func(i, j int) bool { return expected[i].Less(expected[j]) })

	validator := testKey(100)
	for _, want := range expected {
		got, err := pool.Claim(validator)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := pool.Claim(validator)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestAccountPoolRelease(t *testing.T) {
	pool := NewAccountPool([]types.Pubkey{testKey(1), testKey(2)})
	validator := testKey(100)

	first, err := pool.Claim(validator)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Remaining())

	claimer, ok := pool.ClaimedBy(first)
	require.True(t, ok)
	assert.Equal(t, validator, claimer)

	require.NoError(t, pool.Release(first))
	assert.Equal(t, 2, pool.Remaining())

	_, ok = pool.ClaimedBy(first)
	assert.False(t, ok)

	// The released handle is dispensed again in sorted order.
	again, err := pool.Claim(validator)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	assert.ErrorIs(t, pool.Release(testKey(9)), ErrNotClaimed)
}
