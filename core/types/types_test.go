package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePubkey(t *testing.T) {
	var pk Pubkey
	pk[0] = 0x42
	pk[31] = 0x17

	parsed, err := ParsePubkey(pk.String())
	require.NoError(t, err)
	assert.Equal(t, pk, parsed)

	_, err = ParsePubkey("tooshort")
	assert.Error(t, err)

	_, err = ParsePubkey("not base58 at all!!")
	assert.Error(t, err)
}

func TestPubkeyZero(t *testing.T) {
	var zero Pubkey
	assert.True(t, zero.IsZero())

	var pk Pubkey
	pk[5] = 1
	assert.False(t, pk.IsZero())
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "eligible", Verdict{Kind: VerdictEligible}.String())
	assert.Equal(t, "poor (delinquent)", Verdict{Kind: VerdictPoor, Reason: ReasonDelinquent}.String())
	assert.Equal(t, "excluded (blacklisted)", Verdict{Kind: VerdictExcluded, Reason: ReasonBlacklisted}.String())
}

func TestAllocationTotal(t *testing.T) {
	var a, b Pubkey
	a[31] = 1
	b[31] = 2

	alloc := Allocation{a: 300, b: 200}
	assert.Equal(t, uint64(500), alloc.Total())
	assert.Equal(t, uint64(0), Allocation{}.Total())
}
