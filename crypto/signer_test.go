package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakeops/rebalancer/core/types"
)

func sampleTransaction(payer types.Pubkey) types.Transaction {
	var account, validator types.Pubkey
	account[31] = 1
	validator[31] = 2

	return types.Transaction{
		Payer: payer,
		Ops: []types.Operation{
			{Kind: types.OpIncreaseStake, Account: account, Validator: validator, Amount: 500},
		},
	}
}

func TestTxSignerSignAndVerify(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)
	signer := NewTxSigner(key)

	tx := sampleTransaction(signer.Payer())
	signed, err := signer.Sign(tx)
	require.NoError(t, err)
	require.NotEmpty(t, signed.Signature)

	assert.True(t, Verify(signer.Payer(), EncodeTransaction(tx), signed.Signature))

	// A tampered amount invalidates the signature.
	tx.Ops[0].Amount = 501
	assert.False(t, Verify(signer.Payer(), EncodeTransaction(tx), signed.Signature))
}

func TestTxSignerRejectsEmptyTransaction(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)
	signer := NewTxSigner(key)

	_, err = signer.Sign(types.Transaction{Payer: signer.Payer()})
	assert.ErrorIs(t, err, ErrEmptyTransaction)
}

func TestEncodeTransactionDeterministic(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	tx := sampleTransaction(key.Address())
	assert.Equal(t, EncodeTransaction(tx), EncodeTransaction(tx))

	other := sampleTransaction(key.Address())
	other.Ops[0].Amount = 501
	assert.NotEqual(t, EncodeTransaction(tx), EncodeTransaction(other))
}
