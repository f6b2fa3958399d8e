package crypto

import (
	"errors"

	"github.com/stakeops/rebalancer/core/types"
	"github.com/stakeops/rebalancer/utils"
)

// ErrEmptyTransaction is returned when signing a transaction with no
// operations.
var ErrEmptyTransaction = errors.New("transaction has no operations")

// TxSigner signs transactions with the staker authority key.
type TxSigner struct {
	key *KeyPair
}

// NewTxSigner creates a signer around the staker keypair.
func NewTxSigner(key *KeyPair) *TxSigner {
	return &TxSigner{key: key}
}

// Payer returns the staker authority's public key.
func (s *TxSigner) Payer() types.Pubkey {
	return s.key.Address()
}

// Sign signs the canonical encoding of the transaction.
func (s *TxSigner) Sign(tx types.Transaction) (types.SignedTransaction, error) {
	if len(tx.Ops) == 0 {
		return types.SignedTransaction{}, ErrEmptyTransaction
	}

	message := EncodeTransaction(tx)
	return types.SignedTransaction{
		Transaction: tx,
		Signature:   s.key.Sign(message),
	}, nil
}

// EncodeTransaction produces the canonical byte encoding that is signed
// and submitted: the payer key followed by each operation's fields in a
// fixed order, hashed so the message length is constant.
func EncodeTransaction(tx types.Transaction) []byte {
	buf := make([]byte, 0, 32+len(tx.Ops)*105)
	buf = append(buf, tx.Payer[:]...)
	for _, op := range tx.Ops {
		buf = append(buf, byte(op.Kind))
		buf = append(buf, op.Account[:]...)
		buf = append(buf, op.Validator[:]...)
		buf = append(buf, op.Destination[:]...)
		buf = utils.AppendUint64(buf, op.Amount)
	}
	return utils.Hash(buf)
}
