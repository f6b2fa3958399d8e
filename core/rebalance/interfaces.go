// Package rebalance contains the classification, planning, resolution
// and execution pipeline of the stake rebalancer.
package rebalance

import (
	"context"
	"errors"

	"github.com/stakeops/rebalancer/core/types"
)

var (
	// ErrTransactionRejected marks a submission error as a ledger
	// rejection. Rejections are final and must not be retried.
	ErrTransactionRejected = errors.New("transaction rejected by ledger")
)

// ConfirmationStatus is the ledger's answer when polling a signature.
type ConfirmationStatus uint8

const (
	// ConfirmationPending means the ledger has not finalized the transaction
	ConfirmationPending ConfirmationStatus = iota
	// ConfirmationFinalized means the transaction reached finality
	ConfirmationFinalized
	// ConfirmationFailed means the transaction was processed and failed
	ConfirmationFailed
)

// LedgerClient is the boundary to the external ledger. Read results are
// treated as an immutable snapshot for the run; writes are fallible and
// possibly slow, and all retry/timeout policy stays on our side.
type LedgerClient interface {
	// GetValidators returns the current validator set
	GetValidators(ctx context.Context) ([]types.ValidatorSnapshot, error)
	// GetStakeAccounts returns the stake accounts under our authority
	GetStakeAccounts(ctx context.Context) ([]types.StakeAccountState, error)
	// GetEpochInfo returns the ledger's epoch progress
	GetEpochInfo(ctx context.Context) (types.EpochInfo, error)
	// SubmitTransaction submits a signed transaction and returns its
	// signature; rejection errors wrap ErrTransactionRejected
	SubmitTransaction(ctx context.Context, tx types.SignedTransaction) (string, error)
	// PollConfirmation reports the confirmation status of a signature
	PollConfirmation(ctx context.Context, signature string) (ConfirmationStatus, error)
}

// Signer signs transactions with the staker authority key.
type Signer interface {
	// Payer returns the authority's public key
	Payer() types.Pubkey
	// Sign signs the transaction's canonical encoding
	Sign(tx types.Transaction) (types.SignedTransaction, error)
}

// ReportSink persists run reports for later inspection.
type ReportSink interface {
	// SaveReport stores a finished run report
	SaveReport(report *types.RunReport) error
}
