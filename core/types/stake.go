package types

// ActivationState is the ledger-reported lifecycle state of a stake
// account's delegation.
type ActivationState uint8

const (
	// StakeInactive means the account holds undelegated balance
	StakeInactive ActivationState = iota
	// StakeActivating means a delegation is warming up
	StakeActivating
	// StakeActive means the delegation is fully active
	StakeActive
	// StakeDeactivating means the delegation is cooling down
	StakeDeactivating
)

// String returns the string representation of an ActivationState.
func (s ActivationState) String() string {
	switch s {
	case StakeInactive:
		return "inactive"
	case StakeActivating:
		return "activating"
	case StakeActive:
		return "active"
	case StakeDeactivating:
		return "deactivating"
	default:
		return "unknown"
	}
}

// StakeAccountState is the observed state of one stake account. The
// ledger owns these accounts; the core only reads them and proposes
// transitions through Operations.
type StakeAccountState struct {
	// Account is the stake account's address
	Account Pubkey
	// Voter is the vote account the balance is delegated to; zero when
	// undelegated
	Voter Pubkey
	// Balance is the account's current balance
	Balance uint64
	// State is the delegation's activation state
	State ActivationState
}

// Delegated reports whether the account is delegated to a validator.
func (s *StakeAccountState) Delegated() bool {
	return !s.Voter.IsZero()
}

// OpKind identifies the kind of ledger operation.
type OpKind uint8

const (
	// OpDelegate delegates an undelegated account to a validator
	OpDelegate OpKind = iota
	// OpIncreaseStake moves amount from the reserve onto an account
	OpIncreaseStake
	// OpDecreaseStake moves amount off an account back toward the reserve
	OpDecreaseStake
	// OpMerge folds the source account into the destination account
	OpMerge
	// OpSplit carves amount out of the source into a new account
	OpSplit
	// OpDeactivate begins cooldown of the account's full delegation
	OpDeactivate
)

// String returns the string representation of an OpKind.
func (k OpKind) String() string {
	switch k {
	case OpDelegate:
		return "delegate"
	case OpIncreaseStake:
		return "increase"
	case OpDecreaseStake:
		return "decrease"
	case OpMerge:
		return "merge"
	case OpSplit:
		return "split"
	case OpDeactivate:
		return "deactivate"
	default:
		return "unknown"
	}
}

// Operation is one proposed ledger mutation. Operations exist only
// within the run that produced them.
type Operation struct {
	// Kind selects the operation
	Kind OpKind
	// Account is the stake account acted on (the source for Merge/Split)
	Account Pubkey
	// Validator is the vote account for Delegate
	Validator Pubkey
	// Destination is the merge target or the new account for Split
	Destination Pubkey
	// Amount is the balance moved, where the kind carries one
	Amount uint64
}

// Chain is the ordered list of operations for one validator. Chains for
// different validators are independent; operations within a chain must
// execute and confirm strictly in order.
type Chain struct {
	// Validator is the identity the chain belongs to
	Validator Pubkey
	// Ops are the operations in execution order
	Ops []Operation
}

// Transaction is a batch of operations submitted to the ledger as one
// atomic unit. Operations in one transaction must not have ordering
// dependencies between each other.
type Transaction struct {
	// Payer is the fee payer and staker authority
	Payer Pubkey
	// Ops are the bundled operations
	Ops []Operation
}

// SignedTransaction is a Transaction plus its authority signature.
type SignedTransaction struct {
	Transaction
	// Signature is the payer's signature over the canonical encoding
	Signature []byte
}
