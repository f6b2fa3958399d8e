package types

// ValidatorSnapshot is the observed state of one validator at the start
// of a run. Snapshots are immutable once fetched; a fresh set is taken
// every run.
type ValidatorSnapshot struct {
	// Identity is the validator's node identity key
	Identity Pubkey
	// VoteAccount is the validator's vote-account key, the delegation target
	VoteAccount Pubkey
	// Commission is the validator's commission percentage (0-100)
	Commission uint8
	// ActiveStake is the total stake currently delegated to the validator
	ActiveStake uint64
	// SelfStake is the amount the validator has staked on itself
	SelfStake uint64
	// Delinquent is set when the ledger reports the validator as not
	// participating in consensus
	Delinquent bool
	// Version is the software version string the validator gossips
	Version string
}

// EpochInfo is the ledger's epoch progress at the time of the snapshot.
type EpochInfo struct {
	// Epoch is the current epoch number
	Epoch uint64
	// SlotIndex is the current slot within the epoch
	SlotIndex uint64
	// SlotsInEpoch is the epoch length in slots
	SlotsInEpoch uint64
}
