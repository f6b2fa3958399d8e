package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the length in bytes of a ledger public key.
const PubkeySize = 32

// Pubkey is a ledger public key. Identity keys, vote-account keys and
// stake-account keys are all Pubkeys. The zero value means "no key".
type Pubkey [PubkeySize]byte

// ParsePubkey decodes a base58-encoded public key string.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid public key %q: %w", s, err)
	}
	if len(raw) != PubkeySize {
		return pk, fmt.Errorf("invalid public key %q: expected %d bytes, got %d", s, PubkeySize, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// PubkeyFromBytes converts a raw 32-byte slice into a Pubkey.
func PubkeyFromBytes(raw []byte) (Pubkey, error) {
	var pk Pubkey
	if len(raw) != PubkeySize {
		return pk, fmt.Errorf("expected %d bytes, got %d", PubkeySize, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// String returns the base58 encoding of the key.
func (pk Pubkey) String() string {
	return base58.Encode(pk[:])
}

// IsZero reports whether the key is the zero value.
func (pk Pubkey) IsZero() bool {
	return pk == Pubkey{}
}

// Less imposes the canonical ordering on keys: ascending base58 lexical
// order. Used wherever iteration order must be deterministic.
func (pk Pubkey) Less(other Pubkey) bool {
	return pk.String() < other.String()
}

// Policy is the static eligibility and allocation policy for a run.
// It is loaded once before the run starts and never mutated afterwards.
type Policy struct {
	// MaxCommission is the highest commission (0-100) a validator may
	// charge and remain eligible
	MaxCommission uint8
	// MinSelfStake is the minimum amount a validator must have staked
	// on itself
	MinSelfStake uint64
	// MinVersion is the oldest acceptable software version; empty
	// disables the version check
	MinVersion string
	// Blacklist is the set of identity keys that are never delegated to
	Blacklist map[Pubkey]struct{}
	// MaxConcentration is the largest fraction (0.0-1.0) of the budget
	// a single validator may hold
	MaxConcentration float64
	// MinStakeChange is the smallest delta worth acting on; smaller
	// deltas are left alone
	MinStakeChange uint64
}

// Blacklisted reports whether the identity is on the policy blacklist.
func (p *Policy) Blacklisted(identity Pubkey) bool {
	_, ok := p.Blacklist[identity]
	return ok
}

// VerdictKind is the eligibility class assigned to a validator.
type VerdictKind uint8

const (
	// VerdictEligible means the validator may receive new stake
	VerdictEligible VerdictKind = iota
	// VerdictPoor means the validator keeps nothing new; its stake is
	// drawn down gradually
	VerdictPoor
	// VerdictExcluded means the validator's stake is withdrawn in full
	VerdictExcluded
)

// String returns the string representation of a VerdictKind.
func (k VerdictKind) String() string {
	switch k {
	case VerdictEligible:
		return "eligible"
	case VerdictPoor:
		return "poor"
	case VerdictExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Reason explains a non-eligible verdict.
type Reason uint8

const (
	// ReasonNone accompanies an eligible verdict
	ReasonNone Reason = iota
	// ReasonDelinquent: the ledger flags the validator as not voting
	ReasonDelinquent
	// ReasonCommissionTooHigh: commission above the policy maximum
	ReasonCommissionTooHigh
	// ReasonInsufficientSelfStake: self stake below the policy minimum
	ReasonInsufficientSelfStake
	// ReasonBlacklisted: identity is on the policy blacklist
	ReasonBlacklisted
	// ReasonStaleSoftware: software version older than the policy minimum
	ReasonStaleSoftware
	// ReasonDuplicateIdentity: the identity appears more than once in
	// the cluster snapshot
	ReasonDuplicateIdentity
)

// String returns the string representation of a Reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDelinquent:
		return "delinquent"
	case ReasonCommissionTooHigh:
		return "commission too high"
	case ReasonInsufficientSelfStake:
		return "insufficient self stake"
	case ReasonBlacklisted:
		return "blacklisted"
	case ReasonStaleSoftware:
		return "stale software"
	case ReasonDuplicateIdentity:
		return "duplicate identity"
	default:
		return "unknown"
	}
}

// Verdict is the per-validator eligibility result for one run.
type Verdict struct {
	Kind   VerdictKind
	Reason Reason
}

// Eligible reports whether the verdict permits new stake.
func (v Verdict) Eligible() bool {
	return v.Kind == VerdictEligible
}

// String returns "eligible" or "<kind> (<reason>)".
func (v Verdict) String() string {
	if v.Kind == VerdictEligible {
		return v.Kind.String()
	}
	return fmt.Sprintf("%s (%s)", v.Kind, v.Reason)
}

// Allocation maps validator identity keys to their target stake amount
// for the run, in the ledger's native unit.
type Allocation map[Pubkey]uint64

// Total returns the sum of all targets.
func (a Allocation) Total() uint64 {
	var total uint64
	for _, amount := range a {
		total += amount
	}
	return total
}
