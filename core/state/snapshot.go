package state

import (
	"sort"

	"github.com/stakeops/rebalancer/core/types"
)

// RunSnapshot is the immutable view of cluster state a run operates on.
// It is assembled once from the ledger client's answers and indexed for
// the classifier and resolver; nothing in it changes for the run's
// duration.
type RunSnapshot struct {
	Epoch      types.EpochInfo
	Validators []types.ValidatorSnapshot

	accounts       []types.StakeAccountState
	byVoter        map[types.Pubkey][]*types.StakeAccountState
	byAccount      map[types.Pubkey]*types.StakeAccountState
	voteToIdentity map[types.Pubkey]types.Pubkey
}

// NewRunSnapshot builds the indexed snapshot. The reserve account is
// excluded from the delegation indexes so it is never treated as a
// validator's stake.
func NewRunSnapshot(epoch types.EpochInfo, validators []types.ValidatorSnapshot, accounts []types.StakeAccountState, reserve types.Pubkey) *RunSnapshot {
	s := &RunSnapshot{
		Epoch:          epoch,
		Validators:     validators,
		accounts:       accounts,
		byVoter:        make(map[types.Pubkey][]*types.StakeAccountState),
		byAccount:      make(map[types.Pubkey]*types.StakeAccountState),
		voteToIdentity: make(map[types.Pubkey]types.Pubkey, len(validators)),
	}

	for i := range s.accounts {
		acct := &s.accounts[i]
		s.byAccount[acct.Account] = acct
		if acct.Account == reserve {
			continue
		}
		if acct.Delegated() {
			s.byVoter[acct.Voter] = append(s.byVoter[acct.Voter], acct)
		}
	}

	// Deterministic ordering within each voter's account list.
	for voter := range s.byVoter {
		list := s.byVoter[voter]
		sort.Slice(list, func(i, j int) bool { return list[i].Account.Less(list[j].Account) })
	}

	for _, v := range validators {
		s.voteToIdentity[v.VoteAccount] = v.Identity
	}

	return s
}

// Account returns the state of a single stake account.
func (s *RunSnapshot) Account(key types.Pubkey) (*types.StakeAccountState, bool) {
	acct, ok := s.byAccount[key]
	return acct, ok
}

// AccountsFor returns the stake accounts delegated to a vote account,
// in ascending account-key order.
func (s *RunSnapshot) AccountsFor(voter types.Pubkey) []*types.StakeAccountState {
	return s.byVoter[voter]
}

// DelegatedBalance sums the balance currently delegated to a vote
// account across activating and active accounts.
func (s *RunSnapshot) DelegatedBalance(voter types.Pubkey) uint64 {
	var total uint64
	for _, acct := range s.byVoter[voter] {
		if acct.State == types.StakeActive || acct.State == types.StakeActivating {
			total += acct.Balance
		}
	}
	return total
}

// IdentityFor maps a vote account back to its validator identity.
func (s *RunSnapshot) IdentityFor(voter types.Pubkey) (types.Pubkey, bool) {
	id, ok := s.voteToIdentity[voter]
	return id, ok
}

// UnallocatedAccounts returns accounts that are undelegated, inactive
// and not the reserve: the candidates for the run's account pool.
func (s *RunSnapshot) UnallocatedAccounts(reserve types.Pubkey) []types.Pubkey {
	var free []types.Pubkey
	for i := range s.accounts {
		acct := &s.accounts[i]
		if acct.Account == reserve {
			continue
		}
		if !acct.Delegated() && acct.State == types.StakeInactive {
			free = append(free, acct.Account)
		}
	}
	return free
}
