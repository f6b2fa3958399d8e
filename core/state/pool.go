package state

import (
	"errors"
	"sort"
	"sync"

	"github.com/stakeops/rebalancer/core/types"
)

var (
	// ErrPoolExhausted is returned when no unallocated stake account
	// handle remains for a new delegation.
	ErrPoolExhausted = errors.New("stake account pool exhausted")

	// ErrNotClaimed is returned when releasing an account that was never
	// claimed.
	ErrNotClaimed = errors.New("stake account not claimed")
)

// AccountPool hands out unallocated stake-account handles for the
// duration of one run. Every handle is claimed exclusively: once a
// chain has claimed an account, no other chain can obtain it until the
// claim is released.
type AccountPool struct {
	mu      sync.Mutex
	free    []types.Pubkey
	claimed map[types.Pubkey]types.Pubkey // account -> claiming validator
}

// NewAccountPool creates a pool from the given unallocated accounts.
// Handles are dispensed in ascending key order for determinism.
func NewAccountPool(accounts []types.Pubkey) *AccountPool {
	free := make([]types.Pubkey, len(accounts))
	copy(free, accounts)
	sort.Slice(free, func(i, j int) bool { return free[i].Less(free[j]) })

	return &AccountPool{
		free:    free,
		claimed: make(map[types.Pubkey]types.Pubkey),
	}
}

// Claim checks out the next free account handle for the given validator.
// Returns ErrPoolExhausted when the pool is empty.
func (p *AccountPool) Claim(validator types.Pubkey) (types.Pubkey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return types.Pubkey{}, ErrPoolExhausted
	}

	account := p.free[0]
	p.free = p.free[1:]
	p.claimed[account] = validator

	return account, nil
}

// Release returns a claimed account to the pool. Used when the chain
// that claimed it is abandoned before submission.
func (p *AccountPool) Release(account types.Pubkey) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.claimed[account]; !ok {
		return ErrNotClaimed
	}
	delete(p.claimed, account)

	// Keep the free list sorted so claim order stays deterministic.
	i := sort.Search(len(p.free), func(i int) bool { return account.Less(p.free[i]) })
	p.free = append(p.free, types.Pubkey{})
	copy(p.free[i+1:], p.free[i:])
	p.free[i] = account

	return nil
}

// ClaimedBy returns the validator holding the claim on an account, if any.
func (p *AccountPool) ClaimedBy(account types.Pubkey) (types.Pubkey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.claimed[account]
	return v, ok
}

// Remaining returns the number of free handles.
func (p *AccountPool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.free)
}
