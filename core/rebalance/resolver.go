package rebalance

import (
	"sort"

	"github.com/stakeops/rebalancer/core/state"
	"github.com/stakeops/rebalancer/core/types"
	"github.com/stakeops/rebalancer/utils"
)

// Resolver diffs the target allocation against the ledger's current
// stake-account state and emits per-validator operation chains. Chains
// for different validators are independent; operations within one chain
// must execute in the order the resolver assigned.
type Resolver struct {
	snapshot  *state.RunSnapshot
	pool      *state.AccountPool
	reserve   types.Pubkey
	minChange uint64
	logger    *utils.Logger

	validators map[types.Pubkey]*types.ValidatorSnapshot
}

// NewResolver creates a resolver over one run's snapshot and account pool.
func NewResolver(snapshot *state.RunSnapshot, pool *state.AccountPool, reserve types.Pubkey, minChange uint64, logger *utils.Logger) *Resolver {
	validators := make(map[types.Pubkey]*types.ValidatorSnapshot, len(snapshot.Validators))
	for i := range snapshot.Validators {
		v := &snapshot.Validators[i]
		validators[v.Identity] = v
	}
	return &Resolver{
		snapshot:   snapshot,
		pool:       pool,
		reserve:    reserve,
		minChange:  minChange,
		logger:     logger,
		validators: validators,
	}
}

// pendingIncrease is a stake addition deferred until all withdrawals are
// known, so the reserve can be rationed smallest-first.
type pendingIncrease struct {
	identity types.Pubkey
	vote     types.Pubkey
	current  uint64
	delta    uint64
}

// Resolve produces the operation chains for the run. reserveBalance is
// the spendable balance of the reserve account; planned increases beyond
// it are truncated, funding smaller positions first. Deltas that cannot
// be acted on are returned as skipped results rather than silently
// dropped.
func (r *Resolver) Resolve(target types.Allocation, verdicts map[types.Pubkey]types.Verdict, reserveBalance uint64) ([]types.Chain, []types.OperationResult) {
	identities := make([]types.Pubkey, 0, len(target))
	for identity := range target {
		identities = append(identities, identity)
	}
	sort.Slice(identities, func(i, j int) bool { return identities[i].Less(identities[j]) })

	ops := make(map[types.Pubkey][]types.Operation)
	var skipped []types.OperationResult
	var increases []pendingIncrease

	for _, identity := range identities {
		v, ok := r.validators[identity]
		if !ok {
			// Verdicts derive from the snapshot, so this is a caller bug.
			r.logger.Warn("Target for unknown validator", "identity", identity.String())
			continue
		}

		// Reclaim pass: accounts that finished deactivating on a prior
		// run are folded into the reserve before anything else touches
		// this validator.
		for _, acct := range r.snapshot.AccountsFor(v.VoteAccount) {
			if acct.State == types.StakeInactive && acct.Balance > 0 {
				ops[identity] = append(ops[identity], types.Operation{
					Kind:        types.OpMerge,
					Account:     acct.Account,
					Destination: r.reserve,
				})
			}
		}

		current := r.snapshot.DelegatedBalance(v.VoteAccount)
		tgt := target[identity]

		switch {
		case tgt > current:
			increases = append(increases, pendingIncrease{
				identity: identity,
				vote:     v.VoteAccount,
				current:  current,
				delta:    tgt - current,
			})
		case current > tgt:
			withdrawOps, withdrawSkips := r.withdraw(identity, v.VoteAccount, current-tgt, verdicts[identity])
			ops[identity] = append(ops[identity], withdrawOps...)
			skipped = append(skipped, withdrawSkips...)
		}
	}

	// Fund smaller positions first to maximize the number of validators
	// that reach their target before the reserve runs out.
	sort.Slice(increases, func(i, j int) bool {
		if increases[i].current != increases[j].current {
			return increases[i].current < increases[j].current
		}
		return increases[i].identity.Less(increases[j].identity)
	})

	for _, inc := range increases {
		incOps, incSkips := r.increase(inc, &reserveBalance)
		ops[inc.identity] = append(ops[inc.identity], incOps...)
		skipped = append(skipped, incSkips...)
	}

	chains := make([]types.Chain, 0, len(ops))
	for _, identity := range identities {
		if len(ops[identity]) > 0 {
			chains = append(chains, types.Chain{Validator: identity, Ops: ops[identity]})
		}
	}

	return chains, skipped
}

// withdraw emits the operations that draw a validator's delegation down
// by need. Excluded validators are deactivated in full regardless of the
// minimum-change threshold; everyone else is drawn down gradually.
func (r *Resolver) withdraw(identity, vote types.Pubkey, need uint64, verdict types.Verdict) ([]types.Operation, []types.OperationResult) {
	accounts := r.snapshot.AccountsFor(vote)

	if verdict.Kind == types.VerdictExcluded {
		var ops []types.Operation
		for _, acct := range accounts {
			if acct.State == types.StakeActive || acct.State == types.StakeActivating {
				ops = append(ops, types.Operation{Kind: types.OpDeactivate, Account: acct.Account})
			}
		}
		return ops, nil
	}

	if need < r.minChange {
		return nil, []types.OperationResult{{
			Validator: identity,
			Op:        types.Operation{Kind: types.OpDecreaseStake, Validator: vote, Amount: need},
			Outcome:   types.OutcomeSkipped,
			Reason:    "delta below minimum change",
		}}
	}

	var ops []types.Operation
	var skips []types.OperationResult
	for _, acct := range accounts {
		if need == 0 {
			break
		}
		if acct.State != types.StakeActive {
			// Activating or deactivating accounts cannot be drawn down
			// mid-transition; they are picked up on a later run.
			continue
		}
		if acct.Balance <= need || acct.Balance-need < r.minChange {
			// Taking the whole balance, or the remainder would be dust:
			// deactivate instead of leaving a stranded sliver.
			ops = append(ops, types.Operation{Kind: types.OpDeactivate, Account: acct.Account})
			if acct.Balance >= need {
				need = 0
			} else {
				need -= acct.Balance
			}
		} else {
			ops = append(ops, types.Operation{Kind: types.OpDecreaseStake, Account: acct.Account, Amount: need})
			need = 0
		}
	}

	if need >= r.minChange {
		skips = append(skips, types.OperationResult{
			Validator: identity,
			Op:        types.Operation{Kind: types.OpDecreaseStake, Validator: vote, Amount: need},
			Outcome:   types.OutcomeSkipped,
			Reason:    "no withdrawable account available",
		})
	}

	return ops, skips
}

// increase emits the operations that raise a validator's delegation by
// inc.delta, drawing new funds from the reserve. The reserve balance is
// decremented in place so later increases see what remains.
func (r *Resolver) increase(inc pendingIncrease, reserveBalance *uint64) ([]types.Operation, []types.OperationResult) {
	skip := func(reason string) []types.OperationResult {
		return []types.OperationResult{{
			Validator: inc.identity,
			Op:        types.Operation{Kind: types.OpIncreaseStake, Validator: inc.vote, Amount: inc.delta},
			Outcome:   types.OutcomeSkipped,
			Reason:    reason,
		}}
	}

	if inc.delta < r.minChange {
		return nil, skip("delta below minimum change")
	}

	// Prefer topping up an account that is already delegated.
	for _, acct := range r.snapshot.AccountsFor(inc.vote) {
		if acct.State != types.StakeActive && acct.State != types.StakeActivating {
			continue
		}
		amount := inc.delta
		if amount > *reserveBalance {
			amount = *reserveBalance
		}
		if amount < r.minChange {
			return nil, skip("reserve depleted")
		}
		*reserveBalance -= amount
		return []types.Operation{{Kind: types.OpIncreaseStake, Account: acct.Account, Validator: inc.vote, Amount: amount}}, nil
	}

	// No existing delegation: claim a fresh account from the pool.
	handle, err := r.pool.Claim(inc.identity)
	if err != nil {
		return nil, skip("account pool exhausted")
	}

	var ops []types.Operation
	balance := uint64(0)
	if acct, ok := r.snapshot.Account(handle); ok {
		balance = acct.Balance
	}

	amount := inc.delta
	if balance > amount {
		// The pool account holds more than the target; carve the surplus
		// into a second handle so it stays available for future runs. The
		// split must confirm before the delegation, hence the chain order.
		surplus := balance - amount
		if surplus >= r.minChange {
			if spare, err := r.pool.Claim(inc.identity); err == nil {
				ops = append(ops, types.Operation{
					Kind:        types.OpSplit,
					Account:     handle,
					Destination: spare,
					Amount:      surplus,
				})
			} else {
				// No spare handle: delegate the whole balance rather
				// than strand the surplus.
				amount = balance
			}
		} else {
			amount = balance
		}
	} else if balance < amount {
		fund := amount - balance
		if fund > *reserveBalance {
			fund = *reserveBalance
		}
		if balance+fund < r.minChange {
			if relErr := r.pool.Release(handle); relErr != nil {
				r.logger.Warn("Failed to release pool account", "account", handle.String(), "error", relErr)
			}
			return nil, skip("reserve depleted")
		}
		if fund > 0 {
			// The top-up must land before the delegation is submitted.
			ops = append(ops, types.Operation{
				Kind:    types.OpIncreaseStake,
				Account: handle,
				Amount:  fund,
			})
		}
		*reserveBalance -= fund
		amount = balance + fund
	}

	ops = append(ops, types.Operation{
		Kind:      types.OpDelegate,
		Account:   handle,
		Validator: inc.vote,
		Amount:    amount,
	})

	return ops, nil
}
