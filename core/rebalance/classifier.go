package rebalance

import (
	"github.com/stakeops/rebalancer/core/types"
	"github.com/stakeops/rebalancer/utils"
)

// Classify produces the eligibility verdict for every validator in the
// snapshot. It is a pure function of its inputs: no lookups, no side
// effects, same verdicts for the same snapshot and policy.
//
// Rules are evaluated in fixed priority order, first match wins:
// blacklist, duplicate identity, delinquency, commission, self stake,
// software version.
func Classify(snapshot []types.ValidatorSnapshot, policy types.Policy) map[types.Pubkey]types.Verdict {
	verdicts := make(map[types.Pubkey]types.Verdict, len(snapshot))

	// A minimum version that fails to parse disables the check; the
	// config loader rejects malformed values before a run starts.
	var minVersion utils.Version
	checkVersion := false
	if policy.MinVersion != "" {
		if v, err := utils.ParseVersion(policy.MinVersion); err == nil {
			minVersion = v
			checkVersion = true
		}
	}

	seen := make(map[types.Pubkey]int, len(snapshot))
	for _, v := range snapshot {
		seen[v.Identity]++
	}

	for _, v := range snapshot {
		verdicts[v.Identity] = classifyOne(&v, policy, seen[v.Identity] > 1, checkVersion, minVersion)
	}

	return verdicts
}

func classifyOne(v *types.ValidatorSnapshot, policy types.Policy, duplicate bool, checkVersion bool, minVersion utils.Version) types.Verdict {
	if policy.Blacklisted(v.Identity) {
		return types.Verdict{Kind: types.VerdictExcluded, Reason: types.ReasonBlacklisted}
	}
	if duplicate {
		return types.Verdict{Kind: types.VerdictExcluded, Reason: types.ReasonDuplicateIdentity}
	}
	if v.Delinquent {
		return types.Verdict{Kind: types.VerdictPoor, Reason: types.ReasonDelinquent}
	}
	if v.Commission > policy.MaxCommission {
		return types.Verdict{Kind: types.VerdictPoor, Reason: types.ReasonCommissionTooHigh}
	}
	if v.SelfStake < policy.MinSelfStake {
		return types.Verdict{Kind: types.VerdictPoor, Reason: types.ReasonInsufficientSelfStake}
	}
	if checkVersion {
		// A version we cannot parse counts as stale: the validator is
		// gossiping something the fleet policy cannot vouch for.
		version, err := utils.ParseVersion(v.Version)
		if err != nil || version.Less(minVersion) {
			return types.Verdict{Kind: types.VerdictPoor, Reason: types.ReasonStaleSoftware}
		}
	}
	return types.Verdict{Kind: types.VerdictEligible}
}
