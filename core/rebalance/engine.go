package rebalance

import (
	"context"
	"fmt"
	"time"

	"github.com/stakeops/rebalancer/core/state"
	"github.com/stakeops/rebalancer/core/types"
	"github.com/stakeops/rebalancer/utils"
)

// minReserveBalance is the amount always left behind in the reserve
// account so it never closes.
const minReserveBalance = 1

// Engine runs the snapshot -> classify -> plan -> resolve -> execute
// pipeline once per invocation. It holds no state across runs; the
// ledger's own stake accounts are the only memory the system has.
type Engine struct {
	client   LedgerClient
	executor *Executor
	reports  ReportSink
	policy   types.Policy
	reserve  types.Pubkey
	logger   *utils.Logger
}

// RunOptions parameterizes a single run.
type RunOptions struct {
	// Budget is the total stake budget to allocate
	Budget uint64
	// DryRun computes the plan and operations but submits nothing
	DryRun bool
	// Timeout bounds the execution phase; zero means no bound
	Timeout time.Duration
}

// NewEngine creates a run engine.
func NewEngine(client LedgerClient, executor *Executor, reports ReportSink, policy types.Policy, reserve types.Pubkey, logger *utils.Logger) *Engine {
	return &Engine{
		client:   client,
		executor: executor,
		reports:  reports,
		policy:   policy,
		reserve:  reserve,
		logger:   logger,
	}
}

// Run executes one full rebalancing pass and always returns a complete
// report when it returns nil error. Snapshot failures abort the run
// before any ledger mutation; execution failures are isolated per chain
// and land in the report instead.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*types.RunReport, error) {
	report := &types.RunReport{
		StartedAt: time.Now(),
		DryRun:    opts.DryRun,
		Budget:    opts.Budget,
	}

	epoch, err := e.client.GetEpochInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch epoch info: %w", err)
	}
	report.Epoch = epoch.Epoch

	validators, err := e.client.GetValidators(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch validator set: %w", err)
	}

	accounts, err := e.client.GetStakeAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stake accounts: %w", err)
	}

	e.logger.Info("Cluster snapshot taken",
		"epoch", epoch.Epoch,
		"validators", len(validators),
		"stakeAccounts", len(accounts))

	snapshot := state.NewRunSnapshot(epoch, validators, accounts, e.reserve)

	reserveAcct, ok := snapshot.Account(e.reserve)
	if !ok {
		return nil, fmt.Errorf("reserve account %s not found in snapshot", e.reserve)
	}
	reserveBalance := uint64(0)
	if reserveAcct.Balance > minReserveBalance {
		reserveBalance = reserveAcct.Balance - minReserveBalance
	}

	// Classify.
	verdicts := Classify(validators, e.policy)
	report.Verdicts = make(map[string]types.Verdict, len(verdicts))
	eligible := 0
	for identity, verdict := range verdicts {
		report.Verdicts[identity.String()] = verdict
		if verdict.Eligible() {
			eligible++
		}
		if !verdict.Eligible() {
			e.logger.Debug("Validator not eligible",
				"identity", identity.String(),
				"verdict", verdict.String())
		}
	}
	e.logger.Info("Validators classified",
		"total", len(verdicts),
		"eligible", eligible)
	if eligible == 0 {
		report.Warnings = append(report.Warnings, "no eligible validators; all targets are zero")
	}
	if opts.Budget == 0 {
		report.Warnings = append(report.Warnings, "zero budget; all targets are zero")
	}

	// Plan.
	alloc := Plan(verdicts, opts.Budget, e.policy.MaxConcentration)
	report.Targets = make(map[string]uint64, len(alloc))
	for identity, amount := range alloc {
		report.Targets[identity.String()] = amount
	}
	report.Notes = append(report.Notes,
		fmt.Sprintf("budget: %s", utils.FormatAmount(opts.Budget)),
		fmt.Sprintf("allocated: %s across %d validators", utils.FormatAmount(alloc.Total()), eligible),
		fmt.Sprintf("reserve spendable: %s", utils.FormatAmount(reserveBalance)),
	)

	// Resolve.
	pool := state.NewAccountPool(snapshot.UnallocatedAccounts(e.reserve))
	resolver := NewResolver(snapshot, pool, e.reserve, e.policy.MinStakeChange, e.logger)
	chains, skipped := resolver.Resolve(alloc, verdicts, reserveBalance)
	report.Results = append(report.Results, skipped...)

	opCount := 0
	for _, chain := range chains {
		opCount += len(chain.Ops)
	}
	e.logger.Info("Operations resolved",
		"chains", len(chains),
		"operations", opCount,
		"skipped", len(skipped))

	// Execute.
	if opts.DryRun {
		for _, chain := range chains {
			for _, op := range chain.Ops {
				report.Results = append(report.Results, types.OperationResult{
					Validator: chain.Validator,
					Op:        op,
					Outcome:   types.OutcomeSkipped,
					Reason:    "dry run",
				})
			}
		}
	} else if len(chains) > 0 {
		execCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			execCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		report.Results = append(report.Results, e.executor.Execute(execCtx, chains)...)
	}

	report.FinishedAt = time.Now()
	observeRun(report)

	if e.reports != nil {
		if err := e.reports.SaveReport(report); err != nil {
			e.logger.Warn("Failed to persist run report", "error", err)
		}
	}

	e.logger.Info("Run finished",
		"epoch", report.Epoch,
		"dryRun", report.DryRun,
		"confirmed", report.Confirmed(),
		"failed", report.Failed(),
		"skipped", report.Skipped(),
		"duration", report.FinishedAt.Sub(report.StartedAt).String())

	return report, nil
}
