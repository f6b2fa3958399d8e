package rebalance

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/stakeops/rebalancer/core/types"
	"github.com/stakeops/rebalancer/utils"
)

// ExecutorConfig holds the executor's retry and batching policy.
type ExecutorConfig struct {
	// MaxAttempts bounds submission attempts per transaction
	MaxAttempts int
	// RetryBackoff is the delay between submission attempts
	RetryBackoff time.Duration
	// ConfirmTimeout bounds confirmation polling per transaction
	ConfirmTimeout time.Duration
	// PollInterval is the delay between confirmation polls
	PollInterval time.Duration
	// MaxOpsPerTransaction caps the batch size for independent operations
	MaxOpsPerTransaction int
}

// DefaultExecutorConfig returns the default executor policy.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxAttempts:          3,
		RetryBackoff:         2 * time.Second,
		ConfirmTimeout:       90 * time.Second,
		PollInterval:         3 * time.Second,
		MaxOpsPerTransaction: 8,
	}
}

// Executor drives operation chains through the ledger. Chains for
// different validators run concurrently; operations within one chain run
// strictly in resolver order, and a failed step aborts the rest of its
// chain. Single-step chains have no ordering dependencies between each
// other, so their operations are batched into shared transactions.
type Executor struct {
	client LedgerClient
	signer Signer
	cfg    ExecutorConfig
	logger *utils.Logger

	submitted *atomic.Int64
	confirmed *atomic.Int64
	failed    *atomic.Int64
}

// NewExecutor creates an executor.
func NewExecutor(client LedgerClient, signer Signer, cfg ExecutorConfig, logger *utils.Logger) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxOpsPerTransaction < 1 {
		cfg.MaxOpsPerTransaction = 1
	}
	return &Executor{
		client:    client,
		signer:    signer,
		cfg:       cfg,
		logger:    logger,
		submitted: atomic.NewInt64(0),
		confirmed: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
	}
}

// txOutcome is the shared fate of every operation in one transaction.
type txOutcome struct {
	outcome   types.Outcome
	failure   types.FailureKind
	reason    string
	attempts  int
	signature string
}

// resultCollector gathers operation results from concurrent chains.
type resultCollector struct {
	mu      sync.Mutex
	results []types.OperationResult
}

func (c *resultCollector) add(results ...types.OperationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, results...)
}

// Execute runs every chain to completion and returns the final status of
// every operation. It never returns early: a canceled context marks the
// unfinished operations failed rather than dropping them.
func (e *Executor) Execute(ctx context.Context, chains []types.Chain) []types.OperationResult {
	collector := &resultCollector{}

	var singles []types.Chain
	var multis []types.Chain
	for _, chain := range chains {
		if len(chain.Ops) == 1 {
			singles = append(singles, chain)
		} else if len(chain.Ops) > 1 {
			multis = append(multis, chain)
		}
	}

	var wg sync.WaitGroup

	// Independent single-step chains share transactions, up to the
	// configured batch size.
	for start := 0; start < len(singles); start += e.cfg.MaxOpsPerTransaction {
		end := start + e.cfg.MaxOpsPerTransaction
		if end > len(singles) {
			end = len(singles)
		}
		batch := singles[start:end]

		wg.Add(1)
		go func() {
			defer wg.Done()
			e.executeBatch(ctx, batch, collector)
		}()
	}

	for _, chain := range multis {
		chain := chain
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.executeChain(ctx, chain, collector)
		}()
	}

	wg.Wait()
	return collector.results
}

// executeBatch submits one transaction carrying the single operation of
// each chain in the batch. All operations share the transaction's fate.
func (e *Executor) executeBatch(ctx context.Context, batch []types.Chain, collector *resultCollector) {
	ops := make([]types.Operation, len(batch))
	for i, chain := range batch {
		ops[i] = chain.Ops[0]
	}

	outcome := e.submitAndConfirm(ctx, ops)

	results := make([]types.OperationResult, len(batch))
	for i, chain := range batch {
		results[i] = types.OperationResult{
			Validator: chain.Validator,
			Op:        chain.Ops[0],
			Outcome:   outcome.outcome,
			Failure:   outcome.failure,
			Reason:    outcome.reason,
			Attempts:  outcome.attempts,
			Signature: outcome.signature,
		}
	}
	collector.add(results...)
}

// executeChain runs one multi-step chain in order. A failed step aborts
// the remaining steps: they would operate on an account whose state the
// failure left undefined.
func (e *Executor) executeChain(ctx context.Context, chain types.Chain, collector *resultCollector) {
	for i, op := range chain.Ops {
		outcome := e.submitAndConfirm(ctx, []types.Operation{op})
		collector.add(types.OperationResult{
			Validator: chain.Validator,
			Op:        op,
			Outcome:   outcome.outcome,
			Failure:   outcome.failure,
			Reason:    outcome.reason,
			Attempts:  outcome.attempts,
			Signature: outcome.signature,
		})

		if outcome.outcome != types.OutcomeConfirmed {
			for _, rest := range chain.Ops[i+1:] {
				collector.add(types.OperationResult{
					Validator: chain.Validator,
					Op:        rest,
					Outcome:   types.OutcomeSkipped,
					Reason:    "earlier operation in chain failed",
				})
			}
			return
		}
	}
}

// submitAndConfirm drives one transaction through the operation state
// machine: sign, submit with bounded retries, then poll to finality.
func (e *Executor) submitAndConfirm(ctx context.Context, ops []types.Operation) txOutcome {
	tx := types.Transaction{Payer: e.signer.Payer(), Ops: ops}
	signed, err := e.signer.Sign(tx)
	if err != nil {
		e.failed.Inc()
		return txOutcome{
			outcome: types.OutcomeFailed,
			failure: types.FailureRejected,
			reason:  "signing failed: " + err.Error(),
		}
	}

	signature, attempts, failure, err := e.submitWithRetry(ctx, signed)
	if err != nil {
		e.failed.Inc()
		return txOutcome{
			outcome:  types.OutcomeFailed,
			failure:  failure,
			reason:   err.Error(),
			attempts: attempts,
		}
	}
	e.submitted.Inc()

	outcome := e.awaitConfirmation(ctx, signature)
	outcome.attempts = attempts
	outcome.signature = signature

	if outcome.outcome == types.OutcomeConfirmed {
		e.confirmed.Inc()
	} else {
		e.failed.Inc()
	}
	return outcome
}

// submitWithRetry retries transient submission failures with backoff.
// Ledger rejections are final and returned immediately.
func (e *Executor) submitWithRetry(ctx context.Context, signed types.SignedTransaction) (string, int, types.FailureKind, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		signature, err := e.client.SubmitTransaction(ctx, signed)
		if err == nil {
			return signature, attempt, types.FailureNone, nil
		}
		if errors.Is(err, ErrTransactionRejected) {
			return "", attempt, types.FailureRejected, err
		}
		lastErr = err
		e.logger.Warn("Transaction submission failed",
			"attempt", attempt,
			"maxAttempts", e.cfg.MaxAttempts,
			"error", err)

		if attempt < e.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return "", attempt, types.FailureTimeout, ctx.Err()
			case <-time.After(e.cfg.RetryBackoff):
			}
		}
	}
	return "", e.cfg.MaxAttempts, types.FailureTransient, lastErr
}

// awaitConfirmation polls the signature until finality, rejection or
// timeout. Poll errors are tolerated: the transaction may confirm anyway.
func (e *Executor) awaitConfirmation(ctx context.Context, signature string) txOutcome {
	deadline := time.NewTimer(e.cfg.ConfirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := e.client.PollConfirmation(ctx, signature)
		if err != nil {
			e.logger.Debug("Confirmation poll failed", "signature", signature, "error", err)
		} else {
			switch status {
			case ConfirmationFinalized:
				return txOutcome{outcome: types.OutcomeConfirmed}
			case ConfirmationFailed:
				return txOutcome{
					outcome: types.OutcomeFailed,
					failure: types.FailureRejected,
					reason:  "transaction failed on ledger",
				}
			}
		}

		select {
		case <-ctx.Done():
			return txOutcome{
				outcome: types.OutcomeFailed,
				failure: types.FailureTimeout,
				reason:  "run canceled while awaiting confirmation",
			}
		case <-deadline.C:
			return txOutcome{
				outcome: types.OutcomeFailed,
				failure: types.FailureTimeout,
				reason:  "confirmation timeout elapsed",
			}
		case <-ticker.C:
		}
	}
}

// Counters returns the executor's running totals: submitted, confirmed
// and failed transactions.
func (e *Executor) Counters() (int64, int64, int64) {
	return e.submitted.Load(), e.confirmed.Load(), e.failed.Load()
}
