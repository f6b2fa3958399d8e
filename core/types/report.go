package types

import "time"

// Outcome is the final status of one operation after a run.
type Outcome uint8

const (
	// OutcomePending means the operation was never submitted
	OutcomePending Outcome = iota
	// OutcomeSubmitted means the operation was sent but its fate is unknown
	OutcomeSubmitted
	// OutcomeConfirmed means the ledger reached finality on the operation
	OutcomeConfirmed
	// OutcomeFailed means the operation failed; see FailureKind
	OutcomeFailed
	// OutcomeSkipped means the operation was deliberately not executed
	OutcomeSkipped
)

// String returns the string representation of an Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// FailureKind classifies a failed operation.
type FailureKind uint8

const (
	// FailureNone accompanies non-failed outcomes
	FailureNone FailureKind = iota
	// FailureTransient: submission kept failing with network/RPC errors
	FailureTransient
	// FailureRejected: the ledger rejected the transaction outright
	FailureRejected
	// FailureTimeout: confirmation did not arrive before the deadline
	FailureTimeout
)

// String returns the string representation of a FailureKind.
func (f FailureKind) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailureRejected:
		return "rejected"
	case FailureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// OperationResult records how one operation ended up.
type OperationResult struct {
	// Validator is the identity whose chain the operation belonged to
	Validator Pubkey `json:"validator"`
	// Op is the operation itself
	Op Operation `json:"op"`
	// Outcome is the final status
	Outcome Outcome `json:"outcome"`
	// Failure classifies the failure when Outcome is failed
	Failure FailureKind `json:"failure,omitempty"`
	// Reason is a human-readable explanation for failed/skipped outcomes
	Reason string `json:"reason,omitempty"`
	// Attempts is how many submission attempts were made
	Attempts int `json:"attempts"`
	// Signature is the transaction signature when one was obtained
	Signature string `json:"signature,omitempty"`
}

// RunReport is the complete record of one rebalancing run. A run always
// terminates with a report, even under partial failure.
type RunReport struct {
	// Epoch is the ledger epoch the run observed
	Epoch uint64 `json:"epoch"`
	// StartedAt and FinishedAt bound the run
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	// DryRun is set when submission was skipped
	DryRun bool `json:"dryRun"`
	// Budget is the total stake budget the run planned against
	Budget uint64 `json:"budget"`
	// Verdicts holds every validator's verdict, keyed by base58 identity
	Verdicts map[string]Verdict `json:"verdicts"`
	// Targets holds the planned allocation, keyed by base58 identity
	Targets map[string]uint64 `json:"targets"`
	// Notes are informational summary lines
	Notes []string `json:"notes,omitempty"`
	// Warnings are non-fatal conditions the operator should see
	Warnings []string `json:"warnings,omitempty"`
	// Results holds the final status of every operation
	Results []OperationResult `json:"results"`
}

// Confirmed counts operations that reached finality.
func (r *RunReport) Confirmed() int {
	return r.countOutcome(OutcomeConfirmed)
}

// Failed counts operations that ended in failure.
func (r *RunReport) Failed() int {
	return r.countOutcome(OutcomeFailed)
}

// Skipped counts operations that were deliberately not executed.
func (r *RunReport) Skipped() int {
	return r.countOutcome(OutcomeSkipped)
}

func (r *RunReport) countOutcome(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
