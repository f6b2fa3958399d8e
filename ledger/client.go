// Package ledger implements the JSON-RPC client for the external
// ledger. It translates between wire payloads and the core types, and
// maps ledger rejection codes onto the rebalance error taxonomy.
// Retry and confirmation policy live in the executor, not here.
package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/atomic"

	"github.com/stakeops/rebalancer/core/rebalance"
	"github.com/stakeops/rebalancer/core/types"
)

// Ledger error codes that mark a submission as rejected rather than
// transiently failed.
const (
	codeInvalidTransaction = -32002
	codeInsufficientFunds  = -32003
	codeAccountInUse       = -32004
)

// Client talks JSON-RPC 2.0 over HTTP to a ledger node. Safe for
// concurrent use; the executor calls it from many chains at once.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   *atomic.Uint64
}

// NewClient creates a ledger client for the given RPC endpoint. The
// timeout bounds each individual request.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		nextID:   atomic.NewUint64(0),
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Inc(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s request returned status %d", method, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}

	return nil
}

type wireValidator struct {
	Identity    string `json:"identity"`
	VoteAccount string `json:"voteAccount"`
	Commission  uint8  `json:"commission"`
	ActiveStake uint64 `json:"activeStake"`
	SelfStake   uint64 `json:"selfStake"`
	Delinquent  bool   `json:"delinquent"`
	Version     string `json:"version"`
}

// GetValidators returns the current validator set.
func (c *Client) GetValidators(ctx context.Context) ([]types.ValidatorSnapshot, error) {
	var wire []wireValidator
	if err := c.call(ctx, "getValidators", nil, &wire); err != nil {
		return nil, err
	}

	validators := make([]types.ValidatorSnapshot, 0, len(wire))
	for _, v := range wire {
		identity, err := types.ParsePubkey(v.Identity)
		if err != nil {
			return nil, fmt.Errorf("invalid validator identity %q: %w", v.Identity, err)
		}
		vote, err := types.ParsePubkey(v.VoteAccount)
		if err != nil {
			return nil, fmt.Errorf("invalid vote account %q: %w", v.VoteAccount, err)
		}
		validators = append(validators, types.ValidatorSnapshot{
			Identity:    identity,
			VoteAccount: vote,
			Commission:  v.Commission,
			ActiveStake: v.ActiveStake,
			SelfStake:   v.SelfStake,
			Delinquent:  v.Delinquent,
			Version:     v.Version,
		})
	}

	return validators, nil
}

type wireStakeAccount struct {
	Account string `json:"account"`
	Voter   string `json:"voter,omitempty"`
	Balance uint64 `json:"balance"`
	State   string `json:"state"`
}

var wireStates = map[string]types.ActivationState{
	"inactive":     types.StakeInactive,
	"activating":   types.StakeActivating,
	"active":       types.StakeActive,
	"deactivating": types.StakeDeactivating,
}

// GetStakeAccounts returns the stake accounts under the staker
// authority, delegated or not.
func (c *Client) GetStakeAccounts(ctx context.Context) ([]types.StakeAccountState, error) {
	var wire []wireStakeAccount
	if err := c.call(ctx, "getStakeAccounts", nil, &wire); err != nil {
		return nil, err
	}

	accounts := make([]types.StakeAccountState, 0, len(wire))
	for _, a := range wire {
		account, err := types.ParsePubkey(a.Account)
		if err != nil {
			return nil, fmt.Errorf("invalid stake account %q: %w", a.Account, err)
		}
		var voter types.Pubkey
		if a.Voter != "" {
			voter, err = types.ParsePubkey(a.Voter)
			if err != nil {
				return nil, fmt.Errorf("invalid voter %q: %w", a.Voter, err)
			}
		}
		state, ok := wireStates[a.State]
		if !ok {
			return nil, fmt.Errorf("unknown stake account state %q", a.State)
		}
		accounts = append(accounts, types.StakeAccountState{
			Account: account,
			Voter:   voter,
			Balance: a.Balance,
			State:   state,
		})
	}

	return accounts, nil
}

type wireEpochInfo struct {
	Epoch        uint64 `json:"epoch"`
	SlotIndex    uint64 `json:"slotIndex"`
	SlotsInEpoch uint64 `json:"slotsInEpoch"`
}

// GetEpochInfo returns the ledger's epoch progress.
func (c *Client) GetEpochInfo(ctx context.Context) (types.EpochInfo, error) {
	var wire wireEpochInfo
	if err := c.call(ctx, "getEpochInfo", nil, &wire); err != nil {
		return types.EpochInfo{}, err
	}

	return types.EpochInfo{
		Epoch:        wire.Epoch,
		SlotIndex:    wire.SlotIndex,
		SlotsInEpoch: wire.SlotsInEpoch,
	}, nil
}

type wireOperation struct {
	Kind        string `json:"kind"`
	Account     string `json:"account"`
	Validator   string `json:"validator,omitempty"`
	Destination string `json:"destination,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
}

type wireTransaction struct {
	Payer     string          `json:"payer"`
	Ops       []wireOperation `json:"ops"`
	Signature string          `json:"signature"`
}

// SubmitTransaction submits a signed transaction and returns the
// signature string used to poll confirmation. Rejection codes wrap
// rebalance.ErrTransactionRejected so the executor will not retry them.
func (c *Client) SubmitTransaction(ctx context.Context, tx types.SignedTransaction) (string, error) {
	wire := wireTransaction{
		Payer:     tx.Payer.String(),
		Ops:       make([]wireOperation, 0, len(tx.Ops)),
		Signature: base64.StdEncoding.EncodeToString(tx.Signature),
	}
	for _, op := range tx.Ops {
		w := wireOperation{
			Kind:    op.Kind.String(),
			Account: op.Account.String(),
			Amount:  op.Amount,
		}
		if !op.Validator.IsZero() {
			w.Validator = op.Validator.String()
		}
		if !op.Destination.IsZero() {
			w.Destination = op.Destination.String()
		}
		wire.Ops = append(wire.Ops, w)
	}

	var signature string
	if err := c.call(ctx, "submitTransaction", []interface{}{wire}, &signature); err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && isRejectionCode(rpcErr.Code) {
			return "", fmt.Errorf("%w: %s", rebalance.ErrTransactionRejected, rpcErr.Message)
		}
		return "", err
	}

	return signature, nil
}

// isRejectionCode reports whether the ledger error code marks a final
// rejection rather than a transient failure.
func isRejectionCode(code int) bool {
	switch code {
	case codeInvalidTransaction, codeInsufficientFunds, codeAccountInUse:
		return true
	}
	return false
}

type wireSignatureStatus struct {
	Status string `json:"status"`
}

// PollConfirmation reports the confirmation status of a signature.
func (c *Client) PollConfirmation(ctx context.Context, signature string) (rebalance.ConfirmationStatus, error) {
	var wire wireSignatureStatus
	if err := c.call(ctx, "getSignatureStatus", []interface{}{signature}, &wire); err != nil {
		return rebalance.ConfirmationPending, err
	}

	switch wire.Status {
	case "finalized":
		return rebalance.ConfirmationFinalized, nil
	case "failed":
		return rebalance.ConfirmationFailed, nil
	case "pending", "processed":
		return rebalance.ConfirmationPending, nil
	default:
		return rebalance.ConfirmationPending, fmt.Errorf("unknown signature status %q", wire.Status)
	}
}
