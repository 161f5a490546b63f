// Package settlement admits or rejects payroll payments. One payment is one
// ledger transaction: the proof is verified, the nullifier consumed and the
// funds moved together, or nothing is written.
package settlement

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/authz"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
	"github.com/zkpayroll/go-payroll-settlement/token"
	"github.com/zkpayroll/go-payroll-settlement/types"
)

//go:generate mockgen -destination=mock/SettlementMock.go . Gate,Directory,Transferer

// ErrBatchTooLarge is returned for batches above the configured maximum.
var ErrBatchTooLarge = errors.New("batch too large")

// State is the position of a payment attempt in its state machine.
type State int

// Payment states. Submitted moves to Verified then Settled, or to Rejected.
const (
	Submitted State = iota
	Verified
	Settled
	Rejected
)

func (s State) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Verified:
		return "verified"
	case Settled:
		return "settled"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON receipts.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Gate verifies a proof against the commitment stored for key.
type Gate interface {
	Verify(txn *ledger.Txn, key commitment.Key, proof *types.ZKProof) (codec.Signals, error)
}

// Directory resolves the accounts a payment moves funds between. The
// recipient hash is only a correlation value; turning it into a principal is
// the directory's business.
type Directory interface {
	Treasury(txn *ledger.Txn, company uint64) (authz.Principal, error)
	ResolveRecipient(txn *ledger.Txn, company uint64, recipient common.Hash) (authz.Principal, error)
}

// Transfer is the fund movement of one settled payment.
type Transfer struct {
	Company   uint64
	From      authz.Principal
	To        authz.Principal
	Recipient common.Hash
	Nullifier common.Hash
	Amount    uint64
	Caller    authz.Capability
}

// Transferer stages a transfer in the payment transaction.
type Transferer interface {
	Transfer(txn *ledger.Txn, t Transfer) error
}

// TokenTransferer pays out of the ledger resident token balances. The caller
// must be authorized as the paying treasury.
type TokenTransferer struct {
	Token *token.Ledger
}

// Transfer implements Transferer.
func (tt TokenTransferer) Transfer(txn *ledger.Txn, t Transfer) error {
	if err := authz.Require(t.Caller, t.From); err != nil {
		return err
	}
	return tt.Token.Transfer(txn, t.From, t.To, t.Amount)
}

// PaymentRequest asks to settle one salary payment. An employee is paid at
// most once per Period.
type PaymentRequest struct {
	Company  uint64
	Employee string
	Period   uint32
	Amount   uint64
	Proof    *types.ZKProof
	Caller   authz.Capability
}

// Receipt describes the outcome of a payment attempt.
type Receipt struct {
	ID        uuid.UUID
	Company   uint64
	Employee  string
	Period    uint32
	Amount    uint64
	State     State
	Nullifier common.Hash
	Recipient common.Hash
	Ledger    uint32
	Err       error
}

// Rejection is returned for a payment that did not settle. Stage is the last
// state the payment reached before it was rejected.
type Rejection struct {
	Stage State
	Err   error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("payment rejected after %s: %v", r.Stage, r.Err)
}

// Unwrap returns the cause.
func (r *Rejection) Unwrap() error {
	return r.Err
}

// Cause returns the cause for github.com/pkg/errors.
func (r *Rejection) Cause() error {
	return r.Err
}
