// Package token keeps ledger resident balances so that a payroll transfer is
// staged in the same transaction as the nullifier it spends.
package token

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/authz"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
)

var (
	// ErrInsufficientFunds is returned when a balance cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for zero or overflowing amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Ledger moves balances between principals.
type Ledger struct {
	minter authz.Principal
	log    log.Logger
}

// Option configures a token Ledger.
type Option func(*Ledger)

// WithMinter allows callers authorized as p to mint.
func WithMinter(p authz.Principal) Option {
	return func(l *Ledger) {
		l.minter = p
	}
}

// WithLogger sets the token logger.
func WithLogger(lg log.Logger) Option {
	return func(l *Ledger) {
		l.log = lg
	}
}

// New returns a token ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{log: log.Root().New("module", "token")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Balance returns the balance of p. Unknown principals hold zero.
func (l *Ledger) Balance(txn *ledger.Txn, p authz.Principal) (uint64, error) {
	var b uint64
	if _, err := txn.GetRLP(ledger.BalanceKey(string(p)), &b); err != nil {
		return 0, err
	}
	return b, nil
}

// Mint credits amount to p.
func (l *Ledger) Mint(txn *ledger.Txn, c authz.Capability, p authz.Principal, amount uint64) error {
	if l.minter == "" {
		return errors.Wrap(authz.ErrAuthorizationFailure, "minting disabled")
	}
	if err := authz.Require(c, l.minter); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	b, err := l.Balance(txn, p)
	if err != nil {
		return err
	}
	if b+amount < b {
		return errors.Wrap(ErrInvalidAmount, "balance overflow")
	}
	l.log.Debug("Minted", "to", p, "amount", amount)
	return txn.PutRLP(ledger.BalanceKey(string(p)), b+amount)
}

// Transfer moves amount from one principal to another. Authorization of the
// sender is the caller's concern.
func (l *Ledger) Transfer(txn *ledger.Txn, from, to authz.Principal, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	fb, err := l.Balance(txn, from)
	if err != nil {
		return err
	}
	if fb < amount {
		return errors.Wrapf(ErrInsufficientFunds, "%s holds %d, needs %d", from, fb, amount)
	}
	if from == to {
		return nil
	}
	tb, err := l.Balance(txn, to)
	if err != nil {
		return err
	}
	if tb+amount < tb {
		return errors.Wrap(ErrInvalidAmount, "balance overflow")
	}
	if err = txn.PutRLP(ledger.BalanceKey(string(from)), fb-amount); err != nil {
		return err
	}
	return txn.PutRLP(ledger.BalanceKey(string(to)), tb+amount)
}
