// Package nullifier records which payment nullifiers have been consumed.
//
// A nullifier moves from absent to present exactly once. The check and the
// insert happen inside one ledger transaction, and the ledger executes
// transactions one at a time, so two payments racing on the same nullifier
// cannot both see it unconsumed.
//
// A record remembers the commitment it was spent against. It cannot be
// pruned while that commitment is still stored, live or expired, since an
// admin may restore an expired commitment and the old proof would match it
// again.
package nullifier

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/authz"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
)

var (
	// ErrAlreadyConsumed is returned when a nullifier is reused. It is
	// permanent: the same nullifier never becomes consumable again.
	ErrAlreadyConsumed = errors.New("nullifier already consumed")
	// ErrNotFound is returned when pruning an absent nullifier.
	ErrNotFound = errors.New("nullifier not found")
	// ErrNotExpired is returned when pruning a nullifier that is still live
	// or whose commitment is still stored.
	ErrNotExpired = errors.New("nullifier not expired")
	// ErrPruningDisabled is returned when no pruning authority is configured.
	ErrPruningDisabled = errors.New("nullifier pruning disabled")
)

// Record is the stored consumption of a nullifier.
type Record struct {
	ConsumedAt uint32
	LiveUntil  uint32

	// the commitment the nullifier was spent against
	Company    uint64
	Employee   string
	Commitment [32]byte
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTTL sets the renewal policy.
func WithTTL(p constants.TTLPolicy) Option {
	return func(l *Ledger) {
		l.ttl = p
	}
}

// WithPruningAuthority enables Prune for callers authorized as p.
func WithPruningAuthority(p authz.Principal) Option {
	return func(l *Ledger) {
		l.pruner = p
	}
}

// WithLogger sets the nullifier ledger logger.
func WithLogger(lg log.Logger) Option {
	return func(l *Ledger) {
		l.log = lg
	}
}

// Ledger is the write-once nullifier set.
type Ledger struct {
	ttl    constants.TTLPolicy
	pruner authz.Principal
	log    log.Logger
}

// New returns a nullifier ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		ttl: constants.NullifierTTL,
		log: log.Root().New("module", "nullifier"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsConsumed reports whether n was consumed. An expired record still counts.
func (l *Ledger) IsConsumed(txn *ledger.Txn, n common.Hash) (bool, error) {
	return txn.Has(ledger.NullifierKey(n))
}

// Get returns the consumption record of n.
func (l *Ledger) Get(txn *ledger.Txn, n common.Hash) (*Record, error) {
	rec := new(Record)
	ok, err := txn.GetRLP(ledger.NullifierKey(n), rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "nullifier %s", n.Hex())
	}
	return rec, nil
}

// Consume marks n consumed at the current sequence against the commitment
// stored under key. The record lives at least as long as that commitment.
func (l *Ledger) Consume(txn *ledger.Txn, n common.Hash, key commitment.Key, against *commitment.Record) (*Record, error) {
	consumed, err := l.IsConsumed(txn, n)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, errors.Wrapf(ErrAlreadyConsumed, "nullifier %s", n.Hex())
	}
	now := txn.Sequence()
	rec := &Record{
		ConsumedAt: now,
		LiveUntil:  ledger.Extend(0, now, l.ttl),
		Company:    key.Company,
		Employee:   key.Employee,
		Commitment: against.Commitment,
	}
	if rec.LiveUntil < against.LiveUntil {
		rec.LiveUntil = against.LiveUntil
	}
	if err = txn.PutRLP(ledger.NullifierKey(n), rec); err != nil {
		return nil, err
	}
	l.log.Debug("Nullifier consumed", "nullifier", n.Hex(), "live_until", rec.LiveUntil)
	return rec, nil
}

// Prune removes an expired nullifier once the commitment it was spent
// against is gone or holds a different value. It is a separate policy from
// settlement and requires the configured pruning authority.
func (l *Ledger) Prune(txn *ledger.Txn, c authz.Capability, n common.Hash) error {
	if l.pruner == "" {
		return ErrPruningDisabled
	}
	if err := authz.Require(c, l.pruner); err != nil {
		return err
	}
	rec, err := l.Get(txn, n)
	if err != nil {
		return err
	}
	if !ledger.Expired(rec.LiveUntil, txn.Sequence()) {
		return errors.Wrapf(ErrNotExpired, "nullifier %s live until %d", n.Hex(), rec.LiveUntil)
	}
	replayable, err := spentAgainstStored(txn, rec)
	if err != nil {
		return err
	}
	if replayable {
		return errors.Wrapf(ErrNotExpired, "nullifier %s: commitment of company %d employee %s still stored",
			n.Hex(), rec.Company, rec.Employee)
	}
	l.log.Info("Nullifier pruned", "nullifier", n.Hex(), "consumed_at", rec.ConsumedAt)
	return txn.Delete(ledger.NullifierKey(n))
}

// spentAgainstStored reports whether the commitment rec was consumed against
// is still stored unchanged. Expiry is ignored because Restore revives it.
func spentAgainstStored(txn *ledger.Txn, rec *Record) (bool, error) {
	cm := new(commitment.Record)
	ok, err := txn.GetRLP(ledger.CommitmentKey(rec.Company, rec.Employee), cm)
	if err != nil || !ok {
		return false, err
	}
	return cm.Commitment == rec.Commitment, nil
}
