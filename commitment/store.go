// Package commitment keeps one salary commitment record per employee.
//
// Records are addressed by (company, employee) and never aggregated, so each
// operation reads and writes a single ledger entry besides the admin lookup.
// Expiry is counted in ledger sequence numbers.
package commitment

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/authz"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
)

var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("commitment not found")
	// ErrAlreadyExists is returned by Create on an occupied key.
	ErrAlreadyExists = errors.New("commitment already exists")
	// ErrExpired is returned when the record outlived its TTL and must be
	// restored before use.
	ErrExpired = errors.New("commitment expired")
	// ErrInvalidKey is returned for an empty employee identity.
	ErrInvalidKey = errors.New("invalid commitment key")
)

// Key addresses one employee's commitment.
type Key struct {
	Company  uint64
	Employee string
}

func (k Key) ledgerKey() []byte {
	return ledger.CommitmentKey(k.Company, k.Employee)
}

// Record is the stored commitment with its lifecycle metadata.
type Record struct {
	Commitment [32]byte
	CreatedAt  uint32
	UpdatedAt  uint32
	Version    uint32
	LiveUntil  uint32
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the renewal policy.
func WithTTL(p constants.TTLPolicy) Option {
	return func(s *Store) {
		s.ttl = p
	}
}

// WithLogger sets the store logger.
func WithLogger(l log.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Store implements the commitment lifecycle on a ledger transaction.
type Store struct {
	admins authz.AdminResolver
	ttl    constants.TTLPolicy
	log    log.Logger
}

// NewStore returns a store that authorizes mutations against the company
// admins resolved by admins.
func NewStore(admins authz.AdminResolver, opts ...Option) *Store {
	s := &Store{
		admins: admins,
		ttl:    constants.CommitmentTTL,
		log:    log.Root().New("module", "commitment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new record at version 0. A key whose record expired but
// was never removed is still occupied.
func (s *Store) Create(txn *ledger.Txn, c authz.Capability, key Key, cm [32]byte) (*Record, error) {
	if err := s.authorize(txn, c, key); err != nil {
		return nil, err
	}
	_, ok, err := s.load(txn, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, errors.Wrapf(ErrAlreadyExists, "company %d employee %s", key.Company, key.Employee)
	}
	now := txn.Sequence()
	rec := &Record{
		Commitment: cm,
		CreatedAt:  now,
		UpdatedAt:  now,
		LiveUntil:  ledger.Extend(0, now, s.ttl),
	}
	if err = txn.PutRLP(key.ledgerKey(), rec); err != nil {
		return nil, err
	}
	s.log.Debug("Commitment created", "company", key.Company, "employee", key.Employee, "live_until", rec.LiveUntil)
	return rec, nil
}

// Update replaces the commitment, bumps the version and renews the TTL.
func (s *Store) Update(txn *ledger.Txn, c authz.Capability, key Key, cm [32]byte) (*Record, error) {
	if err := s.authorize(txn, c, key); err != nil {
		return nil, err
	}
	rec, err := s.live(txn, key)
	if err != nil {
		return nil, err
	}
	now := txn.Sequence()
	rec.Commitment = cm
	rec.Version++
	rec.UpdatedAt = now
	rec.LiveUntil = ledger.Extend(rec.LiveUntil, now, s.ttl)
	if err = txn.PutRLP(key.ledgerKey(), rec); err != nil {
		return nil, err
	}
	s.log.Debug("Commitment updated", "company", key.Company, "employee", key.Employee, "version", rec.Version)
	return rec, nil
}

// Remove deletes the record, expired or not.
func (s *Store) Remove(txn *ledger.Txn, c authz.Capability, key Key) error {
	if err := s.authorize(txn, c, key); err != nil {
		return err
	}
	_, ok, err := s.load(txn, key)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "company %d employee %s", key.Company, key.Employee)
	}
	s.log.Debug("Commitment removed", "company", key.Company, "employee", key.Employee)
	return txn.Delete(key.ledgerKey())
}

// Get returns the live record for key.
func (s *Store) Get(txn *ledger.Txn, key Key) (*Record, error) {
	return s.live(txn, key)
}

// Touch renews the TTL of a live record when a payment references it.
func (s *Store) Touch(txn *ledger.Txn, key Key) (*Record, error) {
	rec, _, err := s.bump(txn, key)
	return rec, err
}

// Refresh renews the TTL of a live record and reports whether anything was
// written. It needs no authorization since it cannot change the commitment.
func (s *Store) Refresh(txn *ledger.Txn, key Key) (bool, error) {
	_, changed, err := s.bump(txn, key)
	return changed, err
}

// Restore revives an expired record. Live records just get the usual renewal.
func (s *Store) Restore(txn *ledger.Txn, c authz.Capability, key Key) (*Record, error) {
	if err := s.authorize(txn, c, key); err != nil {
		return nil, err
	}
	rec, ok, err := s.load(txn, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "company %d employee %s", key.Company, key.Employee)
	}
	next := ledger.Extend(rec.LiveUntil, txn.Sequence(), s.ttl)
	if next == rec.LiveUntil {
		return rec, nil
	}
	rec.LiveUntil = next
	if err = txn.PutRLP(key.ledgerKey(), rec); err != nil {
		return nil, err
	}
	s.log.Info("Commitment restored", "company", key.Company, "employee", key.Employee, "live_until", next)
	return rec, nil
}

func (s *Store) bump(txn *ledger.Txn, key Key) (*Record, bool, error) {
	rec, err := s.live(txn, key)
	if err != nil {
		return nil, false, err
	}
	next := ledger.Extend(rec.LiveUntil, txn.Sequence(), s.ttl)
	if next == rec.LiveUntil {
		return rec, false, nil
	}
	rec.LiveUntil = next
	if err = txn.PutRLP(key.ledgerKey(), rec); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *Store) authorize(txn *ledger.Txn, c authz.Capability, key Key) error {
	if key.Employee == "" {
		return ErrInvalidKey
	}
	return authz.RequireAdmin(txn, s.admins, c, key.Company)
}

func (s *Store) load(txn *ledger.Txn, key Key) (*Record, bool, error) {
	if key.Employee == "" {
		return nil, false, ErrInvalidKey
	}
	rec := new(Record)
	ok, err := txn.GetRLP(key.ledgerKey(), rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *Store) live(txn *ledger.Txn, key Key) (*Record, error) {
	rec, ok, err := s.load(txn, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "company %d employee %s", key.Company, key.Employee)
	}
	if ledger.Expired(rec.LiveUntil, txn.Sequence()) {
		return nil, errors.Wrapf(ErrExpired, "company %d employee %s live until %d", key.Company, key.Employee, rec.LiveUntil)
	}
	return rec, nil
}
