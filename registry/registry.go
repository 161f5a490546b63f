// Package registry holds company records, employee enrollment and recipient
// bindings. Every mutation is gated on the company admin capability.
package registry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/authz"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
)

var (
	// ErrRecipientNotBound is returned when a recipient hash has no payout
	// principal.
	ErrRecipientNotBound = errors.New("recipient not bound")
	// ErrInvalidCompany is returned for incomplete company registrations.
	ErrInvalidCompany = errors.New("invalid company")
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l log.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// Registry implements the registry entry points on a ledger transaction.
type Registry struct {
	companies Companies
	store     *commitment.Store
	log       log.Logger
}

// New returns a registry enrolling employees in store.
func New(store *commitment.Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		log:   log.Root().New("module", "registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterCompany creates a company with the next sequential id. The caller
// must be authorized as the admin it names.
func (r *Registry) RegisterCompany(txn *ledger.Txn, c authz.Capability, name string, admin, treasury authz.Principal) (*Company, error) {
	if name == "" || admin == "" || treasury == "" {
		return nil, errors.Wrap(ErrInvalidCompany, "name, admin and treasury are required")
	}
	if err := authz.Require(c, admin); err != nil {
		return nil, err
	}
	id, err := r.companies.nextID(txn)
	if err != nil {
		return nil, err
	}
	company := &Company{
		ID:        id,
		Name:      name,
		Admin:     admin,
		Treasury:  treasury,
		Active:    true,
		CreatedAt: txn.Sequence(),
	}
	if err = r.companies.put(txn, company); err != nil {
		return nil, err
	}
	r.log.Info("Company registered", "id", id, "name", name, "admin", admin)
	return company, nil
}

// Company returns the record of company id.
func (r *Registry) Company(txn *ledger.Txn, id uint64) (*Company, error) {
	return r.companies.Get(txn, id)
}

// Deactivate stops a company from enrolling employees and settling payments.
func (r *Registry) Deactivate(txn *ledger.Txn, c authz.Capability, id uint64) error {
	company, err := r.admin(txn, c, id)
	if err != nil {
		return err
	}
	company.Active = false
	r.log.Info("Company deactivated", "id", id)
	return r.companies.put(txn, company)
}

// AddEmployee enrolls employee with commitment cm.
func (r *Registry) AddEmployee(txn *ledger.Txn, c authz.Capability, company uint64, employee string, cm [32]byte) (*commitment.Record, error) {
	return r.store.Create(txn, c, commitment.Key{Company: company, Employee: employee}, cm)
}

// RemoveEmployee removes the commitment of employee.
func (r *Registry) RemoveEmployee(txn *ledger.Txn, c authz.Capability, company uint64, employee string) error {
	return r.store.Remove(txn, c, commitment.Key{Company: company, Employee: employee})
}

// UpdateCommitment replaces the commitment of employee.
func (r *Registry) UpdateCommitment(txn *ledger.Txn, c authz.Capability, company uint64, employee string, cm [32]byte) (*commitment.Record, error) {
	return r.store.Update(txn, c, commitment.Key{Company: company, Employee: employee}, cm)
}

// CommitmentUpdate is one entry of a batch commitment update.
type CommitmentUpdate struct {
	Employee   string
	Commitment [32]byte
}

// UpdateCommitments replaces the commitments of several employees of
// company. The updates share the caller's transaction, so one failure
// discards the whole batch.
func (r *Registry) UpdateCommitments(txn *ledger.Txn, c authz.Capability, company uint64, updates []CommitmentUpdate) ([]*commitment.Record, error) {
	recs := make([]*commitment.Record, 0, len(updates))
	for _, u := range updates {
		rec, err := r.UpdateCommitment(txn, c, company, u.Employee, u.Commitment)
		if err != nil {
			return nil, errors.Wrapf(err, "employee %s", u.Employee)
		}
		recs = append(recs, rec)
	}
	r.log.Debug("Commitments updated", "company", company, "count", len(recs))
	return recs, nil
}

// BindRecipient maps a recipient hash to the principal that receives its
// payments.
func (r *Registry) BindRecipient(txn *ledger.Txn, c authz.Capability, company uint64, recipient common.Hash, payout authz.Principal) error {
	if _, err := r.admin(txn, c, company); err != nil {
		return err
	}
	if payout == "" {
		return errors.New("empty payout principal")
	}
	return txn.PutRLP(ledger.RecipientKey(company, recipient), payout)
}

// ResolveRecipient returns the principal bound to recipient.
func (r *Registry) ResolveRecipient(txn *ledger.Txn, company uint64, recipient common.Hash) (authz.Principal, error) {
	var p authz.Principal
	ok, err := txn.GetRLP(ledger.RecipientKey(company, recipient), &p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Wrapf(ErrRecipientNotBound, "company %d recipient %s", company, recipient.Hex())
	}
	return p, nil
}

func (r *Registry) admin(txn *ledger.Txn, c authz.Capability, id uint64) (*Company, error) {
	company, err := r.companies.Get(txn, id)
	if err != nil {
		return nil, err
	}
	if !company.Active {
		return nil, errors.Wrapf(ErrCompanyInactive, "company %d", id)
	}
	if err = authz.Require(c, company.Admin); err != nil {
		return nil, err
	}
	return company, nil
}

// Treasury returns the treasury principal of an active company.
func (r *Registry) Treasury(txn *ledger.Txn, id uint64) (authz.Principal, error) {
	return r.companies.Treasury(txn, id)
}
