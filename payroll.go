// Package payroll settles confidential salary payments. An employer
// registers a salary commitment per employee and later pays against it with
// a Groth16 proof; the proof's nullifier is consumed so no payment settles
// twice.
//
// Service wires the ledger resident components together and runs every
// operation as one ledger transaction.
package payroll

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/authz"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/keeper"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
	"github.com/zkpayroll/go-payroll-settlement/loaders"
	"github.com/zkpayroll/go-payroll-settlement/nullifier"
	"github.com/zkpayroll/go-payroll-settlement/prover"
	"github.com/zkpayroll/go-payroll-settlement/registry"
	"github.com/zkpayroll/go-payroll-settlement/settlement"
	"github.com/zkpayroll/go-payroll-settlement/token"
	"github.com/zkpayroll/go-payroll-settlement/verification"
)

// VerificationKeyName is the name the verifying key is loaded under.
const VerificationKeyName = prover.VerificationKeyJSON

type options struct {
	commitmentTTL constants.TTLPolicy
	nullifierTTL  constants.TTLPolicy
	minter        authz.Principal
	pruner        authz.Principal
	rapidsnark    bool
	transferer    settlement.Transferer
	ledgerOpts    []ledger.Option
	log           log.Logger
}

// Option configures a Service.
type Option func(*options)

// WithCommitmentTTL sets the commitment TTL policy.
func WithCommitmentTTL(p constants.TTLPolicy) Option {
	return func(o *options) { o.commitmentTTL = p }
}

// WithNullifierTTL sets the nullifier TTL policy.
func WithNullifierTTL(p constants.TTLPolicy) Option {
	return func(o *options) { o.nullifierTTL = p }
}

// WithMinter allows p to mint payroll tokens.
func WithMinter(p authz.Principal) Option {
	return func(o *options) { o.minter = p }
}

// WithPruningAuthority allows p to prune expired nullifiers.
func WithPruningAuthority(p authz.Principal) Option {
	return func(o *options) { o.pruner = p }
}

// WithRapidsnarkVerifier checks pairings with go-rapidsnark instead of the
// go-ethereum bn256 implementation.
func WithRapidsnarkVerifier() Option {
	return func(o *options) { o.rapidsnark = true }
}

// WithTransferer replaces the token transferer.
func WithTransferer(t settlement.Transferer) Option {
	return func(o *options) { o.transferer = t }
}

// WithLedgerOptions passes options to the ledger.
func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(o *options) { o.ledgerOpts = append(o.ledgerOpts, opts...) }
}

// WithLogger sets the parent logger of every component.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.log = l }
}

// Service is the settlement system over one ledger.
type Service struct {
	ledger       *ledger.Ledger
	registry     *registry.Registry
	commitments  *commitment.Store
	nullifiers   *nullifier.Ledger
	token        *token.Ledger
	gate         *verification.Gate
	orchestrator *settlement.Orchestrator
	keeper       *keeper.Keeper
	log          log.Logger
}

// New opens a Service over db. The verifying key is read from keys once,
// here; it cannot change for the lifetime of the Service.
func New(db ethdb.KeyValueStore, keys loaders.VerificationKeyLoader, opts ...Option) (*Service, error) {
	o := options{
		commitmentTTL: constants.CommitmentTTL,
		nullifierTTL:  constants.NullifierTTL,
		log:           log.Root(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	sub := func(name string) log.Logger { return o.log.New("module", name) }

	vkJSON, err := keys.Load(VerificationKeyName)
	if err != nil {
		return nil, errors.Wrap(err, "load verification key")
	}

	l, err := ledger.New(db, append([]ledger.Option{ledger.WithLogger(sub("ledger"))}, o.ledgerOpts...)...)
	if err != nil {
		return nil, err
	}

	s := &Service{ledger: l, log: sub("payroll")}
	s.commitments = commitment.NewStore(registry.Companies{},
		commitment.WithTTL(o.commitmentTTL), commitment.WithLogger(sub("commitment")))
	s.registry = registry.New(s.commitments, registry.WithLogger(sub("registry")))

	nopts := []nullifier.Option{nullifier.WithTTL(o.nullifierTTL), nullifier.WithLogger(sub("nullifier"))}
	if o.pruner != "" {
		nopts = append(nopts, nullifier.WithPruningAuthority(o.pruner))
	}
	s.nullifiers = nullifier.New(nopts...)

	topts := []token.Option{token.WithLogger(sub("token"))}
	if o.minter != "" {
		topts = append(topts, token.WithMinter(o.minter))
	}
	s.token = token.New(topts...)

	gopts := []verification.GateOption{verification.WithLogger(sub("verification"))}
	if o.rapidsnark {
		v, err := verification.NewRapidsnarkVerifier(vkJSON)
		if err != nil {
			l.Close()
			return nil, err
		}
		gopts = append(gopts, verification.WithVerifier(v))
	}
	if s.gate, err = verification.NewGate(verification.DefaultConfig(vkJSON), s.commitments, gopts...); err != nil {
		l.Close()
		return nil, err
	}

	if o.transferer == nil {
		o.transferer = settlement.TokenTransferer{Token: s.token}
	}
	s.orchestrator = settlement.New(l, s.gate, s.commitments, s.nullifiers, s.registry, o.transferer,
		settlement.WithLogger(sub("settlement")))
	s.keeper = keeper.New(l, s.commitments, keeper.WithLogger(sub("keeper")))
	return s, nil
}

// Close stops the ledger writer.
func (s *Service) Close() {
	s.ledger.Close()
}

// Sequence returns the current ledger sequence number.
func (s *Service) Sequence() uint32 {
	return s.ledger.Sequence()
}

// Advance closes n ledgers.
func (s *Service) Advance(ctx context.Context, n uint32) error {
	return s.ledger.Advance(ctx, n)
}

// RegisterCompany registers a company administered by admin that pays out of
// treasury.
func (s *Service) RegisterCompany(ctx context.Context, c authz.Capability, name string, admin, treasury authz.Principal) (*registry.Company, error) {
	var out *registry.Company
	err := s.ledger.Update(ctx, func(txn *ledger.Txn) (err error) {
		out, err = s.registry.RegisterCompany(txn, c, name, admin, treasury)
		return err
	})
	return out, err
}

// Company returns a registered company.
func (s *Service) Company(ctx context.Context, id uint64) (*registry.Company, error) {
	var out *registry.Company
	err := s.ledger.View(ctx, func(txn *ledger.Txn) (err error) {
		out, err = s.registry.Company(txn, id)
		return err
	})
	return out, err
}

// DeactivateCompany stops a company from managing employees.
func (s *Service) DeactivateCompany(ctx context.Context, c authz.Capability, id uint64) error {
	return s.ledger.Update(ctx, func(txn *ledger.Txn) error {
		return s.registry.Deactivate(txn, c, id)
	})
}

// AddEmployee registers the salary commitment of a new employee.
func (s *Service) AddEmployee(ctx context.Context, c authz.Capability, company uint64, employee string, cm codec.Element) (*commitment.Record, error) {
	var out *commitment.Record
	err := s.ledger.Update(ctx, func(txn *ledger.Txn) (err error) {
		out, err = s.registry.AddEmployee(txn, c, company, employee, cm.Bytes())
		return err
	})
	return out, err
}

// RemoveEmployee deletes an employee's commitment.
func (s *Service) RemoveEmployee(ctx context.Context, c authz.Capability, company uint64, employee string) error {
	return s.ledger.Update(ctx, func(txn *ledger.Txn) error {
		return s.registry.RemoveEmployee(txn, c, company, employee)
	})
}

// UpdateCommitment replaces an employee's commitment after a salary change.
func (s *Service) UpdateCommitment(ctx context.Context, c authz.Capability, company uint64, employee string, cm codec.Element) (*commitment.Record, error) {
	var out *commitment.Record
	err := s.ledger.Update(ctx, func(txn *ledger.Txn) (err error) {
		out, err = s.registry.UpdateCommitment(txn, c, company, employee, cm.Bytes())
		return err
	})
	return out, err
}

// UpdateCommitments replaces several commitments of company at once. Either
// every update applies or none does.
func (s *Service) UpdateCommitments(ctx context.Context, c authz.Capability, company uint64, updates []registry.CommitmentUpdate) ([]*commitment.Record, error) {
	var out []*commitment.Record
	err := s.ledger.Update(ctx, func(txn *ledger.Txn) (err error) {
		out, err = s.registry.UpdateCommitments(txn, c, company, updates)
		return err
	})
	return out, err
}

// RestoreCommitment revives an expired commitment.
func (s *Service) RestoreCommitment(ctx context.Context, c authz.Capability, key commitment.Key) (*commitment.Record, error) {
	var out *commitment.Record
	err := s.ledger.Update(ctx, func(txn *ledger.Txn) (err error) {
		out, err = s.commitments.Restore(txn, c, key)
		return err
	})
	return out, err
}

// Commitment returns the live commitment record of an employee.
func (s *Service) Commitment(ctx context.Context, company uint64, employee string) (*commitment.Record, error) {
	var out *commitment.Record
	err := s.ledger.View(ctx, func(txn *ledger.Txn) (err error) {
		out, err = s.commitments.Get(txn, commitment.Key{Company: company, Employee: employee})
		return err
	})
	return out, err
}

// BindRecipient maps a recipient hash to the principal that receives the
// payments proven for it.
func (s *Service) BindRecipient(ctx context.Context, c authz.Capability, company uint64, recipient codec.Element, payout authz.Principal) error {
	return s.ledger.Update(ctx, func(txn *ledger.Txn) error {
		return s.registry.BindRecipient(txn, c, company, common.Hash(recipient.Bytes()), payout)
	})
}

// Mint credits p with amount payroll tokens.
func (s *Service) Mint(ctx context.Context, c authz.Capability, p authz.Principal, amount uint64) error {
	return s.ledger.Update(ctx, func(txn *ledger.Txn) error {
		return s.token.Mint(txn, c, p, amount)
	})
}

// Balance returns the token balance of p.
func (s *Service) Balance(ctx context.Context, p authz.Principal) (uint64, error) {
	var out uint64
	err := s.ledger.View(ctx, func(txn *ledger.Txn) (err error) {
		out, err = s.token.Balance(txn, p)
		return err
	})
	return out, err
}

// IsConsumed reports whether the nullifier n has been used.
func (s *Service) IsConsumed(ctx context.Context, n codec.Element) (bool, error) {
	var out bool
	err := s.ledger.View(ctx, func(txn *ledger.Txn) (err error) {
		out, err = s.nullifiers.IsConsumed(txn, common.Hash(n.Bytes()))
		return err
	})
	return out, err
}

// IsPaid reports whether employee was paid for period.
func (s *Service) IsPaid(ctx context.Context, company uint64, employee string, period uint32) (bool, error) {
	var out bool
	err := s.ledger.View(ctx, func(txn *ledger.Txn) (err error) {
		out, err = settlement.IsPaid(txn, company, employee, period)
		return err
	})
	return out, err
}

// Payment returns the record of employee's payment for period.
func (s *Service) Payment(ctx context.Context, company uint64, employee string, period uint32) (*settlement.Payment, error) {
	var out *settlement.Payment
	err := s.ledger.View(ctx, func(txn *ledger.Txn) (err error) {
		out, err = settlement.GetPayment(txn, company, employee, period)
		return err
	})
	return out, err
}

// TotalPaid returns the amount company has paid out.
func (s *Service) TotalPaid(ctx context.Context, company uint64) (uint64, error) {
	var out uint64
	err := s.ledger.View(ctx, func(txn *ledger.Txn) (err error) {
		out, err = settlement.TotalPaid(txn, company)
		return err
	})
	return out, err
}

// PruneNullifier deletes an expired nullifier record whose commitment is
// gone or was replaced.
func (s *Service) PruneNullifier(ctx context.Context, c authz.Capability, n codec.Element) error {
	return s.ledger.Update(ctx, func(txn *ledger.Txn) error {
		return s.nullifiers.Prune(txn, c, common.Hash(n.Bytes()))
	})
}

// ProcessPayment settles one payment.
func (s *Service) ProcessPayment(ctx context.Context, req settlement.PaymentRequest) (*settlement.Receipt, error) {
	return s.orchestrator.ProcessPayment(ctx, req)
}

// ProcessBatch settles up to constants.MaxBatchSize payments, each on its own.
func (s *Service) ProcessBatch(ctx context.Context, reqs []settlement.PaymentRequest) ([]*settlement.Receipt, error) {
	return s.orchestrator.ProcessBatch(ctx, reqs)
}

// SubscribeSettled delivers every settled receipt to ch.
func (s *Service) SubscribeSettled(ch chan<- settlement.Receipt) event.Subscription {
	return s.orchestrator.SubscribeSettled(ch)
}

// RefreshCommitments extends the TTL of live commitments close to expiry.
func (s *Service) RefreshCommitments(ctx context.Context, keys []commitment.Key) (*keeper.Report, error) {
	return s.keeper.Refresh(ctx, keys)
}

// Employees returns the commitment keys of the given employees of company.
func Employees(company uint64, names ...string) []commitment.Key {
	keys := make([]commitment.Key, len(names))
	for i, n := range names {
		keys[i] = commitment.Key{Company: company, Employee: n}
	}
	return keys
}
