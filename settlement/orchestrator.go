package settlement

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
	"github.com/zkpayroll/go-payroll-settlement/nullifier"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l log.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// WithMaxBatchSize overrides constants.MaxBatchSize.
func WithMaxBatchSize(n int) Option {
	return func(o *Orchestrator) {
		o.maxBatch = n
	}
}

// Orchestrator runs the payment state machine.
type Orchestrator struct {
	ledger     *ledger.Ledger
	gate       Gate
	store      *commitment.Store
	nullifiers *nullifier.Ledger
	directory  Directory
	transferer Transferer

	maxBatch int
	settled  event.Feed
	log      log.Logger
}

// New returns an orchestrator. All collaborators operate on transactions of l.
func New(l *ledger.Ledger, gate Gate, store *commitment.Store, nullifiers *nullifier.Ledger,
	directory Directory, transferer Transferer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger:     l,
		gate:       gate,
		store:      store,
		nullifiers: nullifiers,
		directory:  directory,
		transferer: transferer,
		maxBatch:   constants.MaxBatchSize,
		log:        log.Root().New("module", "settlement"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SubscribeSettled delivers a copy of every settled receipt to ch.
func (o *Orchestrator) SubscribeSettled(ch chan<- Receipt) event.Subscription {
	return o.settled.Subscribe(ch)
}

// ProcessPayment verifies req, consumes its nullifier, records the payment
// for its period and transfers the amount in one transaction. The receipt is returned in every case; on
// failure the error is a *Rejection and nothing was written.
func (o *Orchestrator) ProcessPayment(ctx context.Context, req PaymentRequest) (*Receipt, error) {
	rc := &Receipt{
		ID:       uuid.New(),
		Company:  req.Company,
		Employee: req.Employee,
		Period:   req.Period,
		Amount:   req.Amount,
		State:    Submitted,
	}
	stage := Submitted
	err := o.ledger.Update(ctx, func(txn *ledger.Txn) error {
		stage = Submitted
		rc.Ledger = txn.Sequence()
		key := commitment.Key{Company: req.Company, Employee: req.Employee}

		signals, err := o.gate.Verify(txn, key, req.Proof)
		if err != nil {
			return err
		}
		stage = Verified
		rc.Nullifier = common.Hash(signals.PaymentNullifier.Bytes())
		rc.Recipient = common.Hash(signals.RecipientHash.Bytes())

		rec, err := o.store.Touch(txn, key)
		if err != nil {
			return err
		}
		if _, err = o.nullifiers.Consume(txn, rc.Nullifier, key, rec); err != nil {
			return err
		}
		err = recordPayment(txn, &Payment{
			Company:   req.Company,
			Employee:  req.Employee,
			Period:    req.Period,
			Amount:    req.Amount,
			Nullifier: rc.Nullifier,
			Ledger:    rc.Ledger,
		})
		if err != nil {
			return err
		}
		from, err := o.directory.Treasury(txn, req.Company)
		if err != nil {
			return err
		}
		to, err := o.directory.ResolveRecipient(txn, req.Company, rc.Recipient)
		if err != nil {
			return err
		}
		return o.transferer.Transfer(txn, Transfer{
			Company:   req.Company,
			From:      from,
			To:        to,
			Recipient: rc.Recipient,
			Nullifier: rc.Nullifier,
			Amount:    req.Amount,
			Caller:    req.Caller,
		})
	})
	if err != nil {
		rc.State = Rejected
		rc.Err = &Rejection{Stage: stage, Err: err}
		o.log.Warn("Payment rejected", "id", rc.ID, "company", req.Company, "employee", req.Employee,
			"stage", stage, "err", err)
		return rc, rc.Err
	}
	rc.State = Settled
	o.log.Info("Payment settled", "id", rc.ID, "company", req.Company, "employee", req.Employee,
		"period", req.Period, "nullifier", rc.Nullifier.Hex(), "ledger", rc.Ledger)
	o.settled.Send(*rc)
	return rc, nil
}

// ProcessBatch settles up to the maximum batch size of payments. Each
// payment is its own atomic unit, so one rejection does not roll back the
// others. Receipts are returned in request order.
func (o *Orchestrator) ProcessBatch(ctx context.Context, reqs []PaymentRequest) ([]*Receipt, error) {
	if len(reqs) > o.maxBatch {
		return nil, errors.Wrapf(ErrBatchTooLarge, "%d payments, max %d", len(reqs), o.maxBatch)
	}
	receipts := make([]*Receipt, len(reqs))
	var settled int
	for i, req := range reqs {
		rc, err := o.ProcessPayment(ctx, req)
		receipts[i] = rc
		if err == nil {
			settled++
		}
	}
	o.log.Info("Payroll batch processed", "payments", len(reqs), "settled", settled)
	return receipts, nil
}
