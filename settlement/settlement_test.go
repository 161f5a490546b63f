package settlement_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/zkpayroll/go-payroll-settlement/authz"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/internal/testutil"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
	"github.com/zkpayroll/go-payroll-settlement/nullifier"
	"github.com/zkpayroll/go-payroll-settlement/registry"
	"github.com/zkpayroll/go-payroll-settlement/settlement"
	"github.com/zkpayroll/go-payroll-settlement/token"
	"github.com/zkpayroll/go-payroll-settlement/verification"

	mock_settlement "github.com/zkpayroll/go-payroll-settlement/settlement/mock"
)

var (
	admin    = authz.Caller{"admin", "treasury"}
	aliceKey = commitment.Key{Company: 1, Employee: "alice"}
	signals  = testutil.Signals(5861, 76194, 3830)
)

type env struct {
	ledger     *ledger.Ledger
	registry   *registry.Registry
	store      *commitment.Store
	nullifiers *nullifier.Ledger
	token      *token.Ledger
	gate       *verification.Gate
	fixture    *testutil.Groth16Fixture
}

func newEnv(t *testing.T) *env {
	t.Helper()
	l, err := ledger.New(memorydb.New(), ledger.WithSequence(1000))
	require.NoError(t, err)
	t.Cleanup(l.Close)

	e := &env{
		ledger:     l,
		store:      commitment.NewStore(registry.Companies{}, commitment.WithTTL(constants.TTLPolicy{Threshold: 10, Target: 100})),
		nullifiers: nullifier.New(),
		token:      token.New(token.WithMinter("bank")),
		fixture:    testutil.NewGroth16Fixture(42, 3),
	}
	e.registry = registry.New(e.store)
	e.gate, err = verification.NewGate(verification.DefaultConfig(e.fixture.VerificationKey), e.store)
	require.NoError(t, err)

	require.NoError(t, l.Update(context.Background(), func(txn *ledger.Txn) error {
		c, err := e.registry.RegisterCompany(txn, admin, "acme", "admin", "treasury")
		if err != nil {
			return err
		}
		if _, err = e.registry.AddEmployee(txn, admin, c.ID, "alice", signals.SalaryCommitment.Bytes()); err != nil {
			return err
		}
		recipient := common.Hash(signals.RecipientHash.Bytes())
		if err = e.registry.BindRecipient(txn, admin, c.ID, recipient, "alice-wallet"); err != nil {
			return err
		}
		return e.token.Mint(txn, authz.Caller{"bank"}, "treasury", 10_000)
	}))
	return e
}

func (e *env) orchestrator(transferer settlement.Transferer) *settlement.Orchestrator {
	return settlement.New(e.ledger, e.gate, e.store, e.nullifiers, e.registry, transferer)
}

func (e *env) request(amount uint64) settlement.PaymentRequest {
	return settlement.PaymentRequest{
		Company:  1,
		Employee: "alice",
		Period:   1,
		Amount:   amount,
		Proof:    e.fixture.ProveJSON(signals),
		Caller:   admin,
	}
}

func (e *env) balance(t *testing.T, p authz.Principal) uint64 {
	t.Helper()
	var b uint64
	require.NoError(t, e.ledger.View(context.Background(), func(txn *ledger.Txn) error {
		var err error
		b, err = e.token.Balance(txn, p)
		return err
	}))
	return b
}

func (e *env) consumed(t *testing.T, n codec.Element) bool {
	t.Helper()
	var ok bool
	require.NoError(t, e.ledger.View(context.Background(), func(txn *ledger.Txn) error {
		var err error
		ok, err = e.nullifiers.IsConsumed(txn, common.Hash(n.Bytes()))
		return err
	}))
	return ok
}

func (e *env) paid(t *testing.T, period uint32) bool {
	t.Helper()
	var ok bool
	require.NoError(t, e.ledger.View(context.Background(), func(txn *ledger.Txn) (err error) {
		ok, err = settlement.IsPaid(txn, 1, "alice", period)
		return err
	}))
	return ok
}

func (e *env) record(t *testing.T) *commitment.Record {
	t.Helper()
	var rec *commitment.Record
	require.NoError(t, e.ledger.View(context.Background(), func(txn *ledger.Txn) error {
		var err error
		rec, err = e.store.Get(txn, aliceKey)
		return err
	}))
	return rec
}

func TestProcessPayment(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(settlement.TokenTransferer{Token: e.token})
	ctx := context.Background()

	settled := make(chan settlement.Receipt, 1)
	sub := o.SubscribeSettled(settled)
	defer sub.Unsubscribe()

	rc, err := o.ProcessPayment(ctx, e.request(4_000))
	require.NoError(t, err)
	require.Equal(t, settlement.Settled, rc.State)
	require.Equal(t, common.Hash(signals.PaymentNullifier.Bytes()), rc.Nullifier)
	require.Equal(t, uint32(1000), rc.Ledger)
	require.Equal(t, rc.ID, (<-settled).ID)

	require.Equal(t, uint64(6_000), e.balance(t, "treasury"))
	require.Equal(t, uint64(4_000), e.balance(t, "alice-wallet"))
	require.True(t, e.consumed(t, signals.PaymentNullifier))

	// replaying the same proof
	rc, err = o.ProcessPayment(ctx, e.request(4_000))
	require.ErrorIs(t, err, nullifier.ErrAlreadyConsumed)
	require.Equal(t, settlement.Rejected, rc.State)
	var rej *settlement.Rejection
	require.True(t, errors.As(err, &rej))
	require.Equal(t, settlement.Verified, rej.Stage)
	require.Equal(t, uint64(4_000), e.balance(t, "alice-wallet"))
}

func TestTransferFailureLeavesNoTrace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// close enough to expiry that a payment would renew the commitment
	require.NoError(t, e.ledger.Advance(ctx, 95))
	before := e.record(t)

	var staged settlement.Transfer
	transferer := mock_settlement.NewMockTransferer(ctrl)
	transferer.EXPECT().Transfer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ *ledger.Txn, tr settlement.Transfer) error {
			staged = tr
			return errors.New("transfer not authorized")
		})

	rc, err := e.orchestrator(transferer).ProcessPayment(ctx, e.request(100))
	require.Error(t, err)
	require.Equal(t, settlement.Rejected, rc.State)
	require.Equal(t, authz.Principal("treasury"), staged.From)
	require.Equal(t, authz.Principal("alice-wallet"), staged.To)
	require.Equal(t, uint64(100), staged.Amount)

	require.False(t, e.consumed(t, signals.PaymentNullifier))
	require.False(t, e.paid(t, 1))
	require.Equal(t, before, e.record(t))
	require.Equal(t, uint64(10_000), e.balance(t, "treasury"))
}

func TestTransferRequiresTreasury(t *testing.T) {
	e := newEnv(t)
	req := e.request(100)
	req.Caller = authz.Caller{"admin"}

	_, err := e.orchestrator(settlement.TokenTransferer{Token: e.token}).ProcessPayment(context.Background(), req)
	require.ErrorIs(t, err, authz.ErrAuthorizationFailure)
	require.False(t, e.consumed(t, signals.PaymentNullifier))
}

func TestInsufficientFunds(t *testing.T) {
	e := newEnv(t)
	_, err := e.orchestrator(settlement.TokenTransferer{Token: e.token}).ProcessPayment(context.Background(), e.request(10_001))
	require.ErrorIs(t, err, token.ErrInsufficientFunds)
	require.False(t, e.consumed(t, signals.PaymentNullifier))
}

func TestBindingRejection(t *testing.T) {
	e := newEnv(t)
	req := e.request(100)
	req.Proof = e.fixture.ProveJSON(testutil.Signals(5862, 76194, 3830))

	rc, err := e.orchestrator(settlement.TokenTransferer{Token: e.token}).ProcessPayment(context.Background(), req)
	require.ErrorIs(t, err, verification.ErrCommitmentMismatch)
	require.False(t, errors.Is(err, verification.ErrInvalidProof))
	var rej *settlement.Rejection
	require.True(t, errors.As(err, &rej))
	require.Equal(t, settlement.Submitted, rej.Stage)
	require.Equal(t, settlement.Rejected, rc.State)
}

func TestUnboundRecipient(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	other := testutil.Signals(5861, 1, 77)
	req := e.request(100)
	req.Proof = e.fixture.ProveJSON(other)

	_, err := e.orchestrator(settlement.TokenTransferer{Token: e.token}).ProcessPayment(ctx, req)
	require.ErrorIs(t, err, registry.ErrRecipientNotBound)
	require.False(t, e.consumed(t, other.PaymentNullifier))
}

func TestGateIsConsulted(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gate := mock_settlement.NewMockGate(ctrl)
	gate.EXPECT().Verify(gomock.Any(), aliceKey, gomock.Any()).Return(codec.Signals{}, verification.ErrInvalidProof)
	directory := mock_settlement.NewMockDirectory(ctrl)
	transferer := mock_settlement.NewMockTransferer(ctrl)

	o := settlement.New(e.ledger, gate, e.store, e.nullifiers, directory, transferer)
	rc, err := o.ProcessPayment(context.Background(), e.request(1))
	require.ErrorIs(t, err, verification.ErrInvalidProof)
	require.Equal(t, settlement.Rejected, rc.State)
}

func TestProcessBatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.orchestrator(settlement.TokenTransferer{Token: e.token})

	_, err := o.ProcessBatch(ctx, make([]settlement.PaymentRequest, constants.MaxBatchSize+1))
	require.ErrorIs(t, err, settlement.ErrBatchTooLarge)

	second := testutil.Signals(5861, 2, 3830)
	reqs := []settlement.PaymentRequest{e.request(100), e.request(100), e.request(100)}
	reqs[2].Proof = e.fixture.ProveJSON(second)
	reqs[2].Period = 2

	receipts, err := o.ProcessBatch(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, receipts, 3)
	require.Equal(t, settlement.Settled, receipts[0].State)
	require.Equal(t, settlement.Rejected, receipts[1].State)
	require.ErrorIs(t, receipts[1].Err, nullifier.ErrAlreadyConsumed)
	require.Equal(t, settlement.Settled, receipts[2].State)
	require.Equal(t, uint64(200), e.balance(t, "alice-wallet"))
}

func TestPaymentPeriods(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.orchestrator(settlement.TokenTransferer{Token: e.token})

	rc, err := o.ProcessPayment(ctx, e.request(300))
	require.NoError(t, err)
	require.Equal(t, uint32(1), rc.Period)

	// a fresh proof for a period already paid
	again := testutil.Signals(5861, 9, 3830)
	req := e.request(300)
	req.Proof = e.fixture.ProveJSON(again)
	rc, err = o.ProcessPayment(ctx, req)
	require.ErrorIs(t, err, settlement.ErrAlreadyPaid)
	require.Equal(t, settlement.Rejected, rc.State)
	require.False(t, e.consumed(t, again.PaymentNullifier))
	require.Equal(t, uint64(300), e.balance(t, "alice-wallet"))

	req.Period = 2
	req.Amount = 500
	_, err = o.ProcessPayment(ctx, req)
	require.NoError(t, err)

	var (
		p     *settlement.Payment
		total uint64
	)
	require.NoError(t, e.ledger.View(ctx, func(txn *ledger.Txn) (err error) {
		if p, err = settlement.GetPayment(txn, 1, "alice", 2); err != nil {
			return err
		}
		total, err = settlement.TotalPaid(txn, 1)
		return err
	}))
	require.Equal(t, &settlement.Payment{
		Company:   1,
		Employee:  "alice",
		Period:    2,
		Amount:    500,
		Nullifier: common.Hash(again.PaymentNullifier.Bytes()),
		Ledger:    1000,
	}, p)
	require.Equal(t, uint64(800), total)
	require.True(t, e.paid(t, 1))
	require.True(t, e.paid(t, 2))
	require.False(t, e.paid(t, 3))

	err = e.ledger.View(ctx, func(txn *ledger.Txn) error {
		_, err := settlement.GetPayment(txn, 1, "alice", 3)
		return err
	})
	require.ErrorIs(t, err, settlement.ErrPaymentNotFound)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "submitted", settlement.Submitted.String())
	require.Equal(t, "settled", settlement.Settled.String())
	require.Equal(t, "state(9)", settlement.State(9).String())
}
