// Package ledger models the host ledger the settlement core runs on: a
// key-value state mutated by one transaction at a time, a sequence number
// that drives record expiry, and a per-transaction entry budget.
//
// Transactions are executed by a single writer goroutine in submission order.
// A transaction either commits every staged write in one batch or none.
package ledger

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/constants"
)

var (
	// ErrNotFound is returned by Txn.Get for absent keys.
	ErrNotFound = errors.New("ledger entry not found")
	// ErrReadOnly is returned when a read-only transaction tries to write.
	ErrReadOnly = errors.New("read-only transaction")
	// ErrBudgetExceeded is returned when a transaction touches more entries
	// than its budget allows.
	ErrBudgetExceeded = errors.New("transaction budget exceeded")
	// ErrClosed is returned once the ledger is closed.
	ErrClosed = errors.New("ledger closed")
)

// Budget bounds the number of distinct entries one transaction may read and
// write. Zero means unbounded.
type Budget struct {
	MaxReads  int
	MaxWrites int
}

// DefaultBudget is the budget used when none is configured.
var DefaultBudget = Budget{
	MaxReads:  constants.MaxReadEntries,
	MaxWrites: constants.MaxWriteEntries,
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithBudget sets the per-transaction entry budget.
func WithBudget(b Budget) Option {
	return func(l *Ledger) {
		l.budget = b
	}
}

// WithLogger sets the ledger logger.
func WithLogger(lg log.Logger) Option {
	return func(l *Ledger) {
		l.log = lg
	}
}

// WithSequence sets the sequence number of a fresh database. It has no
// effect when the database already holds one.
func WithSequence(seq uint32) Option {
	return func(l *Ledger) {
		l.initSeq = seq
	}
}

type request struct {
	fn       func(*Txn) error
	readOnly bool
	done     chan error
}

// Ledger serializes transactions over a key-value store.
type Ledger struct {
	db      ethdb.KeyValueStore
	budget  Budget
	log     log.Logger
	initSeq uint32

	seq atomic.Uint32

	reqs     chan *request
	quit     chan struct{}
	stopped  chan struct{}
	quitOnce sync.Once
}

// New opens a ledger over db and starts its writer goroutine.
func New(db ethdb.KeyValueStore, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		db:      db,
		budget:  DefaultBudget,
		log:     log.Root().New("module", "ledger"),
		initSeq: 1,
		reqs:    make(chan *request),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	has, err := db.Has(sequenceKey)
	if err != nil {
		return nil, errors.Wrap(err, "read ledger sequence")
	}
	if has {
		b, err := db.Get(sequenceKey)
		if err != nil {
			return nil, errors.Wrap(err, "read ledger sequence")
		}
		if len(b) != 4 {
			return nil, errors.Errorf("corrupt ledger sequence of %d bytes", len(b))
		}
		l.seq.Store(binary.BigEndian.Uint32(b))
	} else {
		if err = db.Put(sequenceKey, encodeSequence(l.initSeq)); err != nil {
			return nil, errors.Wrap(err, "write ledger sequence")
		}
		l.seq.Store(l.initSeq)
	}

	go l.loop()
	l.log.Debug("Ledger opened", "sequence", l.seq.Load())
	return l, nil
}

// Sequence returns the current ledger sequence number.
func (l *Ledger) Sequence() uint32 {
	return l.seq.Load()
}

// Update runs fn as a read-write transaction. Staged writes are committed
// only if fn returns nil. The context bounds the wait for the writer, not the
// execution of fn.
func (l *Ledger) Update(ctx context.Context, fn func(*Txn) error) error {
	return l.submit(ctx, fn, false)
}

// View runs fn as a read-only transaction.
func (l *Ledger) View(ctx context.Context, fn func(*Txn) error) error {
	return l.submit(ctx, fn, true)
}

// Advance closes n ledgers, moving the sequence number forward.
func (l *Ledger) Advance(ctx context.Context, n uint32) error {
	return l.Update(ctx, func(txn *Txn) error {
		next := txn.seq + n
		if next < txn.seq {
			return errors.New("ledger sequence overflow")
		}
		txn.nextSeq = &next
		return nil
	})
}

// Close stops the writer goroutine. It does not close the underlying store.
func (l *Ledger) Close() {
	l.quitOnce.Do(func() {
		close(l.quit)
	})
	<-l.stopped
}

func (l *Ledger) submit(ctx context.Context, fn func(*Txn) error, readOnly bool) error {
	req := &request{fn: fn, readOnly: readOnly, done: make(chan error, 1)}
	select {
	case l.reqs <- req:
	case <-l.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.done
}

func (l *Ledger) loop() {
	defer close(l.stopped)
	for {
		select {
		case req := <-l.reqs:
			req.done <- l.execute(req)
		case <-l.quit:
			return
		}
	}
}

func (l *Ledger) execute(req *request) error {
	txn := newTxn(l, req.readOnly)
	if err := req.fn(txn); err != nil {
		return err
	}
	if req.readOnly {
		return nil
	}
	return l.commit(txn)
}

func (l *Ledger) commit(txn *Txn) error {
	if len(txn.order) == 0 && txn.nextSeq == nil {
		return nil
	}
	batch := l.db.NewBatch()
	for _, k := range txn.order {
		w := txn.writes[k]
		var err error
		if w.deleted {
			err = batch.Delete([]byte(k))
		} else {
			err = batch.Put([]byte(k), w.value)
		}
		if err != nil {
			return errors.Wrap(err, "stage ledger write")
		}
	}
	if txn.nextSeq != nil {
		if err := batch.Put(sequenceKey, encodeSequence(*txn.nextSeq)); err != nil {
			return errors.Wrap(err, "stage ledger sequence")
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "commit ledger transaction")
	}
	if txn.nextSeq != nil {
		l.seq.Store(*txn.nextSeq)
		l.log.Trace("Ledger sequence advanced", "sequence", *txn.nextSeq)
	}
	return nil
}

func encodeSequence(seq uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], seq)
	return b[:]
}
