package ledger

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

type write struct {
	value   []byte
	deleted bool
}

// Txn is one ledger transaction. Reads see the transaction's own staged
// writes. A Txn must not be used after the function it was passed to returns.
type Txn struct {
	l        *Ledger
	seq      uint32
	readOnly bool

	writes map[string]write
	order  []string

	read    map[string]struct{}
	written map[string]struct{}

	nextSeq *uint32
}

func newTxn(l *Ledger, readOnly bool) *Txn {
	return &Txn{
		l:        l,
		seq:      l.seq.Load(),
		readOnly: readOnly,
		writes:   make(map[string]write),
		read:     make(map[string]struct{}),
		written:  make(map[string]struct{}),
	}
}

// Sequence returns the ledger sequence number the transaction executes at.
func (t *Txn) Sequence() uint32 {
	return t.seq
}

// ReadOnly reports whether the transaction rejects writes.
func (t *Txn) ReadOnly() bool {
	return t.readOnly
}

// Has reports whether key holds a value.
func (t *Txn) Has(key []byte) (bool, error) {
	if err := t.touchRead(key); err != nil {
		return false, err
	}
	if w, ok := t.writes[string(key)]; ok {
		return !w.deleted, nil
	}
	return t.l.db.Has(key)
}

// Get returns the value under key or ErrNotFound.
func (t *Txn) Get(key []byte) ([]byte, error) {
	if err := t.touchRead(key); err != nil {
		return nil, err
	}
	if w, ok := t.writes[string(key)]; ok {
		if w.deleted {
			return nil, ErrNotFound
		}
		return append([]byte(nil), w.value...), nil
	}
	has, err := t.l.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrNotFound
	}
	return t.l.db.Get(key)
}

// Put stages value under key.
func (t *Txn) Put(key, value []byte) error {
	if err := t.touchWrite(key); err != nil {
		return err
	}
	t.stage(string(key), write{value: append([]byte(nil), value...)})
	return nil
}

// Delete stages the removal of key.
func (t *Txn) Delete(key []byte) error {
	if err := t.touchWrite(key); err != nil {
		return err
	}
	t.stage(string(key), write{deleted: true})
	return nil
}

// Written returns how many distinct keys the transaction has staged.
func (t *Txn) Written() int {
	return len(t.written)
}

// GetRLP decodes the RLP value under key into v. It returns false when the
// key is absent.
func (t *Txn) GetRLP(key []byte, v interface{}) (bool, error) {
	b, err := t.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err = rlp.DecodeBytes(b, v); err != nil {
		return false, errors.Wrapf(err, "decode ledger entry %x", key)
	}
	return true, nil
}

// PutRLP stages the RLP encoding of v under key.
func (t *Txn) PutRLP(key []byte, v interface{}) error {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return errors.Wrapf(err, "encode ledger entry %x", key)
	}
	return t.Put(key, b)
}

func (t *Txn) stage(k string, w write) {
	if _, ok := t.writes[k]; !ok {
		t.order = append(t.order, k)
	}
	t.writes[k] = w
}

func (t *Txn) touchRead(key []byte) error {
	k := string(key)
	if _, ok := t.read[k]; ok {
		return nil
	}
	if limit := t.l.budget.MaxReads; limit > 0 && len(t.read) >= limit {
		return errors.Wrapf(ErrBudgetExceeded, "more than %d reads", limit)
	}
	t.read[k] = struct{}{}
	return nil
}

func (t *Txn) touchWrite(key []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	k := string(key)
	if _, ok := t.written[k]; ok {
		return nil
	}
	if limit := t.l.budget.MaxWrites; limit > 0 && len(t.written) >= limit {
		return errors.Wrapf(ErrBudgetExceeded, "more than %d writes", limit)
	}
	t.written[k] = struct{}{}
	return nil
}
