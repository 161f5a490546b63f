package settlement

import (
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
)

var (
	// ErrAlreadyPaid is returned for a second payment to an employee in the
	// same period.
	ErrAlreadyPaid = errors.New("employee already paid for period")
	// ErrPaymentNotFound is returned when no payment was recorded.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrTotalOverflow is returned when a company's total paid would wrap.
	ErrTotalOverflow = errors.New("total paid overflows")
)

// Payment is the record kept for every settled payment.
type Payment struct {
	Company   uint64      `json:"company"`
	Employee  string      `json:"employee"`
	Period    uint32      `json:"period"`
	Amount    uint64      `json:"amount"`
	Nullifier common.Hash `json:"nullifier"`
	Ledger    uint32      `json:"ledger"`
}

// IsPaid reports whether employee was paid for period.
func IsPaid(txn *ledger.Txn, company uint64, employee string, period uint32) (bool, error) {
	return txn.Has(ledger.PaymentKey(company, employee, period))
}

// GetPayment returns the payment of employee for period.
func GetPayment(txn *ledger.Txn, company uint64, employee string, period uint32) (*Payment, error) {
	p := new(Payment)
	ok, err := txn.GetRLP(ledger.PaymentKey(company, employee, period), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrPaymentNotFound, "company %d employee %s period %d", company, employee, period)
	}
	return p, nil
}

// TotalPaid returns the amount company has paid out. Zero when nothing was
// paid yet.
func TotalPaid(txn *ledger.Txn, company uint64) (uint64, error) {
	var total uint64
	if _, err := txn.GetRLP(ledger.TotalPaidKey(company), &total); err != nil {
		return 0, err
	}
	return total, nil
}

// recordPayment stores p and adds its amount to the company total.
func recordPayment(txn *ledger.Txn, p *Payment) error {
	paid, err := IsPaid(txn, p.Company, p.Employee, p.Period)
	if err != nil {
		return err
	}
	if paid {
		return errors.Wrapf(ErrAlreadyPaid, "company %d employee %s period %d", p.Company, p.Employee, p.Period)
	}
	total, err := TotalPaid(txn, p.Company)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(total, p.Amount, 0)
	if carry != 0 {
		return errors.Wrapf(ErrTotalOverflow, "company %d", p.Company)
	}
	if err = txn.PutRLP(ledger.PaymentKey(p.Company, p.Employee, p.Period), p); err != nil {
		return err
	}
	return txn.PutRLP(ledger.TotalPaidKey(p.Company), sum)
}
