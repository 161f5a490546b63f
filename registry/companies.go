package registry

import (
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/authz"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
)

var (
	// ErrCompanyNotFound is returned for an unknown company id.
	ErrCompanyNotFound = errors.New("company not found")
	// ErrCompanyInactive is returned when a deactivated company is used.
	ErrCompanyInactive = errors.New("company is not active")
)

// Company is the registry record of an employer. It carries no per-employee
// aggregate, so enrolling an employee never rewrites it.
type Company struct {
	ID        uint64
	Name      string
	Admin     authz.Principal
	Treasury  authz.Principal
	Active    bool
	CreatedAt uint32
}

// Companies reads and writes company records. It is the admin resolver used
// by the commitment store.
type Companies struct{}

// Get returns the company record for id.
func (Companies) Get(txn *ledger.Txn, id uint64) (*Company, error) {
	c := new(Company)
	ok, err := txn.GetRLP(ledger.CompanyKey(id), c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrCompanyNotFound, "company %d", id)
	}
	return c, nil
}

// CompanyAdmin implements authz.AdminResolver.
func (cs Companies) CompanyAdmin(txn *ledger.Txn, id uint64) (authz.Principal, error) {
	c, err := cs.Get(txn, id)
	if err != nil {
		return "", err
	}
	if !c.Active {
		return "", errors.Wrapf(ErrCompanyInactive, "company %d", id)
	}
	return c.Admin, nil
}

func (Companies) put(txn *ledger.Txn, c *Company) error {
	return txn.PutRLP(ledger.CompanyKey(c.ID), c)
}

// nextID hands out sequential company ids starting at 1.
func (Companies) nextID(txn *ledger.Txn) (uint64, error) {
	var next uint64
	ok, err := txn.GetRLP(ledger.NextCompanyIDKey(), &next)
	if err != nil {
		return 0, err
	}
	if !ok {
		next = 1
	}
	if err = txn.PutRLP(ledger.NextCompanyIDKey(), next+1); err != nil {
		return 0, err
	}
	return next, nil
}

// Treasury returns the principal a company pays salaries from.
func (cs Companies) Treasury(txn *ledger.Txn, id uint64) (authz.Principal, error) {
	c, err := cs.Get(txn, id)
	if err != nil {
		return "", err
	}
	if !c.Active {
		return "", errors.Wrapf(ErrCompanyInactive, "company %d", id)
	}
	return c.Treasury, nil
}
