// Package authz carries the caller capability consumed by admin-gated
// operations. It holds no identity logic: how a caller proved who it is
// happens before a Capability is built.
package authz

import (
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
)

// ErrAuthorizationFailure is returned when a capability does not cover the
// required principal.
var ErrAuthorizationFailure = errors.New("authorization failure")

// Principal identifies an account on the ledger.
type Principal string

// Capability answers whether the caller is authorized as a principal.
type Capability interface {
	AuthorizedAs(p Principal) bool
}

// Caller is a capability for a fixed set of principals.
type Caller []Principal

// AuthorizedAs implements Capability.
func (c Caller) AuthorizedAs(p Principal) bool {
	for _, q := range c {
		if q == p {
			return true
		}
	}
	return false
}

// Anonymous is a capability that covers no principal.
var Anonymous = Caller(nil)

// Require returns ErrAuthorizationFailure unless c covers p.
func Require(c Capability, p Principal) error {
	if c == nil || !c.AuthorizedAs(p) {
		return errors.Wrapf(ErrAuthorizationFailure, "caller is not authorized as %s", p)
	}
	return nil
}

// AdminResolver returns the admin principal of a company.
type AdminResolver interface {
	CompanyAdmin(txn *ledger.Txn, company uint64) (Principal, error)
}

// RequireAdmin checks that c covers the admin of company.
func RequireAdmin(txn *ledger.Txn, admins AdminResolver, c Capability, company uint64) error {
	admin, err := admins.CompanyAdmin(txn, company)
	if err != nil {
		return err
	}
	return Require(c, admin)
}
