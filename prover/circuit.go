package prover

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// SalaryBits bounds the salary so the commitment cannot hide a wrapped
// negative amount.
const SalaryBits = 64

// PaymentCircuit proves knowledge of the salary, blinding, nonce and
// recipient behind the three public signals. Public fields are declared in
// signal order.
type PaymentCircuit struct {
	SalaryCommitment frontend.Variable `gnark:",public"`
	PaymentNullifier frontend.Variable `gnark:",public"`
	RecipientHash    frontend.Variable `gnark:",public"`

	Salary    frontend.Variable
	Blinding  frontend.Variable
	Nonce     frontend.Variable
	Recipient frontend.Variable
}

// Define declares the circuit constraints.
func (c *PaymentCircuit) Define(api frontend.API) error {
	api.ToBinary(c.Salary, SalaryBits)

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Salary, c.Blinding)
	api.AssertIsEqual(h.Sum(), c.SalaryCommitment)

	h.Reset()
	h.Write(c.SalaryCommitment, c.Nonce)
	api.AssertIsEqual(h.Sum(), c.PaymentNullifier)

	h.Reset()
	h.Write(c.Recipient, c.Blinding)
	api.AssertIsEqual(h.Sum(), c.RecipientHash)
	return nil
}
