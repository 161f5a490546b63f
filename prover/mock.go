package prover

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/binding"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/types"
)

// Mock derives a proof shaped artifact from the inputs with fixed linear
// arithmetic. It never uses randomness, so equal inputs give byte-identical
// artifacts. Its points are not on the curve and never pass a pairing check.
type Mock struct {
	Binding binding.Binding
}

// NewMock returns a mock producer using the linear placeholder binding.
func NewMock() *Mock {
	return &Mock{Binding: binding.Linear{}}
}

// Prove implements Producer.
func (m *Mock) Prove(_ context.Context, in Inputs) (*types.ZKProof, error) {
	a, err := m.Artifact(in)
	if err != nil {
		return nil, err
	}
	return types.NewZKProof(a, constants.ProtocolGroth16, constants.CurveBN128), nil
}

// Artifact returns the mock artifact for in.
func (m *Mock) Artifact(in Inputs) (codec.Artifact, error) {
	if err := in.Validate(); err != nil {
		return codec.Artifact{}, err
	}
	cm, err := m.Binding.Commitment(in.Salary, in.Blinding)
	if err != nil {
		return codec.Artifact{}, errors.Wrap(err, "commitment")
	}
	n, err := m.Binding.Nullifier(cm, in.Nonce)
	if err != nil {
		return codec.Artifact{}, errors.Wrap(err, "nullifier")
	}
	rh, err := m.Binding.RecipientHash(in.Recipient, in.Blinding)
	if err != nil {
		return codec.Artifact{}, errors.Wrap(err, "recipient hash")
	}

	s, b, k, r := in.Salary, in.Blinding, in.Nonce, in.Recipient
	return codec.Artifact{
		A: codec.G1Point{X: lin(cm, 2, 1), Y: lin(n, 3, 2)},
		B: codec.G2Point{
			X0: sum(lin(s, 5, 0), b),
			X1: sum(lin(b, 7, 0), k),
			Y0: sum(lin(k, 11, 0), s),
			Y1: lin(r, 1, 19),
		},
		C: codec.G1Point{X: sum(cm, n), Y: lin(rh, 23, 29)},
		Signals: codec.Signals{
			SalaryCommitment: codec.MustElement(cm),
			PaymentNullifier: codec.MustElement(n),
			RecipientHash:    codec.MustElement(rh),
		},
	}, nil
}

// lin returns (m·v + c) mod R.
func lin(v *big.Int, m, c int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(m))
	out.Add(out, big.NewInt(c))
	return out.Mod(out, codec.R)
}

func sum(a, b *big.Int) *big.Int {
	out := new(big.Int).Add(a, b)
	return out.Mod(out, codec.R)
}
