// Package binding derives the public values a payment proof exposes from the
// employer's private inputs: the salary commitment, the payment nullifier and
// the recipient correlation hash.
package binding

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/codec"
)

// Names of the available bindings.
const (
	NameLinear   = "linear"
	NameMiMC     = "mimc"
	NamePoseidon = "poseidon"
)

// Binding is a deterministic one-way derivation of the public signals.
// All inputs and outputs are scalar field elements.
type Binding interface {
	Commitment(salary, blinding *big.Int) (*big.Int, error)
	Nullifier(commitment, nonce *big.Int) (*big.Int, error)
	RecipientHash(recipient, blinding *big.Int) (*big.Int, error)
}

// ByName returns the binding called name.
func ByName(name string) (Binding, error) {
	switch name {
	case NameLinear:
		return Linear{}, nil
	case NameMiMC, "":
		return MiMC{}, nil
	case NamePoseidon:
		return Poseidon{}, nil
	default:
		return nil, errors.Errorf("unknown binding %q", name)
	}
}

// Linear is the illustrative placeholder arithmetic. It is trivially
// invertible and only suitable for pipeline tests with the mock prover.
type Linear struct{}

// Commitment returns (salary + 7·blinding) mod R.
func (Linear) Commitment(salary, blinding *big.Int) (*big.Int, error) {
	if err := check(salary, blinding); err != nil {
		return nil, err
	}
	v := new(big.Int).Mul(blinding, big.NewInt(7))
	v.Add(v, salary)
	return v.Mod(v, codec.R), nil
}

// Nullifier returns (13·commitment + 1) mod R. The nonce is not mixed in.
func (Linear) Nullifier(commitment, nonce *big.Int) (*big.Int, error) {
	if err := check(commitment, nonce); err != nil {
		return nil, err
	}
	v := new(big.Int).Mul(commitment, big.NewInt(13))
	v.Add(v, big.NewInt(1))
	return v.Mod(v, codec.R), nil
}

// RecipientHash returns (31·blinding + 17) mod R.
func (Linear) RecipientHash(recipient, blinding *big.Int) (*big.Int, error) {
	if err := check(recipient, blinding); err != nil {
		return nil, err
	}
	v := new(big.Int).Mul(blinding, big.NewInt(31))
	v.Add(v, big.NewInt(17))
	return v.Mod(v, codec.R), nil
}

// MiMC hashes with MiMC over the BN254 scalar field. It matches the hash the
// payment circuit constrains.
type MiMC struct{}

// Commitment returns H(salary, blinding).
func (MiMC) Commitment(salary, blinding *big.Int) (*big.Int, error) {
	return mimcHash(salary, blinding)
}

// Nullifier returns H(commitment, nonce).
func (MiMC) Nullifier(commitment, nonce *big.Int) (*big.Int, error) {
	return mimcHash(commitment, nonce)
}

// RecipientHash returns H(recipient, blinding).
func (MiMC) RecipientHash(recipient, blinding *big.Int) (*big.Int, error) {
	return mimcHash(recipient, blinding)
}

func mimcHash(vs ...*big.Int) (*big.Int, error) {
	if err := check(vs...); err != nil {
		return nil, err
	}
	h := mimc.NewMiMC()
	for _, v := range vs {
		b, err := codec.Encode(v)
		if err != nil {
			return nil, err
		}
		if _, err = h.Write(b[:]); err != nil {
			return nil, errors.Wrap(err, "mimc")
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

// Poseidon hashes with the circom compatible Poseidon permutation.
type Poseidon struct{}

// Commitment returns Poseidon(salary, blinding).
func (Poseidon) Commitment(salary, blinding *big.Int) (*big.Int, error) {
	return poseidonHash(salary, blinding)
}

// Nullifier returns Poseidon(commitment, nonce).
func (Poseidon) Nullifier(commitment, nonce *big.Int) (*big.Int, error) {
	return poseidonHash(commitment, nonce)
}

// RecipientHash returns Poseidon(recipient, blinding).
func (Poseidon) RecipientHash(recipient, blinding *big.Int) (*big.Int, error) {
	return poseidonHash(recipient, blinding)
}

func poseidonHash(vs ...*big.Int) (*big.Int, error) {
	if err := check(vs...); err != nil {
		return nil, err
	}
	v, err := poseidon.Hash(vs)
	if err != nil {
		return nil, errors.Wrap(err, "poseidon")
	}
	return v, nil
}

func check(vs ...*big.Int) error {
	for _, v := range vs {
		if _, err := codec.NewElement(v); err != nil {
			return err
		}
	}
	return nil
}
