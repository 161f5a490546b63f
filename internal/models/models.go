// Package models holds the bn256 forms of a payment proof and its verifying key.
package models

import (
	"math/big"

	bn256 "github.com/ethereum/go-ethereum/crypto/bn256/cloudflare"
)

// PairingProof is a payment proof decoded to curve points.
type PairingProof struct {
	A *bn256.G1
	B *bn256.G2
	C *bn256.G1
}

// VerifyingKey is a Groth16 verifying key decoded to curve points.
// IC has one point per public signal plus the constant term.
type VerifyingKey struct {
	Alpha *bn256.G1
	Beta  *bn256.G2
	Gamma *bn256.G2
	Delta *bn256.G2
	IC    []*bn256.G1
}

// PublicInputs returns how many public signals the key accepts.
func (vk *VerifyingKey) PublicInputs() int {
	return len(vk.IC) - 1
}

// Linear returns IC[0] + sum(inputs[i] * IC[i+1]). The caller checks that
// len(inputs) matches PublicInputs and that every input is reduced.
func (vk *VerifyingKey) Linear(inputs []*big.Int) *bn256.G1 {
	acc := new(bn256.G1).ScalarBaseMult(big.NewInt(0))
	for i, in := range inputs {
		acc = new(bn256.G1).Add(acc, new(bn256.G1).ScalarMult(vk.IC[i+1], in))
	}
	return new(bn256.G1).Add(acc, vk.IC[0])
}

// Pairs reports whether e(A, B) = e(alpha, beta) * e(L, gamma) * e(C, delta)
// where L is the linear combination of the inputs.
func (vk *VerifyingKey) Pairs(p PairingProof, inputs []*big.Int) bool {
	l := vk.Linear(inputs)
	g1 := []*bn256.G1{p.A, new(bn256.G1).Neg(vk.Alpha), l.Neg(l), new(bn256.G1).Neg(p.C)}
	g2 := []*bn256.G2{p.B, vk.Beta, vk.Gamma, vk.Delta}
	return bn256.PairingCheck(g1, g2)
}
