// Package testutil builds Groth16 keys with a known trapdoor. Whoever holds
// the trapdoor can produce a valid proof for any public inputs, which lets
// tests exercise the pairing check without a circuit or a trusted setup.
package testutil

import (
	"encoding/json"
	"math/big"

	bn256 "github.com/ethereum/go-ethereum/crypto/bn256/cloudflare"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/types"
)

// Groth16Fixture is a verifying key together with its trapdoor.
type Groth16Fixture struct {
	alpha, beta, gamma, delta *big.Int
	ic                        []*big.Int

	// VerificationKey is the key in snarkjs JSON.
	VerificationKey []byte
}

// NewGroth16Fixture returns a fixture for nPublic public inputs. The
// trapdoor is derived from seed, so equal seeds give equal keys.
func NewGroth16Fixture(seed int64, nPublic int) *Groth16Fixture {
	scalar := func(i int64) *big.Int {
		v := new(big.Int).Mul(big.NewInt(seed*1_000_003+i), big.NewInt(7_919))
		return v.Add(v, big.NewInt(i*i+1)).Mod(v, codec.R)
	}
	f := &Groth16Fixture{
		alpha: scalar(1),
		beta:  scalar(2),
		gamma: scalar(3),
		delta: scalar(4),
	}
	for i := 0; i <= nPublic; i++ {
		f.ic = append(f.ic, scalar(int64(10+i)))
	}

	vk := types.VerificationKey{
		Protocol: constants.ProtocolGroth16,
		Curve:    constants.CurveBN128,
		NPublic:  nPublic,
		Alpha:    g1(f.alpha),
		Beta:     g2(f.beta),
		Gamma:    g2(f.gamma),
		Delta:    g2(f.delta),
	}
	for _, s := range f.ic {
		vk.IC = append(vk.IC, g1(s))
	}
	b, err := json.Marshal(vk)
	if err != nil {
		panic(err)
	}
	f.VerificationKey = b
	return f
}

// Prove returns a valid artifact for signals.
func (f *Groth16Fixture) Prove(signals codec.Signals) codec.Artifact {
	inputs := signals.Slice()
	if len(inputs)+1 != len(f.ic) {
		panic("public input count does not match fixture")
	}
	r := codec.R
	l := new(big.Int).Set(f.ic[0])
	for i, x := range inputs {
		l.Add(l, new(big.Int).Mul(x.BigInt(), f.ic[i+1]))
	}
	l.Mod(l, r)

	a := big.NewInt(1_234_567)
	b := big.NewInt(7_654_321)
	// c = (a*b - alpha*beta - l*gamma) / delta
	c := new(big.Int).Mul(a, b)
	c.Sub(c, new(big.Int).Mul(f.alpha, f.beta))
	c.Sub(c, new(big.Int).Mul(l, f.gamma))
	c.Mod(c, r)
	c.Mul(c, new(big.Int).ModInverse(f.delta, r))
	c.Mod(c, r)

	return codec.Artifact{
		A:       g1Point(a),
		B:       g2Point(b),
		C:       g1Point(c),
		Signals: signals,
	}
}

// ProveJSON returns Prove in the standard representation.
func (f *Groth16Fixture) ProveJSON(signals codec.Signals) *types.ZKProof {
	return types.NewZKProof(f.Prove(signals), constants.ProtocolGroth16, constants.CurveBN128)
}

func g1Point(s *big.Int) codec.G1Point {
	b := new(bn256.G1).ScalarBaseMult(s).Marshal()
	return codec.G1Point{X: new(big.Int).SetBytes(b[:32]), Y: new(big.Int).SetBytes(b[32:])}
}

// bn256 marshals the imaginary part of each coordinate first.
func g2Point(s *big.Int) codec.G2Point {
	b := new(bn256.G2).ScalarBaseMult(s).Marshal()
	return codec.G2Point{
		X1: new(big.Int).SetBytes(b[:32]),
		X0: new(big.Int).SetBytes(b[32:64]),
		Y1: new(big.Int).SetBytes(b[64:96]),
		Y0: new(big.Int).SetBytes(b[96:]),
	}
}

func g1(s *big.Int) []string {
	p := g1Point(s)
	return []string{p.X.String(), p.Y.String(), "1"}
}

func g2(s *big.Int) [][]string {
	p := g2Point(s)
	return [][]string{{p.X0.String(), p.X1.String()}, {p.Y0.String(), p.Y1.String()}, {"1", "0"}}
}

// Signals builds a signals triple from small integers.
func Signals(commitment, nullifier, recipient uint64) codec.Signals {
	return codec.Signals{
		SalaryCommitment: codec.ElementFromUint64(commitment),
		PaymentNullifier: codec.ElementFromUint64(nullifier),
		RecipientHash:    codec.ElementFromUint64(recipient),
	}
}
