package verification

import (
	"math/big"

	bn256 "github.com/ethereum/go-ethereum/crypto/bn256/cloudflare"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/internal/models"
)

// bn256 marshals Fp2 elements imaginary part first, while the wire order is
// real part first. The swap below is the only place the two meet.

func toG1(p codec.G1Point) (*bn256.G1, error) {
	b, err := p.Encode()
	if err != nil {
		return nil, err
	}
	g := new(bn256.G1)
	if _, err = g.Unmarshal(b[:]); err != nil {
		return nil, err
	}
	return g, nil
}

func toG2(p codec.G2Point) (*bn256.G2, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b := make([]byte, codec.G2Size)
	for i, v := range []*big.Int{p.X1, p.X0, p.Y1, p.Y0} {
		v.FillBytes(b[i*codec.ElementSize : (i+1)*codec.ElementSize])
	}
	g := new(bn256.G2)
	if _, err := g.Unmarshal(b); err != nil {
		return nil, err
	}
	return g, nil
}

// G1ToPoint converts a bn256 point to its wire coordinates.
func G1ToPoint(g *bn256.G1) codec.G1Point {
	b := g.Marshal()
	return codec.G1Point{
		X: new(big.Int).SetBytes(b[:32]),
		Y: new(big.Int).SetBytes(b[32:64]),
	}
}

// G2ToPoint converts a bn256 twist point to its wire coordinates.
func G2ToPoint(g *bn256.G2) codec.G2Point {
	b := g.Marshal()
	return codec.G2Point{
		X1: new(big.Int).SetBytes(b[:32]),
		X0: new(big.Int).SetBytes(b[32:64]),
		Y1: new(big.Int).SetBytes(b[64:96]),
		Y0: new(big.Int).SetBytes(b[96:128]),
	}
}

func toPairingData(a codec.Artifact) (models.PairingProof, error) {
	var (
		p   models.PairingProof
		err error
	)
	if p.A, err = toG1(a.A); err != nil {
		return p, errors.Wrap(err, "pi_a")
	}
	if p.B, err = toG2(a.B); err != nil {
		return p, errors.Wrap(err, "pi_b")
	}
	if p.C, err = toG1(a.C); err != nil {
		return p, errors.Wrap(err, "pi_c")
	}
	return p, nil
}
