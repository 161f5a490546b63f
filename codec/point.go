package codec

import (
	"math/big"

	"github.com/pkg/errors"
)

const (
	// G1Size is the width of an encoded G1 point: x‖y.
	G1Size = 2 * ElementSize
	// G2Size is the width of an encoded G2 point: x0‖x1‖y0‖y1.
	G2Size = 4 * ElementSize
)

// G1Point is an affine point on the base curve. Coordinates are base field
// elements and must be below Q.
type G1Point struct {
	X *big.Int
	Y *big.Int
}

// G2Point is an affine point on the twist. X0 and Y0 are the real parts of
// the Fp2 coordinates, X1 and Y1 the imaginary parts.
type G2Point struct {
	X0 *big.Int
	X1 *big.Int
	Y0 *big.Int
	Y1 *big.Int
}

// Validate checks both coordinates are in the base field.
func (p G1Point) Validate() error {
	return checkCoordinates(p.X, p.Y)
}

// Encode returns x‖y.
func (p G1Point) Encode() ([G1Size]byte, error) {
	var out [G1Size]byte
	if err := p.Validate(); err != nil {
		return out, err
	}
	putCoordinates(out[:], p.X, p.Y)
	return out, nil
}

// DecodeG1 decodes exactly 64 bytes into a G1 point.
func DecodeG1(b []byte) (G1Point, error) {
	if len(b) != G1Size {
		return G1Point{}, errors.Wrapf(ErrInvalidLength, "g1: expected %d bytes, got %d", G1Size, len(b))
	}
	c, err := decodeCoordinates(b, 2)
	if err != nil {
		return G1Point{}, errors.Wrap(err, "g1")
	}
	return G1Point{X: c[0], Y: c[1]}, nil
}

// Validate checks all four coordinates are in the base field.
func (p G2Point) Validate() error {
	return checkCoordinates(p.X0, p.X1, p.Y0, p.Y1)
}

// Encode returns x0‖x1‖y0‖y1. The order is part of the wire contract.
func (p G2Point) Encode() ([G2Size]byte, error) {
	var out [G2Size]byte
	if err := p.Validate(); err != nil {
		return out, err
	}
	putCoordinates(out[:], p.X0, p.X1, p.Y0, p.Y1)
	return out, nil
}

// DecodeG2 decodes exactly 128 bytes into a G2 point.
func DecodeG2(b []byte) (G2Point, error) {
	if len(b) != G2Size {
		return G2Point{}, errors.Wrapf(ErrInvalidLength, "g2: expected %d bytes, got %d", G2Size, len(b))
	}
	c, err := decodeCoordinates(b, 4)
	if err != nil {
		return G2Point{}, errors.Wrap(err, "g2")
	}
	return G2Point{X0: c[0], X1: c[1], Y0: c[2], Y1: c[3]}, nil
}

// CheckCoordinate reports whether v is a valid base field element.
func CheckCoordinate(v *big.Int) error {
	return checkRange(v, Q)
}

func checkCoordinates(vs ...*big.Int) error {
	for i, v := range vs {
		if err := checkRange(v, Q); err != nil {
			return errors.Wrapf(err, "coordinate %d", i)
		}
	}
	return nil
}

func putCoordinates(dst []byte, vs ...*big.Int) {
	for i, v := range vs {
		v.FillBytes(dst[i*ElementSize : (i+1)*ElementSize])
	}
}

func decodeCoordinates(b []byte, n int) ([]*big.Int, error) {
	out := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		v := new(big.Int).SetBytes(b[i*ElementSize : (i+1)*ElementSize])
		if v.Cmp(Q) >= 0 {
			return nil, errors.Wrapf(ErrFieldOverflow, "coordinate %d", i)
		}
		out[i] = v
	}
	return out, nil
}
