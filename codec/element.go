// Package codec implements the fixed-width byte encoding of BN254 scalar field
// elements, curve points and complete payment proof artifacts.
//
// Every numeric value is encoded as 32 big-endian bytes, left-zero-padded.
// Decoding never reduces: values outside the field are rejected.
package codec

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/pkg/errors"
)

// ElementSize is the width of an encoded field element.
const ElementSize = 32

var (
	// ErrValueTooLarge is returned when a value does not fit in 32 bytes.
	ErrValueTooLarge = errors.New("value too large for 32-byte encoding")
	// ErrFieldOverflow is returned when a value is not below the field modulus.
	ErrFieldOverflow = errors.New("value is not in the field")
	// ErrInvalidLength is returned when an encoded segment has the wrong width.
	ErrInvalidLength = errors.New("invalid encoding length")
	// ErrInvalidNumber is returned when a string is not a decimal integer.
	ErrInvalidNumber = errors.New("invalid number")
)

var (
	// R is the order of the BN254 scalar field.
	R = fr.Modulus()
	// Q is the order of the BN254 base field, the field of curve coordinates.
	Q = fp.Modulus()
)

// Element is a canonical scalar field element, always strictly below R.
type Element struct {
	v big.Int
}

// NewElement validates v and returns it as an Element.
func NewElement(v *big.Int) (Element, error) {
	var e Element
	if err := checkRange(v, R); err != nil {
		return e, err
	}
	e.v.Set(v)
	return e, nil
}

// MustElement is NewElement for values known to be in range, such as constants.
func MustElement(v *big.Int) Element {
	e, err := NewElement(v)
	if err != nil {
		panic(err)
	}
	return e
}

// ElementFromUint64 returns the element holding v.
func ElementFromUint64(v uint64) Element {
	return MustElement(new(big.Int).SetUint64(v))
}

// ParseElement parses a decimal string into an Element.
func ParseElement(s string) (Element, error) {
	v, err := ParseDecimal(s)
	if err != nil {
		return Element{}, err
	}
	return NewElement(v)
}

// DecodeElement decodes exactly 32 big-endian bytes into an Element.
func DecodeElement(b []byte) (Element, error) {
	v, err := Decode(b)
	if err != nil {
		return Element{}, err
	}
	return NewElement(v)
}

// BigInt returns a copy of the element value.
func (e Element) BigInt() *big.Int {
	return new(big.Int).Set(&e.v)
}

// Bytes returns the 32-byte big-endian encoding.
func (e Element) Bytes() [ElementSize]byte {
	var out [ElementSize]byte
	e.v.FillBytes(out[:])
	return out
}

// String returns the decimal representation.
func (e Element) String() string {
	return e.v.String()
}

// Equal reports whether two elements hold the same value.
func (e Element) Equal(o Element) bool {
	return e.v.Cmp(&o.v) == 0
}

// Encode returns the 32-byte big-endian, left-zero-padded encoding of v.
func Encode(v *big.Int) ([ElementSize]byte, error) {
	var out [ElementSize]byte
	if v == nil || v.Sign() < 0 {
		return out, errors.Wrap(ErrInvalidNumber, "negative or nil value")
	}
	if v.BitLen() > ElementSize*8 {
		return out, errors.Wrapf(ErrValueTooLarge, "%d bits", v.BitLen())
	}
	v.FillBytes(out[:])
	return out, nil
}

// Decode reads exactly 32 bytes as an unsigned big-endian integer. It applies
// no range check; use DecodeElement or decodeCoordinate for that.
func Decode(b []byte) (*big.Int, error) {
	if len(b) != ElementSize {
		return nil, errors.Wrapf(ErrInvalidLength, "expected %d bytes, got %d", ElementSize, len(b))
	}
	return new(big.Int).SetBytes(b), nil
}

// ParseDecimal parses an unsigned decimal integer. It rejects signs, prefixes
// and values wider than 256 bits.
func ParseDecimal(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.Wrap(ErrInvalidNumber, "empty string")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return nil, errors.Wrapf(ErrInvalidNumber, "%q", s)
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidNumber, "%q", s)
	}
	if v.BitLen() > ElementSize*8 {
		return nil, errors.Wrapf(ErrValueTooLarge, "%d bits", v.BitLen())
	}
	return v, nil
}

func checkRange(v, modulus *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return errors.Wrap(ErrInvalidNumber, "negative or nil value")
	}
	if v.BitLen() > ElementSize*8 {
		return errors.Wrapf(ErrValueTooLarge, "%d bits", v.BitLen())
	}
	if v.Cmp(modulus) >= 0 {
		return errors.Wrapf(ErrFieldOverflow, "%s", v.String())
	}
	return nil
}
