package codec

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementRoundTrip(t *testing.T) {
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(5861),
		new(big.Int).Lsh(big.NewInt(1), 200),
		new(big.Int).Sub(R, big.NewInt(1)),
	}
	for _, v := range values {
		t.Run(v.String(), func(t *testing.T) {
			b, err := Encode(v)
			require.NoError(t, err)
			e, err := DecodeElement(b[:])
			require.NoError(t, err)
			require.Zero(t, v.Cmp(e.BigInt()))
			require.Equal(t, b, e.Bytes())
		})
	}
}

func TestEncodeLeftPads(t *testing.T) {
	b, err := Encode(big.NewInt(0x0102))
	require.NoError(t, err)
	require.Equal(t, byte(0x01), b[30])
	require.Equal(t, byte(0x02), b[31])
	for _, c := range b[:30] {
		require.Zero(t, c)
	}
}

func TestEncodeRejectsWideValues(t *testing.T) {
	widest := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err := Encode(widest)
	require.NoError(t, err)

	_, err = Encode(new(big.Int).Lsh(big.NewInt(1), 256))
	require.ErrorIs(t, err, ErrValueTooLarge)

	_, err = Encode(big.NewInt(-1))
	require.Error(t, err)
}

func TestDecodeRejectsOverflow(t *testing.T) {
	tests := []struct {
		name string
		v    *big.Int
	}{
		{"modulus", R},
		{"modulus plus one", new(big.Int).Add(R, big.NewInt(1))},
		{"all ones", new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.v)
			require.NoError(t, err)
			_, err = DecodeElement(b[:])
			require.ErrorIs(t, err, ErrFieldOverflow)
		})
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 31, 33, 64} {
		_, err := DecodeElement(make([]byte, n))
		require.ErrorIs(t, err, ErrInvalidLength)
	}
}

func TestParseElement(t *testing.T) {
	e, err := ParseElement("76194")
	require.NoError(t, err)
	require.Equal(t, "76194", e.String())

	_, err = ParseElement(R.String())
	require.ErrorIs(t, err, ErrFieldOverflow)

	for _, s := range []string{"", "-1", "0x10", "1e3", " 1"} {
		_, err = ParseElement(s)
		require.ErrorIs(t, err, ErrInvalidNumber, s)
	}
}

func testArtifact() Artifact {
	return Artifact{
		A: G1Point{X: big.NewInt(1), Y: big.NewInt(2)},
		B: G2Point{X0: big.NewInt(3), X1: big.NewInt(4), Y0: big.NewInt(5), Y1: big.NewInt(6)},
		C: G1Point{X: big.NewInt(7), Y: new(big.Int).Sub(Q, big.NewInt(1))},
		Signals: Signals{
			SalaryCommitment: ElementFromUint64(5861),
			PaymentNullifier: ElementFromUint64(76194),
			RecipientHash:    ElementFromUint64(3830),
		},
	}
}

func TestG2Order(t *testing.T) {
	p := G2Point{X0: big.NewInt(1), X1: big.NewInt(2), Y0: big.NewInt(3), Y1: big.NewInt(4)}
	b, err := p.Encode()
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, byte(i+1), b[(i+1)*ElementSize-1])
	}
	back, err := DecodeG2(b[:])
	require.NoError(t, err)
	require.Equal(t, p, back)
}

func TestPointCoordinatesUseBaseField(t *testing.T) {
	// R < Q, so a coordinate in [R, Q) is valid while the same value as a
	// public signal is not.
	p := G1Point{X: R, Y: big.NewInt(1)}
	b, err := p.Encode()
	require.NoError(t, err)
	_, err = DecodeG1(b[:])
	require.NoError(t, err)

	_, err = G1Point{X: Q, Y: big.NewInt(1)}.Encode()
	require.ErrorIs(t, err, ErrFieldOverflow)

	raw := make([]byte, G1Size)
	Q.FillBytes(raw[ElementSize:])
	_, err = DecodeG1(raw)
	require.ErrorIs(t, err, ErrFieldOverflow)
}

func TestArtifactRoundTrip(t *testing.T) {
	a := testArtifact()
	b, err := a.Encode()
	require.NoError(t, err)
	require.Len(t, b, 352)

	back, err := DecodeArtifact(b[:])
	require.NoError(t, err)
	require.Equal(t, a.B, back.B)
	require.True(t, back.Signals.PaymentNullifier.Equal(a.Signals.PaymentNullifier))

	h, err := a.Hex()
	require.NoError(t, err)
	require.Len(t, h, 704)
	require.Equal(t, strings.ToLower(h), h)

	fromHex, err := ParseHex(h)
	require.NoError(t, err)
	again, err := fromHex.Encode()
	require.NoError(t, err)
	require.Equal(t, b, again)
}

func TestArtifactRejectsDeviation(t *testing.T) {
	a := testArtifact()
	b, err := a.Encode()
	require.NoError(t, err)

	_, err = DecodeArtifact(b[:351])
	require.ErrorIs(t, err, ErrInvalidLength)
	_, err = DecodeArtifact(append(b[:], 0))
	require.ErrorIs(t, err, ErrInvalidLength)

	h, err := a.Hex()
	require.NoError(t, err)
	_, err = ParseHex(strings.ToUpper(h))
	require.ErrorIs(t, err, ErrInvalidHex)
	_, err = ParseHex(h[:702])
	require.ErrorIs(t, err, ErrInvalidLength)

	// nullifier segment set to R
	bad := b
	R.FillBytes(bad[256+32 : 256+64])
	_, err = DecodeArtifact(bad[:])
	require.ErrorIs(t, err, ErrFieldOverflow)
}

func TestArtifactJSON(t *testing.T) {
	a := testArtifact()
	data, err := json.Marshal(a)
	require.NoError(t, err)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(data, &fields))
	widths := map[string]int{
		"pi_a": 128, "pi_b": 256, "pi_c": 128,
		"salary_commitment": 64, "payment_nullifier": 64, "recipient_hash": 64,
	}
	require.Len(t, fields, len(widths))
	for k, w := range widths {
		require.Len(t, fields[k], w, k)
	}
	require.Equal(t, strings.Repeat("0", 60)+"16e5", fields["salary_commitment"])

	var back Artifact
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, a.B, back.B)

	// shifting one character between fields keeps the total width but must
	// still be rejected
	fields["pi_a"] += "0"
	fields["pi_b"] = fields["pi_b"][1:]
	shifted, err := json.Marshal(fields)
	require.NoError(t, err)
	err = json.Unmarshal(shifted, &back)
	require.ErrorIs(t, err, ErrInvalidLength)
}
