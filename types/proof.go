package types

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/codec"
)

// ErrMalformedProof is returned when a proof does not have the standard shape.
var ErrMalformedProof = errors.New("malformed proof")

// ProofData describes three components of zkp proof in the standard
// projective decimal form.
type ProofData struct {
	A        []string   `json:"pi_a"`
	B        [][]string `json:"pi_b"`
	C        []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve"`
}

// PublicSignals is the ordered
// [salary_commitment, payment_nullifier, recipient_hash] array.
type PublicSignals []string

// ZKProof is a proof together with the public signals it was produced for.
type ZKProof struct {
	Proof      *ProofData    `json:"proof"`
	PubSignals PublicSignals `json:"pub_signals"`
}

// NewZKProof converts a decoded artifact to the standard representation.
func NewZKProof(a codec.Artifact, protocol, curve string) *ZKProof {
	return &ZKProof{
		Proof: &ProofData{
			A: []string{a.A.X.String(), a.A.Y.String(), "1"},
			B: [][]string{
				{a.B.X0.String(), a.B.X1.String()},
				{a.B.Y0.String(), a.B.Y1.String()},
				{"1", "0"},
			},
			C:        []string{a.C.X.String(), a.C.Y.String(), "1"},
			Protocol: protocol,
			Curve:    curve,
		},
		PubSignals: NewPublicSignals(a.Signals),
	}
}

// NewPublicSignals returns the decimal form of s.
func NewPublicSignals(s codec.Signals) PublicSignals {
	return PublicSignals{
		s.SalaryCommitment.String(),
		s.PaymentNullifier.String(),
		s.RecipientHash.String(),
	}
}

// Signals parses the public signals, which must be exactly three field elements.
func (p PublicSignals) Signals() (codec.Signals, error) {
	var s codec.Signals
	if len(p) != 3 {
		return s, errors.Wrapf(ErrMalformedProof, "expected 3 public signals, got %d", len(p))
	}
	dst := []*codec.Element{&s.SalaryCommitment, &s.PaymentNullifier, &s.RecipientHash}
	for i, v := range p {
		e, err := codec.ParseElement(v)
		if err != nil {
			return s, errors.Wrapf(err, "public signal %d", i)
		}
		*dst[i] = e
	}
	return s, nil
}

// ToBigInt returns the public signals as integers without range checks.
func (p PublicSignals) ToBigInt() ([]*big.Int, error) {
	out := make([]*big.Int, len(p))
	for i, v := range p {
		n, err := codec.ParseDecimal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "public signal %d", i)
		}
		out[i] = n
	}
	return out, nil
}

// Artifact checks the proof shape and parses every coordinate and signal.
// Coordinates must be base field elements, signals scalar field elements.
func (z *ZKProof) Artifact() (codec.Artifact, error) {
	var a codec.Artifact
	if z == nil || z.Proof == nil {
		return a, errors.Wrap(ErrMalformedProof, "missing proof")
	}
	p := z.Proof
	if err := checkG1Shape(p.A); err != nil {
		return a, errors.Wrap(err, "pi_a")
	}
	if err := checkG2Shape(p.B); err != nil {
		return a, errors.Wrap(err, "pi_b")
	}
	if err := checkG1Shape(p.C); err != nil {
		return a, errors.Wrap(err, "pi_c")
	}
	if len(z.PubSignals) != 3 {
		return a, errors.Wrapf(ErrMalformedProof, "expected 3 public signals, got %d", len(z.PubSignals))
	}

	var err error
	if a.A, err = parseG1(p.A); err != nil {
		return a, errors.Wrap(err, "pi_a")
	}
	if a.B, err = parseG2(p.B); err != nil {
		return a, errors.Wrap(err, "pi_b")
	}
	if a.C, err = parseG1(p.C); err != nil {
		return a, errors.Wrap(err, "pi_c")
	}
	if a.Signals, err = z.PubSignals.Signals(); err != nil {
		return a, err
	}
	return a, nil
}

func checkG1Shape(v []string) error {
	if len(v) != 3 || v[2] != "1" {
		return errors.Wrap(ErrMalformedProof, "expected [x, y, \"1\"]")
	}
	return nil
}

func checkG2Shape(v [][]string) error {
	if len(v) != 3 || len(v[0]) != 2 || len(v[1]) != 2 || len(v[2]) != 2 ||
		v[2][0] != "1" || v[2][1] != "0" {
		return errors.Wrap(ErrMalformedProof, "expected [[x0, x1], [y0, y1], [\"1\", \"0\"]]")
	}
	return nil
}

func parseCoordinates(vs ...string) ([]*big.Int, error) {
	out := make([]*big.Int, len(vs))
	for i, s := range vs {
		n, err := codec.ParseDecimal(s)
		if err != nil {
			return nil, err
		}
		if err = codec.CheckCoordinate(n); err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseG1(v []string) (codec.G1Point, error) {
	c, err := parseCoordinates(v[0], v[1])
	if err != nil {
		return codec.G1Point{}, err
	}
	return codec.G1Point{X: c[0], Y: c[1]}, nil
}

func parseG2(v [][]string) (codec.G2Point, error) {
	c, err := parseCoordinates(v[0][0], v[0][1], v[1][0], v[1][1])
	if err != nil {
		return codec.G2Point{}, err
	}
	return codec.G2Point{X0: c[0], X1: c[1], Y0: c[2], Y1: c[3]}, nil
}
