package codec

import (
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
)

// ArtifactSize is the width of a complete encoded artifact:
// pi_a(64) ‖ pi_b(128) ‖ pi_c(64) ‖ salary_commitment(32) ‖
// payment_nullifier(32) ‖ recipient_hash(32).
const ArtifactSize = G1Size + G2Size + G1Size + 3*ElementSize

// ErrInvalidHex is returned for hex input that is not lowercase hexadecimal.
var ErrInvalidHex = errors.New("invalid lowercase hex")

// Signals is the ordered public signals triple.
type Signals struct {
	SalaryCommitment Element
	PaymentNullifier Element
	RecipientHash    Element
}

// Slice returns the signals in circuit order.
func (s Signals) Slice() []Element {
	return []Element{s.SalaryCommitment, s.PaymentNullifier, s.RecipientHash}
}

// Artifact is a proof together with its public signals.
type Artifact struct {
	A       G1Point
	B       G2Point
	C       G1Point
	Signals Signals
}

// Encode returns the 352-byte blob.
func (a Artifact) Encode() ([ArtifactSize]byte, error) {
	var out [ArtifactSize]byte
	pa, err := a.A.Encode()
	if err != nil {
		return out, errors.Wrap(err, "pi_a")
	}
	pb, err := a.B.Encode()
	if err != nil {
		return out, errors.Wrap(err, "pi_b")
	}
	pc, err := a.C.Encode()
	if err != nil {
		return out, errors.Wrap(err, "pi_c")
	}
	off := copy(out[:], pa[:])
	off += copy(out[off:], pb[:])
	off += copy(out[off:], pc[:])
	for _, e := range a.Signals.Slice() {
		b := e.Bytes()
		off += copy(out[off:], b[:])
	}
	return out, nil
}

// DecodeArtifact decodes exactly 352 bytes.
func DecodeArtifact(b []byte) (Artifact, error) {
	if len(b) != ArtifactSize {
		return Artifact{}, errors.Wrapf(ErrInvalidLength, "artifact: expected %d bytes, got %d", ArtifactSize, len(b))
	}
	var (
		a   Artifact
		err error
		off int
	)
	if a.A, err = DecodeG1(b[off : off+G1Size]); err != nil {
		return Artifact{}, errors.Wrap(err, "pi_a")
	}
	off += G1Size
	if a.B, err = DecodeG2(b[off : off+G2Size]); err != nil {
		return Artifact{}, errors.Wrap(err, "pi_b")
	}
	off += G2Size
	if a.C, err = DecodeG1(b[off : off+G1Size]); err != nil {
		return Artifact{}, errors.Wrap(err, "pi_c")
	}
	off += G1Size
	sig := []*Element{&a.Signals.SalaryCommitment, &a.Signals.PaymentNullifier, &a.Signals.RecipientHash}
	for i, dst := range sig {
		if *dst, err = DecodeElement(b[off : off+ElementSize]); err != nil {
			return Artifact{}, errors.Wrapf(err, "public signal %d", i)
		}
		off += ElementSize
	}
	return a, nil
}

// Hex returns the 704-character lowercase hex form.
func (a Artifact) Hex() (string, error) {
	b, err := a.Encode()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// ParseHex decodes the 704-character lowercase hex form.
func ParseHex(s string) (Artifact, error) {
	b, err := decodeHex(s, 2*ArtifactSize)
	if err != nil {
		return Artifact{}, errors.Wrap(err, "artifact")
	}
	return DecodeArtifact(b)
}

// byteArtifact is the byte-oriented JSON representation.
type byteArtifact struct {
	PiA              string `json:"pi_a"`
	PiB              string `json:"pi_b"`
	PiC              string `json:"pi_c"`
	SalaryCommitment string `json:"salary_commitment"`
	PaymentNullifier string `json:"payment_nullifier"`
	RecipientHash    string `json:"recipient_hash"`
}

// MarshalJSON writes the byte-oriented representation.
func (a Artifact) MarshalJSON() ([]byte, error) {
	b, err := a.Encode()
	if err != nil {
		return nil, err
	}
	h := hex.EncodeToString(b[:])
	var (
		out byteArtifact
		off int
	)
	take := func(n int) string {
		s := h[off : off+2*n]
		off += 2 * n
		return s
	}
	out.PiA = take(G1Size)
	out.PiB = take(G2Size)
	out.PiC = take(G1Size)
	out.SalaryCommitment = take(ElementSize)
	out.PaymentNullifier = take(ElementSize)
	out.RecipientHash = take(ElementSize)
	return json.Marshal(out)
}

// UnmarshalJSON reads the byte-oriented representation. Each field is checked
// against its own width before anything is decoded.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	var in byteArtifact
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	fields := []struct {
		name  string
		value string
		size  int
	}{
		{"pi_a", in.PiA, G1Size},
		{"pi_b", in.PiB, G2Size},
		{"pi_c", in.PiC, G1Size},
		{"salary_commitment", in.SalaryCommitment, ElementSize},
		{"payment_nullifier", in.PaymentNullifier, ElementSize},
		{"recipient_hash", in.RecipientHash, ElementSize},
	}
	blob := make([]byte, 0, ArtifactSize)
	for _, f := range fields {
		b, err := decodeHex(f.value, 2*f.size)
		if err != nil {
			return errors.Wrap(err, f.name)
		}
		blob = append(blob, b...)
	}
	dec, err := DecodeArtifact(blob)
	if err != nil {
		return err
	}
	*a = dec
	return nil
}

func decodeHex(s string, width int) ([]byte, error) {
	if len(s) != width {
		return nil, errors.Wrapf(ErrInvalidLength, "expected %d hex characters, got %d", width, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, errors.Wrapf(ErrInvalidHex, "character %q at %d", c, i)
		}
	}
	return hex.DecodeString(s)
}
