package verification

import (
	"encoding/json"
	"math/big"

	bn256 "github.com/ethereum/go-ethereum/crypto/bn256/cloudflare"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/internal/models"
	"github.com/zkpayroll/go-payroll-settlement/types"
)

// ErrInvalidVerificationKey is returned when a verifying key cannot be parsed.
var ErrInvalidVerificationKey = errors.New("invalid verification key")

// ParseVerificationKey parses a snarkjs verifying key.
func ParseVerificationKey(data []byte) (*models.VerifyingKey, error) {
	var vk types.VerificationKey
	if err := json.Unmarshal(data, &vk); err != nil {
		return nil, errors.Wrap(ErrInvalidVerificationKey, err.Error())
	}
	return ToInternalVk(vk)
}

// ToInternalVk converts a snarkjs verifying key to bn256 points.
func ToInternalVk(vk types.VerificationKey) (*models.VerifyingKey, error) {
	var (
		out models.VerifyingKey
		err error
	)
	if out.Alpha, err = parseG1(vk.Alpha); err != nil {
		return nil, errors.Wrapf(ErrInvalidVerificationKey, "vk_alpha_1: %v", err)
	}
	if out.Beta, err = parseG2(vk.Beta); err != nil {
		return nil, errors.Wrapf(ErrInvalidVerificationKey, "vk_beta_2: %v", err)
	}
	if out.Gamma, err = parseG2(vk.Gamma); err != nil {
		return nil, errors.Wrapf(ErrInvalidVerificationKey, "vk_gamma_2: %v", err)
	}
	if out.Delta, err = parseG2(vk.Delta); err != nil {
		return nil, errors.Wrapf(ErrInvalidVerificationKey, "vk_delta_2: %v", err)
	}
	if len(vk.IC) == 0 {
		return nil, errors.Wrap(ErrInvalidVerificationKey, "empty IC")
	}
	out.IC = make([]*bn256.G1, len(vk.IC))
	for i, p := range vk.IC {
		if out.IC[i], err = parseG1(p); err != nil {
			return nil, errors.Wrapf(ErrInvalidVerificationKey, "IC[%d]: %v", i, err)
		}
	}
	if vk.NPublic != 0 && vk.NPublic != out.PublicInputs() {
		return nil, errors.Wrapf(ErrInvalidVerificationKey, "nPublic %d but %d IC points", vk.NPublic, len(vk.IC))
	}
	return &out, nil
}

// FromInternalVk renders a bn256 verifying key in the snarkjs layout.
func FromInternalVk(vk *models.VerifyingKey, protocol, curve string) types.VerificationKey {
	out := types.VerificationKey{
		Protocol: protocol,
		Curve:    curve,
		NPublic:  vk.PublicInputs(),
		Alpha:    formatG1(vk.Alpha),
		Beta:     formatG2(vk.Beta),
		Gamma:    formatG2(vk.Gamma),
		Delta:    formatG2(vk.Delta),
		IC:       make([][]string, len(vk.IC)),
	}
	for i, p := range vk.IC {
		out.IC[i] = formatG1(p)
	}
	return out
}

func parseProjective(v []string, one ...string) ([]*big.Int, error) {
	n := len(v) - len(one)
	if n < 0 {
		return nil, errors.New("too few coordinates")
	}
	for i, want := range one {
		if v[n+i] != want {
			return nil, errors.Errorf("expected projective coordinate %q, got %q", want, v[n+i])
		}
	}
	out := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		c, err := codec.ParseDecimal(v[i])
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func parseG1(v []string) (*bn256.G1, error) {
	if len(v) != 3 {
		return nil, errors.Errorf("expected 3 coordinates, got %d", len(v))
	}
	c, err := parseProjective(v, "1")
	if err != nil {
		return nil, err
	}
	return toG1(codec.G1Point{X: c[0], Y: c[1]})
}

func parseG2(v [][]string) (*bn256.G2, error) {
	if len(v) != 3 || len(v[0]) != 2 || len(v[1]) != 2 {
		return nil, errors.New("expected [[x0, x1], [y0, y1], [\"1\", \"0\"]]")
	}
	if _, err := parseProjective(v[2], "1", "0"); err != nil {
		return nil, err
	}
	c, err := parseProjective([]string{v[0][0], v[0][1], v[1][0], v[1][1]})
	if err != nil {
		return nil, err
	}
	return toG2(codec.G2Point{X0: c[0], X1: c[1], Y0: c[2], Y1: c[3]})
}

func formatG1(g *bn256.G1) []string {
	p := G1ToPoint(g)
	return []string{p.X.String(), p.Y.String(), "1"}
}

func formatG2(g *bn256.G2) [][]string {
	p := G2ToPoint(g)
	return [][]string{
		{p.X0.String(), p.X1.String()},
		{p.Y0.String(), p.Y1.String()},
		{"1", "0"},
	}
}
