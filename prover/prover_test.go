package prover

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
	"github.com/zkpayroll/go-payroll-settlement/binding"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/internal/models"
	"github.com/zkpayroll/go-payroll-settlement/internal/testutil"
	"github.com/zkpayroll/go-payroll-settlement/verification"
)

func mustInputs(t *testing.T, s, b, k, r string) Inputs {
	t.Helper()
	in, err := ParseInputs(s, b, k, r)
	require.NoError(t, err)
	return in
}

func mustVk(t *testing.T, vkJSON []byte) *models.VerifyingKey {
	t.Helper()
	vk, err := verification.ParseVerificationKey(vkJSON)
	require.NoError(t, err)
	return vk
}

func TestMockProof(t *testing.T) {
	in := mustInputs(t, "5000", "123", "1", "42")
	proof, err := NewMock().Prove(context.Background(), in)
	require.NoError(t, err)

	require.Equal(t, []string{"11723", "228584", "1"}, proof.Proof.A)
	require.Equal(t, [][]string{{"25123", "862"}, {"5011", "61"}, {"1", "0"}}, proof.Proof.B)
	require.Equal(t, []string{"82055", "88119", "1"}, proof.Proof.C)
	require.Equal(t, "groth16", proof.Proof.Protocol)
	require.Equal(t, "bn128", proof.Proof.Curve)
	require.Equal(t, []string{"5861", "76194", "3830"}, []string(proof.PubSignals))
}

func TestMockArtifactGolden(t *testing.T) {
	a, err := NewMock().Artifact(mustInputs(t, "5000", "123", "1", "42"))
	require.NoError(t, err)
	h, err := a.Hex()
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "mock_artifact", []byte(h))
}

func TestMockDeterministic(t *testing.T) {
	in := mustInputs(t, "99999", "77", "3", "5")
	a1, err := NewMock().Artifact(in)
	require.NoError(t, err)
	a2, err := NewMock().Artifact(in)
	require.NoError(t, err)

	b1, err := a1.Encode()
	require.NoError(t, err)
	b2, err := a2.Encode()
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}

func TestMockRejectedByGate(t *testing.T) {
	fx := testutil.NewGroth16Fixture(11, 3)
	g, err := verification.NewGate(verification.DefaultConfig(fx.VerificationKey), nil)
	require.NoError(t, err)

	proof, err := NewMock().Prove(context.Background(), mustInputs(t, "5000", "123", "1", "42"))
	require.NoError(t, err)
	_, err = g.Check(proof)
	require.ErrorIs(t, err, verification.ErrInvalidProof)
}

func TestParseInputs(t *testing.T) {
	tooWide := new(big.Int).Lsh(big.NewInt(1), 256).String()
	tests := []struct {
		name   string
		salary string
		nonce  string
		err    error
	}{
		{name: "ok", salary: "5000", nonce: "1"},
		{name: "modulus", salary: codec.R.String(), nonce: "1", err: codec.ErrFieldOverflow},
		{name: "wider than 256 bits", salary: "1", nonce: tooWide, err: codec.ErrValueTooLarge},
		{name: "not a number", salary: "12a", nonce: "1", err: codec.ErrInvalidNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInputs(tt.salary, "123", tt.nonce, "42")
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSelect(t *testing.T) {
	dir := t.TempDir()

	p, err := Select(ModeAuto, dir)
	require.NoError(t, err)
	require.IsType(t, &Mock{}, p)

	p, err = Select(ModeMock, dir)
	require.NoError(t, err)
	require.IsType(t, &Mock{}, p)

	_, err = Select(ModeReal, dir)
	require.ErrorIs(t, err, ErrArtifactsMissing)

	_, err = Select("fast", dir)
	require.Error(t, err)
}

func TestCheckBinding(t *testing.T) {
	require.NoError(t, CheckBinding(ModeMock, binding.NameLinear))
	require.NoError(t, CheckBinding(ModeMock, binding.NamePoseidon))
	require.NoError(t, CheckBinding(ModeReal, binding.NameMiMC))
	require.NoError(t, CheckBinding(ModeAuto, ""))
	require.ErrorIs(t, CheckBinding(ModeReal, binding.NameLinear), ErrBindingUnsupported)
	require.ErrorIs(t, CheckBinding(ModeAuto, binding.NamePoseidon), ErrBindingUnsupported)
}

func TestGnarkProverVerifiedByGate(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup in short mode")
	}
	dir := t.TempDir()
	vk, err := Setup(dir)
	require.NoError(t, err)
	require.Equal(t, 3, vk.NPublic)
	require.True(t, ArtifactsPresent(dir))

	vkJSON, err := os.ReadFile(filepath.Join(dir, VerificationKeyJSON))
	require.NoError(t, err)
	var onDisk map[string]interface{}
	require.NoError(t, json.Unmarshal(vkJSON, &onDisk))
	require.Equal(t, "groth16", onDisk["protocol"])

	p, err := Select(ModeAuto, dir)
	require.NoError(t, err)
	require.IsType(t, &Gnark{}, p)

	in := mustInputs(t, "5000", "123", "1", "42")
	proof, err := p.Prove(context.Background(), in)
	require.NoError(t, err)

	var h binding.MiMC
	cm, err := h.Commitment(in.Salary, in.Blinding)
	require.NoError(t, err)
	require.Equal(t, cm.String(), proof.PubSignals[0])

	g, err := verification.NewGate(verification.DefaultConfig(vkJSON), nil)
	require.NoError(t, err)
	a, err := g.Check(proof)
	require.NoError(t, err)

	rs, err := verification.NewRapidsnarkVerifier(vkJSON)
	require.NoError(t, err)
	require.NoError(t, rs.Verify(a))

	// The byte form survives a round trip and still verifies.
	blob, err := a.Encode()
	require.NoError(t, err)
	decoded, err := codec.DecodeArtifact(blob[:])
	require.NoError(t, err)
	require.NoError(t, verification.NewGroth16Verifier(mustVk(t, vkJSON)).Verify(decoded))

	tampered := *proof
	tampered.PubSignals = append([]string(nil), proof.PubSignals...)
	tampered.PubSignals[1] = "1"
	_, err = g.Check(&tampered)
	require.ErrorIs(t, err, verification.ErrInvalidProof)

	_, err = p.Prove(context.Background(), mustInputs(t, new(big.Int).Lsh(big.NewInt(1), 64).String(), "123", "1", "42"))
	require.ErrorIs(t, err, codec.ErrValueTooLarge)
}
