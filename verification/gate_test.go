package verification

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/internal/testutil"
	"github.com/zkpayroll/go-payroll-settlement/types"

	mock_verification "github.com/zkpayroll/go-payroll-settlement/verification/mock"
)

var alice = commitment.Key{Company: 1, Employee: "alice"}

func stored(s codec.Signals) *commitment.Record {
	return &commitment.Record{Commitment: s.SalaryCommitment.Bytes(), LiveUntil: 100}
}

func TestGateAcceptsValidProof(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := testutil.NewGroth16Fixture(1, 3)
	signals := testutil.Signals(5861, 76194, 3830)
	store := mock_verification.NewMockCommitmentReader(ctrl)
	store.EXPECT().Get(gomock.Any(), alice).Return(stored(signals), nil)

	g, err := NewGate(DefaultConfig(fx.VerificationKey), store)
	require.NoError(t, err)

	got, err := g.Verify(nil, alice, fx.ProveJSON(signals))
	require.NoError(t, err)
	require.Equal(t, types.NewPublicSignals(signals), types.NewPublicSignals(got))
}

func TestGateRejections(t *testing.T) {
	fx := testutil.NewGroth16Fixture(1, 3)
	signals := testutil.Signals(5861, 76194, 3830)

	tests := []struct {
		name     string
		proof    func() *types.ZKProof
		record   *commitment.Record
		expected error
	}{
		{
			name:     "nil proof",
			proof:    func() *types.ZKProof { return nil },
			expected: ErrUnsupportedProofFormat,
		},
		{
			name: "wrong protocol",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.Proof.Protocol = "plonk"
				return p
			},
			expected: ErrUnsupportedProofFormat,
		},
		{
			name: "wrong curve",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.Proof.Curve = "bls12381"
				return p
			},
			expected: ErrUnsupportedProofFormat,
		},
		{
			name: "projective coordinate",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.Proof.A[2] = "2"
				return p
			},
			expected: ErrUnsupportedProofFormat,
		},
		{
			name: "two public signals",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.PubSignals = p.PubSignals[:2]
				return p
			},
			expected: ErrUnsupportedProofFormat,
		},
		{
			name: "public signal not in field",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.PubSignals[1] = codec.R.String()
				return p
			},
			expected: codec.ErrFieldOverflow,
		},
		{
			name: "coordinate not in field",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.Proof.C[0] = codec.Q.String()
				return p
			},
			expected: codec.ErrFieldOverflow,
		},
		{
			name:     "commitment of another employee",
			proof:    func() *types.ZKProof { return fx.ProveJSON(signals) },
			record:   stored(testutil.Signals(9999, 0, 0)),
			expected: ErrCommitmentMismatch,
		},
		{
			name: "broken proof bound to another employee",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.PubSignals[1] = "1"
				return p
			},
			record:   stored(testutil.Signals(9999, 0, 0)),
			expected: ErrCommitmentMismatch,
		},
		{
			name: "tampered nullifier",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.PubSignals[1] = "76195"
				return p
			},
			record:   stored(signals),
			expected: ErrInvalidProof,
		},
		{
			name: "point not on curve",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.Proof.A = []string{"1", "1", "1"}
				return p
			},
			record:   stored(signals),
			expected: ErrInvalidProof,
		},
		{
			name: "g2 coordinates swapped",
			proof: func() *types.ZKProof {
				p := fx.ProveJSON(signals)
				p.Proof.B[0][0], p.Proof.B[0][1] = p.Proof.B[0][1], p.Proof.B[0][0]
				p.Proof.B[1][0], p.Proof.B[1][1] = p.Proof.B[1][1], p.Proof.B[1][0]
				return p
			},
			record:   stored(signals),
			expected: ErrInvalidProof,
		},
		{
			name:     "proof from another key",
			proof:    func() *types.ZKProof { return testutil.NewGroth16Fixture(2, 3).ProveJSON(signals) },
			record:   stored(signals),
			expected: ErrInvalidProof,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			store := mock_verification.NewMockCommitmentReader(ctrl)
			if tt.record != nil {
				store.EXPECT().Get(gomock.Any(), alice).Return(tt.record, nil)
			}
			g, err := NewGate(DefaultConfig(fx.VerificationKey), store)
			require.NoError(t, err)

			_, err = g.Verify(nil, alice, tt.proof())
			require.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestGateMissingCommitment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := testutil.NewGroth16Fixture(1, 3)
	store := mock_verification.NewMockCommitmentReader(ctrl)
	store.EXPECT().Get(gomock.Any(), alice).Return(nil, commitment.ErrNotFound)

	g, err := NewGate(DefaultConfig(fx.VerificationKey), store)
	require.NoError(t, err)
	_, err = g.Verify(nil, alice, fx.ProveJSON(testutil.Signals(1, 2, 3)))
	require.ErrorIs(t, err, commitment.ErrNotFound)
}

func TestGateCheck(t *testing.T) {
	fx := testutil.NewGroth16Fixture(3, 3)
	g, err := NewGate(DefaultConfig(fx.VerificationKey), nil)
	require.NoError(t, err)

	proof := fx.ProveJSON(testutil.Signals(1, 2, 3))
	a, err := g.Check(proof)
	require.NoError(t, err)
	require.Equal(t, "2", a.Signals.PaymentNullifier.String())

	proof.PubSignals[2] = "4"
	_, err = g.Check(proof)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestGateRequiresThreeInputs(t *testing.T) {
	fx := testutil.NewGroth16Fixture(1, 2)
	_, err := NewGate(DefaultConfig(fx.VerificationKey), nil)
	require.ErrorIs(t, err, ErrInvalidVerificationKey)

	_, err = NewGate(DefaultConfig([]byte(`{"vk_alpha_1": ["1"]}`)), nil)
	require.ErrorIs(t, err, ErrInvalidVerificationKey)
}

func TestRapidsnarkVerifier(t *testing.T) {
	fx := testutil.NewGroth16Fixture(5, 3)
	v, err := NewRapidsnarkVerifier(fx.VerificationKey)
	require.NoError(t, err)

	a := fx.Prove(testutil.Signals(10, 20, 30))
	require.NoError(t, v.Verify(a))

	a.Signals.RecipientHash = codec.ElementFromUint64(31)
	require.ErrorIs(t, v.Verify(a), ErrInvalidProof)

	_, err = NewRapidsnarkVerifier([]byte("not json"))
	require.ErrorIs(t, err, ErrInvalidVerificationKey)
}

func TestVerifiersAgree(t *testing.T) {
	fx := testutil.NewGroth16Fixture(8, 3)
	vk, err := ParseVerificationKey(fx.VerificationKey)
	require.NoError(t, err)
	bn := NewGroth16Verifier(vk)
	rs, err := NewRapidsnarkVerifier(fx.VerificationKey)
	require.NoError(t, err)

	valid := fx.Prove(testutil.Signals(7, 8, 9))
	invalid := valid
	invalid.Signals.SalaryCommitment = codec.ElementFromUint64(70)

	require.NoError(t, bn.Verify(valid))
	require.NoError(t, rs.Verify(valid))
	require.ErrorIs(t, bn.Verify(invalid), ErrInvalidProof)
	require.ErrorIs(t, rs.Verify(invalid), ErrInvalidProof)
}

func TestVerificationKeyRoundTrip(t *testing.T) {
	fx := testutil.NewGroth16Fixture(4, 3)
	vk, err := ParseVerificationKey(fx.VerificationKey)
	require.NoError(t, err)
	require.Equal(t, 3, vk.PublicInputs())

	out, err := json.Marshal(FromInternalVk(vk, "groth16", "bn128"))
	require.NoError(t, err)
	require.JSONEq(t, string(fx.VerificationKey), string(out))
}

func TestPointConversion(t *testing.T) {
	fx := testutil.NewGroth16Fixture(6, 3)
	a := fx.Prove(testutil.Signals(1, 1, 1))

	g1, err := toG1(a.A)
	require.NoError(t, err)
	require.Equal(t, a.A, G1ToPoint(g1))

	g2, err := toG2(a.B)
	require.NoError(t, err)
	require.Equal(t, a.B, G2ToPoint(g2))

	_, err = toG1(codec.G1Point{X: big.NewInt(1), Y: big.NewInt(1)})
	require.Error(t, err)
}
