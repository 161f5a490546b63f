package verification

import (
	"encoding/json"
	"math/big"

	"github.com/iden3/go-rapidsnark/verifier"
	rapidsnark "github.com/iden3/go-rapidsnark/types"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/internal/models"
	"github.com/zkpayroll/go-payroll-settlement/types"
)

// Verifier runs the pairing check for an already range-checked artifact.
type Verifier interface {
	Verify(a codec.Artifact) error
}

// Groth16Verifier checks proofs with the bn256 pairing.
type Groth16Verifier struct {
	vk *models.VerifyingKey
}

// NewGroth16Verifier returns a verifier bound to vk.
func NewGroth16Verifier(vk *models.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// Verify checks the Groth16 equation. Points that are not on the curve fail
// the same way as a wrong proof.
func (v *Groth16Verifier) Verify(a codec.Artifact) error {
	p, err := toPairingData(a)
	if err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	inputs := make([]*big.Int, 0, 3)
	for _, s := range a.Signals.Slice() {
		inputs = append(inputs, s.BigInt())
	}
	return verifyGroth16(v.vk, p, inputs)
}

// verifyGroth16 performs the verification the Groth16 zkSNARK proofs
func verifyGroth16(vk *models.VerifyingKey, proof models.PairingProof, inputs []*big.Int) error {
	if len(inputs)+1 != len(vk.IC) {
		return errors.Wrapf(ErrInvalidProof, "%d public inputs, key expects %d", len(inputs), vk.PublicInputs())
	}
	for i, in := range inputs {
		if in.Cmp(codec.R) != -1 {
			return errors.Wrapf(codec.ErrFieldOverflow, "public input %d", i)
		}
	}
	if !vk.Pairs(proof, inputs) {
		return ErrInvalidProof
	}
	return nil
}

// RapidsnarkVerifier delegates the pairing check to go-rapidsnark. It takes
// the verifying key in its JSON form.
type RapidsnarkVerifier struct {
	vkJSON []byte
}

// NewRapidsnarkVerifier returns a verifier bound to the snarkjs key in vkJSON.
func NewRapidsnarkVerifier(vkJSON []byte) (*RapidsnarkVerifier, error) {
	if !json.Valid(vkJSON) {
		return nil, ErrInvalidVerificationKey
	}
	return &RapidsnarkVerifier{vkJSON: vkJSON}, nil
}

// Verify converts a to the rapidsnark proof type and checks it.
func (v *RapidsnarkVerifier) Verify(a codec.Artifact) error {
	z := types.NewZKProof(a, constants.ProtocolGroth16, constants.CurveBN128)
	proof := rapidsnark.ZKProof{
		Proof: &rapidsnark.ProofData{
			A:        z.Proof.A,
			B:        z.Proof.B,
			C:        z.Proof.C,
			Protocol: z.Proof.Protocol,
		},
		PubSignals: z.PubSignals,
	}
	if err := verifier.VerifyGroth16(proof, v.vkJSON); err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	return nil
}
