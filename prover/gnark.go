package prover

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/binding"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/types"
)

// Gnark proves payments with a compiled PaymentCircuit.
type Gnark struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	log log.Logger
}

// LoadGnark reads the compiled circuit and proving key from dir.
func LoadGnark(dir string) (*Gnark, error) {
	if !ArtifactsPresent(dir) {
		return nil, errors.Wrapf(ErrArtifactsMissing, "in %q", dir)
	}
	ccs := groth16.NewCS(ecc.BN254)
	if err := readFrom(filepath.Join(dir, CircuitFile), ccs); err != nil {
		return nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFrom(filepath.Join(dir, ProvingKeyFile), pk); err != nil {
		return nil, err
	}
	return &Gnark{ccs: ccs, pk: pk, log: log.Root().New("module", "prover")}, nil
}

// Prove implements Producer. The public signals are computed natively with
// MiMC and then proven against the circuit.
func (g *Gnark) Prove(ctx context.Context, in Inputs) (*types.ZKProof, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Salary.BitLen() > SalaryBits {
		return nil, errors.Wrapf(codec.ErrValueTooLarge, "salary wider than %d bits", SalaryBits)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var h binding.MiMC
	cm, err := h.Commitment(in.Salary, in.Blinding)
	if err != nil {
		return nil, err
	}
	n, err := h.Nullifier(cm, in.Nonce)
	if err != nil {
		return nil, err
	}
	rh, err := h.RecipientHash(in.Recipient, in.Blinding)
	if err != nil {
		return nil, err
	}

	assignment := PaymentCircuit{
		SalaryCommitment: cm,
		PaymentNullifier: n,
		RecipientHash:    rh,
		Salary:           in.Salary,
		Blinding:         in.Blinding,
		Nonce:            in.Nonce,
		Recipient:        in.Recipient,
	}
	w, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, errors.Wrap(err, "build witness")
	}
	proof, err := groth16.Prove(g.ccs, g.pk, w)
	if err != nil {
		return nil, errors.Wrap(err, "prove")
	}
	p, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, errors.Errorf("unexpected proof type %T", proof)
	}

	a := codec.Artifact{
		A: g1Point(p.Ar),
		B: g2Point(p.Bs),
		C: g1Point(p.Krs),
		Signals: codec.Signals{
			SalaryCommitment: codec.MustElement(cm),
			PaymentNullifier: codec.MustElement(n),
			RecipientHash:    codec.MustElement(rh),
		},
	}
	g.log.Debug("Payment proof generated", "nullifier", n.String())
	return types.NewZKProof(a, constants.ProtocolGroth16, constants.CurveBN128), nil
}

// Setup compiles PaymentCircuit, runs a single party Groth16 setup and writes
// the artifacts to dir, including the verifying key in snarkjs JSON. The
// toxic waste of a single party setup is known to whoever runs it, so the
// result is for development and tests only.
func Setup(dir string) (*types.VerificationKey, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &PaymentCircuit{})
	if err != nil {
		return nil, errors.Wrap(err, "compile circuit")
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, errors.Wrap(err, "groth16 setup")
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	for name, obj := range map[string]io.WriterTo{
		CircuitFile:      ccs,
		ProvingKeyFile:   pk,
		VerifyingKeyFile: vk,
	} {
		if err = writeTo(filepath.Join(dir, name), obj); err != nil {
			return nil, err
		}
	}

	out, err := ExportVerificationKey(vk)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	if err = os.WriteFile(filepath.Join(dir, VerificationKeyJSON), b, 0o644); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportVerificationKey renders a gnark bn254 verifying key in snarkjs JSON.
func ExportVerificationKey(vk groth16.VerifyingKey) (*types.VerificationKey, error) {
	k, ok := vk.(*groth16_bn254.VerifyingKey)
	if !ok {
		return nil, errors.Errorf("unexpected verifying key type %T", vk)
	}
	out := &types.VerificationKey{
		Protocol: constants.ProtocolGroth16,
		Curve:    constants.CurveBN128,
		NPublic:  len(k.G1.K) - 1,
		Alpha:    g1Strings(k.G1.Alpha),
		Beta:     g2Strings(k.G2.Beta),
		Gamma:    g2Strings(k.G2.Gamma),
		Delta:    g2Strings(k.G2.Delta),
	}
	for _, p := range k.G1.K {
		out.IC = append(out.IC, g1Strings(p))
	}
	return out, nil
}

func g1Point(p curve.G1Affine) codec.G1Point {
	return codec.G1Point{
		X: p.X.BigInt(new(big.Int)),
		Y: p.Y.BigInt(new(big.Int)),
	}
}

// E2 elements are A0 + A1·u, so A0 is the real part.
func g2Point(p curve.G2Affine) codec.G2Point {
	return codec.G2Point{
		X0: p.X.A0.BigInt(new(big.Int)),
		X1: p.X.A1.BigInt(new(big.Int)),
		Y0: p.Y.A0.BigInt(new(big.Int)),
		Y1: p.Y.A1.BigInt(new(big.Int)),
	}
}

func g1Strings(p curve.G1Affine) []string {
	q := g1Point(p)
	return []string{q.X.String(), q.Y.String(), "1"}
}

func g2Strings(p curve.G2Affine) [][]string {
	q := g2Point(p)
	return [][]string{{q.X0.String(), q.X1.String()}, {q.Y0.String(), q.Y1.String()}, {"1", "0"}}
}

func writeTo(path string, obj io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err = obj.WriteTo(f); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Sync()
}

func readFrom(path string, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err = obj.ReadFrom(f); err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	return nil
}
