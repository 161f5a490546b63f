// Package prover produces payment proofs off-chain.
//
// Two producers exist: Gnark runs a real Groth16 prover over compiled circuit
// artifacts, Mock derives every value with fixed public arithmetic. Which one
// runs is decided once by Select, never per call.
package prover

import (
	"context"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/binding"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/types"
)

// Prover modes.
const (
	ModeAuto = "auto"
	ModeMock = "mock"
	ModeReal = "real"
)

// Artifact file names inside the artifacts directory.
const (
	CircuitFile         = "payment.r1cs"
	ProvingKeyFile      = "payment.pk"
	VerifyingKeyFile    = "payment.vk"
	VerificationKeyJSON = "verification_key.json"
)

// ErrArtifactsMissing is returned when real mode is requested without
// compiled circuit artifacts.
var ErrArtifactsMissing = errors.New("circuit artifacts missing")

// ErrBindingUnsupported is returned when a binding other than MiMC is paired
// with a mode that may run the circuit.
var ErrBindingUnsupported = errors.New("binding not supported by the circuit")

// CheckBinding reports whether proofs made in mode can use the binding
// called name. The circuit hashes with MiMC, so only mock mode accepts the
// others: in real or auto mode their commitments would never match a proof.
func CheckBinding(mode, name string) error {
	if mode == ModeMock || name == binding.NameMiMC || name == "" {
		return nil
	}
	return errors.Wrapf(ErrBindingUnsupported, "binding %q needs prover mode %q", name, ModeMock)
}

// Inputs are the private inputs of one payment proof.
type Inputs struct {
	Salary    *big.Int
	Blinding  *big.Int
	Nonce     *big.Int
	Recipient *big.Int
}

// ParseInputs parses decimal inputs. Values that do not fit the fixed width
// or the scalar field are rejected, never truncated or reduced.
func ParseInputs(salary, blinding, nonce, recipient string) (Inputs, error) {
	var in Inputs
	fields := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"salary", salary, &in.Salary},
		{"blinding", blinding, &in.Blinding},
		{"nonce", nonce, &in.Nonce},
		{"recipient", recipient, &in.Recipient},
	}
	for _, f := range fields {
		e, err := codec.ParseElement(f.value)
		if err != nil {
			return Inputs{}, errors.Wrap(err, f.name)
		}
		*f.dst = e.BigInt()
	}
	return in, nil
}

// Validate checks every input is a scalar field element.
func (in Inputs) Validate() error {
	names := []string{"salary", "blinding", "nonce", "recipient"}
	for i, v := range []*big.Int{in.Salary, in.Blinding, in.Nonce, in.Recipient} {
		if _, err := codec.NewElement(v); err != nil {
			return errors.Wrap(err, names[i])
		}
	}
	return nil
}

// Producer turns private inputs into a proof with its public signals.
type Producer interface {
	Prove(ctx context.Context, in Inputs) (*types.ZKProof, error)
}

// Option configures Select.
type Option func(*options)

type options struct {
	binding binding.Binding
	log     log.Logger
}

// WithBinding sets the binding the mock producer derives signals with. The
// gnark producer always uses MiMC, the hash its circuit constrains.
func WithBinding(b binding.Binding) Option {
	return func(o *options) {
		o.binding = b
	}
}

// WithLogger sets the logger used while selecting a producer.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Select returns the producer for mode. Auto picks Gnark when the artifacts
// in dir are present and Mock otherwise.
func Select(mode, dir string, opts ...Option) (Producer, error) {
	o := options{binding: binding.Linear{}, log: log.Root().New("module", "prover")}
	for _, opt := range opts {
		opt(&o)
	}
	switch mode {
	case ModeMock:
		o.log.Info("Using mock prover")
		return &Mock{Binding: o.binding}, nil
	case ModeReal:
		return LoadGnark(dir)
	case ModeAuto, "":
		if !ArtifactsPresent(dir) {
			o.log.Warn("Circuit artifacts not found, using mock prover", "dir", dir)
			return &Mock{Binding: o.binding}, nil
		}
		o.log.Info("Using gnark prover", "dir", dir)
		return LoadGnark(dir)
	default:
		return nil, errors.Errorf("unknown prover mode %q", mode)
	}
}

// ArtifactsPresent reports whether dir holds compiled circuit artifacts.
func ArtifactsPresent(dir string) bool {
	if dir == "" {
		return false
	}
	for _, name := range []string{CircuitFile, ProvingKeyFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}
