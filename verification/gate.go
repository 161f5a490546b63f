package verification

import (
	"bytes"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
	"github.com/zkpayroll/go-payroll-settlement/types"
)

//go:generate mockgen -destination=mock/CommitmentReaderMock.go . CommitmentReader

var (
	// ErrUnsupportedProofFormat is returned when the protocol or curve tag is
	// unexpected or the proof does not have the standard shape.
	ErrUnsupportedProofFormat = errors.New("unsupported proof format")
	// ErrCommitmentMismatch is returned when the salary commitment signal does
	// not equal the commitment stored for the target employee.
	ErrCommitmentMismatch = errors.New("commitment mismatch")
	// ErrInvalidProof is returned when the pairing check fails.
	ErrInvalidProof = errors.New("invalid proof")
)

// CommitmentReader reads the commitment currently stored for an employee.
type CommitmentReader interface {
	Get(txn *ledger.Txn, key commitment.Key) (*commitment.Record, error)
}

// Config is the circuit specific configuration of a gate.
type Config struct {
	VerificationKey []byte
	Protocol        string
	Curve           string
}

// DefaultConfig returns a Groth16/bn128 config for vkJSON.
func DefaultConfig(vkJSON []byte) Config {
	return Config{
		VerificationKey: vkJSON,
		Protocol:        constants.ProtocolGroth16,
		Curve:           constants.CurveBN128,
	}
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithVerifier replaces the default bn256 verifier.
func WithVerifier(v Verifier) GateOption {
	return func(g *Gate) {
		g.verifier = v
	}
}

// WithLogger sets the gate logger.
func WithLogger(l log.Logger) GateOption {
	return func(g *Gate) {
		g.log = l
	}
}

// Gate admits proofs that are well formed, bound to a stored commitment and
// valid under a fixed verifying key.
type Gate struct {
	cfg      Config
	store    CommitmentReader
	verifier Verifier
	log      log.Logger
}

// NewGate parses the verifying key in cfg and returns a gate reading
// commitments from store.
func NewGate(cfg Config, store CommitmentReader, opts ...GateOption) (*Gate, error) {
	g := &Gate{
		cfg:   cfg,
		store: store,
		log:   log.Root().New("module", "verification"),
	}
	for _, opt := range opts {
		opt(g)
	}
	vk, err := ParseVerificationKey(cfg.VerificationKey)
	if err != nil {
		return nil, err
	}
	if vk.PublicInputs() != 3 {
		return nil, errors.Wrapf(ErrInvalidVerificationKey, "key expects %d public inputs, want 3", vk.PublicInputs())
	}
	if g.verifier == nil {
		g.verifier = NewGroth16Verifier(vk)
	}
	return g, nil
}

// Verify runs the tag, range, binding and pairing checks in that order and
// returns the validated public signals. It only reads from txn.
func (g *Gate) Verify(txn *ledger.Txn, key commitment.Key, proof *types.ZKProof) (codec.Signals, error) {
	a, err := g.decode(proof)
	if err != nil {
		return codec.Signals{}, err
	}

	rec, err := g.store.Get(txn, key)
	if err != nil {
		return codec.Signals{}, errors.Wrap(err, "binding check")
	}
	cm := a.Signals.SalaryCommitment.Bytes()
	if !bytes.Equal(rec.Commitment[:], cm[:]) {
		g.log.Debug("Salary commitment does not match stored record",
			"company", key.Company, "employee", key.Employee, "version", rec.Version)
		return codec.Signals{}, ErrCommitmentMismatch
	}

	if err = g.verifier.Verify(a); err != nil {
		return codec.Signals{}, err
	}
	return a.Signals, nil
}

// Check runs the tag, range and pairing checks without a commitment binding.
// It is meant for offline validation of a freshly produced proof.
func (g *Gate) Check(proof *types.ZKProof) (codec.Artifact, error) {
	a, err := g.decode(proof)
	if err != nil {
		return codec.Artifact{}, err
	}
	if err = g.verifier.Verify(a); err != nil {
		return codec.Artifact{}, err
	}
	return a, nil
}

func (g *Gate) decode(proof *types.ZKProof) (codec.Artifact, error) {
	if proof == nil || proof.Proof == nil {
		return codec.Artifact{}, errors.Wrap(ErrUnsupportedProofFormat, "missing proof")
	}
	if proof.Proof.Protocol != g.cfg.Protocol || proof.Proof.Curve != g.cfg.Curve {
		return codec.Artifact{}, errors.Wrapf(ErrUnsupportedProofFormat, "protocol %q curve %q",
			proof.Proof.Protocol, proof.Proof.Curve)
	}
	a, err := proof.Artifact()
	if errors.Is(err, types.ErrMalformedProof) {
		return codec.Artifact{}, errors.Wrap(ErrUnsupportedProofFormat, err.Error())
	}
	if err != nil {
		return codec.Artifact{}, err
	}
	return a, nil
}
