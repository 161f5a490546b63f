package cli

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/internal/config"
	"github.com/zkpayroll/go-payroll-settlement/types"
	"github.com/zkpayroll/go-payroll-settlement/verification"
)

// VerifyResult is printed by verify.
type VerifyResult struct {
	Valid            bool   `json:"valid"`
	SalaryCommitment string `json:"salary_commitment"`
	PaymentNullifier string `json:"payment_nullifier"`
	RecipientHash    string `json:"recipient_hash"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var artifact bool
	cmd := &cobra.Command{
		Use:   "verify <proof.json> [public.json]",
		Short: "Check a proof offline against the verification key",
		Long: `Check the format tags, field ranges and pairing of a proof. The commitment
binding needs ledger state and is not checked here.

With --artifact the single argument is a byte-oriented artifact.json.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proof, err := loadProof(args, artifact)
			if err != nil {
				return err
			}
			gate, err := offlineGate(rootOpts)
			if err != nil {
				return err
			}
			a, err := gate.Check(proof)
			if err != nil {
				return err
			}
			s := a.Signals
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(VerifyResult{
				Valid:            true,
				SalaryCommitment: s.SalaryCommitment.String(),
				PaymentNullifier: s.PaymentNullifier.String(),
				RecipientHash:    s.RecipientHash.String(),
			}, "Proof is valid\npayment_nullifier=%s", s.PaymentNullifier.String())
		},
	}
	cmd.Flags().BoolVar(&artifact, "artifact", false, "argument is a byte-oriented artifact")
	return cmd
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	var asHex bool
	cmd := &cobra.Command{
		Use:   "encode <proof.json> [public.json]",
		Short: "Convert a standard proof to the byte-oriented form",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proof, err := loadProof(args, false)
			if err != nil {
				return err
			}
			a, err := proof.Artifact()
			if err != nil {
				return err
			}
			if asHex {
				h, err := a.Hex()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write([]byte(h + "\n"))
				return err
			}
			return newPrinter(&RootOptions{Format: "json"}, cmd.OutOrStdout()).result(a, "")
		},
	}
	cmd.Flags().BoolVar(&asHex, "hex", false, "print the 352-byte blob as hex")
	return cmd
}

// loadProof reads proof.json and public.json, which defaults to the file
// next to proof.json. A proof.json holding both parts is accepted as well.
func loadProof(args []string, artifact bool) (*types.ZKProof, error) {
	if artifact {
		if len(args) != 1 {
			return nil, errors.New("--artifact takes a single file")
		}
		var a codec.Artifact
		if err := readJSON(args[0], &a); err != nil {
			return nil, errors.Wrap(err, "read artifact")
		}
		return types.NewZKProof(a, constants.ProtocolGroth16, constants.CurveBN128), nil
	}

	var combined types.ZKProof
	if err := readJSON(args[0], &combined); err == nil && combined.Proof != nil {
		return &combined, nil
	}
	var p types.ProofData
	if err := readJSON(args[0], &p); err != nil {
		return nil, errors.Wrap(err, "read proof")
	}
	public := filepath.Join(filepath.Dir(args[0]), PublicFile)
	if len(args) == 2 {
		public = args[1]
	}
	var s types.PublicSignals
	if err := readJSON(public, &s); err != nil {
		return nil, errors.Wrap(err, "read public signals")
	}
	return &types.ZKProof{Proof: &p, PubSignals: s}, nil
}

// offlineGate builds a gate without a commitment store, usable for Check.
func offlineGate(rootOpts *RootOptions) (*verification.Gate, error) {
	cfg := rootOpts.Config()
	vkJSON, err := rootOpts.Keys().Load(filepath.Base(cfg.VerificationKey))
	if err != nil {
		return nil, err
	}
	var opts []verification.GateOption
	if cfg.Verifier == config.VerifierRapidsnark {
		v, err := verification.NewRapidsnarkVerifier(vkJSON)
		if err != nil {
			return nil, err
		}
		opts = append(opts, verification.WithVerifier(v))
	}
	return verification.NewGate(verification.DefaultConfig(vkJSON), nil, opts...)
}
