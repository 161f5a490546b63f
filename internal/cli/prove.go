package cli

import (
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zkpayroll/go-payroll-settlement/binding"
	"github.com/zkpayroll/go-payroll-settlement/internal/keystore"
	"github.com/zkpayroll/go-payroll-settlement/prover"
)

// Output file names written by prove and read by verify.
const (
	ProofFile    = "proof.json"
	PublicFile   = "public.json"
	ArtifactFile = "artifact.json"
)

type proveOptions struct {
	nonce     string
	recipient string
	salary    string
	blinding  string
	out       string
	mode      string
}

// NewProveCommand creates the prove command.
func NewProveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &proveOptions{}
	cmd := &cobra.Command{
		Use:   "prove [<company> <employee>]",
		Short: "Generate a payment proof",
		Long: `Generate a payment proof for one employee and write it in the standard
form (proof.json, public.json) and the byte-oriented form (artifact.json).

Salary and blinding factor come from the keystore, or from --salary and
--blinding when no employee is given. Inputs that do not fit their width or
the scalar field are rejected.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.New("expected <company> <employee> or no arguments")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProve(cmd, rootOpts, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.nonce, "nonce", "", "payment nonce (decimal)")
	cmd.Flags().StringVar(&opts.recipient, "recipient", "", "recipient identifier (decimal)")
	cmd.Flags().StringVar(&opts.salary, "salary", "", "salary (decimal), without keystore")
	cmd.Flags().StringVar(&opts.blinding, "blinding", "", "blinding factor (decimal), without keystore")
	cmd.Flags().StringVarP(&opts.out, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "prover mode override (auto|mock|real)")
	_ = cmd.MarkFlagRequired("nonce")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}

func runProve(cmd *cobra.Command, rootOpts *RootOptions, opts *proveOptions, args []string) error {
	cfg := rootOpts.Config()
	salary, blinding := opts.salary, opts.blinding
	if len(args) == 2 {
		company, err := parseCompany(args[0])
		if err != nil {
			return err
		}
		ks, err := keystore.Open(cfg.Keystore)
		if err != nil {
			return err
		}
		e, err := ks.Get(contextOf(cmd), company, args[1])
		ks.Close()
		if err != nil {
			return err
		}
		salary, blinding = strconv.FormatUint(e.Salary, 10), e.Blinding.String()
	} else if salary == "" || blinding == "" {
		return errors.New("--salary and --blinding are required without an employee")
	}

	in, err := prover.ParseInputs(salary, blinding, opts.nonce, opts.recipient)
	if err != nil {
		return err
	}
	b, err := binding.ByName(cfg.Binding)
	if err != nil {
		return err
	}
	mode := cfg.ProverMode
	if opts.mode != "" {
		mode = opts.mode
	}
	if err = prover.CheckBinding(mode, cfg.Binding); err != nil {
		return err
	}
	p, err := prover.Select(mode, cfg.ArtifactsDir, prover.WithBinding(b))
	if err != nil {
		return err
	}
	proof, err := p.Prove(contextOf(cmd), in)
	if err != nil {
		return err
	}
	a, err := proof.Artifact()
	if err != nil {
		return err
	}

	files := map[string]interface{}{
		ProofFile:    proof.Proof,
		PublicFile:   proof.PubSignals,
		ArtifactFile: a,
	}
	for name, v := range files {
		if err = writeJSON(filepath.Join(opts.out, name), v); err != nil {
			return err
		}
	}
	log.Info("Proof written", "dir", opts.out, "nullifier", proof.PubSignals[1])
	return newPrinter(rootOpts, cmd.OutOrStdout()).result(proof,
		"salary_commitment=%s\npayment_nullifier=%s\nrecipient_hash=%s",
		proof.PubSignals[0], proof.PubSignals[1], proof.PubSignals[2])
}
