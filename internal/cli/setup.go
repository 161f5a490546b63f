package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zkpayroll/go-payroll-settlement/prover"
)

// NewSetupCommand creates the setup command.
func NewSetupCommand(rootOpts *RootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Compile the payment circuit and run a development Groth16 setup",
		Long: `Compile the payment circuit, run a single party Groth16 setup and write
the proving and verifying keys. Whoever runs a single party setup can forge
proofs, so the keys are for development only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := out
			if dir == "" {
				dir = rootOpts.Config().ArtifactsDir
			}
			vk, err := prover.Setup(dir)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, prover.VerificationKeyJSON)
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(vk,
				"Artifacts written to %s\nVerification key: %s", dir, path)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "artifacts directory (default from config)")
	return cmd
}
