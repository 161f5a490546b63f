package cli

import (
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
	"github.com/zkpayroll/go-payroll-settlement/internal/config"
	"github.com/zkpayroll/go-payroll-settlement/internal/keystore"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory, config file and keystore",
		Long: `Create the data directory with a default config file and an empty
keystore. Existing files are left untouched, so init is safe to rerun.

Back up the keystore: a lost blinding factor makes every later proof for
that employee impossible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config()
			if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
				return err
			}
			path := rootOpts.ConfigPath
			if path == "" {
				path = filepath.Join(cfg.DataDir, config.FileName)
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err = config.Save(cfg, path); err != nil {
					return err
				}
				log.Info("Config written", "path", path)
			}
			ks, err := keystore.Open(cfg.Keystore)
			if err != nil {
				return err
			}
			defer ks.Close()

			return newPrinter(rootOpts, cmd.OutOrStdout()).result(
				map[string]string{"datadir": cfg.DataDir, "config": path, "keystore": cfg.Keystore},
				"Initialised %s\nKeystore: %s", cfg.DataDir, cfg.Keystore)
		},
	}
}
