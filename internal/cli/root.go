// Package cli implements the payroll command line tool.
package cli

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zkpayroll/go-payroll-settlement/internal/config"
	"github.com/zkpayroll/go-payroll-settlement/loaders"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataDir    string
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"

	cfg  *config.Config
	keys *loaders.CachedKeyLoader
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Config returns the configuration loaded before the command ran.
func (o *RootOptions) Config() *config.Config {
	return o.cfg
}

// Keys returns the verification key loader shared by every command of this
// process. Keys are read from the directory of the configured key file.
func (o *RootOptions) Keys() *loaders.CachedKeyLoader {
	if o.keys == nil {
		o.keys = loaders.NewCachedKeyLoader(loaders.FSKeyLoader{Dir: filepath.Dir(o.cfg.VerificationKey)})
	}
	return o.keys
}

// NewRootCommand creates the root command of the payroll CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "payroll",
		Short: "Confidential payroll settlement",
		Long: `Prepare and settle confidential salary payments.

Salaries and blinding factors stay in a local keystore. Only commitments,
proofs and nullifiers ever leave this machine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return errors.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			path := opts.ConfigPath
			if path == "" {
				path = filepath.Join(opts.DataDir, config.FileName)
			}
			cfg, err := config.Load(path, opts.DataDir)
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				cfg.Log.Level = opts.LogLevel
			}
			if err = setupLogging(cfg.Log, cmd.ErrOrStderr()); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DataDir, "datadir", defaultDataDir(), "data directory")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default <datadir>/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "loglevel", "", "log level override (trace|debug|info|warn|error|crit)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewEmployeeCommand(opts))
	cmd.AddCommand(NewProveCommand(opts))
	cmd.AddCommand(NewSetupCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewEncodeCommand(opts))
	cmd.AddCommand(NewCompanyCommand(opts))
	cmd.AddCommand(NewMintCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewPayCommand(opts))
	cmd.AddCommand(NewPaymentsCommand(opts))
	cmd.AddCommand(NewKeeperCommand(opts))

	return cmd
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zk-payroll"
	}
	return filepath.Join(home, ".zk-payroll")
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
