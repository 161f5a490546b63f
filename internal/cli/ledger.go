package cli

import (
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	payroll "github.com/zkpayroll/go-payroll-settlement"
	"github.com/zkpayroll/go-payroll-settlement/authz"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/internal/config"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
	"github.com/zkpayroll/go-payroll-settlement/loaders"
	"github.com/zkpayroll/go-payroll-settlement/settlement"
)

// Principals used by the local ledger commands.
const (
	MinterPrincipal = "minter"
	PrunerPrincipal = "pruner"
)

// ledgerOptions are shared by the commands that act on the local ledger.
type ledgerOptions struct {
	as []string
}

func (o *ledgerOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.as, "as", nil, "principals the caller acts as")
}

func (o *ledgerOptions) caller() authz.Caller {
	c := make(authz.Caller, len(o.as))
	for i, p := range o.as {
		c[i] = authz.Principal(p)
	}
	return c
}

// openService opens the configured ledger. The returned func closes it.
func openService(rootOpts *RootOptions) (*payroll.Service, func(), error) {
	cfg := rootOpts.Config()
	db, err := ledger.OpenDatabase(cfg.Ledger, filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return nil, nil, err
	}
	opts := []payroll.Option{
		payroll.WithCommitmentTTL(cfg.CommitmentTTL.Policy()),
		payroll.WithNullifierTTL(cfg.NullifierTTL.Policy()),
		payroll.WithMinter(MinterPrincipal),
		payroll.WithPruningAuthority(PrunerPrincipal),
	}
	if cfg.Verifier == config.VerifierRapidsnark {
		opts = append(opts, payroll.WithRapidsnarkVerifier())
	}
	s, err := payroll.New(db, renamed{rootOpts.Keys(), filepath.Base(cfg.VerificationKey)}, opts...)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, func() {
		s.Close()
		db.Close()
	}, nil
}

// renamed serves the configured key file under the name the service asks for.
type renamed struct {
	loaders.VerificationKeyLoader
	file string
}

func (r renamed) Load(string) ([]byte, error) {
	return r.VerificationKeyLoader.Load(r.file)
}

// NewCompanyCommand creates the company command group.
func NewCompanyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage companies on the local ledger",
	}

	reg := &ledgerOptions{}
	var admin, treasury string
	register := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer done()
			c, err := s.RegisterCompany(contextOf(cmd), reg.caller(), args[0],
				authz.Principal(admin), authz.Principal(treasury))
			if err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(c, "Company %d registered", c.ID)
		},
	}
	reg.register(register)
	register.Flags().StringVar(&admin, "admin", "", "admin principal")
	register.Flags().StringVar(&treasury, "treasury", "", "treasury principal")
	_ = register.MarkFlagRequired("admin")
	_ = register.MarkFlagRequired("treasury")

	enr := &ledgerOptions{}
	enroll := &cobra.Command{
		Use:   "enroll <company> <employee> <commitment>",
		Short: "Register or replace an employee's salary commitment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := parseCompany(args[0])
			if err != nil {
				return err
			}
			cm, err := codec.ParseElement(args[2])
			if err != nil {
				return errors.Wrap(err, "commitment")
			}
			s, done, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer done()

			ctx := contextOf(cmd)
			rec, err := s.AddEmployee(ctx, enr.caller(), company, args[1], cm)
			if errors.Is(err, commitment.ErrAlreadyExists) {
				rec, err = s.UpdateCommitment(ctx, enr.caller(), company, args[1], cm)
			}
			if err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(rec,
				"%d/%s version=%d live_until=%d", company, args[1], rec.Version, rec.LiveUntil)
		},
	}
	enr.register(enroll)

	bnd := &ledgerOptions{}
	bind := &cobra.Command{
		Use:   "bind <company> <recipient_hash> <payout>",
		Short: "Route payments proven for a recipient hash to a payout principal",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := parseCompany(args[0])
			if err != nil {
				return err
			}
			rh, err := codec.ParseElement(args[1])
			if err != nil {
				return errors.Wrap(err, "recipient hash")
			}
			s, done, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer done()
			if err = s.BindRecipient(contextOf(cmd), bnd.caller(), company, rh, authz.Principal(args[2])); err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(
				map[string]string{"recipient_hash": rh.String(), "payout": args[2]},
				"Recipient bound to %s", args[2])
		},
	}
	bnd.register(bind)

	cmd.AddCommand(register, enroll, bind)
	return cmd
}

// NewMintCommand creates the mint command.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	o := &ledgerOptions{}
	cmd := &cobra.Command{
		Use:   "mint <principal> <amount>",
		Short: "Credit payroll tokens on the local ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseSalary(args[1])
			if err != nil {
				return err
			}
			s, done, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer done()

			ctx := contextOf(cmd)
			if err = s.Mint(ctx, o.caller(), authz.Principal(args[0]), amount); err != nil {
				return err
			}
			bal, err := s.Balance(ctx, authz.Principal(args[0]))
			if err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(
				map[string]uint64{"balance": bal}, "%s balance=%d", args[0], bal)
		},
	}
	o.register(cmd)
	return cmd
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <principal>",
		Short: "Print a token balance on the local ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer done()
			bal, err := s.Balance(contextOf(cmd), authz.Principal(args[0]))
			if err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(
				map[string]uint64{"balance": bal}, "%s balance=%d", args[0], bal)
		},
	}
}

// NewPayCommand creates the pay command.
func NewPayCommand(rootOpts *RootOptions) *cobra.Command {
	o := &ledgerOptions{}
	var (
		amount string
		period uint32
	)
	cmd := &cobra.Command{
		Use:   "pay <company> <employee> <proof.json> [public.json]",
		Short: "Settle a payment on the local ledger",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := parseCompany(args[0])
			if err != nil {
				return err
			}
			amt, err := parseSalary(amount)
			if err != nil {
				return errors.Wrap(err, "amount")
			}
			proof, err := loadProof(args[2:], false)
			if err != nil {
				return err
			}
			s, done, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer done()

			rc, err := s.ProcessPayment(contextOf(cmd), settlement.PaymentRequest{
				Company:  company,
				Employee: args[1],
				Period:   period,
				Amount:   amt,
				Proof:    proof,
				Caller:   o.caller(),
			})
			if err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(rc,
				"Payment %s %s at ledger %d", rc.ID, rc.State, rc.Ledger)
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&amount, "amount", "", "amount to pay")
	cmd.Flags().Uint32Var(&period, "period", 0, "payroll period, e.g. 202601")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

// PaymentsResult is printed by payments.
type PaymentsResult struct {
	TotalPaid uint64              `json:"total_paid"`
	Payment   *settlement.Payment `json:"payment,omitempty"`
}

// NewPaymentsCommand creates the payments command.
func NewPaymentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "payments <company> [<employee> <period>]",
		Short: "Print what a company has paid, or one employee's payment for a period",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 && len(args) != 3 {
				return errors.New("expected <company> or <company> <employee> <period>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := parseCompany(args[0])
			if err != nil {
				return err
			}
			s, done, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer done()

			ctx := contextOf(cmd)
			res := PaymentsResult{}
			if res.TotalPaid, err = s.TotalPaid(ctx, company); err != nil {
				return err
			}
			p := newPrinter(rootOpts, cmd.OutOrStdout())
			if len(args) == 1 {
				return p.result(res, "company %d total_paid=%d", company, res.TotalPaid)
			}
			period, err := strconv.ParseUint(args[2], 10, 32)
			if err != nil {
				return errors.Wrap(err, "period")
			}
			if res.Payment, err = s.Payment(ctx, company, args[1], uint32(period)); err != nil {
				return err
			}
			return p.result(res, "%s period %d amount=%d ledger=%d", args[1], period, res.Payment.Amount, res.Payment.Ledger)
		},
	}
}

// NewKeeperCommand creates the keeper command group.
func NewKeeperCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keeper",
		Short: "Ledger maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh <company> <employee>...",
		Short: "Extend the TTL of commitments close to expiry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := parseCompany(args[0])
			if err != nil {
				return err
			}
			s, done, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer done()
			report, err := s.RefreshCommitments(contextOf(cmd), payroll.Employees(company, args[1:]...))
			if err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(report,
				"refreshed=%d unchanged=%d missing=%d expired=%d",
				report.Refreshed, report.Unchanged, len(report.Missing), len(report.Expired))
		},
	})
	return cmd
}
