package cli

import (
	"context"
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zkpayroll/go-payroll-settlement/binding"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/internal/keystore"
)

// EmployeeResult is printed by the employee commands.
type EmployeeResult struct {
	Company       uint64 `json:"company"`
	Employee      string `json:"employee"`
	Salary        uint64 `json:"salary"`
	Commitment    string `json:"commitment"`
	CommitmentHex string `json:"commitment_hex"`
}

// NewEmployeeCommand creates the employee command group.
func NewEmployeeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employee",
		Short: "Manage employees in the local keystore",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <company> <employee> <salary>",
			Short: "Generate a blinding factor and print the salary commitment",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEmployeeAdd(cmd, rootOpts, args)
			},
		},
		&cobra.Command{
			Use:   "update <company> <employee> <salary>",
			Short: "Change a salary and print the new commitment",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEmployeeUpdate(cmd, rootOpts, args)
			},
		},
		&cobra.Command{
			Use:   "list <company>",
			Short: "List employees with their commitments",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEmployeeList(cmd, rootOpts, args)
			},
		},
	)
	return cmd
}

func runEmployeeAdd(cmd *cobra.Command, opts *RootOptions, args []string) error {
	company, err := parseCompany(args[0])
	if err != nil {
		return err
	}
	salary, err := parseSalary(args[2])
	if err != nil {
		return err
	}
	blinding, err := keystore.NewBlinding()
	if err != nil {
		return err
	}
	ks, err := keystore.Open(opts.Config().Keystore)
	if err != nil {
		return err
	}
	defer ks.Close()

	e := keystore.Entry{Company: company, Employee: args[1], Blinding: blinding, Salary: salary}
	if err = ks.Insert(contextOf(cmd), e); err != nil {
		return err
	}
	return printEmployee(cmd, opts, e)
}

func runEmployeeUpdate(cmd *cobra.Command, opts *RootOptions, args []string) error {
	company, err := parseCompany(args[0])
	if err != nil {
		return err
	}
	salary, err := parseSalary(args[2])
	if err != nil {
		return err
	}
	ks, err := keystore.Open(opts.Config().Keystore)
	if err != nil {
		return err
	}
	defer ks.Close()

	ctx := contextOf(cmd)
	if err = ks.UpdateSalary(ctx, company, args[1], salary); err != nil {
		return err
	}
	e, err := ks.Get(ctx, company, args[1])
	if err != nil {
		return err
	}
	return printEmployee(cmd, opts, *e)
}

func runEmployeeList(cmd *cobra.Command, opts *RootOptions, args []string) error {
	company, err := parseCompany(args[0])
	if err != nil {
		return err
	}
	ks, err := keystore.Open(opts.Config().Keystore)
	if err != nil {
		return err
	}
	defer ks.Close()

	entries, err := ks.List(contextOf(cmd), company)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err = printEmployee(cmd, opts, e); err != nil {
			return err
		}
	}
	return nil
}

func printEmployee(cmd *cobra.Command, opts *RootOptions, e keystore.Entry) error {
	b, err := binding.ByName(opts.Config().Binding)
	if err != nil {
		return err
	}
	cm, err := b.Commitment(new(big.Int).SetUint64(e.Salary), e.Blinding)
	if err != nil {
		return err
	}
	enc := codec.MustElement(cm).Bytes()
	res := EmployeeResult{
		Company:       e.Company,
		Employee:      e.Employee,
		Salary:        e.Salary,
		Commitment:    cm.String(),
		CommitmentHex: hex.EncodeToString(enc[:]),
	}
	return newPrinter(opts, cmd.OutOrStdout()).result(res,
		"%d/%s salary=%d commitment=%s", e.Company, e.Employee, e.Salary, res.CommitmentHex)
}

func parseCompany(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(codec.ErrInvalidNumber, "company id %q", s)
	}
	return id, nil
}

// parseSalary accepts a decimal salary of at most 64 bits.
func parseSalary(s string) (uint64, error) {
	v, err := codec.ParseDecimal(s)
	if err != nil {
		return 0, errors.Wrap(err, "salary")
	}
	if !v.IsUint64() {
		return 0, errors.Wrapf(codec.ErrValueTooLarge, "salary %s exceeds 64 bits", s)
	}
	return v.Uint64(), nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
