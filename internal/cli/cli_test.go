package cli

import (
	"bytes"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zkpayroll/go-payroll-settlement/codec"
	"github.com/zkpayroll/go-payroll-settlement/internal/config"
	"github.com/zkpayroll/go-payroll-settlement/internal/testutil"
	"github.com/zkpayroll/go-payroll-settlement/loaders"
	"github.com/zkpayroll/go-payroll-settlement/nullifier"
	"github.com/zkpayroll/go-payroll-settlement/prover"
	"github.com/zkpayroll/go-payroll-settlement/settlement"
	"github.com/zkpayroll/go-payroll-settlement/verification"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(append([]string{"--datadir", dir, "--format", "json"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// newDataDir prepares a data directory using the linear binding, a leveldb
// ledger and the verifying key of fx.
func newDataDir(t *testing.T, fx *testutil.Groth16Fixture) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Binding = "linear"
	cfg.ProverMode = prover.ModeMock
	require.NoError(t, config.Save(cfg, filepath.Join(dir, config.FileName)))
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.VerificationKey), 0o755))
	require.NoError(t, os.WriteFile(cfg.VerificationKey, fx.VerificationKey, 0o644))

	_, err := run(t, dir, "init")
	require.NoError(t, err)
	return dir
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "payroll", cmd.Use)

	for _, name := range []string{"init", "employee", "prove", "setup", "verify", "encode", "company", "mint", "balance", "pay", "payments", "keeper"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--datadir", t.TempDir(), "--format", "xml", "init"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestEmployeeCommands(t *testing.T) {
	dir := newDataDir(t, testutil.NewGroth16Fixture(1, 3))

	out, err := run(t, dir, "employee", "add", "1", "alice", "5000")
	require.NoError(t, err)
	var added EmployeeResult
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	require.Equal(t, "alice", added.Employee)
	require.Len(t, added.CommitmentHex, 64)

	_, err = run(t, dir, "employee", "add", "1", "alice", "5000")
	require.Error(t, err)

	out, err = run(t, dir, "employee", "update", "1", "alice", "6000")
	require.NoError(t, err)
	var updated EmployeeResult
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	require.Equal(t, uint64(6000), updated.Salary)
	require.NotEqual(t, added.Commitment, updated.Commitment)

	_, err = run(t, dir, "employee", "add", "1", "bob", new(big.Int).Lsh(big.NewInt(1), 64).String())
	require.ErrorIs(t, err, codec.ErrValueTooLarge)

	out, err = run(t, dir, "employee", "list", "1")
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(out, `"employee"`))
}

func TestProveEncodeVerify(t *testing.T) {
	dir := newDataDir(t, testutil.NewGroth16Fixture(2, 3))
	outDir := filepath.Join(dir, "out")

	_, err := run(t, dir, "prove", "--salary", "5000", "--blinding", "123", "--nonce", "1", "--recipient", "42", "-o", outDir)
	require.NoError(t, err)

	var public []string
	require.NoError(t, readJSON(filepath.Join(outDir, PublicFile), &public))
	require.Equal(t, []string{"5861", "76194", "3830"}, public)

	out, err := run(t, dir, "encode", "--hex", filepath.Join(outDir, ProofFile))
	require.NoError(t, err)
	golden, err := os.ReadFile("../../prover/testdata/golden/mock_artifact.golden")
	require.NoError(t, err)
	require.Equal(t, string(golden), strings.TrimSpace(out))

	// the mock proof is well formed but never passes the pairing check
	_, err = run(t, dir, "verify", filepath.Join(outDir, ProofFile))
	require.ErrorIs(t, err, verification.ErrInvalidProof)
	_, err = run(t, dir, "verify", "--artifact", filepath.Join(outDir, ArtifactFile))
	require.ErrorIs(t, err, verification.ErrInvalidProof)

	// the circuit cannot reproduce linear commitments
	_, err = run(t, dir, "prove", "--mode", "real", "--salary", "5000", "--blinding", "123", "--nonce", "1", "--recipient", "42", "-o", outDir)
	require.ErrorIs(t, err, prover.ErrBindingUnsupported)

	_, err = run(t, dir, "prove", "--salary", codec.R.String(), "--blinding", "1", "--nonce", "1", "--recipient", "1", "-o", outDir)
	require.ErrorIs(t, err, codec.ErrFieldOverflow)
}

func TestProveFromKeystore(t *testing.T) {
	dir := newDataDir(t, testutil.NewGroth16Fixture(3, 3))
	_, err := run(t, dir, "employee", "add", "4", "carol", "7000")
	require.NoError(t, err)

	out, err := run(t, dir, "prove", "4", "carol", "--nonce", "9", "--recipient", "5", "-o", filepath.Join(dir, "p"))
	require.NoError(t, err)
	require.Contains(t, out, `"pub_signals"`)

	_, err = run(t, dir, "prove", "4", "dave", "--nonce", "9", "--recipient", "5")
	require.Error(t, err)
}

func TestLedgerFlow(t *testing.T) {
	fx := testutil.NewGroth16Fixture(4, 3)
	dir := newDataDir(t, fx)
	signals := testutil.Signals(5861, 76194, 3830)

	proofPath := filepath.Join(dir, "valid.json")
	require.NoError(t, writeJSON(proofPath, fx.ProveJSON(signals)))

	out, err := run(t, dir, "verify", proofPath)
	require.NoError(t, err)
	var res VerifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.True(t, res.Valid)
	require.Equal(t, "76194", res.PaymentNullifier)

	steps := [][]string{
		{"company", "register", "acme", "--admin", "admin", "--treasury", "treasury", "--as", "admin"},
		{"company", "enroll", "1", "alice", "5861", "--as", "admin"},
		{"company", "bind", "1", "3830", "alice-wallet", "--as", "admin"},
		{"mint", "treasury", "10000", "--as", MinterPrincipal},
	}
	for _, args := range steps {
		_, err = run(t, dir, args...)
		require.NoError(t, err, strings.Join(args, " "))
	}

	pay := []string{"pay", "1", "alice", proofPath, "--amount", "4000", "--period", "202601", "--as", "treasury"}
	out, err = run(t, dir, pay...)
	require.NoError(t, err)
	require.Contains(t, out, `"settled"`)

	_, err = run(t, dir, pay...)
	require.ErrorIs(t, err, nullifier.ErrAlreadyConsumed)

	out, err = run(t, dir, "keeper", "refresh", "1", "alice", "bob")
	require.NoError(t, err)
	require.Contains(t, out, `"bob"`)

	out, err = run(t, dir, "balance", "alice-wallet")
	require.NoError(t, err)
	require.Contains(t, out, `"balance": 4000`)

	out, err = run(t, dir, "payments", "1")
	require.NoError(t, err)
	require.Contains(t, out, `"total_paid": 4000`)

	out, err = run(t, dir, "payments", "1", "alice", "202601")
	require.NoError(t, err)
	var payments PaymentsResult
	require.NoError(t, json.Unmarshal([]byte(out), &payments))
	require.NotNil(t, payments.Payment)
	require.Equal(t, uint64(4000), payments.Payment.Amount)
	require.Equal(t, "alice", payments.Payment.Employee)

	_, err = run(t, dir, "payments", "1", "alice", "202602")
	require.ErrorIs(t, err, settlement.ErrPaymentNotFound)

	_, err = run(t, dir, "payments", "1", "alice")
	require.Error(t, err)
}

func TestKeysAreCached(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.VerificationKey), 0o700))
	require.NoError(t, os.WriteFile(cfg.VerificationKey, []byte(`{"protocol":"groth16"}`), 0o600))

	opts := &RootOptions{cfg: cfg}
	keys := opts.Keys()
	require.Same(t, keys, opts.Keys())

	name := filepath.Base(cfg.VerificationKey)
	first, err := keys.Load(name)
	require.NoError(t, err)

	// served from memory once loaded
	require.NoError(t, os.Remove(cfg.VerificationKey))
	second, err := keys.Load(name)
	require.NoError(t, err)
	require.Equal(t, first, second)

	keys.Invalidate(name)
	_, err = keys.Load(name)
	require.ErrorIs(t, err, loaders.ErrKeyNotFound)
}
