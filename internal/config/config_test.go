package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/prover"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, FileName), dir)
	require.NoError(t, err)
	require.Equal(t, Default(dir), cfg)
	require.Equal(t, constants.CommitmentTTL, cfg.CommitmentTTL.Policy())
}

func TestLoadOverridesAndRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
ledger: memory
prover_mode: mock
binding: linear
log:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Ledger)
	require.Equal(t, "mock", cfg.ProverMode)
	require.Equal(t, "linear", cfg.Binding)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, VerifierBN256, cfg.Verifier)

	require.NoError(t, Save(cfg, path))
	again, err := Load(path, dir)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestBindingMustMatchCircuit(t *testing.T) {
	tests := []struct {
		body string
		err  error
	}{
		{"binding: linear\n", prover.ErrBindingUnsupported},
		{"binding: poseidon\nprover_mode: real\n", prover.ErrBindingUnsupported},
		{"binding: linear\nprover_mode: auto\n", prover.ErrBindingUnsupported},
		{"binding: poseidon\nprover_mode: mock\n", nil},
		{"binding: mimc\nprover_mode: real\n", nil},
	}
	for _, tc := range tests {
		t.Run(tc.body, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, FileName)
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o600))
			_, err := Load(path, dir)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":  "ledgr: memory\n",
		"bad backend":    "ledger: postgres\n",
		"bad verifier":   "verifier: snarkjs\n",
		"bad mode":       "prover_mode: fast\n",
		"bad binding":    "binding: sha256\n",
		"bad log level":  "log:\n  level: loud\n",
		"bad log format": "log:\n  format: xml\n",
		"zero ttl":       "nullifier_ttl:\n  threshold: 1\n  target: 0\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, FileName)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path, dir)
			require.Error(t, err)
		})
	}
}
