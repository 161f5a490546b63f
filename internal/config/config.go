// Package config loads the payroll binary's YAML configuration.
package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/binding"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
	"github.com/zkpayroll/go-payroll-settlement/prover"
	"gopkg.in/yaml.v3"
)

// Verifier backends.
const (
	VerifierBN256      = "bn256"
	VerifierRapidsnark = "rapidsnark"
)

// FileName is the config file looked up inside the data directory.
const FileName = "config.yaml"

// Config holds every setting of the binary.
type Config struct {
	DataDir  string `yaml:"data_dir"`
	Ledger   string `yaml:"ledger"`
	Keystore string `yaml:"keystore"`

	VerificationKey string `yaml:"verification_key"`
	Verifier        string `yaml:"verifier"`

	ArtifactsDir string `yaml:"artifacts_dir"`
	ProverMode   string `yaml:"prover_mode"`
	Binding      string `yaml:"binding"`

	CommitmentTTL TTL `yaml:"commitment_ttl"`
	NullifierTTL  TTL `yaml:"nullifier_ttl"`

	Log Log `yaml:"log"`
}

// TTL is a TTL policy in ledgers.
type TTL struct {
	Threshold uint32 `yaml:"threshold"`
	Target    uint32 `yaml:"target"`
}

// Policy converts t.
func (t TTL) Policy() constants.TTLPolicy {
	return constants.TTLPolicy{Threshold: t.Threshold, Target: t.Target}
}

// Log configures the root logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		DataDir:         dataDir,
		Ledger:          ledger.BackendLevelDB,
		Keystore:        filepath.Join(dataDir, "company_db.sqlite"),
		VerificationKey: filepath.Join(dataDir, "artifacts", prover.VerificationKeyJSON),
		Verifier:        VerifierBN256,
		ArtifactsDir:    filepath.Join(dataDir, "artifacts"),
		ProverMode:      prover.ModeAuto,
		Binding:         binding.NameMiMC,
		CommitmentTTL:   TTL{constants.CommitmentTTL.Threshold, constants.CommitmentTTL.Target},
		NullifierTTL:    TTL{constants.NullifierTTL.Threshold, constants.NullifierTTL.Target},
		Log:             Log{Level: "info", Format: "terminal"},
	}
}

// Load reads path on top of the defaults for dataDir. A missing file yields
// the defaults. Unknown fields are rejected.
func Load(path, dataDir string) (*Config, error) {
	cfg := Default(dataDir)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid %s", path)
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Ledger {
	case ledger.BackendMemory, ledger.BackendLevelDB:
	default:
		return errors.Errorf("unknown ledger backend %q", c.Ledger)
	}
	switch c.Verifier {
	case VerifierBN256, VerifierRapidsnark:
	default:
		return errors.Errorf("unknown verifier %q", c.Verifier)
	}
	switch c.ProverMode {
	case prover.ModeAuto, prover.ModeMock, prover.ModeReal:
	default:
		return errors.Errorf("unknown prover mode %q", c.ProverMode)
	}
	if _, err := binding.ByName(c.Binding); err != nil {
		return err
	}
	if err := prover.CheckBinding(c.ProverMode, c.Binding); err != nil {
		return err
	}
	if _, err := log.LvlFromString(c.Log.Level); err != nil {
		return errors.Wrap(err, "log level")
	}
	if c.Log.Format != "terminal" && c.Log.Format != "json" {
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.CommitmentTTL.Target == 0 || c.NullifierTTL.Target == 0 {
		return errors.New("ttl target must be positive")
	}
	return nil
}
