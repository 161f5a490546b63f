package constants

import "time"

// Proof format tags accepted by the verification gate.
const (
	ProtocolGroth16 = "groth16"
	CurveBN128      = "bn128"
)

// Ledger timing. TTL values are expressed in ledgers, never wall-clock time.
const (
	LedgersPerDay uint32 = 17_280 // ~5s ledger close time

	CommitmentRenewThreshold = LedgersPerDay * 7
	CommitmentTargetTTL      = LedgersPerDay * 30

	// Nullifiers outlive the commitments they were consumed against.
	NullifierRenewThreshold = LedgersPerDay * 30
	NullifierTargetTTL      = LedgersPerDay * 90
)

// Per-transaction budget enforced by the ledger.
const (
	MaxReadEntries  = 40
	MaxWriteEntries = 25
)

const (
	// MaxBatchSize bounds a single batch payroll call.
	MaxBatchSize = 50
	// KeeperChunkSize is the number of records refreshed per keeper transaction.
	KeeperChunkSize = 20
)

const (
	DefaultCacheMaxSize     int64 = 10_000
	VerificationKeyCacheTTL       = time.Hour
)

// TTLPolicy configures when and how far a record's lifetime is extended.
type TTLPolicy struct {
	Threshold uint32
	Target    uint32
}

var (
	CommitmentTTL = TTLPolicy{
		Threshold: CommitmentRenewThreshold,
		Target:    CommitmentTargetTTL,
	}

	NullifierTTL = TTLPolicy{
		Threshold: NullifierRenewThreshold,
		Target:    NullifierTargetTTL,
	}
)
