package ledger

import (
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/pkg/errors"
)

// Supported storage backends.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
)

const (
	levelDBCache   = 16
	levelDBHandles = 16
)

// OpenDatabase opens the key-value store for backend. dir is ignored for the
// memory backend.
func OpenDatabase(backend, dir string) (ethdb.KeyValueStore, error) {
	switch backend {
	case BackendMemory, "":
		return memorydb.New(), nil
	case BackendLevelDB:
		db, err := leveldb.New(dir, levelDBCache, levelDBHandles, "payroll/ledger/", false)
		if err != nil {
			return nil, errors.Wrapf(err, "open leveldb at %s", dir)
		}
		return db, nil
	default:
		return nil, errors.Errorf("unknown ledger backend %q", backend)
	}
}
