// Package keeper renews commitment TTLs for employees that have not been paid
// recently, so that their records do not expire between payroll runs.
package keeper

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/commitment"
	"github.com/zkpayroll/go-payroll-settlement/constants"
	"github.com/zkpayroll/go-payroll-settlement/ledger"
)

// Report summarizes a refresh run.
type Report struct {
	Refreshed int
	Unchanged int
	Missing   []commitment.Key
	Expired   []commitment.Key
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithChunkSize sets how many records are refreshed per transaction.
func WithChunkSize(n int) Option {
	return func(k *Keeper) {
		if n > 0 {
			k.chunk = n
		}
	}
}

// WithLogger sets the keeper logger.
func WithLogger(l log.Logger) Option {
	return func(k *Keeper) {
		k.log = l
	}
}

// Keeper refreshes commitment records in bounded transactions.
type Keeper struct {
	ledger *ledger.Ledger
	store  *commitment.Store
	chunk  int
	log    log.Logger
}

// New returns a keeper.
func New(l *ledger.Ledger, store *commitment.Store, opts ...Option) *Keeper {
	k := &Keeper{
		ledger: l,
		store:  store,
		chunk:  constants.KeeperChunkSize,
		log:    log.Root().New("module", "keeper"),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Refresh renews every live record in keys. Missing and expired records are
// reported, not refreshed: an expired record needs an admin restore.
func (k *Keeper) Refresh(ctx context.Context, keys []commitment.Key) (*Report, error) {
	total := new(Report)
	for start := 0; start < len(keys); start += k.chunk {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := start + k.chunk
		if end > len(keys) {
			end = len(keys)
		}

		var part Report
		err := k.ledger.Update(ctx, func(txn *ledger.Txn) error {
			part = Report{}
			for _, key := range keys[start:end] {
				changed, err := k.store.Refresh(txn, key)
				switch {
				case errors.Is(err, commitment.ErrNotFound):
					part.Missing = append(part.Missing, key)
				case errors.Is(err, commitment.ErrExpired):
					part.Expired = append(part.Expired, key)
				case err != nil:
					return err
				case changed:
					part.Refreshed++
				default:
					part.Unchanged++
				}
			}
			return nil
		})
		if err != nil {
			return total, errors.Wrapf(err, "refresh records %d-%d", start, end-1)
		}
		total.Refreshed += part.Refreshed
		total.Unchanged += part.Unchanged
		total.Missing = append(total.Missing, part.Missing...)
		total.Expired = append(total.Expired, part.Expired...)
	}
	k.log.Info("Commitments refreshed", "records", len(keys), "refreshed", total.Refreshed,
		"missing", len(total.Missing), "expired", len(total.Expired))
	return total, nil
}
