package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/storage"
)

// DefaultLedgerRetention is how long processed batch fingerprints are remembered.
const DefaultLedgerRetention = 24 * time.Hour

// LedgerRepository implements storage.BatchLedger for BadgerDB.
// Entries are written with a TTL so the ledger does not grow without bound.
type LedgerRepository struct {
	backend   *Backend
	retention time.Duration
}

var _ storage.BatchLedger = (*LedgerRepository)(nil)

// NewLedgerRepository creates a LedgerRepository. A non-positive retention
// uses DefaultLedgerRetention.
func NewLedgerRepository(backend *Backend, retention time.Duration) *LedgerRepository {
	if retention <= 0 {
		retention = DefaultLedgerRetention
	}
	return &LedgerRepository{
		backend:   backend,
		retention: retention,
	}
}

// MarkProcessed records fingerprint and reports whether it was new.
// Check and write happen in one transaction; a concurrent writer of the
// same fingerprint makes this transaction conflict and rerun, observing
// the other writer's entry.
func (r *LedgerRepository) MarkProcessed(ctx context.Context, fingerprint core.ID) (bool, error) {
	first := false
	err := r.backend.Update(func(tx *badger.Txn) error {
		first = false
		key := makeLedgerKey(fingerprint)
		_, err := tx.Get(key)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		first = true
		entry := badger.NewEntry(key, storage.MarshalTime(time.Now())).WithTTL(r.retention)
		return tx.SetEntry(entry)
	})
	if err != nil {
		return false, err
	}
	return first, nil
}
