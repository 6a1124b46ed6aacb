package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/storage"
)

// HostRepository implements storage.HostStore and storage.SettingsReader/Writer for BadgerDB.
type HostRepository struct {
	backend *Backend
	owned   bool
}

var (
	_ storage.HostStore      = (*HostRepository)(nil)
	_ storage.SettingsReader = (*HostRepository)(nil)
	_ storage.SettingsWriter = (*HostRepository)(nil)
)

// NewHostRepository creates a HostRepository on an open backend.
// Closing the repository leaves the backend open.
func NewHostRepository(backend *Backend) *HostRepository {
	return &HostRepository{backend: backend}
}

// OpenHostRepository opens a BadgerDB host store at path. Closing the
// returned repository closes the database.
func OpenHostRepository(path string, inMemory bool) (*HostRepository, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	repo := NewHostRepository(backend)
	repo.owned = true
	return repo, nil
}

// Close closes the backend if the repository opened it.
func (r *HostRepository) Close() error {
	if r.owned {
		return r.backend.Close()
	}
	return nil
}

// SetTags writes values to a tag set of record id.
func (r *HostRepository) SetTags(ctx context.Context, id core.DocumentID, set string, values []string, additive bool) error {
	if set == "" {
		return storage.ErrInvalidKey
	}
	return r.modify(id, func(record *core.Record) {
		if record.Tags == nil {
			record.Tags = make(map[string][]string)
		}
		if additive {
			record.Tags[set] = union(record.Tags[set], values)
		} else {
			record.Tags[set] = union(nil, values)
		}
	})
}

// SetAttribute replaces the values of an attribute of record id.
func (r *HostRepository) SetAttribute(ctx context.Context, id core.DocumentID, name string, values []string) error {
	if name == "" {
		return storage.ErrInvalidKey
	}
	return r.modify(id, func(record *core.Record) {
		if record.Attributes == nil {
			record.Attributes = make(map[string][]string)
		}
		record.Attributes[name] = slices.Clone(values)
	})
}

// GetRecord retrieves a single record by ID.
func (r *HostRepository) GetRecord(ctx context.Context, id core.DocumentID) (*core.Record, error) {
	var record *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = getRecord(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, storage.ErrNotFound
	}
	return record, nil
}

// PutRecords stores records, replacing existing ones.
func (r *HostRepository) PutRecords(ctx context.Context, records ...*core.Record) error {
	for _, record := range records {
		if record.ID == "" {
			return storage.ErrInvalidKey
		}
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, record := range records {
			record.UpdatedAt = now
			if err := tx.Set(makeHostRecordKey(record.ID), storage.MarshalRecord(record)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListRecordIDs returns the IDs of all records in ascending order.
func (r *HostRepository) ListRecordIDs(ctx context.Context) ([]core.DocumentID, error) {
	var ids []core.DocumentID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(hostRecordPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, hostRecordIDFromKey(iter.Item().KeyCopy(nil)))
		}
		return nil
	}, false)
	return ids, err
}

// ReadSetting returns the value of a named setting.
func (r *HostRepository) ReadSetting(ctx context.Context, name string) (string, bool, error) {
	var value string
	var found bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSettingKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			found = true
			return nil
		})
	}, false)
	return value, found, err
}

// WriteSetting stores a named setting.
func (r *HostRepository) WriteSetting(ctx context.Context, name, value string) error {
	if name == "" {
		return storage.ErrInvalidKey
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeSettingKey(name), []byte(value))
	})
}

// modify applies fn to record id inside one transaction, creating the record when missing.
func (r *HostRepository) modify(id core.DocumentID, fn func(record *core.Record)) error {
	if id == "" {
		return storage.ErrInvalidKey
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		record, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		if record == nil {
			record = &core.Record{ID: id}
		}
		fn(record)
		record.UpdatedAt = time.Now().UTC()
		return tx.Set(makeHostRecordKey(id), storage.MarshalRecord(record))
	})
}

// getRecord reads a record, returning nil, nil when it does not exist.
func getRecord(tx *badger.Txn, id core.DocumentID) (*core.Record, error) {
	item, err := tx.Get(makeHostRecordKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var record *core.Record
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalRecord(val)
		return unmarshalErr
	})
	return record, err
}

// union appends the values not already present to existing, keeping order.
func union(existing, values []string) []string {
	out := slices.Clone(existing)
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
