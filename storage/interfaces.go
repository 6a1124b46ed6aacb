package storage

import (
	"context"

	"github.com/poiesic/entsync/core"
)

// HostStore is the content host's view of its records: the only host
// operations the sync pipeline needs are writing tags and attributes.
// Implementations must be thread-safe and support concurrent access.
type HostStore interface {
	// SetTags writes values to the named tag set of record id.
	// With additive true the values are merged into the existing set,
	// keeping existing terms; otherwise the set is replaced.
	// A missing record is created.
	SetTags(ctx context.Context, id core.DocumentID, set string, values []string, additive bool) error

	// SetAttribute replaces the values of the named attribute of record id.
	// A missing record is created.
	SetAttribute(ctx context.Context, id core.DocumentID, name string, values []string) error

	// GetRecord retrieves a single record.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id core.DocumentID) (*core.Record, error)

	// PutRecords stores records, replacing existing ones with the same ID.
	// Sets UpdatedAt on each record.
	PutRecords(ctx context.Context, records ...*core.Record) error

	// ListRecordIDs returns the IDs of all records in ascending order.
	ListRecordIDs(ctx context.Context) ([]core.DocumentID, error)

	// Close releases resources held by the store.
	Close() error
}

// SettingsReader reads host configuration values.
type SettingsReader interface {
	// ReadSetting returns the value of the named setting and whether it is set.
	ReadSetting(ctx context.Context, name string) (string, bool, error)
}

// SettingsWriter stores host configuration values.
type SettingsWriter interface {
	WriteSetting(ctx context.Context, name, value string) error
}

// BatchLedger records which completion events have been processed.
type BatchLedger interface {
	// MarkProcessed records fingerprint and reports whether this is the first
	// time it was seen. Entries expire after the ledger's retention period.
	MarkProcessed(ctx context.Context, fingerprint core.ID) (first bool, err error)
}

// CheckpointStore persists the progress of resumable backfill runs.
type CheckpointStore interface {
	// SaveCheckpoint stores checkpoint under its name, setting UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the named checkpoint, or nil, nil if none exists.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the named checkpoint. Deleting a missing
	// checkpoint is not an error.
	DeleteCheckpoint(ctx context.Context, name string) error
}
