package badger

import (
	"encoding/binary"

	"github.com/poiesic/entsync/core"
)

// Key prefixes for different data types
const (
	hostRecordPrefix = "hostrec:"
	settingPrefix    = "setting:"
	ledgerPrefix     = "ledger:"
	checkpointPrefix = "chkpt:"
)

// makeHostRecordKey generates a key for a host record by ID.
func makeHostRecordKey(id core.DocumentID) []byte {
	return []byte(hostRecordPrefix + string(id))
}

// hostRecordIDFromKey extracts the record ID from a host record key.
func hostRecordIDFromKey(key []byte) core.DocumentID {
	return core.DocumentID(key[len(hostRecordPrefix):])
}

// makeSettingKey generates a key for a named setting.
func makeSettingKey(name string) []byte {
	return []byte(settingPrefix + name)
}

// makeLedgerKey generates a key for a batch fingerprint.
// Format: prefix + 8 bytes fingerprint
func makeLedgerKey(fingerprint core.ID) []byte {
	buf := make([]byte, len(ledgerPrefix)+8)
	offset := copy(buf, ledgerPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(fingerprint))
	return buf
}

// makeCheckpointKey generates a key for a named backfill checkpoint.
func makeCheckpointKey(name string) []byte {
	return []byte(checkpointPrefix + name)
}
