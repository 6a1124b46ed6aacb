// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/entsync/core"
)

// RecordMUS is the MUS serializer for core.Record.
var RecordMUS = recordMUS{}

type recordMUS struct{}

// Marshal writes r to bs, which must hold at least Size(r) bytes.
func (recordMUS) Marshal(r core.Record, bs []byte) (n int) {
	n = ord.String.Marshal(string(r.ID), bs)
	n += ord.String.Marshal(r.Content, bs[n:])
	n += marshalValues(r.Tags, bs[n:])
	n += marshalValues(r.Attributes, bs[n:])
	n += varint.Int64.Marshal(unixMicro(r.UpdatedAt), bs[n:])
	return n
}

// Unmarshal reads a record from bs.
func (recordMUS) Unmarshal(bs []byte) (r core.Record, n int, err error) {
	id, n1, err := ord.String.Unmarshal(bs)
	n += n1
	if err != nil {
		return r, n, err
	}
	r.ID = core.DocumentID(id)

	r.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}

	r.Tags, n1, err = unmarshalValues(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}

	r.Attributes, n1, err = unmarshalValues(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}

	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	if micros != 0 {
		r.UpdatedAt = time.UnixMicro(micros).UTC()
	}
	return r, n, nil
}

// Size returns the encoded length of r.
func (recordMUS) Size(r core.Record) (size int) {
	size = ord.String.Size(string(r.ID))
	size += ord.String.Size(r.Content)
	size += sizeValues(r.Tags)
	size += sizeValues(r.Attributes)
	return size + varint.Int64.Size(unixMicro(r.UpdatedAt))
}

// MarshalRecord serializes a Record to bytes.
func MarshalRecord(record *core.Record) []byte {
	buf := make([]byte, RecordMUS.Size(*record))
	RecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalRecord deserializes a Record from bytes.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	record, n, err := RecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &record, nil
}

// CheckpointMUS is the MUS serializer for core.Checkpoint.
var CheckpointMUS = checkpointMUS{}

type checkpointMUS struct{}

// Marshal writes c to bs, which must hold at least Size(c) bytes.
func (checkpointMUS) Marshal(c core.Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(c.Name, bs)
	n += ord.String.Marshal(string(c.LastID), bs[n:])
	n += varint.Int64.Marshal(c.Processed, bs[n:])
	n += varint.Int64.Marshal(unixMicro(c.UpdatedAt), bs[n:])
	return n
}

// Unmarshal reads a checkpoint from bs.
func (checkpointMUS) Unmarshal(bs []byte) (c core.Checkpoint, n int, err error) {
	c.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return c, n, err
	}
	lastID, n1, err := ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return c, n, err
	}
	c.LastID = core.DocumentID(lastID)

	c.Processed, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return c, n, err
	}

	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return c, n, err
	}
	if micros != 0 {
		c.UpdatedAt = time.UnixMicro(micros).UTC()
	}
	return c, n, nil
}

// Size returns the encoded length of c.
func (checkpointMUS) Size(c core.Checkpoint) (size int) {
	size = ord.String.Size(c.Name)
	size += ord.String.Size(string(c.LastID))
	size += varint.Int64.Size(c.Processed)
	return size + varint.Int64.Size(unixMicro(c.UpdatedAt))
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, CheckpointMUS.Size(*checkpoint))
	CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}

// MarshalTime serializes a timestamp with microsecond precision.
func MarshalTime(t time.Time) []byte {
	micros := unixMicro(t)
	buf := make([]byte, varint.Int64.Size(micros))
	varint.Int64.Marshal(micros, buf)
	return buf
}

// UnmarshalTime deserializes a timestamp written by MarshalTime.
func UnmarshalTime(data []byte) (time.Time, error) {
	micros, _, err := varint.Int64.Unmarshal(data)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	if micros == 0 {
		return time.Time{}, nil
	}
	return time.UnixMicro(micros).UTC(), nil
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

// marshalValues writes a name -> values map as a count followed by
// (name, count, values...) entries in name order.
func marshalValues(m map[string][]string, bs []byte) (n int) {
	n = varint.Int64.Marshal(int64(len(m)), bs)
	for _, name := range sortedKeys(m) {
		values := m[name]
		n += ord.String.Marshal(name, bs[n:])
		n += varint.Int64.Marshal(int64(len(values)), bs[n:])
		for _, v := range values {
			n += ord.String.Marshal(v, bs[n:])
		}
	}
	return n
}

func unmarshalValues(bs []byte) (m map[string][]string, n int, err error) {
	count, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if count < 0 || count > int64(len(bs)) {
		return nil, n, ErrTruncatedData
	}
	if count == 0 {
		return nil, n, nil
	}

	m = make(map[string][]string, count)
	for range count {
		name, n1, err := ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		length, n1, err := varint.Int64.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		if length < 0 || length > int64(len(bs)-n) {
			return nil, n, ErrTruncatedData
		}
		values := make([]string, 0, length)
		for range length {
			v, n1, err := ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return nil, n, err
			}
			values = append(values, v)
		}
		m[name] = values
	}
	return m, n, nil
}

func sizeValues(m map[string][]string) (size int) {
	size = varint.Int64.Size(int64(len(m)))
	for name, values := range m {
		size += ord.String.Size(name)
		size += varint.Int64.Size(int64(len(values)))
		for _, v := range values {
			size += ord.String.Size(v)
		}
	}
	return size
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
