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
package backfill

import (
	"context"
	"slices"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/storage"
)

// DefaultBatchSize is the number of documents handled per batch.
const DefaultBatchSize = 100

// RecordIterator walks the IDs of every host record in batches.
type RecordIterator struct {
	host      storage.HostStore
	batchSize int
}

// NewRecordIterator creates an iterator. A non-positive batchSize uses DefaultBatchSize.
func NewRecordIterator(host storage.HostStore, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecordIterator{host: host, batchSize: batchSize}
}

// IDs returns the IDs of every record in ascending order.
func (it *RecordIterator) IDs(ctx context.Context) ([]core.DocumentID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return it.host.ListRecordIDs(ctx)
}

// ForEach calls fn with consecutive batches of ids. Iteration stops on the
// first error from fn. Context cancellation is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, ids []core.DocumentID, fn func([]core.DocumentID) error) error {
	for batch := range slices.Chunk(ids, it.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
