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

package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
	"github.com/poiesic/entsync/storage"
)

// Reindexer pushes updated host records back to the search index.
type Reindexer interface {
	Reindex(ctx context.Context, ids []core.DocumentID) error
}

// ReindexFunc adapts a function to Reindexer.
type ReindexFunc func(ctx context.Context, ids []core.DocumentID) error

func (f ReindexFunc) Reindex(ctx context.Context, ids []core.DocumentID) error {
	return f(ctx, ids)
}

// StoreReindexer reads records from the host store and bulk indexes them.
type StoreReindexer struct {
	client      engine.Client
	host        storage.HostStore
	index       string
	sourceField string
}

// NewStoreReindexer creates a reindexer that stores record content under sourceField.
func NewStoreReindexer(client engine.Client, host storage.HostStore, index, sourceField string) *StoreReindexer {
	return &StoreReindexer{client: client, host: host, index: index, sourceField: sourceField}
}

// Reindex loads ids from the host store and sends them in one bulk request.
// Records that no longer exist are skipped.
func (r *StoreReindexer) Reindex(ctx context.Context, ids []core.DocumentID) error {
	docs := make([]engine.Document, 0, len(ids))
	for _, id := range ids {
		record, err := r.host.GetRecord(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load record %s: %w", id, err)
		}
		docs = append(docs, DocumentFromRecord(record, r.sourceField))
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := r.client.BulkIndex(ctx, r.index, docs)
	return err
}

// DocumentFromRecord builds the index document for a host record: content
// under sourceField, tag sets under "terms" and attributes under "meta".
func DocumentFromRecord(record *core.Record, sourceField string) engine.Document {
	source := map[string]any{sourceField: record.Content}
	if len(record.Tags) > 0 {
		terms := make(map[string]any, len(record.Tags))
		for set, values := range record.Tags {
			terms[set] = values
		}
		source["terms"] = terms
	}
	if len(record.Attributes) > 0 {
		meta := make(map[string]any, len(record.Attributes))
		for name, values := range record.Attributes {
			meta[name] = values
		}
		source["meta"] = meta
	}
	return engine.Document{ID: record.ID, Source: source}
}
