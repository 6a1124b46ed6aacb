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

package engine

import (
	"context"

	"github.com/poiesic/entsync/core"
)

// Client speaks the subset of the search engine protocol the sync pipeline needs.
// Implementations must be safe for concurrent use.
type Client interface {
	// PutPipeline creates or replaces the named ingest pipeline.
	PutPipeline(ctx context.Context, desc core.PipelineDescriptor) error

	// PutMapping adds field declarations to an index mapping.
	// Existing fields with the same declaration are left untouched.
	PutMapping(ctx context.Context, desc core.MappingDescriptor) error

	// MultiGet retrieves the selected source fields of ids in one request.
	// Hits are returned in the order the engine reports them; documents the
	// engine does not know come back with Found false or are absent.
	MultiGet(ctx context.Context, index string, ids []core.DocumentID, fields []string) ([]Hit, error)

	// Index stores one document through the ingest pipeline and publishes
	// a completion event for a batch of one.
	Index(ctx context.Context, index string, doc Document) error

	// BulkIndex stores docs in one request through the ingest pipeline and
	// publishes a completion event for the documents that were accepted.
	// The returned batch is the one published.
	BulkIndex(ctx context.Context, index string, docs []Document) (core.DocumentBatch, error)

	// Close releases resources held by the client.
	Close() error
}

// Publisher receives completion events for indexing requests.
// *events.Bus satisfies it.
type Publisher interface {
	PublishBulkIndexCompleted(ctx context.Context, batch core.DocumentBatch) error
}

// RequestInterceptor rewrites the path of indexing requests before they are sent.
type RequestInterceptor interface {
	InterceptPath(path string) string
}

// Document is a document sent for indexing.
type Document struct {
	ID     core.DocumentID
	Source map[string]any
}

// Hit is one document returned by MultiGet.
type Hit struct {
	ID     core.DocumentID
	Found  bool
	Source []byte // raw _source JSON, nil when not found
}
