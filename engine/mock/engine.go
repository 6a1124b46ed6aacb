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

package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
	"github.com/poiesic/entsync/events"
)

// Operation names used for call counting and failure injection.
const (
	OpPutPipeline = "PutPipeline"
	OpPutMapping  = "PutMapping"
	OpMultiGet    = "MultiGet"
	OpIndex       = "Index"
	OpBulkIndex   = "BulkIndex"
)

// ExtractFunc computes the entities object stored with an indexed document.
type ExtractFunc func(source map[string]any) map[core.EntityKind][]string

// MockEngine is an in-memory engine.Client. Indexed documents are run
// through Extract and stored with the result under "entities", the way an
// ingest pipeline would.
type MockEngine struct {
	// Extract computes entities at index time. Nil stores documents unchanged.
	Extract ExtractFunc

	// MultiGetFunc replaces the default MultiGet behavior when set.
	MultiGetFunc func(ctx context.Context, index string, ids []core.DocumentID, fields []string) ([]engine.Hit, error)

	mu        sync.Mutex
	pipelines map[string]core.PipelineDescriptor
	mappings  map[string]map[string]core.FieldMapping
	docs      map[string]map[core.DocumentID]map[string]any
	omitted   map[core.DocumentID]bool
	failures  map[string]error
	calls     map[string]int
	paths     []string
	publisher engine.Publisher
	augmenter engine.RequestInterceptor
}

// NewMockEngine creates an empty engine.
// Note: Returns concrete type to allow test assertions.
func NewMockEngine() *MockEngine {
	e := &MockEngine{}
	e.Reset()
	return e
}

// WithPublisher sets the receiver of indexing completion events.
func (e *MockEngine) WithPublisher(p engine.Publisher) *MockEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publisher = p
	return e
}

// WithInterceptor records indexing paths rewritten by i, for assertions via Paths.
func (e *MockEngine) WithInterceptor(i engine.RequestInterceptor) *MockEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.augmenter = i
	return e
}

// FailWith makes op return err until cleared with a nil err.
func (e *MockEngine) FailWith(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failures, op)
		return
	}
	e.failures[op] = err
}

// Omit makes MultiGet leave id out of its reply, as an engine returning fewer docs would.
func (e *MockEngine) Omit(id core.DocumentID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.omitted[id] = true
}

// Seed stores a document without running extraction or publishing.
func (e *MockEngine) Seed(index string, id core.DocumentID, source map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store(index, id, source)
}

func (e *MockEngine) PutPipeline(ctx context.Context, desc core.PipelineDescriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[OpPutPipeline]++
	if err := e.failures[OpPutPipeline]; err != nil {
		return err
	}
	e.pipelines[desc.Name] = desc
	return nil
}

// PutMapping adds fields to the index mapping. Redeclaring a field with a
// different type fails with core.ErrConflict, as a real engine would.
func (e *MockEngine) PutMapping(ctx context.Context, desc core.MappingDescriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[OpPutMapping]++
	if err := e.failures[OpPutMapping]; err != nil {
		return err
	}

	mapping, ok := e.mappings[desc.Index]
	if !ok {
		mapping = make(map[string]core.FieldMapping)
		e.mappings[desc.Index] = mapping
	}
	for field, m := range desc.Fields {
		if existing, ok := mapping[field]; ok && existing.Type != m.Type {
			return &engine.RequestError{
				Kind:       core.ErrConflict,
				Method:     "PUT",
				Path:       "/" + desc.Index + "/_mapping",
				StatusCode: 400,
				Type:       "illegal_argument_exception",
				Reason:     fmt.Sprintf("mapper [%s] cannot be changed from type [%s] to [%s]", field, existing.Type, m.Type),
			}
		}
	}
	for field, m := range desc.Fields {
		mapping[field] = m
	}
	return nil
}

func (e *MockEngine) MultiGet(ctx context.Context, index string, ids []core.DocumentID, fields []string) ([]engine.Hit, error) {
	e.mu.Lock()
	e.calls[OpMultiGet]++
	fn := e.MultiGetFunc
	err := e.failures[OpMultiGet]
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, index, ids, fields)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &engine.RequestError{Kind: core.ErrUnreachable, Method: "POST", Path: "/" + index + "/_mget", Cause: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	hits := make([]engine.Hit, 0, len(ids))
	for _, id := range ids {
		if e.omitted[id] {
			continue
		}
		source, ok := e.docs[index][id]
		if !ok {
			hits = append(hits, engine.Hit{ID: id})
			continue
		}
		data, err := json.Marshal(selectFields(source, fields))
		if err != nil {
			return nil, err
		}
		hits = append(hits, engine.Hit{ID: id, Found: true, Source: data})
	}
	return hits, nil
}

func (e *MockEngine) Index(ctx context.Context, index string, doc engine.Document) error {
	e.mu.Lock()
	e.calls[OpIndex]++
	if err := e.failures[OpIndex]; err != nil {
		e.mu.Unlock()
		return err
	}
	e.recordPath("/" + index + "/_doc/" + string(doc.ID))
	e.indexLocked(index, doc)
	publisher := e.publisher
	e.mu.Unlock()

	publish(ctx, publisher, []core.DocumentID{doc.ID})
	return nil
}

func (e *MockEngine) BulkIndex(ctx context.Context, index string, docs []engine.Document) (core.DocumentBatch, error) {
	e.mu.Lock()
	e.calls[OpBulkIndex]++
	if err := e.failures[OpBulkIndex]; err != nil {
		e.mu.Unlock()
		return core.DocumentBatch{}, err
	}
	if len(docs) == 0 {
		e.mu.Unlock()
		return core.DocumentBatch{}, nil
	}
	e.recordPath("/_bulk")
	ids := make([]core.DocumentID, 0, len(docs))
	for _, doc := range docs {
		e.indexLocked(index, doc)
		ids = append(ids, doc.ID)
	}
	publisher := e.publisher
	e.mu.Unlock()

	return publish(ctx, publisher, ids), nil
}

// Close is a no-op.
func (e *MockEngine) Close() error {
	return nil
}

// CallCount returns the number of calls made to op.
func (e *MockEngine) CallCount(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

// Pipeline returns the stored pipeline with the given name.
func (e *MockEngine) Pipeline(name string) (core.PipelineDescriptor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pipelines[name]
	return p, ok
}

// Mapping returns a copy of the fields declared for index.
func (e *MockEngine) Mapping(index string) map[string]core.FieldMapping {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.mappings[index])
}

// Document returns the stored source of id in index.
func (e *MockEngine) Document(index string, id core.DocumentID) (map[string]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, ok := e.docs[index][id]
	return doc, ok
}

// Paths returns the indexing request paths seen so far, after interception.
func (e *MockEngine) Paths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.paths...)
}

// Reset clears stored state, call counts, injected failures and custom functions.
func (e *MockEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipelines = make(map[string]core.PipelineDescriptor)
	e.mappings = make(map[string]map[string]core.FieldMapping)
	e.docs = make(map[string]map[core.DocumentID]map[string]any)
	e.omitted = make(map[core.DocumentID]bool)
	e.failures = make(map[string]error)
	e.calls = make(map[string]int)
	e.paths = nil
	e.MultiGetFunc = nil
}

func (e *MockEngine) recordPath(path string) {
	if e.augmenter != nil {
		path = e.augmenter.InterceptPath(path)
	}
	e.paths = append(e.paths, path)
}

func (e *MockEngine) indexLocked(index string, doc engine.Document) {
	source := maps.Clone(doc.Source)
	if source == nil {
		source = make(map[string]any)
	}
	if e.Extract != nil {
		extracted := e.Extract(source)
		entities := make(map[string]any, len(extracted))
		for kind, values := range extracted {
			entities[string(kind)] = toAny(values)
		}
		source[core.EntitiesField] = entities
	}
	e.store(index, doc.ID, source)
}

func (e *MockEngine) store(index string, id core.DocumentID, source map[string]any) {
	if e.docs[index] == nil {
		e.docs[index] = make(map[core.DocumentID]map[string]any)
	}
	e.docs[index][id] = source
}

func publish(ctx context.Context, p engine.Publisher, ids []core.DocumentID) core.DocumentBatch {
	batch := core.DocumentBatch{
		EventID: ulid.Make().String(),
		IDs:     ids,
		Origin:  events.OriginFrom(ctx),
		At:      time.Now(),
	}
	if p != nil {
		_ = p.PublishBulkIndexCompleted(ctx, batch)
	}
	return batch
}

// selectFields keeps only the dotted paths in fields, like _source filtering.
// An empty selection returns the whole source.
func selectFields(source map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return source
	}
	out := make(map[string]any)
	for _, field := range fields {
		parts := strings.Split(field, ".")
		var cur any = source
		for _, p := range parts {
			m, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = m[p]
		}
		if cur == nil {
			continue
		}
		dst := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := dst[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				dst[p] = next
			}
			dst = next
		}
		dst[parts[len(parts)-1]] = cur
	}
	return out
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
