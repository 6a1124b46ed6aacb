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

// Package engine defines the search engine protocol used by the sync pipeline.
//
// The Client interface covers the five requests entsync makes: creating the
// ingest pipeline, extending the index mapping, fetching extracted entities
// with a multi-get, and indexing documents singly or in bulk. Indexing
// requests pass through RequestInterceptors; the Augmenter is the one that
// routes them through the ingest pipeline.
//
// # Implementation Packages
//
//   - engine/elastic: HTTP client for Elasticsearch-compatible engines
//   - engine/mock: in-memory engine for tests and dry runs
//
// Failures are reported as *RequestError, whose Kind is one of the core
// error kinds:
//
//	if errors.Is(err, core.ErrConflict) {
//	    // the index already declares an incompatible field
//	}
package engine
