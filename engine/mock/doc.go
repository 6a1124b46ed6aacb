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

// Package mock provides an in-memory search engine for tests and dry runs.
//
// MockEngine implements engine.Client. It stores pipelines, mappings and
// documents in memory, runs a configurable extraction function when
// documents are indexed, and publishes completion events like the real
// client. Tests use CallCount, FailWith and Omit to assert on request
// counts and to inject failures.
//
//	eng := mock.NewMockEngine().WithPublisher(bus)
//	eng.Extract = mock.DictionaryExtractor("post_content",
//	    map[string]core.EntityKind{"paris": "locations"}, core.DefaultKinds())
package mock
