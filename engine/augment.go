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
	"net/url"
	"strings"
)

// PipelineParam is the query parameter that routes indexing through an ingest pipeline.
const PipelineParam = "pipeline"

// Augmenter appends the ingest pipeline parameter to indexing request paths.
type Augmenter struct {
	pipeline string
}

// NewAugmenter creates an augmenter for the named pipeline.
func NewAugmenter(pipeline string) *Augmenter {
	return &Augmenter{pipeline: pipeline}
}

// Augment returns path with pipeline=<name> appended. Paths that already
// carry a pipeline parameter are returned unchanged, so Augment is idempotent.
func (a *Augmenter) Augment(path string) string {
	if a.pipeline == "" {
		return path
	}

	_, rawQuery, hasQuery := strings.Cut(path, "?")
	if hasQuery {
		if query, err := url.ParseQuery(rawQuery); err == nil && query.Has(PipelineParam) {
			return path
		}
	}

	param := PipelineParam + "=" + url.QueryEscape(a.pipeline)
	switch {
	case !hasQuery:
		return path + "?" + param
	case rawQuery == "" || strings.HasSuffix(rawQuery, "&"):
		return path + param
	default:
		return path + "&" + param
	}
}

// InterceptPath implements RequestInterceptor.
func (a *Augmenter) InterceptPath(path string) string {
	return a.Augment(path)
}
