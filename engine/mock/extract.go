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
	"slices"
	"strings"

	"github.com/poiesic/entsync/core"
)

// DictionaryExtractor returns an ExtractFunc that looks up the words of
// field in dict. Matching is case-insensitive and ignores surrounding
// punctuation; each value is reported once, in order of first appearance.
// Every kind in kinds is present in the result, empty when nothing matched.
func DictionaryExtractor(field string, dict map[string]core.EntityKind, kinds []core.EntityKind) ExtractFunc {
	lookup := make(map[string]core.EntityKind, len(dict))
	for word, kind := range dict {
		lookup[strings.ToLower(word)] = kind
	}

	return func(source map[string]any) map[core.EntityKind][]string {
		out := make(map[core.EntityKind][]string, len(kinds))
		for _, kind := range kinds {
			out[kind] = []string{}
		}

		text, _ := source[field].(string)
		for _, word := range strings.Fields(text) {
			word = strings.Trim(word, ".,!?;:\"'()[]{}")
			kind, ok := lookup[strings.ToLower(word)]
			if !ok || slices.Contains(out[kind], word) {
				continue
			}
			out[kind] = append(out[kind], word)
		}
		return out
	}
}
