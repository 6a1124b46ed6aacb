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
	"slices"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/poiesic/entsync/core"
)

// MaxValueLength is the longest attribute value kept, in runes.
const MaxValueLength = 256

// Sanitize turns an extracted value into plain text fit for an attribute:
// markup is stripped and entities decoded, control characters and invalid
// UTF-8 dropped, whitespace collapsed, and the result capped at
// MaxValueLength runes. Values with nothing left fail with core.ErrUnsanitizable.
func Sanitize(value string) (string, error) {
	text := stripTags(strings.ToValidUTF8(value, ""))

	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		if r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, text)
	text = strings.Join(strings.Fields(text), " ")

	if runes := []rune(text); len(runes) > MaxValueLength {
		text = strings.TrimSpace(string(runes[:MaxValueLength]))
	}
	if text == "" {
		return "", core.ErrUnsanitizable
	}
	return text, nil
}

// SanitizeValues sanitizes values, dropping duplicates after sanitization
// and keeping first-seen order. Values that could not be sanitized are
// returned in rejected.
func SanitizeValues(values []string) (clean, rejected []string) {
	clean = make([]string, 0, len(values))
	for _, v := range values {
		s, err := Sanitize(v)
		if err != nil {
			rejected = append(rejected, v)
			continue
		}
		if !slices.Contains(clean, s) {
			clean = append(clean, s)
		}
	}
	return clean, rejected
}

// stripTags returns the text content of an HTML fragment. Script and style
// bodies are dropped.
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; either way keep what was read.
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(name) {
				skip++
			} else {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(name) && skip > 0 {
				skip--
			} else {
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func isRawTextTag(name []byte) bool {
	return string(name) == "script" || string(name) == "style"
}
