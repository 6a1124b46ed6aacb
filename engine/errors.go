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
	"fmt"
	"net/http"
	"strings"

	"github.com/poiesic/entsync/core"
)

// RequestError is a failed engine request. Kind is one of core.ErrUnreachable,
// core.ErrRejected, core.ErrConflict or core.ErrMalformed, so callers can
// test it with errors.Is.
type RequestError struct {
	Kind       error
	Method     string
	Path       string
	StatusCode int    // zero when no response was received
	Type       string // engine error.type, if reported
	Reason     string // engine error.reason, if reported
	Cause      error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Method, e.Path, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Type != "" {
		fmt.Fprintf(&b, ": %s", e.Type)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Cause != nil && e.Type == "" && e.Reason == "" {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *RequestError) Is(target error) bool {
	return target == e.Kind
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// conflictTypes are engine error types that signal an incompatible mapping
// when their reason says so.
var conflictTypes = map[string]bool{
	"mapper_parsing_exception":   true,
	"illegal_argument_exception": true,
}

// Classify maps an engine reply to an error kind.
// 409 and mapping-incompatibility replies are conflicts, other 4xx are
// rejections. 5xx, 408 and 429 are treated as the engine being unreachable.
func Classify(status int, errType, reason string) error {
	switch {
	case status == http.StatusConflict:
		return core.ErrConflict
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return core.ErrUnreachable
	case status >= 400 && status < 500:
		lower := strings.ToLower(reason)
		if conflictTypes[errType] && (strings.Contains(lower, "cannot be changed") ||
			strings.Contains(lower, "conflict") ||
			strings.Contains(lower, "can't merge")) {
			return core.ErrConflict
		}
		return core.ErrRejected
	case status >= 500:
		return core.ErrUnreachable
	default:
		return core.ErrMalformed
	}
}
