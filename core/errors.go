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

package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidKinds indicates the configured entity kinds failed validation.
	ErrInvalidKinds = errors.New("invalid entity kinds")

	// ErrEmptyKind indicates an entity kind is empty.
	ErrEmptyKind = errors.New("entity kind cannot be empty")

	// ErrDuplicateKind indicates an entity kind is configured twice.
	ErrDuplicateKind = errors.New("duplicate entity kind")

	// ErrInvalidPipeline indicates a PipelineDescriptor failed validation.
	ErrInvalidPipeline = errors.New("invalid pipeline descriptor")

	// ErrInvalidMapping indicates a MappingDescriptor failed validation.
	ErrInvalidMapping = errors.New("invalid mapping descriptor")
)

// Failure kinds. Typed errors below match these with errors.Is.
var (
	// ErrUnreachable indicates the search engine could not be reached in time.
	ErrUnreachable = errors.New("search engine unreachable")

	// ErrRejected indicates the search engine rejected a definition.
	ErrRejected = errors.New("rejected by search engine")

	// ErrConflict indicates an existing index field has an incompatible type.
	ErrConflict = errors.New("mapping conflict")

	// ErrPartialResponse indicates fewer documents were returned than requested.
	ErrPartialResponse = errors.New("partial response")

	// ErrMalformed indicates a response body did not have the expected structure.
	ErrMalformed = errors.New("malformed response")

	// ErrUnsanitizable indicates a value had nothing left after sanitization.
	ErrUnsanitizable = errors.New("value cannot be sanitized")

	// ErrStorageUnavailable indicates the host store could not apply a write.
	ErrStorageUnavailable = errors.New("host storage unavailable")
)

// ProvisionError reports a failed pipeline or mapping provisioning call.
// Kind is one of ErrUnreachable, ErrRejected or ErrConflict.
type ProvisionError struct {
	Kind  error
	Op    string // "pipeline" or "mapping"
	Name  string // pipeline name or index
	Cause error
}

func (e *ProvisionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("provision %s %q: %v", e.Op, e.Name, e.Kind)
	}
	return fmt.Sprintf("provision %s %q: %v: %v", e.Op, e.Name, e.Kind, e.Cause)
}

func (e *ProvisionError) Is(target error) bool {
	return target == e.Kind
}

func (e *ProvisionError) Unwrap() error {
	return e.Cause
}

// FetchError reports a failed batch entity fetch.
// Kind is one of ErrUnreachable, ErrPartialResponse or ErrMalformed.
type FetchError struct {
	Kind    error
	Index   string
	Missing []DocumentID // populated for ErrPartialResponse
	Cause   error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch entities from %q: %v", e.Index, e.Kind)
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (%d missing)", len(e.Missing))
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *FetchError) Is(target error) bool {
	return target == e.Kind
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// WriteError reports a failed write of one routing target for one document.
// Kind is one of ErrUnsanitizable or ErrStorageUnavailable.
type WriteError struct {
	Kind       error
	DocumentID DocumentID
	Target     RoutingTarget
	Cause      error
}

func (e *WriteError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("write %s to %s: %v", e.Target, e.DocumentID, e.Kind)
	}
	return fmt.Sprintf("write %s to %s: %v: %v", e.Target, e.DocumentID, e.Kind, e.Cause)
}

func (e *WriteError) Is(target error) bool {
	return target == e.Kind
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}
