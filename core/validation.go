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
	"fmt"
	"strings"
)

// ValidateKinds validates the configured entity kinds.
//
// Validation rules:
//   - at least one kind
//   - kinds must not be empty or contain '.' or ','
//   - kinds must be unique
func ValidateKinds(kinds []EntityKind) error {
	if len(kinds) == 0 {
		return fmt.Errorf("%w: no kinds configured", ErrInvalidKinds)
	}

	seen := make(map[EntityKind]struct{}, len(kinds))
	for _, kind := range kinds {
		if strings.TrimSpace(string(kind)) == "" {
			return fmt.Errorf("%w: %w", ErrInvalidKinds, ErrEmptyKind)
		}
		if strings.ContainsAny(string(kind), ".,") {
			return fmt.Errorf("%w: kind %q contains '.' or ','", ErrInvalidKinds, kind)
		}
		if _, dup := seen[kind]; dup {
			return fmt.Errorf("%w: %w: %q", ErrInvalidKinds, ErrDuplicateKind, kind)
		}
		seen[kind] = struct{}{}
	}
	return nil
}

// ValidatePipelineDescriptor validates a PipelineDescriptor.
//
// Validation rules:
//   - Name must not be empty and must not contain '/' or '?'
//   - SourceField must not be empty unless explicit processors are given
//   - every processor has a type
func ValidatePipelineDescriptor(desc PipelineDescriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidPipeline)
	}
	if strings.ContainsAny(desc.Name, "/?&") {
		return fmt.Errorf("%w: name %q is not path safe", ErrInvalidPipeline, desc.Name)
	}
	if desc.SourceField == "" && len(desc.Processors) == 0 {
		return fmt.Errorf("%w: source field is empty", ErrInvalidPipeline)
	}
	for i, p := range desc.Processors {
		if p.Type == "" {
			return fmt.Errorf("%w: processor %d has no type", ErrInvalidPipeline, i)
		}
	}
	return nil
}

// ValidateMappingDescriptor validates a MappingDescriptor.
//
// Validation rules:
//   - Index must not be empty
//   - at least one field, each under "entities." with a type
func ValidateMappingDescriptor(desc MappingDescriptor) error {
	if desc.Index == "" {
		return fmt.Errorf("%w: index is empty", ErrInvalidMapping)
	}
	if len(desc.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidMapping)
	}
	for name, field := range desc.Fields {
		if !strings.HasPrefix(name, EntitiesField+".") || len(name) == len(EntitiesField)+1 {
			return fmt.Errorf("%w: field %q is not an entities field", ErrInvalidMapping, name)
		}
		if field.Type == "" {
			return fmt.Errorf("%w: field %q has no type", ErrInvalidMapping, name)
		}
	}
	return nil
}
