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

package routing

import "errors"

var (
	// ErrEmptyOverrideName is returned when an override is registered without a name.
	ErrEmptyOverrideName = errors.New("override name required")

	// ErrNilOverride is returned when a nil override is registered.
	ErrNilOverride = errors.New("override function required")

	// ErrOverrideExists is returned when an override name is registered twice.
	ErrOverrideExists = errors.New("override already registered")

	// ErrInvalidRoute is returned when a route in a routing file is ambiguous.
	ErrInvalidRoute = errors.New("invalid route")
)
