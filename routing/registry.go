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

import (
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/entsync/core"
)

// Override receives the target resolved by the layers below it and returns
// the target to use instead. Returning current leaves the route unchanged;
// returning core.None() disables syncing of kind.
type Override func(kind core.EntityKind, current core.RoutingTarget) core.RoutingTarget

// Layer turns a policy into an override that replaces the current target
// whenever the policy knows the kind, and defers otherwise.
func Layer(p Policy) Override {
	return func(kind core.EntityKind, current core.RoutingTarget) core.RoutingTarget {
		if target := p.Resolve(kind); !target.IsNone() {
			return target
		}
		return current
	}
}

type namedOverride struct {
	name     string
	override Override
}

// Registry collects named routing overrides on top of a base policy.
// Overrides are registered explicitly while the host is wiring itself up;
// Policy returns an immutable snapshot for use by reconciliation.
type Registry struct {
	mu        sync.RWMutex
	base      Policy
	overrides []namedOverride
}

// NewRegistry creates a registry on top of base.
// A nil base uses Default().
func NewRegistry(base Policy) *Registry {
	if base == nil {
		base = Default()
	}
	return &Registry{base: base}
}

// Register adds an override. Later registrations see the result of earlier ones.
func (r *Registry) Register(name string, override Override) error {
	if name == "" {
		return ErrEmptyOverrideName
	}
	if override == nil {
		return fmt.Errorf("override %q: %w", name, ErrNilOverride)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.overrides {
		if existing.name == name {
			return fmt.Errorf("override %q: %w", name, ErrOverrideExists)
		}
	}
	r.overrides = append(r.overrides, namedOverride{name: name, override: override})
	return nil
}

// Unregister removes a named override. Returns false if it was not registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.overrides {
		if existing.name == name {
			r.overrides = slices.Delete(r.overrides, i, i+1)
			return true
		}
	}
	return false
}

// Names returns the registered override names in application order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.overrides))
	for i, o := range r.overrides {
		names[i] = o.name
	}
	return names
}

// Policy returns the composed policy as of now. Later registrations
// do not affect a policy that has already been returned.
func (r *Registry) Policy() Policy {
	r.mu.RLock()
	base := r.base
	overrides := slices.Clone(r.overrides)
	r.mu.RUnlock()

	return PolicyFunc(func(kind core.EntityKind) core.RoutingTarget {
		target := base.Resolve(kind)
		for _, o := range overrides {
			target = o.override(kind, target)
		}
		if target.IsNone() {
			return core.None()
		}
		return target
	})
}
