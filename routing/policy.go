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
	"maps"

	"github.com/poiesic/entsync/core"
)

// Policy maps an entity kind to its destination in the host store.
// Implementations must be deterministic and free of side effects,
// and safe for concurrent use.
type Policy interface {
	// Resolve returns the destination for kind.
	// Unknown kinds resolve to core.None().
	Resolve(kind core.EntityKind) core.RoutingTarget
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(kind core.EntityKind) core.RoutingTarget

// Resolve calls f(kind).
func (f PolicyFunc) Resolve(kind core.EntityKind) core.RoutingTarget {
	return f(kind)
}

// staticPolicy resolves kinds from a fixed table.
type staticPolicy struct {
	routes map[core.EntityKind]core.RoutingTarget
}

var _ Policy = (*staticPolicy)(nil)

// Static returns a policy backed by a copy of routes.
func Static(routes map[core.EntityKind]core.RoutingTarget) Policy {
	return &staticPolicy{routes: maps.Clone(routes)}
}

func (s *staticPolicy) Resolve(kind core.EntityKind) core.RoutingTarget {
	if target, ok := s.routes[kind]; ok && !target.IsNone() {
		return target
	}
	return core.None()
}

// Default returns the policy used when nothing is configured.
// Every kind resolves to core.None().
func Default() Policy {
	return Static(nil)
}

// Example returns a ready-made routing: locations become "category" tags,
// persons and dates are kept as attributes of the same name.
func Example() Policy {
	return Static(map[core.EntityKind]core.RoutingTarget{
		"locations": core.TagSet("category"),
		"persons":   core.Attribute("persons"),
		"dates":     core.Attribute("dates"),
	})
}
