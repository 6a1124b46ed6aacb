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

import "github.com/poiesic/entsync/core"

// Pass memoizes policy resolution for the duration of one reconciliation pass.
// A Pass is not safe for concurrent use; create one per pass.
type Pass struct {
	policy Policy
	cache  map[core.EntityKind]core.RoutingTarget
}

// NewPass starts a pass over policy. A nil policy uses Default().
func NewPass(policy Policy) *Pass {
	if policy == nil {
		policy = Default()
	}
	return &Pass{
		policy: policy,
		cache:  make(map[core.EntityKind]core.RoutingTarget),
	}
}

// Resolve returns the target for kind, consulting the policy at most once per kind.
func (p *Pass) Resolve(kind core.EntityKind) core.RoutingTarget {
	if target, ok := p.cache[kind]; ok {
		return target
	}
	target := p.policy.Resolve(kind)
	p.cache[kind] = target
	return target
}

// Routes resolves every kind and returns only the ones that are synced.
func (p *Pass) Routes(kinds []core.EntityKind) map[core.EntityKind]core.RoutingTarget {
	routes := make(map[core.EntityKind]core.RoutingTarget, len(kinds))
	for _, kind := range kinds {
		if target := p.Resolve(kind); !target.IsNone() {
			routes[kind] = target
		}
	}
	return routes
}

// SourceFields returns the source fields a fetch must select: the
// "entities.<kind>" field of every kind, followed by the destination
// fields of routed kinds. Duplicates are dropped, order is stable.
func (p *Pass) SourceFields(kinds []core.EntityKind) []string {
	seen := make(map[string]struct{}, len(kinds)*2)
	fields := make([]string, 0, len(kinds)*2)
	add := func(field string) {
		if field == "" {
			return
		}
		if _, dup := seen[field]; dup {
			return
		}
		seen[field] = struct{}{}
		fields = append(fields, field)
	}

	for _, kind := range kinds {
		add(kind.Field())
	}
	for _, kind := range kinds {
		add(p.Resolve(kind).SourceField())
	}
	return fields
}
