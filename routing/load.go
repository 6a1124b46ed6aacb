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
	"os"

	"github.com/poiesic/entsync/core"
	"gopkg.in/yaml.v3"
)

// routeSpec is one entry of a routing file. At most one field may be set.
type routeSpec struct {
	TagSet    string `yaml:"tagset"`
	Attribute string `yaml:"attribute"`
}

// routingFile is the on-disk routing format:
//
//	routes:
//	  locations: {tagset: category}
//	  persons: {attribute: persons}
//	  dates: {}            # extracted, not synced
type routingFile struct {
	Routes map[string]routeSpec `yaml:"routes"`
}

// Parse reads routes from YAML and returns a static policy.
func Parse(data []byte) (Policy, error) {
	var rf routingFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, err
	}

	routes := make(map[core.EntityKind]core.RoutingTarget, len(rf.Routes))
	for kind, route := range rf.Routes {
		switch {
		case route.TagSet != "" && route.Attribute != "":
			return nil, fmt.Errorf("%w: %q sets both tagset and attribute", ErrInvalidRoute, kind)
		case route.TagSet != "":
			routes[core.EntityKind(kind)] = core.TagSet(route.TagSet)
		case route.Attribute != "":
			routes[core.EntityKind(kind)] = core.Attribute(route.Attribute)
		default:
			routes[core.EntityKind(kind)] = core.None()
		}
	}
	return Static(routes), nil
}

// LoadFile loads a routing policy from a YAML file.
func LoadFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	policy, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load routing %s: %w", path, err)
	}
	return policy, nil
}
