// Package routing decides where extracted entities are written in the host store.
//
// A Policy maps each entity kind to a core.RoutingTarget: a tag set, an
// attribute, or nothing. Hosts customize routing by registering named
// overrides on a Registry at startup:
//
//	reg := routing.NewRegistry(routing.Example())
//	reg.Register("people-as-tags", routing.Layer(routing.Static(map[core.EntityKind]core.RoutingTarget{
//	    "persons": core.TagSet("people"),
//	})))
//	policy := reg.Policy()
//
// Reconciliation resolves kinds through a Pass, which caches each answer
// for the duration of one pass and derives the source fields a fetch needs.
package routing
