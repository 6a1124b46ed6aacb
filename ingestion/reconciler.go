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
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/routing"
	"github.com/poiesic/entsync/storage"
)

// Reconciler writes fetched entities to the host store according to a
// routing policy.
type Reconciler struct {
	host   storage.HostStore
	policy routing.Policy
	logger *slog.Logger
}

// NewReconciler creates a reconciler writing to host.
func NewReconciler(host storage.HostStore, policy routing.Policy, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		host:   host,
		policy: policy,
		logger: logger.With("component", "reconciler"),
	}
}

// Reconcile applies fetched to the host store and returns one result per
// document, in document ID order. Tag sets are merged additively and
// attributes are replaced with sanitized values. Kinds routed to None are
// ignored. A failed write is recorded in the result and does not stop the
// remaining writes.
func (r *Reconciler) Reconcile(ctx context.Context, fetched core.FetchedEntities) []core.SyncResult {
	return r.reconcile(ctx, fetched, routing.NewPass(r.policy))
}

func (r *Reconciler) reconcile(ctx context.Context, fetched core.FetchedEntities, pass *routing.Pass) []core.SyncResult {
	ids := fetched.DocumentIDs()
	results := make([]core.SyncResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("reconciliation interrupted", "remaining", len(ids)-len(results), "error", err)
			break
		}
		results = append(results, r.reconcileDocument(ctx, id, fetched[id], pass))
	}
	return results
}

// write is the merged set of values destined for one target.
type write struct {
	target core.RoutingTarget
	values []string
}

func (r *Reconciler) reconcileDocument(ctx context.Context, id core.DocumentID, entities map[core.EntityKind][]string, pass *routing.Pass) core.SyncResult {
	result := core.SyncResult{DocumentID: id}
	if entities == nil {
		result.Skipped = true
		return result
	}

	for _, w := range plan(entities, pass) {
		var err error
		switch w.target.Kind {
		case core.TargetTagSet:
			err = r.writeTags(ctx, id, w)
		case core.TargetAttribute:
			err = r.writeAttribute(ctx, id, w)
		}
		if err != nil {
			r.logger.Warn("write failed", "id", id, "target", w.target.String(), "error", err)
			result.Failed = append(result.Failed, core.TargetFailure{Target: w.target, Err: err})
			continue
		}
		result.Written = append(result.Written, w.target)
	}
	return result
}

// plan groups values by destination. Kinds are visited in sorted order and
// kinds sharing a destination are merged into one write.
func plan(entities map[core.EntityKind][]string, pass *routing.Pass) []write {
	var writes []write
	index := make(map[core.RoutingTarget]int)
	for _, kind := range slices.Sorted(maps.Keys(entities)) {
		values := entities[kind]
		if len(values) == 0 {
			continue
		}
		target := pass.Resolve(kind)
		if target.IsNone() {
			continue
		}
		i, ok := index[target]
		if !ok {
			i = len(writes)
			index[target] = i
			writes = append(writes, write{target: target})
		}
		writes[i].values = append(writes[i].values, values...)
	}
	return writes
}

func (r *Reconciler) writeTags(ctx context.Context, id core.DocumentID, w write) error {
	terms := make([]string, 0, len(w.values))
	for _, v := range w.values {
		if v = strings.TrimSpace(v); v != "" && !slices.Contains(terms, v) {
			terms = append(terms, v)
		}
	}
	if len(terms) == 0 {
		return &core.WriteError{Kind: core.ErrUnsanitizable, DocumentID: id, Target: w.target}
	}
	if err := r.host.SetTags(ctx, id, w.target.Name, terms, true); err != nil {
		return &core.WriteError{Kind: core.ErrStorageUnavailable, DocumentID: id, Target: w.target, Cause: err}
	}
	return nil
}

func (r *Reconciler) writeAttribute(ctx context.Context, id core.DocumentID, w write) error {
	clean, rejected := SanitizeValues(w.values)
	if len(rejected) > 0 {
		r.logger.Debug("dropped unsanitizable values", "id", id, "target", w.target.String(), "count", len(rejected))
	}
	if len(clean) == 0 {
		return &core.WriteError{Kind: core.ErrUnsanitizable, DocumentID: id, Target: w.target}
	}
	if err := r.host.SetAttribute(ctx, id, w.target.Name, clean); err != nil {
		return &core.WriteError{Kind: core.ErrStorageUnavailable, DocumentID: id, Target: w.target, Cause: err}
	}
	return nil
}
