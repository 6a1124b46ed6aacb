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
	"errors"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
	"github.com/poiesic/entsync/routing"
)

// Fetcher retrieves the extracted entities of a batch from the search
// index in a single multi-document request.
type Fetcher struct {
	client engine.Client
	index  string
	policy routing.Policy
	logger *slog.Logger
}

// NewFetcher creates a fetcher reading from index. The policy decides which
// destination fields are selected alongside the entities.
func NewFetcher(client engine.Client, index string, policy routing.Policy, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: client,
		index:  index,
		policy: policy,
		logger: logger.With("component", "fetcher"),
	}
}

// Fetch returns the entities of every document in batch, restricted to kinds.
// An empty batch returns an empty result without contacting the engine.
//
// When some documents are missing from the reply, the documents that were
// found are returned together with a *core.FetchError of kind
// core.ErrPartialResponse listing the missing ones.
func (f *Fetcher) Fetch(ctx context.Context, batch core.DocumentBatch, kinds []core.EntityKind) (core.FetchedEntities, error) {
	return f.fetch(ctx, batch, kinds, routing.NewPass(f.policy))
}

func (f *Fetcher) fetch(ctx context.Context, batch core.DocumentBatch, kinds []core.EntityKind, pass *routing.Pass) (core.FetchedEntities, error) {
	result := make(core.FetchedEntities)
	ids := uniqueIDs(batch.IDs)
	if len(ids) == 0 {
		return result, nil
	}

	hits, err := f.client.MultiGet(ctx, f.index, ids, pass.SourceFields(kinds))
	if err != nil {
		kind := core.ErrUnreachable
		if errors.Is(err, core.ErrMalformed) {
			kind = core.ErrMalformed
		}
		var reqErr *engine.RequestError
		if errors.As(err, &reqErr) && reqErr.Kind != kind {
			f.logger.Warn("engine error reported as fetch failure",
				"event", batch.EventID, "engine_kind", reqErr.Kind, "kind", kind,
				"status", reqErr.StatusCode, "type", reqErr.Type, "reason", reqErr.Reason)
		}
		return nil, &core.FetchError{Kind: kind, Index: f.index, Cause: err}
	}

	wanted := make(map[core.DocumentID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	wantedKinds := make(map[string]core.EntityKind, len(kinds))
	for _, kind := range kinds {
		wantedKinds[string(kind)] = kind
	}

	for _, hit := range hits {
		if !hit.Found {
			continue
		}
		if !wanted[hit.ID] {
			f.logger.Debug("ignoring unrequested document in reply", "id", hit.ID)
			continue
		}
		if _, dup := result[hit.ID]; dup {
			continue
		}
		if len(hit.Source) > 0 && !gjson.ValidBytes(hit.Source) {
			return nil, &core.FetchError{
				Kind:  core.ErrMalformed,
				Index: f.index,
				Cause: errors.New("invalid _source for document " + string(hit.ID)),
			}
		}
		result[hit.ID] = parseEntities(hit.Source, wantedKinds)
	}

	var missing []core.DocumentID
	for _, id := range ids {
		if _, ok := result[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return result, &core.FetchError{Kind: core.ErrPartialResponse, Index: f.index, Missing: missing}
	}
	return result, nil
}

// parseEntities reads the entities object of a document source. A source
// without one yields nil. Kinds with no values are left out.
func parseEntities(source []byte, kinds map[string]core.EntityKind) map[core.EntityKind][]string {
	entities := gjson.GetBytes(source, core.EntitiesField)
	if !entities.IsObject() {
		return nil
	}

	out := make(map[core.EntityKind][]string)
	entities.ForEach(func(key, value gjson.Result) bool {
		kind, ok := kinds[key.String()]
		if !ok {
			return true
		}
		var values []string
		switch {
		case value.IsArray():
			for _, v := range value.Array() {
				if s := v.String(); s != "" && v.Type != gjson.JSON {
					values = append(values, s)
				}
			}
		case value.Type == gjson.String || value.Type == gjson.Number:
			if s := value.String(); s != "" {
				values = append(values, s)
			}
		}
		if len(values) > 0 {
			out[kind] = values
		}
		return true
	})
	return out
}

func uniqueIDs(ids []core.DocumentID) []core.DocumentID {
	seen := make(map[core.DocumentID]struct{}, len(ids))
	out := make([]core.DocumentID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
