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

package elastic

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/events"
)

// publish announces that ids were indexed. The batch carries the guard token
// found in ctx so handlers can recognize reindexing they caused themselves.
// Handler failures are logged and do not fail the indexing request.
func (c *Client) publish(ctx context.Context, ids []core.DocumentID) core.DocumentBatch {
	batch := core.DocumentBatch{
		EventID: ulid.Make().String(),
		IDs:     ids,
		Origin:  events.OriginFrom(ctx),
		At:      time.Now(),
	}
	if c.publisher == nil || len(ids) == 0 {
		return batch
	}
	if err := c.publisher.PublishBulkIndexCompleted(ctx, batch); err != nil {
		c.logger.Warn("bulk index completion handlers failed", "event", batch.EventID, "err", err)
	}
	return batch
}
