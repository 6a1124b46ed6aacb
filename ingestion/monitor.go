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
	"sync/atomic"

	"github.com/poiesic/entsync/core"
)

// Monitor observes batch processing.
type Monitor interface {
	Start(batch core.DocumentBatch)
	Suppressed(batch core.DocumentBatch)
	Duplicate(batch core.DocumentBatch)
	AfterFetch(batch core.DocumentBatch, fetched core.FetchedEntities, err error)
	AfterReconcile(batch core.DocumentBatch, results []core.SyncResult)
	Finish(batch core.DocumentBatch, err error)
}

type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(core.DocumentBatch)                                   {}
func (n *noopMonitor) Suppressed(core.DocumentBatch)                              {}
func (n *noopMonitor) Duplicate(core.DocumentBatch)                               {}
func (n *noopMonitor) AfterFetch(core.DocumentBatch, core.FetchedEntities, error) {}
func (n *noopMonitor) AfterReconcile(core.DocumentBatch, []core.SyncResult)       {}
func (n *noopMonitor) Finish(core.DocumentBatch, error)                           {}

// StatsSnapshot is a point-in-time copy of Stats counters.
type StatsSnapshot struct {
	Batches    int64 // batches started
	Suppressed int64 // batches ignored because they came from a guarded reindex
	Duplicates int64 // batches already processed
	Documents  int64 // documents fetched
	Skipped    int64 // documents without an entities substructure
	Written    int64 // successful target writes
	Failed     int64 // failed target writes
	Errors     int64 // batches that ended with an error
}

// Stats is a Monitor that counts what it observes. Safe for concurrent use.
type Stats struct {
	batches    atomic.Int64
	suppressed atomic.Int64
	duplicates atomic.Int64
	documents  atomic.Int64
	skipped    atomic.Int64
	written    atomic.Int64
	failed     atomic.Int64
	errors     atomic.Int64
}

var _ Monitor = (*Stats)(nil)

func (s *Stats) Start(core.DocumentBatch) {
	s.batches.Add(1)
}

func (s *Stats) Suppressed(core.DocumentBatch) {
	s.suppressed.Add(1)
}

func (s *Stats) Duplicate(core.DocumentBatch) {
	s.duplicates.Add(1)
}

func (s *Stats) AfterFetch(_ core.DocumentBatch, fetched core.FetchedEntities, _ error) {
	s.documents.Add(int64(len(fetched)))
}

func (s *Stats) AfterReconcile(_ core.DocumentBatch, results []core.SyncResult) {
	for _, r := range results {
		if r.Skipped {
			s.skipped.Add(1)
		}
		s.written.Add(int64(len(r.Written)))
		s.failed.Add(int64(len(r.Failed)))
	}
}

func (s *Stats) Finish(_ core.DocumentBatch, err error) {
	if err != nil {
		s.errors.Add(1)
	}
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Batches:    s.batches.Load(),
		Suppressed: s.suppressed.Load(),
		Duplicates: s.duplicates.Load(),
		Documents:  s.documents.Load(),
		Skipped:    s.skipped.Load(),
		Written:    s.written.Load(),
		Failed:     s.failed.Load(),
		Errors:     s.errors.Load(),
	}
}
