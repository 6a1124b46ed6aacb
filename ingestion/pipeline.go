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
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
	"github.com/poiesic/entsync/events"
	"github.com/poiesic/entsync/routing"
	"github.com/poiesic/entsync/storage"
)

// Pipeline reacts to bulk-index completion events: it fetches the entities
// the engine extracted for the batch and writes them to the host store.
// Each event is processed at most once, and indexing the pipeline itself
// triggers is never processed again.
type Pipeline struct {
	fetcher    *Fetcher
	reconciler *Reconciler
	ledger     storage.BatchLedger
	guard      *Guard
	policy     routing.Policy
	kinds      []core.EntityKind
	index      string
	reindexer  Reindexer
	monitor    Monitor
	timeout    time.Duration
	pool       *ants.Pool
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by Submit.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithKinds sets the entity kinds that are synced.
// Default is core.DefaultKinds().
func WithKinds(kinds []core.EntityKind) Option {
	return func(p *Pipeline) error {
		if err := core.ValidateKinds(kinds); err != nil {
			return err
		}
		p.kinds = slices.Clone(kinds)
		return nil
	}
}

// WithIndex sets the index entities are fetched from. Default is "posts".
func WithIndex(index string) Option {
	return func(p *Pipeline) error {
		if index == "" {
			return fmt.Errorf("%w: index name required", core.ErrInvalidMapping)
		}
		p.index = index
		return nil
	}
}

// WithReindexer enables pushing changed records back to the index after
// reconciliation. The resulting completion events are ignored.
func WithReindexer(r Reindexer) Option {
	return func(p *Pipeline) error {
		p.reindexer = r
		return nil
	}
}

// WithMonitor sets an observer of batch processing.
func WithMonitor(m Monitor) Option {
	return func(p *Pipeline) error {
		if m == nil {
			m = &noopMonitor{}
		}
		p.monitor = m
		return nil
	}
}

// WithTimeout bounds the processing of a single batch. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			d = 0
		}
		p.timeout = d
		return nil
	}
}

// WithGuard shares a guard with other components that index on behalf of
// the pipeline.
func WithGuard(g *Guard) Option {
	return func(p *Pipeline) error {
		if g != nil {
			p.guard = g
		}
		return nil
	}
}

// NewPipeline creates a pipeline reading entities through client and writing
// them to host according to policy.
func NewPipeline(
	client engine.Client,
	host storage.HostStore,
	ledger storage.BatchLedger,
	policy routing.Policy,
	opts ...Option,
) (*Pipeline, error) {
	if client == nil {
		return nil, ErrEngineRequired
	}
	if host == nil {
		return nil, ErrHostStoreRequired
	}
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if policy == nil {
		return nil, ErrPolicyRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		ledger:  ledger,
		guard:   NewGuard(),
		policy:  policy,
		kinds:   core.DefaultKinds(),
		index:   "posts",
		monitor: &noopMonitor{},
		pool:    pool,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.logger = p.logger.With("component", "pipeline")
	p.fetcher = NewFetcher(client, p.index, policy, p.logger)
	p.reconciler = NewReconciler(host, policy, p.logger)
	return p, nil
}

// Guard returns the guard protecting against self-triggered processing.
func (p *Pipeline) Guard() *Guard {
	return p.guard
}

// Subscribe registers Submit for completion events on bus.
func (p *Pipeline) Subscribe(bus *events.Bus) (unsubscribe func()) {
	return bus.SubscribeBulkIndexCompleted(p.Submit)
}

// Submit schedules batch for processing on the worker pool and returns
// immediately. Batches produced by a guarded reindex are dropped here,
// while their guard is still active.
func (p *Pipeline) Submit(ctx context.Context, batch core.DocumentBatch) error {
	if p.guard.Suppressed(batch.Origin) {
		p.monitor.Start(batch)
		p.suppress(batch)
		p.monitor.Finish(batch, nil)
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		if err := p.HandleBulkIndexCompleted(ctx, batch); err != nil {
			p.logger.Error("batch processing failed", "event", batch.EventID, "error", err)
		}
	})
	if err != nil {
		p.wg.Done()
		return fmt.Errorf("submit batch %s: %w", batch.EventID, err)
	}
	return nil
}

// Wait blocks until every submitted batch has been processed.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// HandleBulkIndexCompleted processes batch synchronously. A batch whose
// entities cannot be fetched is dropped with an error; documents missing
// from the fetch are skipped and the rest are reconciled.
func (p *Pipeline) HandleBulkIndexCompleted(ctx context.Context, batch core.DocumentBatch) (err error) {
	p.monitor.Start(batch)
	defer func() { p.monitor.Finish(batch, err) }()

	if p.guard.Suppressed(batch.Origin) {
		p.suppress(batch)
		return nil
	}
	if batch.Len() == 0 {
		return nil
	}

	first, err := p.ledger.MarkProcessed(ctx, batch.Fingerprint())
	if err != nil {
		return fmt.Errorf("record batch %s: %w", batch.EventID, err)
	}
	if !first {
		p.monitor.Duplicate(batch)
		p.logger.Debug("batch already processed", "event", batch.EventID)
		return nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	pass := routing.NewPass(p.policy)
	fetched, err := p.fetcher.fetch(ctx, batch, p.kinds, pass)
	p.monitor.AfterFetch(batch, fetched, err)
	if err != nil {
		var fetchErr *core.FetchError
		if !errors.As(err, &fetchErr) || !errors.Is(err, core.ErrPartialResponse) {
			return err
		}
		p.logger.Warn("documents missing from fetch", "event", batch.EventID, "missing", fetchErr.Missing)
	}

	results := p.reconciler.reconcile(ctx, fetched, pass)
	p.monitor.AfterReconcile(batch, results)

	changed := changedIDs(results)
	p.logger.Debug("batch reconciled", "event", batch.EventID, "documents", len(results), "changed", len(changed))

	if p.reindexer != nil && len(changed) > 0 {
		err := p.guard.Run(ctx, func(ctx context.Context) error {
			return p.reindexer.Reindex(ctx, changed)
		})
		if err != nil {
			p.logger.Warn("reindex after reconciliation failed", "event", batch.EventID, "error", err)
		}
	}
	return nil
}

// Release releases the worker pool. Call Wait first to drain submitted batches.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func (p *Pipeline) suppress(batch core.DocumentBatch) {
	p.monitor.Suppressed(batch)
	p.logger.Debug("ignoring batch from guarded reindex", "event", batch.EventID, "origin", batch.Origin)
}

func changedIDs(results []core.SyncResult) []core.DocumentID {
	var ids []core.DocumentID
	for _, r := range results {
		if r.Changed() {
			ids = append(ids, r.DocumentID)
		}
	}
	return ids
}
