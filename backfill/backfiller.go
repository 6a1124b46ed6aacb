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
package backfill

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/ingestion"
	"github.com/poiesic/entsync/storage"
)

// Handler syncs the entities of one batch. *ingestion.Pipeline satisfies it.
type Handler interface {
	HandleBulkIndexCompleted(ctx context.Context, batch core.DocumentBatch) error
}

// Config holds configuration for a backfill run.
type Config struct {
	// BatchSize is the number of documents handled per batch.
	BatchSize int

	// ReportInterval is how often progress is printed, in documents.
	ReportInterval int

	// MaxRetries is the number of attempts per batch.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration

	// ContinueOnError keeps going after a batch exhausts its retries.
	ContinueOnError bool

	// Restart discards a saved checkpoint and starts from the first record.
	Restart bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Summary describes a finished run.
type Summary struct {
	Documents int
	Batches   int
	Failed    int // documents in batches that could not be synced
	Resumed   int // documents skipped because a previous run synced them
	Elapsed   time.Duration
}

// Backfiller re-synchronizes every record in the host store.
type Backfiller struct {
	host           storage.HostStore
	handler        Handler
	reindexer      ingestion.Reindexer
	guard          *ingestion.Guard
	checkpoints    storage.CheckpointStore
	checkpointName string
	config         *Config
	progress       io.Writer
	logger         *slog.Logger
}

// Option configures a Backfiller.
type Option func(*Backfiller)

// WithReindexer pushes each batch to the search index before syncing it,
// so entities are extracted for documents indexed before activation. The
// guard suppresses the completion events of that indexing; pass the guard
// of the pipeline subscribed to the same events.
func WithReindexer(r ingestion.Reindexer, guard *ingestion.Guard) Option {
	return func(b *Backfiller) {
		b.reindexer = r
		b.guard = guard
	}
}

// WithCheckpoints saves progress under name after every synced batch, so an
// interrupted run resumes after the last synced record. The checkpoint is
// removed once a run completes without failures.
func WithCheckpoints(store storage.CheckpointStore, name string) Option {
	return func(b *Backfiller) {
		b.checkpoints = store
		b.checkpointName = name
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backfiller) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBackfiller creates a backfiller. progress receives progress lines and
// may be nil.
func NewBackfiller(host storage.HostStore, handler Handler, config *Config, progress io.Writer, opts ...Option) (*Backfiller, error) {
	if host == nil {
		return nil, ErrHostStoreRequired
	}
	if handler == nil {
		return nil, ErrHandlerRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	b := &Backfiller{
		host:     host,
		handler:  handler,
		config:   config,
		progress: progress,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.checkpoints != nil && b.checkpointName == "" {
		return nil, ErrCheckpointNameRequired
	}
	if b.reindexer != nil && b.guard == nil {
		b.guard = ingestion.NewGuard()
	}
	b.logger = b.logger.With("component", "backfill")
	return b, nil
}

// Run backfills every record. With ContinueOnError unset, the first batch
// that fails after all retries stops the run.
func (b *Backfiller) Run(ctx context.Context) (Summary, error) {
	iterator := NewRecordIterator(b.host, b.config.BatchSize)
	ids, err := iterator.IDs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list records: %w", err)
	}

	if len(ids) == 0 {
		fmt.Fprintf(b.progress, "No records found in host store (0 records)\n")
		return Summary{}, nil
	}

	resumed, err := b.resume(ctx, ids)
	if err != nil {
		return Summary{}, err
	}
	ids = ids[resumed:]
	summary := Summary{Documents: len(ids), Resumed: resumed}
	if len(ids) == 0 {
		fmt.Fprintf(b.progress, "Nothing to backfill, %d records synced by a previous run\n", resumed)
		return summary, b.clearCheckpoint(ctx)
	}
	if resumed > 0 {
		fmt.Fprintf(b.progress, "Resuming after %d records synced by a previous run\n", resumed)
	}

	fmt.Fprintf(b.progress, "Starting backfill of %d records (batch size: %d)\n", len(ids), iterator.batchSize)

	tracker := NewProgress(b.progress, len(ids), b.config.ReportInterval)
	tracker.Start()

	backoff := Backoff{
		MaxAttempts: max(b.config.MaxRetries, 1),
		BaseDelay:   b.config.RetryDelay,
		Retryable:   EngineFailure,
	}

	err = iterator.ForEach(ctx, ids, func(batch []core.DocumentID) error {
		summary.Batches++
		if err := backoff.Do(ctx, func(ctx context.Context) error {
			return b.syncBatch(ctx, batch)
		}); err != nil {
			summary.Failed += len(batch)
			tracker.Add(len(batch), len(batch))
			if !b.config.ContinueOnError {
				return fmt.Errorf("failed to sync batch starting at %s: %w", batch[0], err)
			}
			b.logger.Warn("batch failed, continuing", "first", batch[0], "size", len(batch), "error", err)
			return nil
		}
		tracker.Add(len(batch), 0)
		if summary.Failed == 0 {
			b.saveCheckpoint(ctx, batch[len(batch)-1], int64(resumed+tracker.Done()))
		}
		return nil
	})

	tracker.Finish()
	summary.Elapsed = tracker.Elapsed()
	if err != nil {
		return summary, err
	}
	if summary.Failed == 0 {
		if err := b.clearCheckpoint(ctx); err != nil {
			return summary, err
		}
	}

	fmt.Fprintf(b.progress, "Backfill complete. Processed %d records in %v (%.1f records/sec)\n",
		summary.Documents, summary.Elapsed.Round(time.Millisecond), float64(summary.Documents)/summary.Elapsed.Seconds())
	return summary, nil
}

// resume returns how many leading ids a saved checkpoint covers.
func (b *Backfiller) resume(ctx context.Context, ids []core.DocumentID) (int, error) {
	if b.checkpoints == nil {
		return 0, nil
	}
	if b.config.Restart {
		return 0, b.clearCheckpoint(ctx)
	}
	cp, err := b.checkpoints.LoadCheckpoint(ctx, b.checkpointName)
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return 0, nil
	}
	skip, _ := slices.BinarySearch(ids, cp.LastID)
	if skip < len(ids) && ids[skip] == cp.LastID {
		skip++
	}
	b.logger.Info("resuming from checkpoint", "last_id", cp.LastID, "skipped", skip, "saved", cp.UpdatedAt)
	return skip, nil
}

// saveCheckpoint records lastID as synced. A failed save only costs
// repeated work on the next run.
func (b *Backfiller) saveCheckpoint(ctx context.Context, lastID core.DocumentID, processed int64) {
	if b.checkpoints == nil {
		return
	}
	err := b.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Name:      b.checkpointName,
		LastID:    lastID,
		Processed: processed,
	})
	if err != nil {
		b.logger.Warn("failed to save checkpoint", "last_id", lastID, "error", err)
	}
}

func (b *Backfiller) clearCheckpoint(ctx context.Context) error {
	if b.checkpoints == nil {
		return nil
	}
	if err := b.checkpoints.DeleteCheckpoint(ctx, b.checkpointName); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

// syncBatch runs one attempt. Each attempt carries a fresh event ID so a
// retried batch is not mistaken for a duplicate delivery.
func (b *Backfiller) syncBatch(ctx context.Context, ids []core.DocumentID) error {
	if b.reindexer != nil {
		err := b.guard.Run(ctx, func(ctx context.Context) error {
			return b.reindexer.Reindex(ctx, ids)
		})
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
	}

	return b.handler.HandleBulkIndexCompleted(ctx, core.DocumentBatch{
		EventID: "backfill-" + ulid.Make().String(),
		IDs:     ids,
		At:      time.Now(),
	})
}
