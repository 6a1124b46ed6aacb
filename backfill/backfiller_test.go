package backfill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine/mock"
	"github.com/poiesic/entsync/events"
	"github.com/poiesic/entsync/ingestion"
	"github.com/poiesic/entsync/routing"
	"github.com/poiesic/entsync/storage/badger"
)

// recordingHandler records batches and fails according to failFn.
type recordingHandler struct {
	mu      sync.Mutex
	batches []core.DocumentBatch
	failFn  func(call int, batch core.DocumentBatch) error
}

func (h *recordingHandler) HandleBulkIndexCompleted(ctx context.Context, batch core.DocumentBatch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches = append(h.batches, batch)
	if h.failFn != nil {
		return h.failFn(len(h.batches), batch)
	}
	return nil
}

func setupHost(t *testing.T, n int) *badger.HostRepository {
	t.Helper()
	host, err := badger.OpenHostRepository("", true)
	require.NoError(t, err)
	t.Cleanup(func() { host.Close() })

	records := make([]*core.Record, n)
	for i := range records {
		records[i] = &core.Record{
			ID:      core.DocumentID(fmt.Sprintf("post-%03d", i)),
			Content: "Alice went to Paris",
		}
	}
	if n > 0 {
		require.NoError(t, host.PutRecords(context.Background(), records...))
	}
	return host
}

func testConfig() *Config {
	return &Config{BatchSize: 100, ReportInterval: 100, MaxRetries: 3, RetryDelay: time.Millisecond}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewBackfiller_RequiresDependencies(t *testing.T) {
	_, err := NewBackfiller(nil, &recordingHandler{}, nil, nil)
	assert.ErrorIs(t, err, ErrHostStoreRequired)

	_, err = NewBackfiller(setupHost(t, 0), nil, nil, nil)
	assert.ErrorIs(t, err, ErrHandlerRequired)
}

func TestBackfiller_EmptyStore(t *testing.T) {
	var out bytes.Buffer
	h := &recordingHandler{}
	b, err := NewBackfiller(setupHost(t, 0), h, testConfig(), &out)
	require.NoError(t, err)

	summary, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Documents)
	assert.Empty(t, h.batches)
	assert.Contains(t, out.String(), "No records found")
}

func TestBackfiller_Batches(t *testing.T) {
	var out bytes.Buffer
	h := &recordingHandler{}
	b, err := NewBackfiller(setupHost(t, 250), h, testConfig(), &out)
	require.NoError(t, err)

	summary, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 250, summary.Documents)
	assert.Equal(t, 3, summary.Batches)
	assert.Zero(t, summary.Failed)
	require.Len(t, h.batches, 3)
	assert.Len(t, h.batches[0].IDs, 100)
	assert.Len(t, h.batches[2].IDs, 50)
	assert.Equal(t, core.DocumentID("post-000"), h.batches[0].IDs[0])
	assert.NotEqual(t, h.batches[0].EventID, h.batches[1].EventID)
	assert.Contains(t, out.String(), "Backfill complete")
}

func TestBackfiller_RetriesEngineFailures(t *testing.T) {
	h := &recordingHandler{failFn: func(call int, _ core.DocumentBatch) error {
		if call < 3 {
			return &core.FetchError{Kind: core.ErrUnreachable}
		}
		return nil
	}}
	b, err := NewBackfiller(setupHost(t, 10), h, testConfig(), nil)
	require.NoError(t, err)

	summary, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Batches)
	require.Len(t, h.batches, 3)
	assert.NotEqual(t, h.batches[0].EventID, h.batches[1].EventID, "fresh event per attempt")
}

func TestBackfiller_StopsOnFailure(t *testing.T) {
	h := &recordingHandler{failFn: func(int, core.DocumentBatch) error {
		return &core.FetchError{Kind: core.ErrMalformed}
	}}
	b, err := NewBackfiller(setupHost(t, 250), h, testConfig(), nil)
	require.NoError(t, err)

	summary, err := b.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrMalformed)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 100, summary.Failed)
	assert.Len(t, h.batches, 1, "malformed responses are not retried")
}

func TestBackfiller_ContinueOnError(t *testing.T) {
	h := &recordingHandler{failFn: func(_ int, batch core.DocumentBatch) error {
		if batch.IDs[0] == "post-100" {
			return errors.New("boom")
		}
		return nil
	}}
	config := testConfig()
	config.ContinueOnError = true
	b, err := NewBackfiller(setupHost(t, 250), h, config, nil, WithLogger(discardLogger()))
	require.NoError(t, err)

	summary, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 100, summary.Failed)
}

func TestBackfiller_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &recordingHandler{failFn: func(int, core.DocumentBatch) error {
		cancel()
		return nil
	}}
	b, err := NewBackfiller(setupHost(t, 250), h, testConfig(), nil)
	require.NoError(t, err)

	_, err = b.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, h.batches, 1)
}

func TestBackfiller_ReindexesThroughPipeline(t *testing.T) {
	host, ledger, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	for _, id := range []core.DocumentID{"a", "b", "c"} {
		require.NoError(t, host.PutRecords(ctx, &core.Record{ID: id, Content: "Bob met Alice in Rome"}))
	}

	bus := events.NewBus(discardLogger())
	eng := mock.NewMockEngine().WithPublisher(bus)
	eng.Extract = mock.DictionaryExtractor("post_content", map[string]core.EntityKind{
		"Rome": "locations", "Alice": "persons", "Bob": "persons",
	}, core.DefaultKinds())

	stats := &ingestion.Stats{}
	pipeline, err := ingestion.NewPipeline(eng, host, ledger, routing.Example(),
		ingestion.WithLogger(discardLogger()), ingestion.WithMonitor(stats))
	require.NoError(t, err)
	defer pipeline.Release()
	pipeline.Subscribe(bus)

	reindexer := ingestion.NewStoreReindexer(eng, host, "posts", "post_content")
	config := testConfig()
	config.BatchSize = 2
	b, err := NewBackfiller(host, pipeline, config, nil, WithReindexer(reindexer, pipeline.Guard()))
	require.NoError(t, err)

	summary, err := b.Run(ctx)
	require.NoError(t, err)
	pipeline.Wait()

	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 2, eng.CallCount(mock.OpMultiGet), "one fetch per backfill batch")
	assert.Equal(t, int64(2), stats.Snapshot().Suppressed, "reindex events are ignored")

	for _, id := range []core.DocumentID{"a", "b", "c"} {
		rec, err := host.GetRecord(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"Rome"}, rec.Tags["category"])
		assert.Equal(t, []string{"Bob", "Alice"}, rec.Attributes["persons"])
		assert.Equal(t, "Bob met Alice in Rome", rec.Content)
	}
}

func newCheckpoints(t *testing.T) *badger.CheckpointRepository {
	t.Helper()
	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return badger.NewCheckpointRepository(backend)
}

func TestBackfiller_ResumesFromCheckpoint(t *testing.T) {
	host := setupHost(t, 250)
	checkpoints := newCheckpoints(t)
	ctx := context.Background()

	failing := &recordingHandler{failFn: func(_ int, batch core.DocumentBatch) error {
		if batch.IDs[0] == "post-200" {
			return &core.FetchError{Kind: core.ErrMalformed}
		}
		return nil
	}}
	b, err := NewBackfiller(host, failing, testConfig(), nil, WithCheckpoints(checkpoints, "backfill"))
	require.NoError(t, err)
	_, err = b.Run(ctx)
	require.Error(t, err)

	cp, err := checkpoints.LoadCheckpoint(ctx, "backfill")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, core.DocumentID("post-199"), cp.LastID)
	assert.Equal(t, int64(200), cp.Processed)

	var out bytes.Buffer
	h := &recordingHandler{}
	b, err = NewBackfiller(host, h, testConfig(), &out, WithCheckpoints(checkpoints, "backfill"))
	require.NoError(t, err)
	summary, err := b.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 200, summary.Resumed)
	assert.Equal(t, 50, summary.Documents)
	require.Len(t, h.batches, 1)
	assert.Equal(t, core.DocumentID("post-200"), h.batches[0].IDs[0])
	assert.Contains(t, out.String(), "Resuming after 200 records")

	cp, err = checkpoints.LoadCheckpoint(ctx, "backfill")
	require.NoError(t, err)
	assert.Nil(t, cp, "checkpoint removed after a clean run")
}

func TestBackfiller_RestartIgnoresCheckpoint(t *testing.T) {
	host := setupHost(t, 30)
	checkpoints := newCheckpoints(t)
	ctx := context.Background()
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Name: "backfill", LastID: "post-019"}))

	h := &recordingHandler{}
	config := testConfig()
	config.Restart = true
	b, err := NewBackfiller(host, h, config, nil, WithCheckpoints(checkpoints, "backfill"))
	require.NoError(t, err)

	summary, err := b.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Resumed)
	assert.Equal(t, 30, summary.Documents)
}

func TestBackfiller_CheckpointCoversEverything(t *testing.T) {
	host := setupHost(t, 5)
	checkpoints := newCheckpoints(t)
	ctx := context.Background()
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Name: "backfill", LastID: "post-004"}))

	var out bytes.Buffer
	h := &recordingHandler{}
	b, err := NewBackfiller(host, h, testConfig(), &out, WithCheckpoints(checkpoints, "backfill"))
	require.NoError(t, err)

	summary, err := b.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Resumed)
	assert.Empty(t, h.batches)
	assert.Contains(t, out.String(), "Nothing to backfill")

	cp, err := checkpoints.LoadCheckpoint(ctx, "backfill")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestBackfiller_CheckpointStopsAtFirstFailure(t *testing.T) {
	host := setupHost(t, 250)
	checkpoints := newCheckpoints(t)
	ctx := context.Background()

	h := &recordingHandler{failFn: func(_ int, batch core.DocumentBatch) error {
		if batch.IDs[0] == "post-100" {
			return errors.New("boom")
		}
		return nil
	}}
	config := testConfig()
	config.ContinueOnError = true
	b, err := NewBackfiller(host, h, config, nil, WithCheckpoints(checkpoints, "backfill"), WithLogger(discardLogger()))
	require.NoError(t, err)

	summary, err := b.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, summary.Failed)

	cp, err := checkpoints.LoadCheckpoint(ctx, "backfill")
	require.NoError(t, err)
	require.NotNil(t, cp, "failed batch must be retried on the next run")
	assert.Equal(t, core.DocumentID("post-099"), cp.LastID)
}

func TestNewBackfiller_CheckpointNameRequired(t *testing.T) {
	_, err := NewBackfiller(setupHost(t, 0), &recordingHandler{}, nil, nil, WithCheckpoints(newCheckpoints(t), ""))
	assert.ErrorIs(t, err, ErrCheckpointNameRequired)
}
