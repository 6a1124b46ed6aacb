package entsync

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/entsync/backfill"
	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
	"github.com/poiesic/entsync/engine/mock"
	"github.com/poiesic/entsync/routing"
	"github.com/poiesic/entsync/storage/badger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockFactory returns a ClientFactory building an in-memory engine that
// extracts a fixed vocabulary, and a pointer receiving the engine.
func mockFactory() (ClientFactory, **mock.MockEngine) {
	var eng *mock.MockEngine
	factory := func(cfg *engine.Config, pub engine.Publisher, icpt engine.RequestInterceptor, _ *slog.Logger) (engine.Client, error) {
		eng = mock.NewMockEngine().WithPublisher(pub).WithInterceptor(icpt)
		eng.Extract = mock.DictionaryExtractor("post_content", map[string]core.EntityKind{
			"Paris":  "locations",
			"Alice":  "persons",
			"Monday": "dates",
		}, core.DefaultKinds())
		return eng, nil
	}
	return factory, &eng
}

func newTestService(t *testing.T, cfg *Config) (*Service, *mock.MockEngine) {
	t.Helper()
	factory, eng := mockFactory()
	svc, err := New(context.Background(), cfg, WithLogger(discardLogger()), WithClientFactory(factory))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, *eng
}

func TestService_ActivateProvisions(t *testing.T) {
	svc, eng := newTestService(t, NewConfig())

	require.NoError(t, svc.Activate(context.Background()))
	require.NoError(t, svc.Activate(context.Background()))

	pipeline, ok := eng.Pipeline("wordpress_nlp_ingester")
	require.True(t, ok)
	assert.Equal(t, "post_content", pipeline.SourceField)
	assert.Len(t, eng.Mapping("posts"), 3)
}

func TestService_SaveSyncsEntities(t *testing.T) {
	cfg := NewConfig(WithRouting(routing.Example()), WithReindex(true))
	svc, eng := newTestService(t, cfg)
	ctx := context.Background()

	batch, err := svc.Save(ctx, &core.Record{ID: "1", Content: "Alice arrives in Paris on Monday"})
	require.NoError(t, err)
	assert.Equal(t, []core.DocumentID{"1"}, batch.IDs)
	svc.Wait()

	rec, err := svc.HostStore().GetRecord(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris"}, rec.Tags["category"])
	assert.Equal(t, []string{"Alice"}, rec.Attributes["persons"])
	assert.Equal(t, []string{"Monday"}, rec.Attributes["dates"])

	stats := svc.Stats()
	assert.Equal(t, int64(1), stats.Suppressed, "reindex after sync is not processed again")
	assert.Equal(t, 1, eng.CallCount(mock.OpMultiGet))
	for _, path := range eng.Paths() {
		assert.Contains(t, path, "pipeline=wordpress_nlp_ingester")
	}
}

func TestService_SettingsOverride(t *testing.T) {
	dir := t.TempDir()
	host, err := badger.OpenHostRepository(dir, false)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, host.WriteSetting(ctx, SettingPipelineName, "site_pipeline"))
	require.NoError(t, host.WriteSetting(ctx, SettingSourceField, "body"))
	require.NoError(t, host.Close())

	svc, eng := newTestService(t, NewConfig(WithStorePath(dir)))
	require.NoError(t, svc.Activate(ctx))

	assert.Equal(t, "site_pipeline", svc.Config().Engine.PipelineName)
	pipeline, ok := eng.Pipeline("site_pipeline")
	require.True(t, ok)
	assert.Equal(t, "body", pipeline.SourceField)
	assert.Equal(t, "/posts/_doc/1?pipeline=site_pipeline", svc.Augmenter().Augment("/posts/_doc/1"))
}

func TestService_Backfill(t *testing.T) {
	svc, _ := newTestService(t, NewConfig(WithRouting(routing.Example())))
	ctx := context.Background()
	require.NoError(t, svc.HostStore().PutRecords(ctx,
		&core.Record{ID: "a", Content: "Alice"},
		&core.Record{ID: "b", Content: "Paris"},
	))

	var out bytes.Buffer
	summary, err := svc.Backfill(ctx, &backfill.Config{BatchSize: 10, MaxRetries: 1, RetryDelay: time.Millisecond}, &out)
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, 2, summary.Documents)
	recA, err := svc.HostStore().GetRecord(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, recA.Attributes["persons"])
	recB, err := svc.HostStore().GetRecord(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris"}, recB.Tags["category"])
}

func TestNew_InvalidConfig(t *testing.T) {
	factory, _ := mockFactory()
	_, err := New(context.Background(), NewConfig(WithKinds()), WithClientFactory(factory), WithLogger(discardLogger()))
	assert.ErrorIs(t, err, core.ErrInvalidKinds)
}

func TestService_BackfillResumesFromCheckpoint(t *testing.T) {
	svc, eng := newTestService(t, NewConfig(WithRouting(routing.Example())))
	ctx := context.Background()
	require.NoError(t, svc.HostStore().PutRecords(ctx,
		&core.Record{ID: "a", Content: "Alice"},
		&core.Record{ID: "b", Content: "Paris"},
	))
	require.NoError(t, svc.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Name:      BackfillCheckpoint,
		LastID:    "a",
		Processed: 1,
	}))

	var out bytes.Buffer
	summary, err := svc.Backfill(ctx, &backfill.Config{BatchSize: 10, MaxRetries: 1, RetryDelay: time.Millisecond}, &out)
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, 1, summary.Resumed)
	assert.Contains(t, out.String(), "Resuming after 1 records")
	assert.Equal(t, 1, eng.CallCount(mock.OpMultiGet))

	_, err = svc.HostStore().GetRecord(ctx, "b")
	require.NoError(t, err)
	recA, err := svc.HostStore().GetRecord(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, recA.Attributes["persons"], "a was synced by the earlier run")

	cp, err := svc.checkpoints.LoadCheckpoint(ctx, BackfillCheckpoint)
	require.NoError(t, err)
	assert.Nil(t, cp, "checkpoint cleared after a clean run")
}

func TestService_AugmenterUsesEnginePipelineName(t *testing.T) {
	cfg := NewConfig(
		WithEngine(engine.NewConfig(engine.WithPipelineName("stale"))),
		WithPipelineName("custom_ner"),
	)
	svc, eng := newTestService(t, cfg)

	_, err := svc.Save(context.Background(), &core.Record{ID: "1", Content: "Alice"})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, "custom_ner", svc.Config().Engine.PipelineName)
	assert.Equal(t, "/_bulk?pipeline=custom_ner", svc.Augmenter().Augment("/_bulk"))
	require.NotEmpty(t, eng.Paths())
	for _, path := range eng.Paths() {
		assert.Contains(t, path, "pipeline=custom_ner")
	}
}
