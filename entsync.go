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
package entsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/entsync/backfill"
	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
	"github.com/poiesic/entsync/engine/elastic"
	"github.com/poiesic/entsync/events"
	"github.com/poiesic/entsync/ingestion"
	"github.com/poiesic/entsync/provision"
	"github.com/poiesic/entsync/storage"
	"github.com/poiesic/entsync/storage/badger"
)

// BackfillCheckpoint names the checkpoint that makes Backfill resumable.
const BackfillCheckpoint = "backfill"

// ClientFactory builds the search engine client. publisher receives
// completion events and interceptor must be applied to indexing paths.
type ClientFactory func(cfg *engine.Config, publisher engine.Publisher, interceptor engine.RequestInterceptor, logger *slog.Logger) (engine.Client, error)

// ElasticClient is the default ClientFactory.
func ElasticClient(cfg *engine.Config, publisher engine.Publisher, interceptor engine.RequestInterceptor, logger *slog.Logger) (engine.Client, error) {
	return elastic.NewClient(cfg,
		elastic.WithPublisher(publisher),
		elastic.WithInterceptors(interceptor),
		elastic.WithLogger(logger),
	)
}

// Service wires the host store, event bus, engine client, provisioner and
// sync pipeline together.
type Service struct {
	config      *Config
	backend     *badger.Backend
	host        *badger.HostRepository
	ledger      *badger.LedgerRepository
	checkpoints *badger.CheckpointRepository
	bus         *events.Bus
	augmenter   *engine.Augmenter
	client      engine.Client
	provisioner *provision.Provisioner
	pipeline    *ingestion.Pipeline
	reindexer   *ingestion.StoreReindexer
	stats       *ingestion.Stats
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger  *slog.Logger
	factory ClientFactory
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithClientFactory replaces the HTTP engine client, e.g. with an in-memory engine.
func WithClientFactory(f ClientFactory) ServiceOption {
	return func(o *serviceOptions) {
		o.factory = f
	}
}

// New opens the host store and wires a Service from cfg. A nil cfg uses
// DefaultConfig. Host settings override the pipeline name and source field.
func New(ctx context.Context, cfg *Config, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		logger:  slog.Default(),
		factory: ElasticClient,
	}
	for _, opt := range opts {
		opt(options)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	backend, err := badger.OpenBackend(cfg.StorePath, cfg.StorePath == "")
	if err != nil {
		return nil, err
	}
	host := badger.NewHostRepository(backend)

	if err := applySettings(ctx, host, cfg); err != nil {
		backend.Close()
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		backend.Close()
		return nil, err
	}

	s := &Service{
		config:      cfg,
		backend:     backend,
		host:        host,
		ledger:      badger.NewLedgerRepository(backend, cfg.LedgerRetention),
		checkpoints: badger.NewCheckpointRepository(backend),
		bus:         events.NewBus(options.logger),
		augmenter:   engine.NewAugmenter(cfg.Engine.PipelineName),
		stats:       &ingestion.Stats{},
		logger:      options.logger,
	}

	s.client, err = options.factory(cfg.Engine, s.bus, s.augmenter, options.logger)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("create engine client: %w", err)
	}

	provisionOpts := []provision.Option{provision.WithLogger(options.logger)}
	if !cfg.ProvisionMapping {
		provisionOpts = append(provisionOpts, provision.WithoutMapping())
	}
	if len(cfg.CopyTo) > 0 {
		provisionOpts = append(provisionOpts, provision.WithCopyTo(cfg.CopyTo))
	}
	s.provisioner, err = provision.NewProvisioner(s.client, cfg.Pipeline, cfg.Engine.Index, cfg.kinds(), provisionOpts...)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	s.reindexer = ingestion.NewStoreReindexer(s.client, host, cfg.Engine.Index, cfg.Pipeline.SourceField)
	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(options.logger),
		ingestion.WithKinds(cfg.kinds()),
		ingestion.WithIndex(cfg.Engine.Index),
		ingestion.WithMonitor(s.stats),
		ingestion.WithTimeout(cfg.BatchTimeout),
	}
	if cfg.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.PoolSize))
	}
	if cfg.Reindex {
		pipelineOpts = append(pipelineOpts, ingestion.WithReindexer(s.reindexer))
	}
	s.pipeline, err = ingestion.NewPipeline(s.client, host, s.ledger, cfg.Routing, pipelineOpts...)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	s.bus.SubscribeActivated(s.provisioner.Activate)
	s.pipeline.Subscribe(s.bus)
	return s, nil
}

// applySettings overrides the pipeline name and source field with host
// settings when they are set.
func applySettings(ctx context.Context, settings storage.SettingsReader, cfg *Config) error {
	overrides := []struct {
		name string
		dst  *string
	}{
		{SettingPipelineName, &cfg.Pipeline.Name},
		{SettingSourceField, &cfg.Pipeline.SourceField},
	}
	for _, o := range overrides {
		value, ok, err := settings.ReadSetting(ctx, o.name)
		if err != nil {
			return fmt.Errorf("read setting %s: %w", o.name, err)
		}
		if ok && value != "" {
			*o.dst = value
		}
	}
	return nil
}

// Activate publishes the activation event, provisioning the ingest pipeline
// and entity mapping.
func (s *Service) Activate(ctx context.Context) error {
	return s.bus.PublishActivated(ctx)
}

// Save stores records in the host store and indexes them in one bulk
// request. Entities are synced asynchronously; call Wait to block until done.
func (s *Service) Save(ctx context.Context, records ...*core.Record) (core.DocumentBatch, error) {
	if len(records) == 0 {
		return core.DocumentBatch{}, nil
	}
	if err := s.host.PutRecords(ctx, records...); err != nil {
		return core.DocumentBatch{}, err
	}
	docs := make([]engine.Document, len(records))
	for i, record := range records {
		docs[i] = ingestion.DocumentFromRecord(record, s.config.Pipeline.SourceField)
	}
	return s.client.BulkIndex(ctx, s.config.Engine.Index, docs)
}

// Backfill syncs every record already in the host store, reindexing each
// batch first. An interrupted run resumes where it stopped unless
// cfg.Restart is set. Progress lines go to progress.
func (s *Service) Backfill(ctx context.Context, cfg *backfill.Config, progress io.Writer) (backfill.Summary, error) {
	b, err := backfill.NewBackfiller(s.host, s.pipeline, cfg, progress,
		backfill.WithReindexer(s.reindexer, s.pipeline.Guard()),
		backfill.WithCheckpoints(s.checkpoints, BackfillCheckpoint),
		backfill.WithLogger(s.logger),
	)
	if err != nil {
		return backfill.Summary{}, err
	}
	return b.Run(ctx)
}

// Wait blocks until every submitted batch has been processed.
func (s *Service) Wait() {
	s.pipeline.Wait()
}

// Stats returns the pipeline counters.
func (s *Service) Stats() ingestion.StatsSnapshot {
	return s.stats.Snapshot()
}

// Bus returns the event bus.
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// Client returns the engine client.
func (s *Service) Client() engine.Client {
	return s.client
}

// Augmenter returns the index request augmenter.
func (s *Service) Augmenter() *engine.Augmenter {
	return s.augmenter
}

// HostStore returns the host store.
func (s *Service) HostStore() storage.HostStore {
	return s.host
}

// Provisioner returns the provisioner.
func (s *Service) Provisioner() *provision.Provisioner {
	return s.provisioner
}

// Config returns the effective configuration, host settings applied.
func (s *Service) Config() *Config {
	return s.config
}

// Close waits for in-flight batches and releases all resources.
func (s *Service) Close() error {
	if s.pipeline != nil {
		s.pipeline.Wait()
	}
	return s.closeAll()
}

func (s *Service) closeAll() error {
	var errs []error
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Error("error closing engine client", "err", err)
			errs = append(errs, err)
		}
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
