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
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
	"github.com/poiesic/entsync/routing"
)

// Host setting names that override the configured pipeline when present.
const (
	SettingPipelineName = "entsync_pipeline_name"
	SettingSourceField  = "entsync_source_field"
)

// Config holds everything needed to wire a Service.
type Config struct {
	// Engine holds the search engine connection settings.
	// Engine.PipelineName is kept in sync with Pipeline.Name.
	Engine *engine.Config

	// Pipeline describes the ingest pipeline provisioned on activation.
	// Default: "wordpress_nlp_ingester" reading "post_content"
	Pipeline core.PipelineDescriptor

	// Kinds are the entity kinds mapped and synced.
	// Default: dates, persons, locations
	Kinds []core.EntityKind

	// Routing decides where each kind is written in the host store.
	// Default: routing.Default(), nothing is synced
	Routing routing.Policy

	// CopyTo sets optional copy_to targets for the entity fields.
	CopyTo map[core.EntityKind]string

	// ProvisionMapping declares the entity fields on activation.
	// Default: true
	ProvisionMapping bool

	// StorePath is the BadgerDB directory of the host store. Empty means in-memory.
	StorePath string

	// LedgerRetention is how long processed events are remembered.
	LedgerRetention time.Duration

	// PoolSize is the number of batches processed concurrently.
	// Zero uses the pipeline default.
	PoolSize int

	// BatchTimeout bounds the processing of one batch. Zero means no limit.
	BatchTimeout time.Duration

	// Reindex pushes changed records back to the index after reconciliation.
	Reindex bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEngine sets the search engine connection settings.
func WithEngine(cfg *engine.Config) ConfigOption {
	return func(c *Config) {
		c.Engine = cfg
	}
}

// WithPipelineName sets the ingest pipeline name.
func WithPipelineName(name string) ConfigOption {
	return func(c *Config) {
		c.Pipeline.Name = name
	}
}

// WithSourceField sets the document field entities are extracted from.
func WithSourceField(field string) ConfigOption {
	return func(c *Config) {
		c.Pipeline.SourceField = field
	}
}

// WithKinds sets the entity kinds.
func WithKinds(kinds ...core.EntityKind) ConfigOption {
	return func(c *Config) {
		c.Kinds = kinds
	}
}

// WithRouting sets the routing policy.
func WithRouting(policy routing.Policy) ConfigOption {
	return func(c *Config) {
		c.Routing = policy
	}
}

// WithStorePath sets the host store directory.
func WithStorePath(path string) ConfigOption {
	return func(c *Config) {
		c.StorePath = path
	}
}

// WithReindex enables reindexing after reconciliation.
func WithReindex(enabled bool) ConfigOption {
	return func(c *Config) {
		c.Reindex = enabled
	}
}

// WithoutMapping disables mapping provisioning.
func WithoutMapping() ConfigOption {
	return func(c *Config) {
		c.ProvisionMapping = false
	}
}

// DefaultConfig returns a Config for a local engine and an in-memory host store.
func DefaultConfig() *Config {
	return &Config{
		Engine: engine.DefaultConfig(),
		Pipeline: core.PipelineDescriptor{
			Name:        "wordpress_nlp_ingester",
			Description: "A Natural Language Processing pipeline for WordPress taxonomies",
			SourceField: "post_content",
		},
		Kinds:            core.DefaultKinds(),
		Routing:          routing.Default(),
		ProvisionMapping: true,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	if c.Engine == nil {
		return errors.New("config: Engine is required")
	}
	if c.Pipeline.Name != "" {
		c.Engine.PipelineName = c.Pipeline.Name
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := core.ValidatePipelineDescriptor(c.Pipeline); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := core.ValidateKinds(c.Kinds); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Routing == nil {
		c.Routing = routing.Default()
	}
	if c.PoolSize < 0 {
		return errors.New("config: PoolSize must not be negative")
	}
	return nil
}

// fileConfig is the YAML layout of a configuration file:
//
//	engine:
//	  host: http://localhost:9200
//	  index: posts
//	  timeout: 10s
//	pipeline:
//	  name: wordpress_nlp_ingester
//	  source_field: post_content
//	kinds: [dates, persons, locations]
//	routes:
//	  locations: {tagset: category}
//	store: ./data
type fileConfig struct {
	Engine struct {
		Host              string        `yaml:"host"`
		Index             string        `yaml:"index"`
		Timeout           time.Duration `yaml:"timeout"`
		MaxRetries        *int          `yaml:"max_retries"`
		RequestsPerSecond *float64      `yaml:"requests_per_second"`
	} `yaml:"engine"`
	Pipeline struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		SourceField string `yaml:"source_field"`
	} `yaml:"pipeline"`
	Kinds            []string          `yaml:"kinds"`
	Routes           yaml.Node         `yaml:"routes"`
	CopyTo           map[string]string `yaml:"copy_to"`
	ProvisionMapping *bool             `yaml:"provision_mapping"`
	Store            string            `yaml:"store"`
	LedgerRetention  time.Duration     `yaml:"ledger_retention"`
	PoolSize         int               `yaml:"pool_size"`
	BatchTimeout     time.Duration     `yaml:"batch_timeout"`
	Reindex          bool              `yaml:"reindex"`
}

// ParseConfig reads a YAML configuration on top of DefaultConfig.
// Fields missing from data keep their defaults.
func ParseConfig(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := DefaultConfig()
	setIf(&cfg.Engine.Host, fc.Engine.Host)
	setIf(&cfg.Engine.Index, fc.Engine.Index)
	if fc.Engine.Timeout > 0 {
		cfg.Engine.Timeout = fc.Engine.Timeout
	}
	if fc.Engine.MaxRetries != nil {
		cfg.Engine.MaxRetries = *fc.Engine.MaxRetries
	}
	if fc.Engine.RequestsPerSecond != nil {
		cfg.Engine.RequestsPerSecond = *fc.Engine.RequestsPerSecond
	}

	setIf(&cfg.Pipeline.Name, fc.Pipeline.Name)
	setIf(&cfg.Pipeline.Description, fc.Pipeline.Description)
	setIf(&cfg.Pipeline.SourceField, fc.Pipeline.SourceField)

	if len(fc.Kinds) > 0 {
		cfg.Kinds = make([]core.EntityKind, len(fc.Kinds))
		for i, k := range fc.Kinds {
			cfg.Kinds[i] = core.EntityKind(k)
		}
	}
	if !fc.Routes.IsZero() {
		routes, err := yaml.Marshal(map[string]*yaml.Node{"routes": &fc.Routes})
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		policy, err := routing.Parse(routes)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		cfg.Routing = policy
	}
	if len(fc.CopyTo) > 0 {
		cfg.CopyTo = make(map[core.EntityKind]string, len(fc.CopyTo))
		for k, v := range fc.CopyTo {
			cfg.CopyTo[core.EntityKind(k)] = v
		}
	}
	if fc.ProvisionMapping != nil {
		cfg.ProvisionMapping = *fc.ProvisionMapping
	}
	cfg.StorePath = fc.Store
	cfg.LedgerRetention = fc.LedgerRetention
	cfg.PoolSize = fc.PoolSize
	cfg.BatchTimeout = fc.BatchTimeout
	cfg.Reindex = fc.Reindex
	return cfg, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func setIf(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// kinds returns a copy of the configured kinds.
func (c *Config) kinds() []core.EntityKind {
	return slices.Clone(c.Kinds)
}
