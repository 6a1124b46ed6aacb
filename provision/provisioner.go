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

package provision

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
)

const (
	opPipeline = "pipeline"
	opMapping  = "mapping"
)

// Provisioner creates the ingest pipeline and entity field mapping that
// extraction depends on. Both operations are idempotent and safe to repeat
// on every activation.
type Provisioner struct {
	client   engine.Client
	pipeline core.PipelineDescriptor
	mapping  core.MappingDescriptor
	kinds    []core.EntityKind
	mappings bool
	logger   *slog.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// WithoutMapping disables mapping provisioning on activation. The index then
// relies on dynamic mapping for the entities fields.
func WithoutMapping() Option {
	return func(p *Provisioner) {
		p.mappings = false
	}
}

// WithCopyTo sets copy_to targets for the mapped entity fields.
func WithCopyTo(copyTo map[core.EntityKind]string) Option {
	return func(p *Provisioner) {
		for kind, target := range copyTo {
			if m, ok := p.mapping.Fields[kind.Field()]; ok {
				m.CopyTo = target
				p.mapping.Fields[kind.Field()] = m
			}
		}
	}
}

// NewProvisioner creates a Provisioner for pipeline and the entity fields of
// kinds in index. The kind set is validated here and fixed from then on.
func NewProvisioner(client engine.Client, pipeline core.PipelineDescriptor, index string, kinds []core.EntityKind, opts ...Option) (*Provisioner, error) {
	if err := core.ValidateKinds(kinds); err != nil {
		return nil, err
	}
	if err := core.ValidatePipelineDescriptor(pipeline); err != nil {
		return nil, err
	}
	mapping := core.NewMappingDescriptor(index, kinds)
	if err := core.ValidateMappingDescriptor(mapping); err != nil {
		return nil, err
	}

	p := &Provisioner{
		client:   client,
		pipeline: pipeline,
		mapping:  mapping,
		kinds:    slices.Clone(kinds),
		mappings: true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "provisioner")
	return p, nil
}

// Pipeline returns the pipeline descriptor Activate provisions.
func (p *Provisioner) Pipeline() core.PipelineDescriptor {
	return p.pipeline
}

// Mapping returns the mapping descriptor Activate provisions.
func (p *Provisioner) Mapping() core.MappingDescriptor {
	return p.mapping
}

// EnsurePipeline creates or replaces the ingest pipeline described by desc.
// Errors are *core.ProvisionError.
func (p *Provisioner) EnsurePipeline(ctx context.Context, desc core.PipelineDescriptor) error {
	if err := core.ValidatePipelineDescriptor(desc); err != nil {
		return p.fail(opPipeline, desc.Name, core.ErrRejected, err)
	}
	if err := p.client.PutPipeline(ctx, desc); err != nil {
		return p.fail(opPipeline, desc.Name, kindOf(err), err)
	}
	p.logger.Info("pipeline provisioned", "pipeline", desc.Name, "source", desc.SourceField)
	return nil
}

// EnsureMapping declares the fields of desc in the index mapping without
// touching other fields. Errors are *core.ProvisionError; an existing field
// with an incompatible type yields core.ErrConflict.
func (p *Provisioner) EnsureMapping(ctx context.Context, desc core.MappingDescriptor) error {
	if err := core.ValidateMappingDescriptor(desc); err != nil {
		return p.fail(opMapping, desc.Index, core.ErrRejected, err)
	}
	if err := p.client.PutMapping(ctx, desc); err != nil {
		return p.fail(opMapping, desc.Index, kindOf(err), err)
	}
	p.logger.Info("mapping provisioned", "index", desc.Index, "fields", len(desc.Fields))
	return nil
}

// Activate provisions the pipeline and then the mapping. It is the handler
// for the host's activation event; failures are logged and returned to the
// operator.
func (p *Provisioner) Activate(ctx context.Context) error {
	p.logger.Info("activating", "pipeline", p.pipeline.Name, "index", p.mapping.Index, "kinds", p.kinds)
	if err := p.EnsurePipeline(ctx, p.pipeline); err != nil {
		return err
	}
	if !p.mappings {
		return nil
	}
	return p.EnsureMapping(ctx, p.mapping)
}

func (p *Provisioner) fail(op, name string, kind, cause error) error {
	err := &core.ProvisionError{Kind: kind, Op: op, Name: name, Cause: cause}
	p.logger.Error("provisioning failed", "op", op, "name", name, "kind", kind, "err", cause)
	return err
}

// kindOf maps an engine error onto the provisioning failure kinds.
// Anything that is not a definite rejection or conflict counts as the
// engine being unreachable.
func kindOf(err error) error {
	switch {
	case errors.Is(err, core.ErrConflict):
		return core.ErrConflict
	case errors.Is(err, core.ErrRejected):
		return core.ErrRejected
	default:
		return core.ErrUnreachable
	}
}
