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

package core

import (
	"encoding/binary"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentID identifies a document both in the host store and in the search index.
type DocumentID string

// EntityKind names a category the extraction processor may populate
// under the document's "entities" object (e.g. "dates", "persons", "locations").
type EntityKind string

// Field returns the index field path holding values of this kind.
func (k EntityKind) Field() string {
	return EntitiesField + "." + string(k)
}

// EntitiesField is the index object the extraction processor writes into.
const EntitiesField = "entities"

// DefaultKinds are the entity kinds mapped when none are configured.
func DefaultKinds() []EntityKind {
	return []EntityKind{"dates", "persons", "locations"}
}

// TargetKind selects the destination shape for an entity kind.
type TargetKind int

const (
	// TargetNone means the kind is extracted but not synced.
	TargetNone TargetKind = iota
	// TargetTagSet writes values to a multi-value taxonomy-like collection.
	TargetTagSet
	// TargetAttribute writes values to a metadata field.
	TargetAttribute
)

func (k TargetKind) String() string {
	switch k {
	case TargetTagSet:
		return "tagset"
	case TargetAttribute:
		return "attribute"
	default:
		return "none"
	}
}

// RoutingTarget is where the values of one entity kind are written in the host store.
type RoutingTarget struct {
	Kind TargetKind
	Name string
}

// TagSet returns a target writing to the named tag set.
func TagSet(name string) RoutingTarget {
	return RoutingTarget{Kind: TargetTagSet, Name: name}
}

// Attribute returns a target writing to the named attribute.
func Attribute(name string) RoutingTarget {
	return RoutingTarget{Kind: TargetAttribute, Name: name}
}

// None returns the target for kinds that are not synced.
func None() RoutingTarget {
	return RoutingTarget{Kind: TargetNone}
}

// IsNone reports whether the target discards values.
func (t RoutingTarget) IsNone() bool {
	return t.Kind == TargetNone || t.Name == ""
}

// SourceField returns the host-side field path of the destination,
// "terms.<name>" for tag sets and "meta.<name>" for attributes.
// Returns "" for None.
func (t RoutingTarget) SourceField() string {
	switch {
	case t.IsNone():
		return ""
	case t.Kind == TargetTagSet:
		return "terms." + t.Name
	default:
		return "meta." + t.Name
	}
}

func (t RoutingTarget) String() string {
	if t.IsNone() {
		return "none"
	}
	return t.Kind.String() + ":" + t.Name
}

// Processor is one step of an ingest pipeline.
type Processor struct {
	Type    string         // processor type, e.g. "opennlp"
	Field   string         // field the processor reads from
	Options map[string]any // additional processor settings, merged into the definition
}

// PipelineDescriptor identifies and defines a named ingest pipeline.
// Creating it twice with the same definition has no additional effect.
type PipelineDescriptor struct {
	Name        string
	Description string
	SourceField string
	Processors  []Processor // defaults to a single opennlp processor on SourceField
}

// EffectiveProcessors returns the configured processors or the default
// opennlp processor reading SourceField.
func (d PipelineDescriptor) EffectiveProcessors() []Processor {
	if len(d.Processors) > 0 {
		return d.Processors
	}
	return []Processor{{Type: "opennlp", Field: d.SourceField}}
}

// FieldMapping declares the index type of one field.
type FieldMapping struct {
	Type   string
	CopyTo string // optional
}

// MappingDescriptor describes the index fields that hold extracted entities.
// Keys of Fields are "entities.<kind>".
type MappingDescriptor struct {
	Index  string
	Fields map[string]FieldMapping
}

// NewMappingDescriptor maps each kind to a text field in index.
func NewMappingDescriptor(index string, kinds []EntityKind) MappingDescriptor {
	fields := make(map[string]FieldMapping, len(kinds))
	for _, kind := range kinds {
		fields[kind.Field()] = FieldMapping{Type: "text"}
	}
	return MappingDescriptor{Index: index, Fields: fields}
}

// GuardToken identifies one in-flight reconciliation-triggered reindex.
// The zero value means the batch did not originate from a guarded call.
type GuardToken uint64

// DocumentBatch is the set of documents affected by one completed bulk-index operation.
type DocumentBatch struct {
	EventID string
	IDs     []DocumentID
	Origin  GuardToken
	At      time.Time
}

// Len returns the number of documents in the batch.
func (b DocumentBatch) Len() int {
	return len(b.IDs)
}

// Fingerprint returns a content ID for the event, stable for redelivery of the same event.
func (b DocumentBatch) Fingerprint() ID {
	ids := make([]string, len(b.IDs))
	for i, id := range b.IDs {
		ids[i] = string(id)
	}
	slices.Sort(ids)
	return IDFromContent(b.EventID + "|" + strings.Join(ids, ","))
}

// FetchedEntities maps documents to the values extracted per entity kind.
// A document mapped to a nil map had no entities substructure.
type FetchedEntities map[DocumentID]map[EntityKind][]string

// DocumentIDs returns the documents in sorted order.
func (f FetchedEntities) DocumentIDs() []DocumentID {
	ids := make([]DocumentID, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TargetFailure records a write that could not be applied.
type TargetFailure struct {
	Target RoutingTarget
	Err    error
}

// SyncResult describes the writes applied to one document during a reconciliation pass.
type SyncResult struct {
	DocumentID DocumentID
	Written    []RoutingTarget
	Failed     []TargetFailure
	Skipped    bool // no entities substructure
}

// Changed reports whether at least one write succeeded.
func (r SyncResult) Changed() bool {
	return len(r.Written) > 0
}

// Record is a host document as held by the local host store.
type Record struct {
	ID         DocumentID
	Content    string
	Tags       map[string][]string // tag set name -> terms
	Attributes map[string][]string // attribute name -> values
	UpdatedAt  time.Time
}

// Checkpoint records how far a named backfill run got. Records are visited
// in ascending ID order, so every record up to and including LastID has
// been synced.
type Checkpoint struct {
	Name      string
	LastID    DocumentID
	Processed int64
	UpdatedAt time.Time
}
