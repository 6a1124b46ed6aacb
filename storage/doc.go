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

// Package storage defines the host-side storage abstraction for entsync.
//
// The content host is an external system; entsync only needs to write tags
// and attributes to its records and to read a few settings. These
// interfaces decouple the sync pipeline from how the host stores them:
//
//   - HostStore: records with tag sets and attributes
//   - SettingsReader / SettingsWriter: host configuration values
//   - BatchLedger: at-most-once bookkeeping for completion events
//   - CheckpointStore: resume points for interrupted backfills
//
// storage/badger provides a BadgerDB implementation of each, used as a
// local stand-in for the host and as the ledger in production.
//
// # Serialization
//
// Records and checkpoints are encoded with mus-go (RecordMUS, CheckpointMUS). Maps are written with
// sorted keys so equal records always encode to equal bytes.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
