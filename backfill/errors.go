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

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when a Backoff allows no attempts.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrHandlerRequired is returned when no sync handler is provided.
	ErrHandlerRequired = errors.New("sync handler required")

	// ErrHostStoreRequired is returned when no host store is provided.
	ErrHostStoreRequired = errors.New("host store required")

	// ErrCheckpointNameRequired is returned when checkpoints are enabled without a name.
	ErrCheckpointNameRequired = errors.New("checkpoint name required")
)
