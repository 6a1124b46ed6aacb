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

package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/poiesic/entsync/core"
)

// BulkIndexCompletedHandler is invoked after a bulk-index request finished.
type BulkIndexCompletedHandler func(ctx context.Context, batch core.DocumentBatch) error

// ActivatedHandler is invoked when the host activates the integration.
type ActivatedHandler func(ctx context.Context) error

type subscription[H any] struct {
	id      uint64
	handler H
}

// Bus dispatches the two events the sync pipeline reacts to.
// Handlers run synchronously, in subscription order, on the publishing goroutine.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	bulk      []subscription[BulkIndexCompletedHandler]
	activated []subscription[ActivatedHandler]
	logger    *slog.Logger
}

// NewBus creates an empty bus. A nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger.With("component", "events")}
}

// SubscribeBulkIndexCompleted registers h and returns a function that removes it.
func (b *Bus) SubscribeBulkIndexCompleted(h BulkIndexCompletedHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.bulk = append(b.bulk, subscription[BulkIndexCompletedHandler]{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.bulk = slices.DeleteFunc(b.bulk, func(s subscription[BulkIndexCompletedHandler]) bool { return s.id == id })
	}
}

// SubscribeActivated registers h and returns a function that removes it.
func (b *Bus) SubscribeActivated(h ActivatedHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.activated = append(b.activated, subscription[ActivatedHandler]{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.activated = slices.DeleteFunc(b.activated, func(s subscription[ActivatedHandler]) bool { return s.id == id })
	}
}

// PublishBulkIndexCompleted delivers batch to every subscriber.
// Handler errors are logged and returned joined; one failing handler does not stop the others.
func (b *Bus) PublishBulkIndexCompleted(ctx context.Context, batch core.DocumentBatch) error {
	b.mu.RLock()
	subs := slices.Clone(b.bulk)
	b.mu.RUnlock()

	b.logger.Debug("bulk index completed", "event", batch.EventID, "documents", batch.Len(), "subscribers", len(subs))

	var errs []error
	for _, s := range subs {
		if err := s.handler(ctx, batch); err != nil {
			b.logger.Error("bulk index handler failed", "event", batch.EventID, "err", err)
			errs = append(errs, fmt.Errorf("bulk index handler %d: %w", s.id, err))
		}
	}
	return errors.Join(errs...)
}

// PublishActivated delivers the activation event to every subscriber.
func (b *Bus) PublishActivated(ctx context.Context) error {
	b.mu.RLock()
	subs := slices.Clone(b.activated)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.handler(ctx); err != nil {
			b.logger.Error("activation handler failed", "err", err)
			errs = append(errs, fmt.Errorf("activation handler %d: %w", s.id, err))
		}
	}
	return errors.Join(errs...)
}
