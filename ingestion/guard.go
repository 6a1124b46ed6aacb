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

package ingestion

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/events"
)

// Guard prevents reconciliation from re-triggering itself. Indexing done
// inside Run carries a token that the completion handler recognizes and
// ignores. Tokens are per call, so concurrent unrelated batches are never
// suppressed by each other.
type Guard struct {
	next   atomic.Uint64
	mu     sync.Mutex
	active map[core.GuardToken]struct{}
}

// NewGuard creates a guard with no active tokens.
func NewGuard() *Guard {
	return &Guard{active: make(map[core.GuardToken]struct{})}
}

// Run calls fn with a context carrying a fresh token. The token is active
// until Run returns, on every exit path including panics.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	token := core.GuardToken(g.next.Add(1))

	g.mu.Lock()
	g.active[token] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.active, token)
		g.mu.Unlock()
	}()

	return fn(events.WithOrigin(ctx, token))
}

// Suppressed reports whether token belongs to a Run still in progress.
func (g *Guard) Suppressed(token core.GuardToken) bool {
	if token == 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[token]
	return ok
}

// Active returns the number of Runs in progress.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
