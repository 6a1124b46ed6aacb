package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/events"
)

func TestGuard_TokenActiveOnlyDuringRun(t *testing.T) {
	g := NewGuard()
	var token core.GuardToken

	err := g.Run(context.Background(), func(ctx context.Context) error {
		token = events.OriginFrom(ctx)
		assert.True(t, g.Suppressed(token))
		assert.Equal(t, 1, g.Active())
		return nil
	})

	require.NoError(t, err)
	assert.NotZero(t, token)
	assert.False(t, g.Suppressed(token))
	assert.Zero(t, g.Active())
}

func TestGuard_ReleasedOnError(t *testing.T) {
	g := NewGuard()
	boom := errors.New("boom")
	var token core.GuardToken

	err := g.Run(context.Background(), func(ctx context.Context) error {
		token = events.OriginFrom(ctx)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, g.Suppressed(token))
}

func TestGuard_ReleasedOnPanic(t *testing.T) {
	g := NewGuard()
	var token core.GuardToken

	assert.Panics(t, func() {
		_ = g.Run(context.Background(), func(ctx context.Context) error {
			token = events.OriginFrom(ctx)
			panic("reindex exploded")
		})
	})
	assert.False(t, g.Suppressed(token))
	assert.Zero(t, g.Active())
}

func TestGuard_ZeroTokenNeverSuppressed(t *testing.T) {
	g := NewGuard()
	_ = g.Run(context.Background(), func(ctx context.Context) error {
		assert.False(t, g.Suppressed(0))
		return nil
	})
}

func TestGuard_ConcurrentRunsHaveDistinctTokens(t *testing.T) {
	g := NewGuard()
	const runs = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tokens  = make(map[core.GuardToken]bool)
		release = make(chan struct{})
		started sync.WaitGroup
	)
	started.Add(runs)
	for range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Run(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				tokens[events.OriginFrom(ctx)] = true
				mu.Unlock()
				started.Done()
				<-release
				return nil
			})
		}()
	}

	started.Wait()
	assert.Equal(t, runs, g.Active())
	close(release)
	wg.Wait()

	assert.Len(t, tokens, runs)
	assert.Zero(t, g.Active())
}
