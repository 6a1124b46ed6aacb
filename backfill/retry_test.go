package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/entsync/core"
)

func TestBackoff_Success(t *testing.T) {
	attempts := 0
	err := Backoff{MaxAttempts: 3, BaseDelay: time.Millisecond}.Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := Backoff{MaxAttempts: 5, BaseDelay: time.Millisecond}.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expected := errors.New("persistent error")
	err := Backoff{MaxAttempts: 3, BaseDelay: time.Millisecond}.Do(context.Background(), func(context.Context) error {
		attempts++
		return expected
	})
	assert.Equal(t, expected, err, "should return the last error unchanged")
	assert.Equal(t, 3, attempts)
}

func TestBackoff_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	rejected := &core.FetchError{Kind: core.ErrMalformed}
	err := Backoff{MaxAttempts: 5, BaseDelay: time.Millisecond, Retryable: EngineFailure}.Do(context.Background(), func(context.Context) error {
		attempts++
		return rejected
	})
	assert.ErrorIs(t, err, core.ErrMalformed)
	assert.Equal(t, 1, attempts)
}

func TestBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Backoff{MaxAttempts: 10, BaseDelay: time.Millisecond}.Do(ctx, func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestBackoff_DelaysGrowAndCap(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	last := time.Now()
	err := Backoff{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond}.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(last))
		}
		last = time.Now()
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, delays, 3)
	assert.GreaterOrEqual(t, delays[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], 20*time.Millisecond)
	assert.GreaterOrEqual(t, delays[2], 25*time.Millisecond)
	assert.Less(t, delays[2], 40*time.Millisecond+delays[1], "capped delay")
}

func TestBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		attempts := 0
		err := Backoff{MaxAttempts: n}.Do(context.Background(), func(context.Context) error {
			attempts++
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Zero(t, attempts)
	}
}

func TestEngineFailure(t *testing.T) {
	assert.True(t, EngineFailure(&core.FetchError{Kind: core.ErrUnreachable}))
	assert.True(t, EngineFailure(context.DeadlineExceeded))
	assert.False(t, EngineFailure(&core.FetchError{Kind: core.ErrMalformed}))
	assert.False(t, EngineFailure(errors.New("boom")))
}
