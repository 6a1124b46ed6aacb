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

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/entsync/core"
)

// Backoff retries an operation with exponentially growing delays.
type Backoff struct {
	MaxAttempts int           // total attempts, must be > 0
	BaseDelay   time.Duration // delay before the second attempt, doubled after each retry
	MaxDelay    time.Duration // upper bound on a single delay, 0 for none

	// Retryable reports whether a failed attempt should be retried.
	// Nil retries every error.
	Retryable func(error) bool
}

// Do calls op until it succeeds, returns a non-retryable error, or the
// attempts run out. The error of the last attempt is returned as is.
// Context cancellation stops waiting and returns the context's error.
func (b Backoff) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if b.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	delay := b.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if b.Retryable != nil && !b.Retryable(lastErr) {
			return lastErr
		}
		if attempt == b.MaxAttempts {
			break
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", b.MaxAttempts, "delay", delay, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
	return lastErr
}

// EngineFailure reports whether err is a search engine failure worth
// retrying: the engine was unreachable or timed out.
func EngineFailure(err error) bool {
	return errors.Is(err, core.ErrUnreachable) || errors.Is(err, context.DeadlineExceeded)
}
