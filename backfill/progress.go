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
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress reports how many documents a backfill has handled.
type Progress struct {
	mu             sync.Mutex
	writer         io.Writer
	total          int
	done           int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
}

// NewProgress creates a tracker for total documents that prints a line to
// writer every reportInterval documents. A nil writer discards output.
func NewProgress(writer io.Writer, total, reportInterval int) *Progress {
	if writer == nil {
		writer = io.Discard
	}
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &Progress{writer: writer, total: total, reportInterval: reportInterval}
}

// Start resets the counters and starts the clock.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startTime = time.Now()
	p.started = true
	p.done = 0
	p.failed = 0
	p.lastReported = 0
}

// Add records n handled documents, of which failed could not be synced.
func (p *Progress) Add(n, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.done = min(p.done+n, p.total)
	p.failed += failed
	if p.done-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.done
	}
}

// Finish prints the final line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Done returns the number of documents handled so far.
func (p *Progress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Elapsed returns the time since Start.
func (p *Progress) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current line. Must be called with lock held.
func (p *Progress) report() {
	rate := float64(p.done) / time.Since(p.startTime).Seconds()
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.done) / float64(p.total) * 100.0
	}
	fmt.Fprintf(p.writer, "\rBackfill: %d/%d (%.1f%%), %d failed - %.1f docs/s",
		p.done, p.total, percentage, p.failed, rate)
}
