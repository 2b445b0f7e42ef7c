// Copyright 2025 Agentic World, LLC (Sherin Thomas)
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

package trailhead

import (
	"math"
	"sync"
	"time"
)

// FilterCause categorizes a silently rejected admission.
type FilterCause string

const (
	// FilteredDuplicate marks requests whose fingerprint was already seen
	FilteredDuplicate FilterCause = "duplicate"
	// FilteredOffsite marks requests outside every allowed domain
	FilteredOffsite FilterCause = "offsite"
	// FilteredDepthLimit marks requests that would exceed the max depth
	FilteredDepthLimit FilterCause = "depth-limit-exceeded"
)

// Snapshot is an immutable point-in-time copy of all counters. It is a
// plain value: handing it to another goroutine requires no further
// coordination with the writer.
type Snapshot struct {
	// Processed outcomes. Each increments Processed and decrements
	// Remaining.
	Successful            int64 `json:"successful"`
	Timeouts              int64 `json:"timeouts"`
	Redirects             int64 `json:"redirects"`
	ContentTypeMismatches int64 `json:"contentTypeMismatches"`
	ResponseErrors        int64 `json:"responseErrors"`
	NetworkErrors         int64 `json:"networkErrors"`
	// Processed is the total of all outcome counters
	Processed int64 `json:"processed"`

	// Filtered admissions
	Duplicates   int64 `json:"duplicates"`
	Offsite      int64 `json:"offsite"`
	DepthLimited int64 `json:"depthLimited"`

	// Remaining is the gauge of admitted, not yet processed candidates
	Remaining int64 `json:"remaining"`
}

// Rate returns the crawl rate in processed candidates per minute. For
// elapsed times under one minute the raw processed count is returned
// instead, so short runs don't report inflated rates.
func (s Snapshot) Rate(elapsed time.Duration) float64 {
	if elapsed < time.Minute {
		return float64(s.Processed)
	}
	return float64(s.Processed) / elapsed.Minutes()
}

// RemainingDuration estimates how long draining the frontier will take,
// rounded up to whole minutes. The estimate is only defined once at least
// one candidate has been processed and the rate is a finite positive
// number; otherwise ok is false and the duration is meaningless.
func (s Snapshot) RemainingDuration(elapsed time.Duration) (time.Duration, bool) {
	if s.Processed < 1 {
		return 0, false
	}
	rate := s.Rate(elapsed)
	if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return 0, false
	}
	minutes := math.Ceil(float64(s.Remaining) / rate)
	return time.Duration(minutes) * time.Minute, true
}

// Stats accumulates crawl outcome and filter counters.
//
// The crawl-control goroutine is the single writer; any number of readers
// may take Snapshots concurrently. A processed outcome moves two counters
// (Remaining down, the outcome and Processed up) under one lock
// acquisition, so a snapshot never observes the pair half-applied.
type Stats struct {
	mu       sync.Mutex
	counters Snapshot
}

// NewStats returns a zeroed Stats accumulator.
func NewStats() *Stats {
	return &Stats{}
}

// RecordAdmission counts a candidate entering the queue.
func (s *Stats) RecordAdmission() {
	s.mu.Lock()
	s.counters.Remaining++
	s.mu.Unlock()
}

// RecordOutcome counts a processed candidate under the given outcome kind.
func (s *Stats) RecordOutcome(kind EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Remaining--
	s.counters.Processed++
	switch kind {
	case EventSuccess:
		s.counters.Successful++
	case EventTimeout:
		s.counters.Timeouts++
	case EventRedirect:
		s.counters.Redirects++
	case EventContentTypeMismatch:
		s.counters.ContentTypeMismatches++
	case EventResponseError:
		s.counters.ResponseErrors++
	case EventNetworkError:
		s.counters.NetworkErrors++
	}
}

// RecordFiltered counts a silently rejected admission.
func (s *Stats) RecordFiltered(cause FilterCause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cause {
	case FilteredDuplicate:
		s.counters.Duplicates++
	case FilteredOffsite:
		s.counters.Offsite++
	case FilteredDepthLimit:
		s.counters.DepthLimited++
	}
}

// Snapshot returns an immutable copy of all counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Reset zeroes all counters, including the remaining gauge.
func (s *Stats) Reset() {
	s.mu.Lock()
	s.counters = Snapshot{}
	s.mu.Unlock()
}

// RestoreSnapshot replaces all counters with a previously captured
// snapshot. A resumed crawl restores the counters alongside the queue so
// the remaining gauge stays consistent with the restored candidates.
func (s *Stats) RestoreSnapshot(snap Snapshot) {
	s.mu.Lock()
	s.counters = snap
	s.mu.Unlock()
}
