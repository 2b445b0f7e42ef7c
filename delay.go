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
	"math/rand"
	"time"
)

// DelayPolicy computes the pacing delay the crawl loop sleeps before the
// next fetch. Implementations are interchangeable; which one to use is a
// construction-time decision.
type DelayPolicy interface {
	Delay() time.Duration
}

// TimingSource reports page load times measured by a browser or fetch
// layer. AdaptiveDelay consumes it.
type TimingSource interface {
	// LastPageLoadTime returns the most recently measured page load time.
	// Zero means no page has been timed yet.
	LastPageLoadTime() time.Duration
	// SupportsNavigationTiming reports whether the host environment can
	// measure page load times at all. Checked once at policy construction.
	SupportsNavigationTiming() bool
}

// FixedDelay always returns one configured duration.
type FixedDelay struct {
	delay time.Duration
}

// NewFixedDelay builds a FixedDelay. Negative durations are a
// configuration error.
func NewFixedDelay(delay time.Duration) (*FixedDelay, error) {
	if delay < 0 {
		return nil, ErrDelayBounds
	}
	return &FixedDelay{delay: delay}, nil
}

// Delay implements DelayPolicy.
func (f *FixedDelay) Delay() time.Duration {
	return f.delay
}

// RandomDelay returns a uniformly distributed duration between a
// configured minimum and maximum, both inclusive.
type RandomDelay struct {
	min time.Duration
	max time.Duration
}

// NewRandomDelay builds a RandomDelay. The bounds must satisfy
// 0 <= min <= max.
func NewRandomDelay(min, max time.Duration) (*RandomDelay, error) {
	if min < 0 || max < min {
		return nil, ErrDelayBounds
	}
	return &RandomDelay{min: min, max: max}, nil
}

// Delay implements DelayPolicy.
func (r *RandomDelay) Delay() time.Duration {
	span := r.max - r.min
	if span == 0 {
		return r.min
	}
	return r.min + time.Duration(rand.Int63n(int64(span)+1))
}

// AdaptiveDelay paces the crawl by the last page's measured load time,
// clamped to a configured range: slow sites are crawled gently, fast sites
// at the configured floor.
type AdaptiveDelay struct {
	source TimingSource
	min    time.Duration
	max    time.Duration
}

// NewAdaptiveDelay builds an AdaptiveDelay on top of a TimingSource. The
// source's navigation-timing capability is probed here; hosts that cannot
// measure load times get ErrTimingUnsupported at construction instead of
// failures during the crawl.
func NewAdaptiveDelay(source TimingSource, min, max time.Duration) (*AdaptiveDelay, error) {
	if min < 0 || max < min {
		return nil, ErrDelayBounds
	}
	if source == nil || !source.SupportsNavigationTiming() {
		return nil, ErrTimingUnsupported
	}
	return &AdaptiveDelay{source: source, min: min, max: max}, nil
}

// Delay implements DelayPolicy.
func (a *AdaptiveDelay) Delay() time.Duration {
	measured := a.source.LastPageLoadTime()
	if measured < a.min {
		return a.min
	}
	if measured > a.max {
		return a.max
	}
	return measured
}
