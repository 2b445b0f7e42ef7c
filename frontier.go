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
	"container/heap"
	"errors"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/agentberlin/trailhead/debug"
)

var (
	// ErrEmptyFrontier is the panic value raised when dequeuing an empty
	// frontier. Callers check HasNext first; hitting this is a programming
	// error, not a recoverable condition.
	ErrEmptyFrontier = errors.New("frontier is empty")
	// ErrUnknownStrategy is the error for strategies other than
	// breadth-first and depth-first
	ErrUnknownStrategy = errors.New("unknown crawl strategy")
	// ErrDelayBounds is the error for delay configurations that do not
	// satisfy 0 <= min <= max
	ErrDelayBounds = errors.New("delay bounds must satisfy 0 <= min <= max")
	// ErrTimingUnsupported is the error for adaptive pacing on hosts
	// without navigation timing support
	ErrTimingUnsupported = errors.New("navigation timing is not supported by this host")
)

var frontierCounter uint32

// Config is the frontier configuration. Zero values fall back to the
// defaults from NewDefaultConfig.
type Config struct {
	// Seeds are the initial requests, admitted at construction and
	// re-admitted by Reset
	Seeds []Request
	// Strategy selects the dequeue ordering. Default is BreadthFirst.
	Strategy Strategy
	// DisableDuplicateFilter turns fingerprint deduplication off
	DisableDuplicateFilter bool
	// DisableOffsiteFilter turns domain scoping off
	DisableOffsiteFilter bool
	// AllowedDomains is the scope allow-list. A request is in scope when
	// any entry contains its domain. Empty means every domain is in scope.
	AllowedDomains []CrawlDomain
	// MaxDepth limits discovery depth. 0 means unlimited.
	MaxDepth int
	// Debugger receives frontier events
	Debugger debug.Debugger
}

// NewDefaultConfig returns the frontier defaults: breadth-first ordering,
// both filters enabled, no scope restriction, unlimited depth.
func NewDefaultConfig() *Config {
	return &Config{
		Strategy: BreadthFirst,
	}
}

var envMap = map[string]func(*Config, string){
	"ALLOWED_DOMAINS": func(c *Config, val string) {
		var domains []CrawlDomain
		for _, name := range strings.Split(val, ",") {
			if d, err := NewDomain(name); err == nil {
				domains = append(domains, d)
			}
		}
		c.AllowedDomains = domains
	},
	"DISABLE_DUPLICATE_FILTER": func(c *Config, val string) {
		c.DisableDuplicateFilter = isYesString(val)
	},
	"DISABLE_OFFSITE_FILTER": func(c *Config, val string) {
		c.DisableOffsiteFilter = isYesString(val)
	},
	"MAX_DEPTH": func(c *Config, val string) {
		depth, err := strconv.Atoi(val)
		if err == nil && depth >= 0 {
			c.MaxDepth = depth
		}
	},
	"STRATEGY": func(c *Config, val string) {
		switch Strategy(val) {
		case BreadthFirst, DepthFirst:
			c.Strategy = Strategy(val)
		}
	},
}

func (c *Config) parseSettingsFromEnv() {
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, "TRAILHEAD_") {
			continue
		}
		pair := strings.SplitN(e[10:], "=", 2)
		if f, ok := envMap[pair[0]]; ok {
			f(c, pair[1])
		} else {
			log.Println("Unknown environment variable:", pair[0])
		}
	}
}

// Frontier is the crawl scheduler. It owns the candidate priority queue,
// applies the scope, duplicate and depth filters on admission, and hands
// out the next candidate per the configured strategy.
//
// A Frontier is driven by a single crawl-control goroutine and does no
// internal locking. The Stats counter it reports into is the only piece
// shared with other goroutines.
type Frontier struct {
	// ID is the unique identifier of a frontier
	ID uint32

	seeds         []Request
	strategy      Strategy
	maxDepth      int
	dupFilter     bool
	offsiteFilter bool
	allowed       []CrawlDomain

	fingerprints *fingerprintIndex
	queue        *candidateQueue
	current      *Candidate

	stats    *Stats
	debugger debug.Debugger
}

// New creates a Frontier from the given config and admits all seeds
// immediately. A nil config uses NewDefaultConfig; a nil stats counter
// gets a fresh one. TRAILHEAD_* environment variables override the
// corresponding config fields.
func New(config *Config, stats *Stats) (*Frontier, error) {
	f, err := newFrontier(config, stats)
	if err != nil {
		return nil, err
	}
	for _, seed := range f.seeds {
		f.Feed(seed, true)
	}
	return f, nil
}

func newFrontier(config *Config, stats *Stats) (*Frontier, error) {
	conf := NewDefaultConfig()
	if config != nil {
		if len(config.Seeds) > 0 {
			conf.Seeds = config.Seeds
		}
		if config.Strategy != "" {
			conf.Strategy = config.Strategy
		}
		conf.DisableDuplicateFilter = config.DisableDuplicateFilter
		conf.DisableOffsiteFilter = config.DisableOffsiteFilter
		if len(config.AllowedDomains) > 0 {
			conf.AllowedDomains = config.AllowedDomains
		}
		if config.MaxDepth > 0 {
			conf.MaxDepth = config.MaxDepth
		}
		if config.Debugger != nil {
			conf.Debugger = config.Debugger
		}
	}
	conf.parseSettingsFromEnv()

	if conf.Strategy != BreadthFirst && conf.Strategy != DepthFirst {
		return nil, ErrUnknownStrategy
	}
	for _, d := range conf.AllowedDomains {
		if d.IsZero() {
			return nil, &InvalidDomainError{Domain: "", Reason: "zero domain in allow-list"}
		}
	}
	if stats == nil {
		stats = NewStats()
	}

	f := &Frontier{
		ID:            atomic.AddUint32(&frontierCounter, 1),
		seeds:         conf.Seeds,
		strategy:      conf.Strategy,
		maxDepth:      conf.MaxDepth,
		dupFilter:     !conf.DisableDuplicateFilter,
		offsiteFilter: !conf.DisableOffsiteFilter,
		allowed:       conf.AllowedDomains,
		fingerprints:  newFingerprintIndex(),
		queue:         newCandidateQueue(conf.Strategy),
		stats:         stats,
	}
	if conf.Debugger != nil {
		conf.Debugger.Init()
		f.debugger = conf.Debugger
	}
	return f, nil
}

// Feed offers a request for admission. Filters apply in a fixed order:
// domain scope, then fingerprint dedup, then depth limit. A rejected
// request is dropped silently; rejections are observable only through the
// Stats counters. Admitted requests become immutable candidates in the
// queue.
//
// Non-seed requests take the currently processed candidate as their
// referer and depth parent. Seeds always enter at depth 0.
func (f *Frontier) Feed(req Request, isSeed bool) {
	if f.offsiteFilter && len(f.allowed) > 0 && !f.inScope(req.Domain) {
		f.stats.RecordFiltered(FilteredOffsite)
		f.event("filter-offsite", map[string]string{"url": req.URL, "domain": req.Domain.Name()})
		return
	}

	if f.dupFilter {
		fp, err := Fingerprint(req.URL)
		if err != nil {
			f.event("filter-unparseable", map[string]string{"url": req.URL, "error": err.Error()})
			return
		}
		if f.fingerprints.Contains(fp) {
			f.stats.RecordFiltered(FilteredDuplicate)
			f.event("filter-duplicate", map[string]string{"url": req.URL})
			return
		}
		f.fingerprints.Add(fp)
	}

	depth := 0
	referer := ""
	if !isSeed {
		depth = 1
		if f.current != nil {
			depth = f.current.Depth + 1
			referer = f.current.URL
		}
		if f.maxDepth > 0 && depth > f.maxDepth {
			f.stats.RecordFiltered(FilteredDepthLimit)
			f.event("filter-depth", map[string]string{"url": req.URL, "depth": strconv.Itoa(depth)})
			return
		}
	}

	heap.Push(f.queue, newCandidate(req, referer, depth))
	f.stats.RecordAdmission()
	f.event("admit", map[string]string{"url": req.URL, "depth": strconv.Itoa(depth)})
}

// HasNext reports whether the queue holds at least one candidate.
func (f *Frontier) HasNext() bool {
	return f.queue.Len() > 0
}

// Next removes and returns the head of the queue per the active strategy.
// The returned candidate becomes the current-candidate context for
// subsequent Feed calls.
//
// Next panics with ErrEmptyFrontier on an empty queue. Guard with HasNext.
func (f *Frontier) Next() Candidate {
	if f.queue.Len() == 0 {
		panic(ErrEmptyFrontier)
	}
	cand := heap.Pop(f.queue).(Candidate)
	f.current = &cand
	f.event("next", map[string]string{"url": cand.URL, "depth": strconv.Itoa(cand.Depth)})
	return cand
}

// Reset discards the queue and the fingerprint set, then re-admits the
// original seeds at depth 0. The Stats counter is left untouched; the
// re-admitted seeds count as fresh admissions.
func (f *Frontier) Reset() {
	f.fingerprints = newFingerprintIndex()
	f.queue = newCandidateQueue(f.strategy)
	f.current = nil
	f.event("reset", nil)
	for _, seed := range f.seeds {
		f.Feed(seed, true)
	}
}

// Stats returns the counter the frontier reports into.
func (f *Frontier) Stats() *Stats {
	return f.stats
}

// Strategy returns the ordering policy fixed at construction.
func (f *Frontier) Strategy() Strategy {
	return f.strategy
}

// Remaining returns the number of queued candidates.
func (f *Frontier) Remaining() int {
	return f.queue.Len()
}

func (f *Frontier) inScope(domain CrawlDomain) bool {
	for _, allowed := range f.allowed {
		if allowed.Contains(domain) {
			return true
		}
	}
	return false
}

func (f *Frontier) event(eventType string, values map[string]string) {
	if f.debugger == nil {
		return
	}
	f.debugger.Event(&debug.Event{
		Type:       eventType,
		FrontierID: f.ID,
		Values:     values,
	})
}

// State is the frontier's serializable form: the fingerprint set, the
// queue contents and the current-candidate reference, all value-type
// fields. Restoring a State reproduces the exact dequeue order an
// uninterrupted run would have produced.
type State struct {
	Fingerprints []string    `json:"fingerprints"`
	Queue        []Candidate `json:"queue"`
	Current      *Candidate  `json:"current,omitempty"`
}

// State captures the frontier's current scheduling state.
func (f *Frontier) State() State {
	fingerprints := f.fingerprints.all()
	sort.Strings(fingerprints)

	queue := make([]Candidate, len(f.queue.items))
	copy(queue, f.queue.items)

	var current *Candidate
	if f.current != nil {
		c := *f.current
		current = &c
	}
	return State{
		Fingerprints: fingerprints,
		Queue:        queue,
		Current:      current,
	}
}

// Restore rebuilds a Frontier from a captured State. The config must be
// the one the saving run used; seeds are not re-admitted, the queue comes
// verbatim from the state.
func Restore(config *Config, state State, stats *Stats) (*Frontier, error) {
	f, err := newFrontier(config, stats)
	if err != nil {
		return nil, err
	}
	for _, fp := range state.Fingerprints {
		f.fingerprints.Add(fp)
	}
	f.queue.items = make([]Candidate, len(state.Queue))
	copy(f.queue.items, state.Queue)
	heap.Init(f.queue)
	if state.Current != nil {
		c := *state.Current
		f.current = &c
	}
	f.event("restore", map[string]string{
		"queued":       strconv.Itoa(len(state.Queue)),
		"fingerprints": strconv.Itoa(len(state.Fingerprints)),
	})
	return f, nil
}

func isYesString(s string) bool {
	switch strings.ToLower(s) {
	case "1", "yes", "true", "y":
		return true
	}
	return false
}
