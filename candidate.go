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
	"net/url"
)

// Strategy selects the frontier's dequeue ordering. It is fixed for the
// lifetime of a Frontier.
type Strategy string

const (
	// BreadthFirst orders candidates by ascending depth, tie-broken by
	// descending priority
	BreadthFirst Strategy = "breadth-first"
	// DepthFirst orders candidates by descending depth, tie-broken by
	// descending priority
	DepthFirst Strategy = "depth-first"
)

// Request is a user- or discovery-produced intent to visit a URL.
//
// Requests are value objects. The Domain is derived from the URL once at
// construction; dedup is based on URL fingerprints, never on request
// identity.
type Request struct {
	// URL is the absolute, normalized request URL
	URL string `json:"url"`
	// Domain is the URL's domain under public-suffix rules
	Domain CrawlDomain `json:"domain"`
	// Priority schedules a request earlier within the same depth level.
	// Higher wins. Default 0.
	Priority int `json:"priority"`
	// Metadata is an opaque payload carried through to the candidate
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewRequest builds a Request from an absolute URL. The URL is normalized
// and its domain derived here, so a returned Request is always feedable.
func NewRequest(rawURL string) (Request, error) {
	normalized := normalizeURL(rawURL)
	u, err := url.Parse(normalized)
	if err != nil {
		return Request{}, err
	}
	if u.Scheme == "" || u.Host == "" {
		return Request{}, &InvalidDomainError{Domain: rawURL, Reason: "not an absolute URL"}
	}
	domain, err := NewDomain(u.Hostname())
	if err != nil {
		return Request{}, err
	}
	return Request{URL: normalized, Domain: domain}, nil
}

// WithPriority returns a copy of the request carrying the given priority.
func (r Request) WithPriority(priority int) Request {
	r.Priority = priority
	return r
}

// WithMetadata returns a copy of the request carrying the given metadata.
func (r Request) WithMetadata(metadata map[string]string) Request {
	r.Metadata = metadata
	return r
}

// Candidate is the frontier's internal scheduling unit, built from a
// Request at the moment it is admitted. Candidates are immutable once
// queued; the frontier never mutates them.
type Candidate struct {
	// URL is the candidate's absolute request URL
	URL string `json:"url"`
	// Domain is copied from the admitted request
	Domain CrawlDomain `json:"domain"`
	// Priority is copied from the admitted request
	Priority int `json:"priority"`
	// Metadata is copied from the admitted request
	Metadata map[string]string `json:"metadata,omitempty"`
	// Referer is the URL of the candidate that was current when this one
	// was fed. Empty for seeds.
	Referer string `json:"referer,omitempty"`
	// Depth is 0 for seeds, parent depth + 1 otherwise
	Depth int `json:"depth"`
}

// IsSeed reports whether the candidate originated from a seed request.
func (c Candidate) IsSeed() bool {
	return c.Depth == 0
}

func newCandidate(r Request, referer string, depth int) Candidate {
	var metadata map[string]string
	if len(r.Metadata) > 0 {
		metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
	}
	return Candidate{
		URL:      r.URL,
		Domain:   r.Domain,
		Priority: r.Priority,
		Metadata: metadata,
		Referer:  referer,
		Depth:    depth,
	}
}

// candidateQueue implements heap.Interface over queued candidates.
//
// Ordering among candidates with equal depth and equal priority is
// deliberately left undefined: the heap gives no FIFO guarantee and callers
// must not rely on one.
type candidateQueue struct {
	items    []Candidate
	strategy Strategy
}

func newCandidateQueue(strategy Strategy) *candidateQueue {
	return &candidateQueue{strategy: strategy}
}

func (q *candidateQueue) Len() int { return len(q.items) }

func (q *candidateQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Depth != b.Depth {
		if q.strategy == DepthFirst {
			return a.Depth > b.Depth
		}
		return a.Depth < b.Depth
	}
	return a.Priority > b.Priority
}

func (q *candidateQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *candidateQueue) Push(x interface{}) {
	q.items = append(q.items, x.(Candidate))
}

func (q *candidateQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}
