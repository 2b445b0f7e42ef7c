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
	"context"
	"sync"
)

// headClassifier probes discovered URLs with HEAD requests on a worker
// pool and caches their content types. The crawl loop consults the cache
// before fetching, so a URL already known to serve a non-accepted type is
// classified without a GET or a browser navigation.
//
// The classifier only ever writes its own cache; frontier state stays on
// the crawl-control goroutine.
type headClassifier struct {
	backend   *httpBackend
	pool      *WorkerPool
	userAgent string
	cancel    context.CancelFunc

	// URL -> content type string. An entry exists once a probe has been
	// scheduled; the value is set when it completes.
	types sync.Map
}

type probeState struct {
	mu          sync.Mutex
	contentType string
	done        bool
}

func newHeadClassifier(backend *httpBackend, userAgent string, workers int) *headClassifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &headClassifier{
		backend:   backend,
		pool:      NewWorkerPool(ctx, workers, workers*4),
		userAgent: userAgent,
		cancel:    cancel,
	}
}

// Probe schedules a HEAD request for the URL unless one was already
// scheduled. Probing never blocks the caller beyond queue backpressure.
func (hc *headClassifier) Probe(rawURL string) {
	state := &probeState{}
	if _, loaded := hc.types.LoadOrStore(rawURL, state); loaded {
		return
	}
	hc.pool.Submit(func() {
		status, contentType, err := hc.backend.Head(rawURL, hc.userAgent)
		state.mu.Lock()
		defer state.mu.Unlock()
		state.done = err == nil && status < 400
		state.contentType = contentType
	})
}

// ContentType returns the probed content type for the URL. ok is false
// when the URL was never probed, the probe failed, or it has not finished
// yet; the caller falls back to a regular fetch in all three cases.
func (hc *headClassifier) ContentType(rawURL string) (string, bool) {
	v, ok := hc.types.Load(rawURL)
	if !ok {
		return "", false
	}
	state := v.(*probeState)
	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.done || state.contentType == "" {
		return "", false
	}
	return state.contentType, true
}

// Close cancels outstanding probes and waits for workers to exit. It must
// not race Probe.
func (hc *headClassifier) Close() {
	hc.cancel()
	hc.pool.Close()
}
