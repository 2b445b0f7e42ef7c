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
	"fmt"
	"sync"

	"github.com/gobwas/glob"

	"github.com/agentberlin/trailhead/debug"
)

// EventKind identifies the outcome category of a processed candidate.
type EventKind string

const (
	// EventSuccess is a fetched and parsed page
	EventSuccess EventKind = "success"
	// EventTimeout is a fetch that exceeded its deadline
	EventTimeout EventKind = "timeout"
	// EventRedirect is a response in the 3xx range
	EventRedirect EventKind = "redirect"
	// EventContentTypeMismatch is a response outside the accepted content types
	EventContentTypeMismatch EventKind = "content-type-mismatch"
	// EventResponseError is a response in the 4xx or 5xx range
	EventResponseError EventKind = "response-error"
	// EventNetworkError is a transport failure without a response
	EventNetworkError EventKind = "network-error"
)

// Event is delivered to handlers after the crawl loop finishes processing
// a candidate. Kind decides which of the optional fields carry meaning.
type Event struct {
	// Kind is the outcome category
	Kind EventKind
	// Candidate is the processed candidate
	Candidate Candidate
	// StatusCode is set for outcomes that saw an HTTP response
	StatusCode int
	// ContentType is the response content type, when one was seen
	ContentType string
	// Title is the page title for EventSuccess, empty when the document
	// has none
	Title string
	// Location is the redirect target for EventRedirect
	Location string
	// Links holds the URLs discovered in the document for EventSuccess
	Links []string
	// Err is the transport error for EventTimeout and EventNetworkError
	Err error
}

// Handler processes one dispatched Event. Handlers run on the
// crawl-control goroutine, so feeding discovered links back into the
// frontier from a handler is safe.
type Handler func(e *Event)

type customHandler struct {
	pattern string
	matcher glob.Glob
	handler Handler
}

// Dispatcher routes Events to handlers.
//
// Each event kind has at most one default handler (last registration
// wins) plus any number of custom handlers scoped to a URL pattern. An
// event reaches every custom handler whose pattern matches its candidate
// URL; the default runs only when no custom handler matches. Invocation
// order among multiple matching handlers is unspecified.
type Dispatcher struct {
	lock     *sync.RWMutex
	defaults map[EventKind]Handler
	custom   map[EventKind][]customHandler
	debugger debug.Debugger
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		lock:     &sync.RWMutex{},
		defaults: make(map[EventKind]Handler),
		custom:   make(map[EventKind][]customHandler),
	}
}

// SetDebugger attaches a debugger that receives handler failure events.
func (d *Dispatcher) SetDebugger(dbg debug.Debugger) {
	d.lock.Lock()
	d.debugger = dbg
	d.lock.Unlock()
}

// SetDefault registers the default handler for an event kind. Calling it
// again for the same kind replaces the previous default.
func (d *Dispatcher) SetDefault(kind EventKind, handler Handler) {
	d.lock.Lock()
	d.defaults[kind] = handler
	d.lock.Unlock()
}

// AddCustom registers a handler for an event kind, scoped to candidate
// URLs matching the given glob pattern (e.g. "*://example.com/docs/*").
func (d *Dispatcher) AddCustom(kind EventKind, urlPattern string, handler Handler) error {
	matcher, err := glob.Compile(urlPattern)
	if err != nil {
		return fmt.Errorf("bad URL pattern %q: %w", urlPattern, err)
	}
	d.lock.Lock()
	d.custom[kind] = append(d.custom[kind], customHandler{
		pattern: urlPattern,
		matcher: matcher,
		handler: handler,
	})
	d.lock.Unlock()
	return nil
}

// Dispatch routes the event. Matching custom handlers each run exactly
// once and suppress the default; with no match the default runs exactly
// once. A handler that panics is recovered and reported through the
// debugger, and the remaining handlers still run.
func (d *Dispatcher) Dispatch(e *Event) {
	d.lock.RLock()
	var matching []Handler
	for _, ch := range d.custom[e.Kind] {
		if ch.matcher.Match(e.Candidate.URL) {
			matching = append(matching, ch.handler)
		}
	}
	var fallback Handler
	if len(matching) == 0 {
		fallback = d.defaults[e.Kind]
	}
	dbg := d.debugger
	d.lock.RUnlock()

	if len(matching) == 0 {
		if fallback != nil {
			d.invoke(fallback, e, dbg)
		}
		return
	}
	for _, handler := range matching {
		d.invoke(handler, e, dbg)
	}
}

func (d *Dispatcher) invoke(handler Handler, e *Event, dbg debug.Debugger) {
	defer func() {
		if r := recover(); r != nil && dbg != nil {
			dbg.Event(&debug.Event{
				Type: "handler-panic",
				Values: map[string]string{
					"kind":  string(e.Kind),
					"url":   e.Candidate.URL,
					"error": fmt.Sprint(r),
				},
			})
		}
	}()
	handler(e)
}
