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

// Package extensions provides optional crawler add-ons built on the
// public dispatcher API.
package extensions

import (
	"github.com/agentberlin/trailhead"
)

// Referer restores the stock feeding handlers: successes feed their
// discovered links, redirects feed their target. Each admitted link
// records the page it was found on, which the crawl loop sends as the
// Referer header of the follow-up fetch.
//
// A new crawler behaves this way already. Use Referer after replacing
// the default handlers with observers that do not feed, to get link
// discovery and referer chains back. It replaces the current default
// success and redirect handlers.
func Referer(cr *trailhead.Crawler) {
	cr.Dispatcher().SetDefault(trailhead.EventSuccess, func(e *trailhead.Event) {
		cr.FeedDiscovered(e.Links...)
	})
	cr.Dispatcher().SetDefault(trailhead.EventRedirect, func(e *trailhead.Event) {
		if e.Location != "" {
			cr.FeedDiscovered(e.Location)
		}
	})
}
