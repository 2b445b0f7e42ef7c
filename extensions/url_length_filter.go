package extensions

import (
	"github.com/agentberlin/trailhead"
)

// URLLengthFilter drops discovered URLs longer than urlLengthLimit
// before they reach the frontier. It replaces the default success and
// redirect handlers.
func URLLengthFilter(cr *trailhead.Crawler, urlLengthLimit int) {
	cr.Dispatcher().SetDefault(trailhead.EventSuccess, func(e *trailhead.Event) {
		kept := make([]string, 0, len(e.Links))
		for _, link := range e.Links {
			if len(link) <= urlLengthLimit {
				kept = append(kept, link)
			}
		}
		cr.FeedDiscovered(kept...)
	})
	cr.Dispatcher().SetDefault(trailhead.EventRedirect, func(e *trailhead.Event) {
		if e.Location != "" && len(e.Location) <= urlLengthLimit {
			cr.FeedDiscovered(e.Location)
		}
	})
}
