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
	"net/http"
	"net/http/httptrace"
	"time"
)

// FetchTrace records connection-level timing for a single fetch: how long
// the TCP connect took and how long until the first response byte arrived.
// The crawl loop attaches one per request when tracing is enabled and
// reports the durations through debug events.
type FetchTrace struct {
	start, connect    time.Time
	ConnectDuration   time.Duration
	FirstByteDuration time.Duration
}

func (ft *FetchTrace) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(hostPort string) { ft.start = time.Now() },
		ConnectStart: func(network, addr string) {
			ft.connect = time.Now()
		},
		ConnectDone: func(network, addr string, err error) {
			ft.ConnectDuration = time.Since(ft.connect)
		},
		GotFirstResponseByte: func() {
			ft.FirstByteDuration = time.Since(ft.start)
		},
	}
}

// WithTrace returns the request wired to record its timing into ft.
func (ft *FetchTrace) WithTrace(req *http.Request) *http.Request {
	return req.WithContext(httptrace.WithClientTrace(req.Context(), ft.clientTrace()))
}
