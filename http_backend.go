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
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"time"
)

// httpBackend issues the crawl loop's HTTP requests. Redirects are never
// followed: a 3xx answer is a candidate outcome the frontier's handlers
// decide about, so CheckRedirect stops the chain at the first response.
type httpBackend struct {
	Client *http.Client
}

// fetchResult is the backend's view of a completed request, reduced to
// what outcome classification needs.
type fetchResult struct {
	StatusCode  int
	ContentType string
	// Location is the resolved redirect target for 3xx responses, empty
	// otherwise
	Location string
	Body     []byte
	Elapsed  time.Duration
	Trace    *FetchTrace
}

func (h *httpBackend) Init(timeout time.Duration) {
	h.Client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Head issues a HEAD request and returns status and content type. Used by
// the pre-classifier; the response body, if any, is discarded.
func (h *httpBackend) Head(rawURL, userAgent string) (int, string, error) {
	req, err := http.NewRequest("HEAD", rawURL, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := h.Client.Do(req)
	if err != nil {
		return 0, "", err
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
	return res.StatusCode, res.Header.Get("Content-Type"), nil
}

// Do executes the request and reads at most bodyLimit bytes of the
// response body (0 means unlimited). For 3xx responses the body is skipped
// and the Location header is resolved against the request URL.
func (h *httpBackend) Do(request *http.Request, bodyLimit int, withTrace bool) (*fetchResult, error) {
	var trace *FetchTrace
	if withTrace {
		trace = &FetchTrace{}
		request = trace.WithTrace(request)
	}

	start := time.Now()
	res, err := h.Client.Do(request)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	result := &fetchResult{
		StatusCode:  res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Trace:       trace,
	}

	if res.StatusCode >= 300 && res.StatusCode < 400 {
		if location := res.Header.Get("Location"); location != "" {
			if target, err := request.URL.Parse(location); err == nil {
				result.Location = target.String()
			} else {
				result.Location = location
			}
		}
		result.Elapsed = time.Since(start)
		return result, nil
	}

	var bodyReader io.Reader = res.Body
	if bodyLimit > 0 {
		bodyReader = io.LimitReader(bodyReader, int64(bodyLimit))
	}
	contentEncoding := strings.ToLower(res.Header.Get("Content-Encoding"))
	if !res.Uncompressed && (strings.Contains(contentEncoding, "gzip") || strings.HasSuffix(strings.ToLower(request.URL.Path), ".xml.gz")) {
		gz, err := gzip.NewReader(bodyReader)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		bodyReader = gz
	}
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, err
	}
	result.Body = body
	result.Elapsed = time.Since(start)
	return result, nil
}
