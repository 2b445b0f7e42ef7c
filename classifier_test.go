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
	"errors"
	"testing"
	"time"
)

func newTestClassifier(t *testing.T, workers int) (*headClassifier, *MockTransport) {
	t.Helper()
	backend := &httpBackend{}
	backend.Init(5 * time.Second)

	mock := NewMockTransport()
	backend.Client.Transport = mock

	classifier := newHeadClassifier(backend, "probe/1.0", workers)
	t.Cleanup(classifier.Close)
	return classifier, mock
}

func waitForContentType(t *testing.T, classifier *headClassifier, url string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if contentType, ok := classifier.ContentType(url); ok {
			return contentType
		}
		if time.Now().After(deadline) {
			t.Fatalf("probe for %s did not complete", url)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitForRequests(t *testing.T, mock *MockTransport, url string, count int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(mock.RequestsFor(url)) < count {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d requests for %s, saw %d", count, url, len(mock.RequestsFor(url)))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClassifierRecordsContentTypes(t *testing.T) {
	classifier, mock := newTestClassifier(t, 2)
	mock.RegisterHTML("https://example.com/page", `<html></html>`)
	mock.RegisterJSON("https://example.com/api", `{}`)

	classifier.Probe("https://example.com/page")
	classifier.Probe("https://example.com/api")

	if got := waitForContentType(t, classifier, "https://example.com/page"); got != "text/html; charset=utf-8" {
		t.Errorf("Expected 'text/html; charset=utf-8', got '%s'", got)
	}
	if got := waitForContentType(t, classifier, "https://example.com/api"); got != "application/json; charset=utf-8" {
		t.Errorf("Expected 'application/json; charset=utf-8', got '%s'", got)
	}

	for _, url := range []string{"https://example.com/page", "https://example.com/api"} {
		reqs := mock.RequestsFor(url)
		if len(reqs) != 1 || reqs[0].Method != "HEAD" {
			t.Errorf("Expected exactly one HEAD request for %s, got %v", url, reqs)
		}
	}
}

func TestClassifierProbeDeduplicates(t *testing.T) {
	classifier, mock := newTestClassifier(t, 2)
	mock.RegisterHTML("https://example.com/", `<html></html>`)

	classifier.Probe("https://example.com/")
	classifier.Probe("https://example.com/")
	classifier.Probe("https://example.com/")

	waitForContentType(t, classifier, "https://example.com/")
	if got := len(mock.RequestsFor("https://example.com/")); got != 1 {
		t.Errorf("Expected a single HEAD probe, got %d", got)
	}
}

func TestClassifierFailedProbeStaysUnknown(t *testing.T) {
	classifier, mock := newTestClassifier(t, 1)
	mock.RegisterError("https://example.com/down", errors.New("connection refused"))

	classifier.Probe("https://example.com/down")
	waitForRequests(t, mock, "https://example.com/down", 1)
	time.Sleep(50 * time.Millisecond)

	if _, ok := classifier.ContentType("https://example.com/down"); ok {
		t.Error("Expected a failed probe to stay unknown")
	}
}

func TestClassifierErrorStatusStaysUnknown(t *testing.T) {
	classifier, mock := newTestClassifier(t, 1)
	mock.RegisterResponse("https://example.com/gone", &MockResponse{StatusCode: 404})

	classifier.Probe("https://example.com/gone")
	waitForRequests(t, mock, "https://example.com/gone", 1)
	time.Sleep(50 * time.Millisecond)

	if _, ok := classifier.ContentType("https://example.com/gone"); ok {
		t.Error("Expected an error status probe to stay unknown")
	}
}

func TestClassifierUnprobedURLIsUnknown(t *testing.T) {
	classifier, _ := newTestClassifier(t, 1)
	if _, ok := classifier.ContentType("https://example.com/never"); ok {
		t.Error("Expected an unprobed URL to be unknown")
	}
}
