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
	"errors"
	"reflect"
	"testing"
	"time"
)

// timeoutError satisfies net.Error so transport failures classify as
// timeouts
type timeoutError struct{}

func (timeoutError) Error() string   { return "deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func newTestCrawler(t *testing.T, conf *CrawlerConfig) (*Crawler, *MockTransport) {
	t.Helper()
	crawler, err := NewCrawler(conf)
	if err != nil {
		t.Fatalf("NewCrawler: %v", err)
	}
	t.Cleanup(crawler.Close)

	mock := NewMockTransport()
	crawler.WithTransport(mock)
	return crawler, mock
}

func seededConfig(t *testing.T, seeds ...string) *CrawlerConfig {
	t.Helper()
	conf := &CrawlerConfig{Frontier: NewDefaultConfig()}
	for _, seed := range seeds {
		conf.Frontier.Seeds = append(conf.Frontier.Seeds, mustRequest(t, seed))
	}
	return conf
}

func TestCrawlerVisitsSeedAndFollowsLinks(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/"))

	mock.RegisterHTML("https://example.com/", `<html><head><title>Home</title></head>
		<body><a href="/a">A</a><a href="/b">B</a></body></html>`)
	mock.RegisterHTML("https://example.com/a", `<html><head><title>A</title></head><body></body></html>`)
	mock.RegisterHTML("https://example.com/b", `<html><head><title>B</title></head><body></body></html>`)

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := crawler.Stats().Snapshot()
	if snap.Successful != 3 {
		t.Errorf("Expected 3 successful fetches, got %d", snap.Successful)
	}
	if snap.Processed != 3 {
		t.Errorf("Expected 3 processed, got %d", snap.Processed)
	}
	if snap.Remaining != 0 {
		t.Errorf("Expected empty frontier, got %d remaining", snap.Remaining)
	}
	for _, url := range []string{"https://example.com/a", "https://example.com/b"} {
		if len(mock.RequestsFor(url)) != 1 {
			t.Errorf("Expected exactly one request for %s, got %d", url, len(mock.RequestsFor(url)))
		}
	}
}

func TestCrawlerReportsTitle(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/"))
	mock.RegisterHTML("https://example.com/", `<html><head><title>  Welcome  </title></head><body></body></html>`)

	var title string
	err := crawler.Dispatcher().AddCustom(EventSuccess, "*", func(e *Event) {
		title = e.Title
	})
	if err != nil {
		t.Fatalf("AddCustom: %v", err)
	}

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if title != "Welcome" {
		t.Errorf("Expected title 'Welcome', got '%s'", title)
	}
}

func TestCrawlerFollowsRedirectWithReferer(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/old"))
	mock.RegisterRedirect("https://example.com/old", "https://example.com/new", 301)
	mock.RegisterHTML("https://example.com/new", `<html><head><title>New</title></head><body></body></html>`)

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := crawler.Stats().Snapshot()
	if snap.Redirects != 1 {
		t.Errorf("Expected 1 redirect, got %d", snap.Redirects)
	}
	if snap.Successful != 1 {
		t.Errorf("Expected 1 successful fetch, got %d", snap.Successful)
	}

	reqs := mock.RequestsFor("https://example.com/new")
	if len(reqs) != 1 {
		t.Fatalf("Expected one request for redirect target, got %d", len(reqs))
	}
	if got := reqs[0].Header.Get("Referer"); got != "https://example.com/old" {
		t.Errorf("Expected referer 'https://example.com/old', got '%s'", got)
	}
}

func TestCrawlerResolvesRelativeRedirect(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/old"))
	mock.RegisterRedirect("https://example.com/old", "/next", 302)
	mock.RegisterHTML("https://example.com/next", `<html><body></body></html>`)

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mock.RequestsFor("https://example.com/next")) != 1 {
		t.Error("Expected relative Location to resolve against the request URL")
	}
}

func TestCrawlerClassifiesResponseError(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/broken"))
	mock.RegisterResponse("https://example.com/broken", &MockResponse{StatusCode: 500, Body: "boom"})

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := crawler.Stats().Snapshot()
	if snap.ResponseErrors != 1 {
		t.Errorf("Expected 1 response error, got %d", snap.ResponseErrors)
	}
	if snap.Processed != 1 {
		t.Errorf("Expected 1 processed, got %d", snap.Processed)
	}
}

func TestCrawlerClassifiesContentTypeMismatch(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://api.example.com/data"))
	mock.RegisterJSON("https://api.example.com/data", `{"key": "value"}`)

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := crawler.Stats().Snapshot()
	if snap.ContentTypeMismatches != 1 {
		t.Errorf("Expected 1 content type mismatch, got %d", snap.ContentTypeMismatches)
	}
	if snap.Successful != 0 {
		t.Errorf("Expected no successful fetches, got %d", snap.Successful)
	}
}

func TestCrawlerClassifiesNetworkError(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/"))
	mock.RegisterError("https://example.com/", errors.New("connection refused"))

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := crawler.Stats().Snapshot()
	if snap.NetworkErrors != 1 {
		t.Errorf("Expected 1 network error, got %d", snap.NetworkErrors)
	}
}

func TestCrawlerClassifiesTimeout(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/slow"))
	mock.RegisterError("https://example.com/slow", timeoutError{})

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := crawler.Stats().Snapshot()
	if snap.Timeouts != 1 {
		t.Errorf("Expected 1 timeout, got %d", snap.Timeouts)
	}
	if snap.NetworkErrors != 0 {
		t.Errorf("Expected no network errors, got %d", snap.NetworkErrors)
	}
}

func TestCrawlerHonorsMaxDepth(t *testing.T) {
	conf := seededConfig(t, "https://example.com/")
	conf.Frontier.MaxDepth = 1
	crawler, mock := newTestCrawler(t, conf)

	mock.RegisterHTML("https://example.com/", `<html><body><a href="/deep">deep</a></body></html>`)
	mock.RegisterHTML("https://example.com/deep", `<html><body><a href="/deeper">deeper</a></body></html>`)
	mock.RegisterHTML("https://example.com/deeper", `<html><body></body></html>`)

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := crawler.Stats().Snapshot()
	if snap.Successful != 2 {
		t.Errorf("Expected 2 successful fetches, got %d", snap.Successful)
	}
	if snap.DepthLimited != 1 {
		t.Errorf("Expected 1 depth-limited rejection, got %d", snap.DepthLimited)
	}
	if len(mock.RequestsFor("https://example.com/deeper")) != 0 {
		t.Error("Expected the depth-limited URL to never be fetched")
	}
}

func TestCrawlerFiltersOffsiteLinks(t *testing.T) {
	conf := seededConfig(t, "https://example.com/")
	conf.Frontier.AllowedDomains = []CrawlDomain{mustDomain(t, "example.com")}
	crawler, mock := newTestCrawler(t, conf)

	mock.RegisterHTML("https://example.com/", `<html><body>
		<a href="https://evil.com/x">out</a>
		<a href="/in">in</a>
	</body></html>`)
	mock.RegisterHTML("https://example.com/in", `<html><body></body></html>`)

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := crawler.Stats().Snapshot()
	if snap.Offsite != 1 {
		t.Errorf("Expected 1 offsite rejection, got %d", snap.Offsite)
	}
	if len(mock.RequestsFor("https://evil.com/x")) != 0 {
		t.Error("Expected offsite URL to never be fetched")
	}
	if len(mock.RequestsFor("https://example.com/in")) != 1 {
		t.Error("Expected in-scope link to be fetched")
	}
}

func TestCrawlerSendsConfiguredUserAgent(t *testing.T) {
	conf := seededConfig(t, "https://example.com/")
	conf.UserAgent = "trailhead-test/1.0"
	crawler, mock := newTestCrawler(t, conf)
	mock.RegisterHTML("https://example.com/", `<html><body></body></html>`)

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	reqs := mock.RequestsFor("https://example.com/")
	if len(reqs) != 1 {
		t.Fatalf("Expected one request, got %d", len(reqs))
	}
	if got := reqs[0].Header.Get("User-Agent"); got != "trailhead-test/1.0" {
		t.Errorf("Expected User-Agent 'trailhead-test/1.0', got '%s'", got)
	}
}

func TestCrawlerStopsWhenContextCancelled(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/"))
	mock.RegisterHTML("https://example.com/", `<html><body></body></html>`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := crawler.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(mock.Requests()) != 0 {
		t.Errorf("Expected no requests after pre-cancelled context, got %d", len(mock.Requests()))
	}
}

func TestCrawlerPreclassifierSkipsKnownTypes(t *testing.T) {
	conf := seededConfig(t, "https://example.com/")
	conf.ClassifierWorkers = 2
	crawler, mock := newTestCrawler(t, conf)

	dataURL := "https://example.com/data.json"
	mock.RegisterHTML("https://example.com/", `<html><body><a href="/data.json">data</a></body></html>`)
	mock.RegisterJSON(dataURL, `{}`)

	// Probe up front and wait for the worker, so the crawl loop sees a
	// settled classification instead of racing it.
	crawler.classifier.Probe(dataURL)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := crawler.classifier.ContentType(dataURL); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("HEAD probe did not complete")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := crawler.Stats().Snapshot()
	if snap.ContentTypeMismatches != 1 {
		t.Errorf("Expected 1 content type mismatch, got %d", snap.ContentTypeMismatches)
	}
	reqs := mock.RequestsFor(dataURL)
	if len(reqs) != 1 {
		t.Fatalf("Expected the classified URL to receive only the HEAD probe, got %d requests", len(reqs))
	}
	if reqs[0].Method != "HEAD" {
		t.Errorf("Expected a HEAD request, got %s", reqs[0].Method)
	}
}

func TestCrawlerFeedsAdaptiveDelay(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/"))
	mock.RegisterHTML("https://example.com/", `<html><body></body></html>`)

	policy, err := NewAdaptiveDelay(crawler, 10*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewAdaptiveDelay: %v", err)
	}
	crawler.SetDelayPolicy(policy)

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if crawler.LastPageLoadTime() <= 0 {
		t.Error("Expected a positive last page load time after a fetch")
	}
	if d := policy.Delay(); d < 10*time.Millisecond || d > 50*time.Millisecond {
		t.Errorf("Expected delay within [10ms, 50ms], got %v", d)
	}
}

func TestCrawlerCustomHandlerSuppressesLinkFeeding(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/"))
	mock.RegisterHTML("https://example.com/", `<html><body><a href="/child">child</a></body></html>`)
	mock.RegisterHTML("https://example.com/child", `<html><body></body></html>`)

	err := crawler.Dispatcher().AddCustom(EventSuccess, "*", func(e *Event) {})
	if err != nil {
		t.Fatalf("AddCustom: %v", err)
	}

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap := crawler.Stats().Snapshot(); snap.Processed != 1 {
		t.Errorf("Expected only the seed to be processed, got %d", snap.Processed)
	}
	if len(mock.RequestsFor("https://example.com/child")) != 0 {
		t.Error("Expected no fetch of the child once the default handler is suppressed")
	}
}

func TestCrawlerDecodesDeclaredCharset(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/"))

	headers := make(map[string][]string)
	headers["Content-Type"] = []string{"text/html; charset=iso-8859-1"}
	mock.RegisterResponse("https://example.com/", &MockResponse{
		StatusCode: 200,
		Body:       "<html><head><title>R\xe9sum\xe9</title></head><body></body></html>",
		Headers:    headers,
	})

	var title string
	if err := crawler.Dispatcher().AddCustom(EventSuccess, "*", func(e *Event) {
		title = e.Title
	}); err != nil {
		t.Fatalf("AddCustom: %v", err)
	}

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if title != "Résumé" {
		t.Errorf("Expected decoded title 'Résumé', got '%s'", title)
	}
}

func TestCrawlerRunsAgainAfterReset(t *testing.T) {
	crawler, mock := newTestCrawler(t, seededConfig(t, "https://example.com/"))
	mock.RegisterHTML("https://example.com/", `<html><body></body></html>`)

	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	crawler.Frontier().Reset()
	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if snap := crawler.Stats().Snapshot(); snap.Successful != 2 {
		t.Errorf("Expected 2 successful fetches across both runs, got %d", snap.Successful)
	}
	if len(mock.RequestsFor("https://example.com/")) != 2 {
		t.Error("Expected the seed to be fetched once per run")
	}
}

func TestCrawlerResumesFromState(t *testing.T) {
	first, mock := newTestCrawler(t, seededConfig(t, "https://example.com/"))
	mock.RegisterHTML("https://example.com/", `<html><body><a href="/b">b</a><a href="/c">c</a></body></html>`)

	// Process only the seed, then capture the frontier mid-crawl.
	first.Step()
	state := first.Frontier().State()
	snap := first.Stats().Snapshot()
	if snap.Remaining != 2 {
		t.Fatalf("Expected 2 remaining at capture time, got %d", snap.Remaining)
	}

	resumed, err := NewCrawlerFromState(seededConfig(t, "https://example.com/"), state)
	if err != nil {
		t.Fatalf("NewCrawlerFromState: %v", err)
	}
	t.Cleanup(resumed.Close)
	resumed.Stats().RestoreSnapshot(snap)

	mock2 := NewMockTransport()
	resumed.WithTransport(mock2)
	// The /b page links back to the already-visited seed; the restored
	// fingerprints must reject it.
	mock2.RegisterHTML("https://example.com/b", `<html><body><a href="/">home</a></body></html>`)
	mock2.RegisterHTML("https://example.com/c", `<html><body></body></html>`)

	if err := resumed.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := resumed.Stats().Snapshot()
	if got.Processed != 3 {
		t.Errorf("Expected 3 processed across both crawlers, got %d", got.Processed)
	}
	if got.Successful != 3 {
		t.Errorf("Expected 3 successful fetches, got %d", got.Successful)
	}
	if got.Remaining != 0 {
		t.Errorf("Expected empty frontier after resume, got %d", got.Remaining)
	}
	if got.Duplicates != 1 {
		t.Errorf("Expected the re-linked seed to be rejected as a duplicate, got %d", got.Duplicates)
	}
	if len(mock2.RequestsFor("https://example.com/")) != 0 {
		t.Error("Expected the already-visited seed to never be re-fetched")
	}
}

func TestCrawlerWithNilConfig(t *testing.T) {
	crawler, err := NewCrawler(nil)
	if err != nil {
		t.Fatalf("NewCrawler: %v", err)
	}
	defer crawler.Close()

	// No seeds: the run is an immediate no-op.
	if err := crawler.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap := crawler.Stats().Snapshot(); snap.Processed != 0 {
		t.Errorf("Expected nothing processed, got %d", snap.Processed)
	}
}

func TestExtractTitle(t *testing.T) {
	cases := map[string]struct {
		html string
		want string
	}{
		"plain":      {`<html><head><title>Hello</title></head></html>`, "Hello"},
		"whitespace": {`<html><head><title>  Padded  </title></head></html>`, "Padded"},
		"missing":    {`<html><head></head><body>no title</body></html>`, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := extractTitle([]byte(tc.html)); got != tc.want {
				t.Errorf("Expected title '%s', got '%s'", tc.want, got)
			}
		})
	}
}

func TestExtractLinksResolvesAndFilters(t *testing.T) {
	html := `<html><head><base href="https://example.com/other/"></head><body>
		<a href="x">relative</a>
		<a href="#frag">fragment only</a>
		<a href="javascript:void(0)">js</a>
		<a href="mailto:me@example.com">mail</a>
		<a href="ftp://files.example.com/f">ftp</a>
		<a href="https://example.com/abs#sec">absolute</a>
		<a href="x">duplicate</a>
	</body></html>`

	got := extractLinks("https://example.com/dir/page", []byte(html))
	want := []string{
		"https://example.com/other/x",
		"https://example.com/abs",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected links %v, got %v", want, got)
	}
}

func TestExtractLinksStripsEmbeddedWhitespace(t *testing.T) {
	// Browsers remove tabs and newlines inside URLs before resolving.
	html := "<html><head><base href=\"/foo\tbar/\"></head><body>" +
		"<a href=\"x\ny\">split</a>" +
		"</body></html>"

	got := extractLinks("https://example.com/dir/page", []byte(html))
	want := []string{"https://example.com/foobar/xy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected links %v, got %v", want, got)
	}
}

func TestMergeWireURLs(t *testing.T) {
	links := []string{"https://example.com/a"}
	wire := []string{
		"https://example.com/a",
		"https://example.com/",
		"https://api.example.com/v1#x",
		"data:image/png;base64,AAAA",
	}

	got := mergeWireURLs(links, "https://example.com/", wire)
	want := []string{
		"https://example.com/a",
		"https://api.example.com/v1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected merged links %v, got %v", want, got)
	}
}
