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
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"google.golang.org/appengine/urlfetch"

	"github.com/agentberlin/trailhead/debug"
)

// CrawlerConfig configures a Crawler. Zero values fall back to the
// defaults from NewDefaultCrawlerConfig.
type CrawlerConfig struct {
	// Frontier is the scheduling configuration, including the seeds
	Frontier *Config
	// UserAgent is sent with every request
	UserAgent string
	// RequestTimeout bounds each fetch, HEAD probes included
	RequestTimeout time.Duration
	// MaxBodySize limits how many response bytes are read. 0 means
	// unlimited.
	MaxBodySize int
	// AcceptedContentTypes lists the media types treated as crawlable
	// documents. Responses outside the set become content-type-mismatch
	// outcomes.
	AcceptedContentTypes []string
	// DetectCharset enables character encoding detection for response
	// bodies without an explicit charset declaration. This feature uses
	// https://github.com/saintfish/chardet
	DetectCharset bool
	// EnableTrace attaches a FetchTrace to every request and reports the
	// timings through debug events
	EnableTrace bool
	// ClassifierWorkers sets the number of HEAD pre-classifier workers.
	// 0 disables pre-classification.
	ClassifierWorkers int
	// EnableRendering fetches pages through headless Chrome so JS-routed
	// links and Navigation Timing measurements become available
	EnableRendering bool
	// Rendering contains wait-time tuning for rendering. Only applies
	// when EnableRendering is true.
	Rendering *RenderingConfig
	// Delay is the pacing policy applied between fetches. Nil means no
	// pacing.
	Delay DelayPolicy
	// Debugger receives crawler and frontier events
	Debugger debug.Debugger
}

// NewDefaultCrawlerConfig returns the crawler defaults.
func NewDefaultCrawlerConfig() *CrawlerConfig {
	return &CrawlerConfig{
		UserAgent:            "trailhead/1.0 (+https://github.com/agentberlin/trailhead)",
		RequestTimeout:       20 * time.Second,
		MaxBodySize:          10 * 1024 * 1024,
		AcceptedContentTypes: []string{"text/html", "application/xhtml+xml"},
	}
}

// Crawler drives a Frontier from a single control goroutine: pop the next
// candidate, fetch it, classify the outcome, record it, dispatch the
// event, sleep the pacing delay. Handlers run on the control goroutine and
// feed discovered links back through the frontier.
type Crawler struct {
	frontier   *Frontier
	dispatcher *Dispatcher
	backend    *httpBackend
	classifier *headClassifier
	delay      DelayPolicy

	userAgent   string
	accepted    []string
	maxBodySize int
	detect      bool
	trace       bool
	render      bool
	renderConf  *RenderingConfig
	debugger    debug.Debugger

	// last fetch wall time in nanoseconds, written by the control
	// goroutine and read by AdaptiveDelay probes
	lastLoad int64
}

// NewCrawler builds a Crawler and its Frontier; the frontier's seeds are
// admitted here. If config is nil, default configuration is used.
func NewCrawler(config *CrawlerConfig) (*Crawler, error) {
	conf := mergeCrawlerConfig(config)
	frontier, err := New(frontierConfig(conf), nil)
	if err != nil {
		return nil, err
	}
	return buildCrawler(conf, frontier), nil
}

// NewCrawlerFromState builds a Crawler around a frontier restored from a
// captured State instead of a freshly seeded one. The frontier config must
// be the one the saving run used; seeds are not re-admitted. Counters start
// at zero, so a resumed run carries its saved snapshot over with
// Stats().RestoreSnapshot.
func NewCrawlerFromState(config *CrawlerConfig, state State) (*Crawler, error) {
	conf := mergeCrawlerConfig(config)
	frontier, err := Restore(frontierConfig(conf), state, nil)
	if err != nil {
		return nil, err
	}
	return buildCrawler(conf, frontier), nil
}

func mergeCrawlerConfig(config *CrawlerConfig) *CrawlerConfig {
	conf := NewDefaultCrawlerConfig()
	if config != nil {
		conf.Frontier = config.Frontier
		if config.UserAgent != "" {
			conf.UserAgent = config.UserAgent
		}
		if config.RequestTimeout > 0 {
			conf.RequestTimeout = config.RequestTimeout
		}
		if config.MaxBodySize > 0 {
			conf.MaxBodySize = config.MaxBodySize
		}
		if len(config.AcceptedContentTypes) > 0 {
			conf.AcceptedContentTypes = config.AcceptedContentTypes
		}
		conf.DetectCharset = config.DetectCharset
		conf.EnableTrace = config.EnableTrace
		conf.ClassifierWorkers = config.ClassifierWorkers
		conf.EnableRendering = config.EnableRendering
		conf.Rendering = config.Rendering
		conf.Delay = config.Delay
		conf.Debugger = config.Debugger
	}
	return conf
}

func frontierConfig(conf *CrawlerConfig) *Config {
	frontierConf := conf.Frontier
	if frontierConf == nil {
		frontierConf = NewDefaultConfig()
	}
	if frontierConf.Debugger == nil {
		frontierConf.Debugger = conf.Debugger
	}
	return frontierConf
}

func buildCrawler(conf *CrawlerConfig, frontier *Frontier) *Crawler {
	backend := &httpBackend{}
	backend.Init(conf.RequestTimeout)

	cr := &Crawler{
		frontier:    frontier,
		dispatcher:  NewDispatcher(),
		backend:     backend,
		delay:       conf.Delay,
		userAgent:   conf.UserAgent,
		accepted:    conf.AcceptedContentTypes,
		maxBodySize: conf.MaxBodySize,
		detect:      conf.DetectCharset,
		trace:       conf.EnableTrace,
		render:      conf.EnableRendering,
		renderConf:  conf.Rendering,
		debugger:    conf.Debugger,
	}
	if conf.Debugger != nil {
		cr.dispatcher.SetDebugger(conf.Debugger)
	}
	if conf.ClassifierWorkers > 0 {
		cr.classifier = newHeadClassifier(backend, conf.UserAgent, conf.ClassifierWorkers)
	}

	// Default handlers keep the loop self-propelling: successes feed the
	// links they found, redirects feed their target. SetDefault replaces
	// them.
	cr.dispatcher.SetDefault(EventSuccess, func(e *Event) {
		cr.FeedDiscovered(e.Links...)
	})
	cr.dispatcher.SetDefault(EventRedirect, func(e *Event) {
		if e.Location != "" {
			cr.FeedDiscovered(e.Location)
		}
	})
	return cr
}

// Frontier returns the crawler's frontier.
func (cr *Crawler) Frontier() *Frontier {
	return cr.frontier
}

// Stats returns the counter the frontier reports into.
func (cr *Crawler) Stats() *Stats {
	return cr.frontier.Stats()
}

// Dispatcher returns the event dispatcher for handler registration.
func (cr *Crawler) Dispatcher() *Dispatcher {
	return cr.dispatcher
}

// SetDelayPolicy overrides the pacing policy between fetches.
func (cr *Crawler) SetDelayPolicy(policy DelayPolicy) {
	cr.delay = policy
}

// SetClient will override the previously set http.Client
func (cr *Crawler) SetClient(client *http.Client) {
	cr.backend.Client = client
}

// WithTransport allows you to set a custom http.RoundTripper (transport)
func (cr *Crawler) WithTransport(transport http.RoundTripper) {
	cr.backend.Client.Transport = transport
}

// Appengine will replace the Crawler's backend http.Client with one
// provided by appengine/urlfetch. Use it when the crawler runs on Google
// App Engine.
func (cr *Crawler) Appengine(ctx context.Context) {
	client := urlfetch.Client(ctx)
	client.CheckRedirect = cr.backend.Client.CheckRedirect
	client.Timeout = cr.backend.Client.Timeout

	cr.backend.Client = client
}

// FeedDiscovered offers discovered URLs to the frontier as non-seed
// requests. Unparseable URLs are dropped with a debug event; everything
// else goes through the frontier's admission filters. Scheduled probes go
// to the HEAD classifier when one is running.
func (cr *Crawler) FeedDiscovered(urls ...string) {
	for _, rawURL := range urls {
		req, err := NewRequest(rawURL)
		if err != nil {
			cr.event("discard-unparseable", map[string]string{"url": rawURL, "error": err.Error()})
			continue
		}
		cr.frontier.Feed(req, false)
		if cr.classifier != nil {
			cr.classifier.Probe(req.URL)
		}
	}
}

// Close releases the crawler's background workers. The crawler must not
// be fed or run after Close.
func (cr *Crawler) Close() {
	if cr.classifier != nil {
		cr.classifier.Close()
	}
}

// Run drains the frontier: each queued candidate is fetched, classified,
// recorded and dispatched, with the pacing delay between fetches. Run
// returns when the frontier is empty or the context is cancelled. The
// whole loop runs on the calling goroutine, so the frontier can be Reset
// and Run again afterwards.
func (cr *Crawler) Run(ctx context.Context) error {
	for cr.frontier.HasNext() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cr.Step()

		if cr.delay != nil && cr.frontier.HasNext() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cr.delay.Delay()):
			}
		}
	}
	return nil
}

// Step processes exactly one candidate: fetch, classify, record, dispatch.
// It panics with ErrEmptyFrontier when the frontier is empty, like Next.
func (cr *Crawler) Step() {
	candidate := cr.frontier.Next()
	event := cr.process(candidate)
	cr.frontier.Stats().RecordOutcome(event.Kind)
	cr.dispatcher.Dispatch(event)
}

// LastPageLoadTime returns the load time of the most recent fetch: the
// Navigation Timing measurement when rendering is enabled, wall-clock
// fetch time otherwise. It implements TimingSource so an AdaptiveDelay
// can pace the crawl off observed load times.
func (cr *Crawler) LastPageLoadTime() time.Duration {
	return time.Duration(atomic.LoadInt64(&cr.lastLoad))
}

// SupportsNavigationTiming implements TimingSource.
func (cr *Crawler) SupportsNavigationTiming() bool {
	return true
}

func (cr *Crawler) process(c Candidate) *Event {
	e := &Event{Kind: EventNetworkError, Candidate: c}

	// A probed non-accepted content type classifies the candidate without
	// opening a connection.
	if cr.classifier != nil {
		if contentType, ok := cr.classifier.ContentType(c.URL); ok && !cr.acceptsContentType(contentType) {
			e.Kind = EventContentTypeMismatch
			e.ContentType = contentType
			cr.event("skip-preclassified", map[string]string{"url": c.URL, "contentType": contentType})
			return e
		}
	}

	req, err := http.NewRequest("GET", c.URL, nil)
	if err != nil {
		e.Err = err
		return e
	}
	req.Header.Set("User-Agent", cr.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if c.Referer != "" {
		req.Header.Set("Referer", c.Referer)
	}

	result, err := cr.backend.Do(req, cr.maxBodySize, cr.trace)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			e.Kind = EventTimeout
		}
		e.Err = err
		return e
	}

	atomic.StoreInt64(&cr.lastLoad, int64(result.Elapsed))
	if result.Trace != nil {
		cr.event("fetch-trace", map[string]string{
			"url":       c.URL,
			"connect":   result.Trace.ConnectDuration.String(),
			"firstByte": result.Trace.FirstByteDuration.String(),
		})
	}

	e.StatusCode = result.StatusCode
	e.ContentType = result.ContentType

	switch {
	case result.StatusCode >= 300 && result.StatusCode < 400:
		e.Kind = EventRedirect
		e.Location = result.Location
	case result.StatusCode >= 400:
		e.Kind = EventResponseError
	case !cr.acceptsContentType(result.ContentType):
		e.Kind = EventContentTypeMismatch
	default:
		e.Kind = EventSuccess
		body := decodeBody(result.Body, result.ContentType, cr.detect)
		var wire []string
		if cr.render {
			renderedHTML, wireURLs, err := getRenderer().RenderPage(c.URL, cr.renderConf)
			if err != nil {
				// Rendering failures fall back to the static body
				cr.event("render-fallback", map[string]string{"url": c.URL, "error": err.Error()})
			} else {
				body = []byte(renderedHTML)
				wire = wireURLs
				atomic.StoreInt64(&cr.lastLoad, int64(getRenderer().LastPageLoadTime()))
			}
		}
		e.Title = extractTitle(body)
		e.Links = extractLinks(c.URL, body)
		if len(wire) > 0 {
			e.Links = mergeWireURLs(e.Links, c.URL, wire)
		}
	}
	return e
}

func (cr *Crawler) acceptsContentType(contentType string) bool {
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(mediaType, ";"); i != -1 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	if mediaType == "" {
		// Servers that send no Content-Type still get parsed; the body
		// decides what it is.
		return true
	}
	for _, accepted := range cr.accepted {
		if mediaType == accepted {
			return true
		}
	}
	return false
}

func (cr *Crawler) event(eventType string, values map[string]string) {
	if cr.debugger == nil {
		return
	}
	cr.debugger.Event(&debug.Event{
		Type:       eventType,
		FrontierID: cr.frontier.ID,
		Values:     values,
	})
}

// decodeBody converts a response body to UTF-8. An explicit charset in the
// Content-Type header wins; without one, detection runs only when enabled.
// Decoding failures fall back to the raw bytes.
func decodeBody(body []byte, contentType string, detect bool) []byte {
	if strings.Contains(strings.ToLower(contentType), "charset=") {
		if decoded, err := decodeWithContentType(body, contentType); err == nil {
			return decoded
		}
		return body
	}
	if !detect {
		return body
	}
	best, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || strings.EqualFold(best.Charset, "utf-8") {
		return body
	}
	decoded, err := decodeWithContentType(body, "text/plain; charset="+best.Charset)
	if err != nil {
		return body
	}
	return decoded
}

func decodeWithContentType(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// extractTitle pulls the document title via XPath.
func extractTitle(body []byte) string {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	node := htmlquery.FindOne(doc, "//title")
	if node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(node))
}

// hrefCleaner strips embedded tabs and newlines, which browsers remove
// from URLs before resolving.
var hrefCleaner = strings.NewReplacer("\t", "", "\r", "", "\n", "")

// extractLinks collects the absolute http(s) targets of all anchors in the
// document, honoring a <base href> tag, with fragments dropped and
// duplicates within the page collapsed.
func extractLinks(pageURL string, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := base.Parse(hrefCleaner.Replace(strings.TrimSpace(href))); err == nil {
			base = resolved
		}
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = hrefCleaner.Replace(strings.TrimSpace(href))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// mergeWireURLs appends browser-captured request URLs to the anchor links,
// applying the same scheme and dedup rules.
func mergeWireURLs(links []string, pageURL string, wire []string) []string {
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		seen[link] = struct{}{}
	}
	for _, raw := range wire {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		u.Fragment = ""
		link := u.String()
		if link == pageURL {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}
