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
	"fmt"
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
)

// sitemap index entries are followed one level deep at most; indexes
// pointing at further indexes are rare and usually misconfigured
const maxSitemapIndexDepth = 2

// FetchSitemapURLs fetches URLs from a sitemap using the crawler's HTTP
// client, so sitemap fetching goes through the same transport as regular
// crawling. Handles both regular sitemaps and sitemap indexes; gzipped
// sitemaps (.xml.gz) are decompressed by the backend. Partial failures in
// an index are skipped, not fatal.
func (cr *Crawler) FetchSitemapURLs(sitemapURL string) ([]string, error) {
	return cr.fetchSitemap(sitemapURL, maxSitemapIndexDepth)
}

// TryDefaultSitemaps tries to fetch sitemaps from common default
// locations. It tries /sitemap.xml first, then /sitemap_index.xml, and
// returns all discovered URLs (empty slice if none found). It does not
// return errors.
func (cr *Crawler) TryDefaultSitemaps(baseURL string) []string {
	baseURL = strings.TrimSuffix(baseURL, "/")

	sitemapLocations := []string{
		baseURL + "/sitemap.xml",
		baseURL + "/sitemap_index.xml",
	}

	var allURLs []string
	for _, location := range sitemapLocations {
		urls, err := cr.FetchSitemapURLs(location)
		if err == nil && len(urls) > 0 {
			allURLs = append(allURLs, urls...)
		}
		// Continue trying other locations even if one fails
	}
	return allURLs
}

// SeedFromSitemap feeds every sitemap URL into the frontier as a seed.
// Returns how many were offered.
func (cr *Crawler) SeedFromSitemap(sitemapURL string) (int, error) {
	urls, err := cr.FetchSitemapURLs(sitemapURL)
	if err != nil {
		return 0, err
	}
	offered := 0
	for _, rawURL := range urls {
		req, err := NewRequest(rawURL)
		if err != nil {
			continue
		}
		cr.frontier.Feed(req, true)
		offered++
	}
	return offered, nil
}

func (cr *Crawler) fetchSitemap(sitemapURL string, depth int) ([]string, error) {
	doc, err := cr.fetchSitemapDoc(sitemapURL)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0)
	xmlquery.FindEach(doc, "//urlset/url/loc", func(_ int, n *xmlquery.Node) {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			urls = append(urls, loc)
		}
	})

	if depth > 1 {
		xmlquery.FindEach(doc, "//sitemapindex/sitemap/loc", func(_ int, n *xmlquery.Node) {
			loc := strings.TrimSpace(n.InnerText())
			if loc == "" {
				return
			}
			nested, err := cr.fetchSitemap(loc, depth-1)
			if err != nil {
				cr.event("sitemap-skip", map[string]string{"url": loc, "error": err.Error()})
				return
			}
			urls = append(urls, nested...)
		})
	}
	return urls, nil
}

// fetchSitemapDoc downloads and parses one sitemap document, following up
// to five redirect hops by hand since the backend client never follows
// them itself.
func (cr *Crawler) fetchSitemapDoc(sitemapURL string) (*xmlquery.Node, error) {
	current := sitemapURL
	for hop := 0; hop < 5; hop++ {
		req, err := http.NewRequest("GET", current, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", cr.userAgent)

		result, err := cr.backend.Do(req, cr.maxBodySize, false)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch sitemap from %s: %w", current, err)
		}
		if result.StatusCode >= 300 && result.StatusCode < 400 {
			if result.Location == "" {
				return nil, fmt.Errorf("sitemap redirect from %s has no location", current)
			}
			current = result.Location
			continue
		}
		if result.StatusCode >= 400 {
			return nil, fmt.Errorf("sitemap fetch %s: status %d", current, result.StatusCode)
		}
		return xmlquery.Parse(bytes.NewBuffer(result.Body))
	}
	return nil, fmt.Errorf("sitemap fetch %s: too many redirects", sitemapURL)
}
