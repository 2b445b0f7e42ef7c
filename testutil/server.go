// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// This file includes modifications to code originally developed by Adam Tauber,
// licensed under the Apache License, Version 2.0.
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

// Package testutil provides shared test infrastructure for trailhead
// tests: an HTTP server hosting a small crawlable site with a known
// link graph, sitemap documents, and failure-mode endpoints.
package testutil

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"
)

// NewSiteHandler returns the handler for the crawlable test site. The
// page graph reachable from "/":
//
//	/                    links /products, /about, /blog
//	/products            links /products/trail-mix, /products/compass and "/" again
//	/products/trail-mix  links "/" again
//	/products/compass    leaf
//	/about               links /team and an offsite page
//	/team                leaf
//	/blog                links /blog/first-post, /moved
//	/blog/first-post     links /data.json (served as application/json)
//	/moved               301 to /blog/relocated via a relative Location
//	/blog/relocated      leaf
//
// A full crawl seeded from "/" therefore processes 11 URLs: 9 HTML
// successes, one redirect and one content type mismatch, rejecting two
// duplicate links and one offsite link along the way.
//
// Off the graph: /chain/1 through /chain/4 form a linear chain for
// depth limit tests, /slow stalls before responding, /broken returns
// 500, /charset declares ISO-8859-1, /user_agent echoes the request's
// User-Agent as the page title. /sitemap.xml, /sitemap_index.xml and
// /sitemap-blog.xml exercise sitemap discovery; /sitemap-archive.xml.gz
// is served gzip-encoded and /sitemap-moved.xml redirects to
// /sitemap.xml.
func NewSiteHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// The root pattern catches every unmatched path; anything not
		// part of the site must 404 so crawl counts stay exact.
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writePage(w, "Trailhead Test Site", "/products", "/about", "/blog")
	})

	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Products", "/products/trail-mix", "/products/compass", "/")
	})

	mux.HandleFunc("/products/trail-mix", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Trail Mix", "/")
	})

	mux.HandleFunc("/products/compass", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Compass")
	})

	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "About", "/team", "https://elsewhere-site.com/partner")
	})

	mux.HandleFunc("/team", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Team")
	})

	mux.HandleFunc("/blog", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Blog", "/blog/first-post", "/moved")
	})

	mux.HandleFunc("/blog/first-post", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "First Post", "/data.json")
	})

	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/blog/relocated", http.StatusMovedPermanently)
	})

	mux.HandleFunc("/blog/relocated", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Relocated Post")
	})

	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"posts": 1}`))
	})

	mux.HandleFunc("/chain/", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/chain/"))
		if err != nil || n < 1 || n > 4 {
			http.NotFound(w, r)
			return
		}
		if n == 4 {
			writePage(w, "Chain End")
			return
		}
		writePage(w, fmt.Sprintf("Chain %d", n), fmt.Sprintf("/chain/%d", n+1))
	})

	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
		writePage(w, "Slow Page")
	})

	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(500)
		w.Write([]byte("<p>internal error</p>"))
	})

	mux.HandleFunc("/charset", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<!DOCTYPE html>\n<html>\n<head><title>Caf\xe9 Trailhead</title></head>\n<body>\n</body>\n</html>\n"))
	})

	mux.HandleFunc("/user_agent", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, r.Header.Get("User-Agent"))
	})

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		writeURLSet(w,
			absURL(r, "/products/trail-mix"),
			absURL(r, "/products/compass"),
			absURL(r, "/blog/first-post"),
		)
	})

	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintln(w, `<?xml version="1.0" encoding="UTF-8"?>`)
		fmt.Fprintln(w, `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
		fmt.Fprintf(w, "  <sitemap><loc>%s</loc></sitemap>\n", absURL(r, "/sitemap-blog.xml"))
		fmt.Fprintln(w, `</sitemapindex>`)
	})

	mux.HandleFunc("/sitemap-blog.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		writeURLSet(w, absURL(r, "/blog/relocated"))
	})

	mux.HandleFunc("/sitemap-archive.xml.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		writeURLSet(gz, absURL(r, "/team"))
	})

	mux.HandleFunc("/sitemap-moved.xml", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/sitemap.xml", http.StatusFound)
	})

	return mux
}

// NewUnstartedTestServer creates an unstarted HTTP test server hosting
// the site.
func NewUnstartedTestServer() *httptest.Server {
	return httptest.NewUnstartedServer(NewSiteHandler())
}

// NewTestServer creates and starts an HTTP test server hosting the site.
func NewTestServer() *httptest.Server {
	srv := NewUnstartedTestServer()
	srv.Start()
	return srv
}

func writePage(w http.ResponseWriter, title string, links ...string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head><title>%s</title></head>\n<body>\n", title)
	for _, link := range links {
		fmt.Fprintf(&b, "<a href=%q>%s</a>\n", link, link)
	}
	b.WriteString("</body>\n</html>\n")
	w.Write([]byte(b.String()))
}

func writeURLSet(w io.Writer, urls ...string) {
	fmt.Fprintln(w, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintln(w, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, u := range urls {
		fmt.Fprintf(w, "  <url><loc>%s</loc></url>\n", u)
	}
	fmt.Fprintln(w, `</urlset>`)
}

func absURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}
