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
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

func normalizeURL(u string) string {
	parsed, err := urlParser.Parse(u)
	if err != nil {
		return u
	}
	return parsed.String()
}

// Fingerprint derives the deduplication key of a URL.
//
// Two URLs that differ only in scheme/host case, query parameter order or
// fragment produce the same fingerprint: the scheme and host are lowercased,
// the query is decomposed into key/value pairs and sorted by key then value,
// the fragment is dropped, and the SHA-256 hex digest of the reserialized
// canonical string is returned.
func Fingerprint(rawURL string) (string, error) {
	u, err := url.Parse(normalizeURL(rawURL))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(u.EscapedPath())
	if canonical := canonicalQuery(u.RawQuery); canonical != "" {
		b.WriteByte('?')
		b.WriteString(canonical)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

type queryPair struct {
	key   string
	value string
}

// canonicalQuery reorders a raw query string into its canonical serialized
// form. Duplicate keys are kept; pairs sort by key, then by value.
func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var pairs []queryPair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
		pairs = append(pairs, queryPair{key: key, value: value})
	}
	if len(pairs) == 0 {
		return ""
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// fingerprintIndex is the frontier's dedup set. Fingerprints are never
// evicted during a crawl's lifetime; for very long crawls the set grows
// without bound, which is an accepted trade-off of the dedup guarantee.
type fingerprintIndex struct {
	seen map[string]struct{}
}

func newFingerprintIndex() *fingerprintIndex {
	return &fingerprintIndex{seen: make(map[string]struct{})}
}

func (idx *fingerprintIndex) Contains(fp string) bool {
	_, ok := idx.seen[fp]
	return ok
}

func (idx *fingerprintIndex) Add(fp string) {
	idx.seen[fp] = struct{}{}
}

func (idx *fingerprintIndex) Len() int {
	return len(idx.seen)
}

// all returns the fingerprints in no particular order, for serialization.
func (idx *fingerprintIndex) all() []string {
	fps := make([]string, 0, len(idx.seen))
	for fp := range idx.seen {
		fps = append(fps, fp)
	}
	return fps
}
