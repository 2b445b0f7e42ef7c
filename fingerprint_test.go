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
	"testing"
)

func mustFingerprint(t *testing.T, rawURL string) string {
	t.Helper()
	fp, err := Fingerprint(rawURL)
	if err != nil {
		t.Fatalf("Fingerprint(%q) error = %v, want nil", rawURL, err)
	}
	return fp
}

func TestFingerprintEquivalentURLs(t *testing.T) {
	tests := map[string]struct {
		a string
		b string
	}{
		"query order":          {"http://example.com/p?b=2&a=1", "http://example.com/p?a=1&b=2"},
		"scheme case":          {"HTTP://example.com/p", "http://example.com/p"},
		"host case":            {"http://EXAMPLE.COM/p", "http://example.com/p"},
		"fragment dropped":     {"http://example.com/p#section", "http://example.com/p"},
		"different fragments":  {"http://example.com/p#a", "http://example.com/p#b"},
		"duplicate key values": {"http://example.com/p?a=2&a=1", "http://example.com/p?a=1&a=2"},
		"query and fragment":   {"http://example.com/p?b=2&a=1#x", "http://example.com/p?a=1&b=2"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			fpA := mustFingerprint(t, tt.a)
			fpB := mustFingerprint(t, tt.b)
			if fpA != fpB {
				t.Errorf("Fingerprint(%q) = %s, Fingerprint(%q) = %s, want equal", tt.a, fpA, tt.b, fpB)
			}
		})
	}
}

func TestFingerprintDistinctURLs(t *testing.T) {
	tests := map[string]struct {
		a string
		b string
	}{
		"different paths":       {"http://example.com/a", "http://example.com/b"},
		"different query value": {"http://example.com/p?a=1", "http://example.com/p?a=2"},
		"different hosts":       {"http://a.example.com/p", "http://b.example.com/p"},
		"different schemes":     {"http://example.com/p", "https://example.com/p"},
		"extra parameter":       {"http://example.com/p?a=1", "http://example.com/p?a=1&b=2"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			fpA := mustFingerprint(t, tt.a)
			fpB := mustFingerprint(t, tt.b)
			if fpA == fpB {
				t.Errorf("Fingerprint(%q) == Fingerprint(%q) = %s, want distinct", tt.a, tt.b, fpA)
			}
		})
	}
}

func TestFingerprintShape(t *testing.T) {
	fp := mustFingerprint(t, "http://example.com/")
	if len(fp) != 64 {
		t.Fatalf("len(fingerprint) = %d, want 64", len(fp))
	}
	for _, c := range fp {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Fatalf("fingerprint %q contains non-hex character %q", fp, c)
		}
	}
}

func TestFingerprintIndex(t *testing.T) {
	idx := newFingerprintIndex()
	fp := mustFingerprint(t, "http://example.com/")

	if idx.Contains(fp) {
		t.Error("empty index reports Contains = true")
	}
	idx.Add(fp)
	if !idx.Contains(fp) {
		t.Error("index does not contain an added fingerprint")
	}
	idx.Add(fp)
	if got, want := idx.Len(), 1; got != want {
		t.Errorf("idx.Len() = %d, want %d after double Add", got, want)
	}
}

func TestCanonicalQuery(t *testing.T) {
	tests := map[string]struct {
		raw  string
		want string
	}{
		"empty":           {"", ""},
		"single":          {"a=1", "a=1"},
		"sorted by key":   {"b=2&a=1", "a=1&b=2"},
		"sorted by value": {"a=2&a=1", "a=1&a=2"},
		"valueless key":   {"flag&a=1", "a=1&flag="},
		"empty segments":  {"&&a=1&&", "a=1"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := canonicalQuery(tt.raw); got != tt.want {
				t.Errorf("canonicalQuery(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
