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
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// InvalidDomainError is the error type for domain strings that cannot be
// used as a crawl scope.
//
// It's returned by NewDomain when the input is not a syntactically valid
// hostname, or names a bare public suffix (".com", "co.uk") instead of a
// registrable domain.
type InvalidDomainError struct {
	// Domain is the input that failed validation.
	Domain string
	// Reason describes why validation failed.
	Reason string
}

// Error implements error interface.
func (e *InvalidDomainError) Error() string {
	return fmt.Sprintf("invalid crawl domain %q: %s", e.Domain, e.Reason)
}

// CrawlDomain represents one domain a crawl may be scoped to. Instances are
// immutable and normalized, so two CrawlDomains built from the same textual
// domain compare equal and share a map key via Name.
type CrawlDomain struct {
	name   string
	labels []string
}

// NewDomain builds a CrawlDomain from a textual domain such as
// "example.com" or "docs.example.com". The input is lowercased and a
// trailing dot is stripped. Validation happens here, never at scheduling
// time: syntactically broken hostnames and bare public suffixes yield an
// *InvalidDomainError.
func NewDomain(domain string) (CrawlDomain, error) {
	name := strings.ToLower(strings.TrimSpace(domain))
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return CrawlDomain{}, &InvalidDomainError{Domain: domain, Reason: "empty domain"}
	}
	if strings.ContainsAny(name, "/:@?#\\ ") {
		return CrawlDomain{}, &InvalidDomainError{Domain: domain, Reason: "not a bare hostname"}
	}

	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return CrawlDomain{}, &InvalidDomainError{Domain: domain, Reason: "missing registrable part"}
	}
	for _, label := range labels {
		if !validDomainLabel(label) {
			return CrawlDomain{}, &InvalidDomainError{Domain: domain, Reason: fmt.Sprintf("bad label %q", label)}
		}
	}

	if suffix, _ := publicsuffix.PublicSuffix(name); suffix == name {
		return CrawlDomain{}, &InvalidDomainError{Domain: domain, Reason: "public suffix, not a registrable domain"}
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(name); err != nil {
		return CrawlDomain{}, &InvalidDomainError{Domain: domain, Reason: err.Error()}
	}

	return CrawlDomain{name: name, labels: labels}, nil
}

// DomainOfURL derives the CrawlDomain of an absolute URL's host.
func DomainOfURL(rawURL string) (CrawlDomain, error) {
	u, err := url.Parse(normalizeURL(rawURL))
	if err != nil {
		return CrawlDomain{}, &InvalidDomainError{Domain: rawURL, Reason: err.Error()}
	}
	return NewDomain(u.Hostname())
}

// Name returns the normalized textual form, e.g. "docs.example.com".
func (d CrawlDomain) Name() string {
	return d.name
}

// String implements fmt.Stringer.
func (d CrawlDomain) String() string {
	return d.name
}

// IsZero reports whether d was produced by a failed or absent construction.
func (d CrawlDomain) IsZero() bool {
	return d.name == ""
}

// Equal reports whether two CrawlDomains name the same normalized domain.
func (d CrawlDomain) Equal(other CrawlDomain) bool {
	return d.name == other.name
}

// Contains reports whether other is this domain or a subdomain of it.
// "example.com" contains "sub.example.com" but not the reverse.
func (d CrawlDomain) Contains(other CrawlDomain) bool {
	if d.name == "" || other.name == "" {
		return false
	}
	if len(other.labels) < len(d.labels) {
		return false
	}
	offset := len(other.labels) - len(d.labels)
	for i, label := range d.labels {
		if other.labels[offset+i] != label {
			return false
		}
	}
	return true
}

// MarshalText implements encoding.TextMarshaler so CrawlDomain serializes
// as its normalized name.
func (d CrawlDomain) MarshalText() ([]byte, error) {
	return []byte(d.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It revalidates the
// incoming name so a restored state cannot smuggle in a broken domain.
func (d *CrawlDomain) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = CrawlDomain{}
		return nil
	}
	parsed, err := NewDomain(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func validDomainLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		case c >= 0x80:
			// IDN labels arrive punycoded or raw UTF-8; both pass through.
		default:
			return false
		}
	}
	return true
}
