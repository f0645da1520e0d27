package crawler

import (
	"net/url"
	"slices"
	"strings"
)

// URLSet is a set of absolute URLs.
// The zero value is an empty, read-only set; use NewURLSet to add URLs.
type URLSet map[string]struct{}

// NewURLSet returns a set holding urls.
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s[u] = struct{}{}
	}
	return s
}

// Add inserts u and reports whether it was not present before.
func (s URLSet) Add(u string) bool {
	if _, ok := s[u]; ok {
		return false
	}
	s[u] = struct{}{}
	return true
}

// Contains reports whether u is in the set.
func (s URLSet) Contains(u string) bool {
	_, ok := s[u]
	return ok
}

// Len returns the number of URLs in the set.
func (s URLSet) Len() int {
	return len(s)
}

// Sorted returns the URLs in lexical order.
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

// normalizeURL lower-cases the scheme and host, drops the fragment and maps
// an empty path to "/", so that http://Example.com and http://example.com/
// are the same entry.
func normalizeURL(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	n.Fragment = ""
	n.RawFragment = ""
	if n.Path == "" && n.Opaque == "" {
		n.Path = "/"
	}
	return n.String()
}

// NormalizeStartURL validates and normalizes a crawl seed.
func NormalizeStartURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidStartURL
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return "", ErrInvalidStartURL
	}
	return normalizeURL(u), nil
}

// stripFragment returns raw without its #fragment.
func stripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}
