package crawler

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxNameLength bounds a single path component produced by the allocator.
const maxNameLength = 100

// Allocator derives a unique output directory for every processed page:
//
//	<base>/<YYYY>/<MM>/<DD>/<host>/<path>_<HHMMSS>_<seq>
//
// The sequence number increases monotonically per Allocator, so two pages
// that map to the same name within the same second still get distinct
// directories. Allocate only derives the path; it does not touch the disk.
type Allocator struct {
	base string
	seq  atomic.Int64
}

// NewAllocator returns an Allocator rooted at base.
func NewAllocator(base string) *Allocator {
	return &Allocator{base: base}
}

// Base returns the root directory.
func (a *Allocator) Base() string {
	return a.base
}

// Allocate returns the output directory for rawURL processed at t.
// It is safe for concurrent use.
func (a *Allocator) Allocate(rawURL string, t time.Time) string {
	seq := a.seq.Add(1)
	host, page := locationNames(rawURL)
	leaf := fmt.Sprintf("%s_%s_%04d", page, t.Format("150405"), seq)
	return filepath.Join(a.base, t.Format("2006"), t.Format("01"), t.Format("02"), host, leaf)
}

// locationNames maps a URL to its host and page directory names.
func locationNames(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown_host", sanitizeName(rawURL, "page")
	}
	host := strings.NewReplacer(".", "_", ":", "_").Replace(strings.ToLower(u.Host))
	path := strings.Trim(u.Path, "/")
	if u.RawQuery != "" {
		path += "_" + u.RawQuery
	}
	return sanitizeName(host, "unknown_host"), sanitizeName(strings.ReplaceAll(path, "/", "_"), "homepage")
}

// sanitizeName keeps [A-Za-z0-9_-], transliterates accented letters and
// replaces anything else with '_'. Over-long names are truncated and
// suffixed with a short hash of the full name so they stay distinct.
func sanitizeName(s, fallback string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if t, _, err := transform.String(stripMarks, s); err == nil {
		s = t
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return fallback
	}
	if len(name) > maxNameLength {
		sum := sha3.Sum256([]byte(name))
		name = name[:maxNameLength-9] + "_" + hex.EncodeToString(sum[:4])
	}
	return name
}
