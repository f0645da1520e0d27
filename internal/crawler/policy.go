package crawler

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/nao1215/pagecrawler/internal/config"
)

// Limits applied by the filtering policy.
const (
	// MaxQueryLength rejects URLs whose raw query is longer than this.
	MaxQueryLength = 150

	// MaxQuerySeparators rejects URLs with more '&' separators than this.
	MaxQuerySeparators = 8

	// MaxURLLength rejects URLs longer than this.
	MaxURLLength = 750
)

// nonPageExtensions are path suffixes that never lead to an HTML page.
var nonPageExtensions = []string{
	// structured data and feeds
	".oembed", ".json", ".xml", ".rss", ".csv", ".atom", ".map",
	// scripts, styles, icons
	".js", ".css", ".ico",
	// images
	".png", ".jpeg", ".jpg", ".gif", ".svg", ".webp", ".bmp", ".tiff",
	// video
	".mp4", ".avi", ".mov", ".webm", ".mkv", ".flv", ".wmv",
	// audio
	".mp3", ".wav", ".ogg", ".aac", ".flac",
	// fonts
	".woff", ".woff2", ".ttf", ".eot", ".otf",
	// documents and archives
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".tar", ".gz", ".rar", ".7z",
}

// apiPathSegments mark endpoints that serve data or assets instead of pages.
var apiPathSegments = []string{
	"/api/", "/oembed/", "/feed/", "/rss/", "/json/", "/xml/", "/download/",
	"/static/", "/assets/", "/wp-json/", "/wp-content/", "/wp-includes/",
}

// Verdict is the outcome of evaluating a candidate URL.
// Every value except VerdictAccept names the first rule that rejected it.
type Verdict int

const (
	// VerdictAccept means the URL should be visited.
	VerdictAccept Verdict = iota
	// VerdictSeen means the URL is already visited or failed.
	VerdictSeen
	// VerdictForeignHost means the host is neither the start host nor related to it.
	VerdictForeignHost
	// VerdictNonPageExtension means the path ends in a non-page extension.
	VerdictNonPageExtension
	// VerdictAPIPath means the path contains an API or asset segment.
	VerdictAPIPath
	// VerdictExcluded means an exclude pattern matched.
	VerdictExcluded
	// VerdictNotIncluded means include patterns exist and none matched.
	VerdictNotIncluded
	// VerdictFragmentOfVisited means the URL only adds a fragment to a visited URL.
	VerdictFragmentOfVisited
	// VerdictComplexQuery means the query string is too long or has too many parameters.
	VerdictComplexQuery
	// VerdictTooLong means the URL exceeds MaxURLLength.
	VerdictTooLong
)

// String returns a short reason used in debug logs.
func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictSeen:
		return "already seen"
	case VerdictForeignHost:
		return "foreign host"
	case VerdictNonPageExtension:
		return "non-page extension"
	case VerdictAPIPath:
		return "api or asset path"
	case VerdictExcluded:
		return "excluded by pattern"
	case VerdictNotIncluded:
		return "not matched by include pattern"
	case VerdictFragmentOfVisited:
		return "fragment of visited page"
	case VerdictComplexQuery:
		return "complex query"
	case VerdictTooLong:
		return "url too long"
	default:
		return "unknown"
	}
}

// Policy decides which discovered URLs are worth visiting.
// A Policy is immutable after NewPolicy returns and its methods have no side
// effects, so it is safe for concurrent use.
type Policy struct {
	startHost   string
	startLabels []string
	exclude     []*regexp.Regexp
	include     []*regexp.Regexp
	allow       map[string][]string
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithExclude rejects every URL matched by one of patterns.
func WithExclude(patterns []*regexp.Regexp) PolicyOption {
	return func(p *Policy) {
		p.exclude = patterns
	}
}

// WithInclude only accepts URLs matched by at least one of patterns.
// An empty list disables the rule.
func WithInclude(patterns []*regexp.Regexp) PolicyOption {
	return func(p *Policy) {
		p.include = patterns
	}
}

// WithAllowList lets path prefixes on specific hosts through the API/asset
// path rule. Keys are host names, values are path prefixes. Prefixes under
// config.AnyHost apply to every host.
func WithAllowList(allow map[string][]string) PolicyOption {
	return func(p *Policy) {
		p.allow = make(map[string][]string, len(allow))
		for host, prefixes := range allow {
			lowered := make([]string, 0, len(prefixes))
			for _, prefix := range prefixes {
				lowered = append(lowered, strings.ToLower(prefix))
			}
			h := strings.ToLower(host)
			p.allow[h] = append(p.allow[h], lowered...)
		}
	}
}

// NewPolicy builds a Policy anchored at startURL.
func NewPolicy(startURL string, opts ...PolicyOption) (*Policy, error) {
	u, err := url.Parse(startURL)
	if err != nil || u.Hostname() == "" {
		return nil, ErrInvalidStartURL
	}
	p := &Policy{
		startHost:   strings.ToLower(u.Host),
		startLabels: hostLabels(u.Hostname()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ShouldVisit reports whether candidate passes every rule.
func (p *Policy) ShouldVisit(candidate string, visited, failed URLSet) bool {
	return p.Evaluate(candidate, visited, failed) == VerdictAccept
}

// Evaluate applies the rules in order and returns the first one that
// rejects candidate, or VerdictAccept.
func (p *Policy) Evaluate(candidate string, visited, failed URLSet) Verdict {
	if visited.Contains(candidate) || failed.Contains(candidate) {
		return VerdictSeen
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Hostname() == "" {
		return VerdictForeignHost
	}
	if !p.sameSite(u) {
		return VerdictForeignHost
	}

	path := strings.ToLower(u.Path)
	for _, ext := range nonPageExtensions {
		if strings.HasSuffix(path, ext) {
			return VerdictNonPageExtension
		}
	}
	if hasAPISegment(path) && !p.allowed(u.Hostname(), path) {
		return VerdictAPIPath
	}

	for _, re := range p.exclude {
		if re.MatchString(candidate) {
			return VerdictExcluded
		}
	}
	if len(p.include) > 0 && !matchesAny(p.include, candidate) {
		return VerdictNotIncluded
	}

	if strings.Contains(candidate, "#") && visited.Contains(stripFragment(candidate)) {
		return VerdictFragmentOfVisited
	}

	if len(u.RawQuery) > MaxQueryLength || strings.Count(u.RawQuery, "&") > MaxQuerySeparators {
		return VerdictComplexQuery
	}

	if len(candidate) > MaxURLLength {
		return VerdictTooLong
	}

	return VerdictAccept
}

// sameSite accepts the exact start host (port included) or a host sharing
// its last two labels. IP literals and single-label hosts only match exactly.
func (p *Policy) sameSite(u *url.URL) bool {
	if strings.EqualFold(u.Host, p.startHost) {
		return true
	}
	labels := hostLabels(u.Hostname())
	if len(labels) < 2 || len(p.startLabels) < 2 {
		return false
	}
	n, m := len(labels), len(p.startLabels)
	return labels[n-2] == p.startLabels[m-2] && labels[n-1] == p.startLabels[m-1]
}

func (p *Policy) allowed(host, path string) bool {
	for _, key := range []string{strings.ToLower(host), config.AnyHost} {
		for _, prefix := range p.allow[key] {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}
	return false
}

// hostLabels splits a host name into lower-cased dot-separated labels.
// IP addresses yield nil.
func hostLabels(hostname string) []string {
	if hostname == "" || net.ParseIP(hostname) != nil {
		return nil
	}
	return strings.Split(strings.ToLower(strings.TrimSuffix(hostname, ".")), ".")
}

func hasAPISegment(path string) bool {
	for _, seg := range apiPathSegments {
		if strings.Contains(path, seg) {
			return true
		}
	}
	return false
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ShouldVisit is a convenience form of Policy.ShouldVisit for callers that
// evaluate a single candidate. An unusable startURL rejects everything.
func ShouldVisit(candidate, startURL string, visited, failed URLSet, exclude, include []*regexp.Regexp) bool {
	p, err := NewPolicy(startURL, WithExclude(exclude), WithInclude(include))
	if err != nil {
		return false
	}
	return p.ShouldVisit(candidate, visited, failed)
}
