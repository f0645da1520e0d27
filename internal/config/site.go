package config

import (
	"maps"
	"net/url"
	"strings"
)

// AnyHost is the allow-list key whose path prefixes apply to every host.
const AnyHost = "*"

// SiteConfig holds site-specific configuration for a single host.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers included in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global maximum depth for this site when set.
	// An explicit 0 crawls only the start page.
	Depth *int `yaml:"depth,omitempty"`

	// MaxPages overrides the global page budget for this site.
	MaxPages int `yaml:"maxPages,omitempty"`

	// ExcludePatterns are appended to the global exclude regular expressions.
	ExcludePatterns []string `yaml:"excludePatterns,omitempty"`

	// IncludePatterns replace the global include regular expressions.
	IncludePatterns []string `yaml:"includePatterns,omitempty"`

	// AllowPaths lists path prefixes on this host that stay crawlable even
	// though they contain an API or asset segment such as /api/ or /static/.
	AllowPaths []string `yaml:"allowPaths,omitempty"`
}

// File represents the structure of the .pagecrawler configuration file.
type File struct {
	// Sites maps host names (e.g. "www.example.com") to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults is applied to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host merged over the defaults.
// The returned value never shares maps or slices with the File.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults.clone()

	siteConfig, ok := cf.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != nil {
		depth := *siteConfig.Depth
		result.Depth = &depth
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	result.ExcludePatterns = append(result.ExcludePatterns, siteConfig.ExcludePatterns...)
	if len(siteConfig.IncludePatterns) > 0 {
		result.IncludePatterns = append([]string(nil), siteConfig.IncludePatterns...)
	}
	result.AllowPaths = append(result.AllowPaths, siteConfig.AllowPaths...)
	return result
}

// GetSiteConfigForURL is GetSiteConfig keyed by the host of rawURL.
// An unparseable URL yields the defaults.
func (cf *File) GetSiteConfigForURL(rawURL string) SiteConfig {
	u, err := url.Parse(rawURL)
	if err != nil {
		return cf.Defaults.clone()
	}
	return cf.GetSiteConfig(u.Hostname())
}

// AllowList returns the per-host allow-list declared across all sites,
// keyed by lower-cased host name. Default paths are listed under AnyHost.
func (cf *File) AllowList() map[string][]string {
	allow := make(map[string][]string)
	if len(cf.Defaults.AllowPaths) > 0 {
		allow[AnyHost] = append([]string(nil), cf.Defaults.AllowPaths...)
	}
	for host, sc := range cf.Sites {
		if len(sc.AllowPaths) == 0 {
			continue
		}
		h := strings.ToLower(host)
		allow[h] = append(allow[h], sc.AllowPaths...)
	}
	return allow
}

func (sc SiteConfig) clone() SiteConfig {
	out := sc
	if sc.Depth != nil {
		depth := *sc.Depth
		out.Depth = &depth
	}
	if sc.Headers != nil {
		out.Headers = maps.Clone(sc.Headers)
	}
	out.ExcludePatterns = append([]string(nil), sc.ExcludePatterns...)
	out.IncludePatterns = append([]string(nil), sc.IncludePatterns...)
	out.AllowPaths = append([]string(nil), sc.AllowPaths...)
	return out
}
