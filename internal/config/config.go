package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pagecrawler"

	// DefaultMaxDepth follows links one hop away from the start URL.
	DefaultMaxDepth = 1

	// DefaultMaxPages bounds the number of URLs handed to the analyzer per crawl.
	DefaultMaxPages = 100

	// DefaultCrawlDelay is the politeness delay between two analyses.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultTimeout applies to a single page analysis.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of start URLs crawled concurrently.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies pagecrawler in HTTP requests.
	DefaultUserAgent = "pagecrawler/1.0 (+https://github.com/nao1215/pagecrawler)"

	// DefaultMaxBodySize limits the response body read by the HTTP analyzer.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultTorStartupTimeout is how long to wait for the embedded Tor
	// daemon to bootstrap when --tor is used.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AnalyzerHTTP fetches pages with a plain HTTP client.
	AnalyzerHTTP = "http"

	// AnalyzerBrowser renders pages in headless Chrome.
	AnalyzerBrowser = "browser"
)

// Config holds all configuration options for a pagecrawler run.
// It is populated from CLI flags and the configuration file and passed
// down explicitly; there is no global configuration.
type Config struct {
	// Targets is the list of start URLs to crawl.
	Targets []string

	// MaxDepth is the maximum link distance from the start URL.
	// Zero means only the start URL is analyzed.
	MaxDepth int

	// MaxPages is the maximum number of URLs analyzed per start URL,
	// counting failures.
	MaxPages int

	// CrawlDelay is the politeness delay between analyses.
	CrawlDelay time.Duration

	// ExcludePatterns are regular expressions; a URL matching any of them
	// is never crawled.
	ExcludePatterns []string

	// IncludePatterns are regular expressions; when non-empty a URL must
	// match at least one of them to be crawled.
	IncludePatterns []string

	// OutputDir is the base directory for page artifacts and reports.
	// Defaults to the XDG data directory.
	OutputDir string

	// Analyzer selects the page analyzer: AnalyzerHTTP or AnalyzerBrowser.
	Analyzer string

	// BrowserPath optionally points to the Chrome executable used by the
	// browser analyzer. Empty means auto-detect.
	BrowserPath string

	// Timeout bounds a single page analysis.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes the HTTP
	// analyzer reads.
	MaxBodySize int64

	// RespectRobots enables the robots.txt admission gate.
	RespectRobots bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap.
	TorStartupTimeout time.Duration

	// BatchSize is the number of start URLs crawled concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .pagecrawler is searched in the current and home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the configuration file.
	SiteConfigs *File

	// JSONReport prints the crawl report as JSON.
	JSONReport bool

	// MarkdownReport prints the crawl report as Markdown.
	MarkdownReport bool

	// ReportFile writes the printed report to a file instead of stdout.
	ReportFile string

	// DBDir is the directory of the crawl history database.
	DBDir string

	// SaveToDB stores every crawl report in the history database.
	SaveToDB bool

	// SkipRecent skips start URLs the history database shows were crawled
	// successfully within this duration. Zero disables the check.
	SkipRecent time.Duration
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:          DefaultMaxDepth,
		MaxPages:          DefaultMaxPages,
		CrawlDelay:        DefaultCrawlDelay,
		OutputDir:         filepath.Join(XDGDataDir(), "crawls"),
		Analyzer:          AnalyzerHTTP,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		BatchSize:         DefaultBatchSize,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for pagecrawler.
// On Linux: ~/.local/share/pagecrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pagecrawler.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// violated rule as a sentinel error.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.SkipRecent < 0 {
		return ErrInvalidSkipRecent
	}
	if !slices.Contains([]string{AnalyzerHTTP, AnalyzerBrowser}, c.Analyzer) {
		return ErrUnknownAnalyzer
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if _, err := CompilePatterns(c.ExcludePatterns); err != nil {
		return err
	}
	if _, err := CompilePatterns(c.IncludePatterns); err != nil {
		return err
	}
	return nil
}
