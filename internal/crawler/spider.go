package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"

	"github.com/nao1215/pagecrawler/internal/config"
	"github.com/nao1215/pagecrawler/internal/model"
)

// Analysis is the handle an Analyzer returns for a successfully analyzed page.
type Analysis struct {
	// OutputDir is the directory the analyzer wrote to.
	OutputDir string

	// MarkupPath is the persisted raw markup. When empty the crawler
	// searches OutputDir for it.
	MarkupPath string

	// Title is the page title if the analyzer determined one.
	Title string

	// StatusCode is the HTTP status the page was served with, if known.
	StatusCode int
}

// Analyzer processes one page and persists its artifacts, at minimum the
// raw markup, inside outputDir.
type Analyzer interface {
	Analyze(ctx context.Context, pageURL, outputDir string) (*Analysis, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, pageURL, outputDir string) (*Analysis, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, pageURL, outputDir string) (*Analysis, error) {
	return f(ctx, pageURL, outputDir)
}

// Gate is an optional admission check applied to the start URL and to
// links the Policy accepted, for example robots.txt rules.
type Gate interface {
	Allowed(ctx context.Context, pageURL string) bool
}

// Progress is reported after every processed page.
// TotalWork is min(maxPages, visited + queued) and grows as links are
// discovered, so Ratio may go down between two reports.
type Progress struct {
	SessionID string
	URL       string
	Depth     int
	Failed    bool
	Processed int
	TotalWork int
	Ratio     float64
}

// Spider crawls a website breadth-first, handing every admitted page to an
// Analyzer. A Spider only holds configuration; each Crawl call runs in its
// own Session, so a Spider may be shared by concurrent crawls.
type Spider struct {
	analyzer Analyzer

	// maxDepth limits how deep to crawl from the start URL.
	// 0 means only the start page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the number of analyzer invocations, failures included.
	maxPages int

	// delay is the politeness pause between two analyses.
	delay time.Duration

	// analysisTimeout bounds a single analyzer call. Zero means no bound.
	analysisTimeout time.Duration

	exclude   []string
	include   []string
	allowList map[string][]string

	outputDir string
	gate      Gate
	progress  func(Progress)
	clock     clock.Clock
	logger    *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to analyze.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the delay between analyses.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithAnalysisTimeout bounds each analyzer call.
func WithAnalysisTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.analysisTimeout = d
	}
}

// WithExcludePatterns sets regular expressions rejecting matching URLs.
func WithExcludePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.exclude = patterns
	}
}

// WithIncludePatterns sets regular expressions a URL must match to be crawled.
func WithIncludePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.include = patterns
	}
}

// WithAllowPaths sets the per-host path prefixes exempt from the API/asset
// path rule.
func WithAllowPaths(allow map[string][]string) SpiderOption {
	return func(s *Spider) {
		s.allowList = allow
	}
}

// WithOutputDir sets the base directory page output locations are
// allocated under.
func WithOutputDir(dir string) SpiderOption {
	return func(s *Spider) {
		s.outputDir = dir
	}
}

// WithGate adds an admission check after the filtering policy.
func WithGate(g Gate) SpiderOption {
	return func(s *Spider) {
		s.gate = g
	}
}

// WithProgress registers a callback invoked after every processed page.
func WithProgress(fn func(Progress)) SpiderOption {
	return func(s *Spider) {
		s.progress = fn
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) SpiderOption {
	return func(s *Spider) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = l
	}
}

// NewSpider creates a new Spider that hands pages to analyzer.
func NewSpider(analyzer Analyzer, opts ...SpiderOption) *Spider {
	s := &Spider{
		analyzer:  analyzer,
		maxDepth:  config.DefaultMaxDepth,
		maxPages:  config.DefaultMaxPages,
		delay:     config.DefaultCrawlDelay,
		outputDir: filepath.Join(os.TempDir(), config.AppName),
		clock:     clock.WallClock,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl runs one crawl session from startURL and returns its report.
//
// An error is only returned for configuration problems found before the
// traversal starts (invalid start URL, invalid patterns, invalid budgets).
// Cancelling ctx stops the crawl after the page in flight; the partial
// report is returned with a nil error.
func (s *Spider) Crawl(ctx context.Context, startURL string) (*model.CrawlReport, error) {
	sess, err := s.NewSession(startURL)
	if err != nil {
		return nil, err
	}
	return sess.Run(ctx), nil
}

// NewSession validates the configuration against startURL and returns an
// idle Session.
func (s *Spider) NewSession(startURL string) (*Session, error) {
	if s.analyzer == nil {
		return nil, ErrNoAnalyzer
	}
	if s.maxDepth < 0 {
		return nil, config.ErrInvalidMaxDepth
	}
	if s.maxPages <= 0 {
		return nil, config.ErrInvalidMaxPages
	}
	if s.delay < 0 {
		return nil, config.ErrInvalidCrawlDelay
	}

	start, err := NormalizeStartURL(startURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, startURL)
	}
	exclude, err := config.CompilePatterns(s.exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}
	include, err := config.CompilePatterns(s.include)
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	policy, err := NewPolicy(start, WithExclude(exclude), WithInclude(include), WithAllowList(s.allowList))
	if err != nil {
		return nil, err
	}

	return newSession(s, start, policy), nil
}
