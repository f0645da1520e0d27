package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/pagecrawler/internal/config"
	"github.com/nao1215/pagecrawler/internal/crawler"
	"github.com/nao1215/pagecrawler/internal/model"
	"github.com/nao1215/pagecrawler/internal/report"
	"github.com/nao1215/pagecrawler/internal/robots"
)

// ErrNoReport is returned by steps that need a crawl report when the job
// has none.
var ErrNoReport = errors.New("job has no crawl report")

// AnalyzerFactory returns the analyzer for a site. It is called once per
// job so that site cookies and headers can be applied.
type AnalyzerFactory func(site config.SiteConfig) (crawler.Analyzer, error)

// ReportStore persists crawl reports.
type ReportStore interface {
	SaveCrawlReport(ctx context.Context, report *model.CrawlReport) error
}

// RecentCrawlChecker answers whether a URL was crawled recently.
type RecentCrawlChecker interface {
	HasRecentCrawl(ctx context.Context, url string, d time.Duration) (bool, error)
}

// CrawlStep runs a crawler session for the job's start URL.
type CrawlStep struct {
	newAnalyzer AnalyzerFactory

	maxDepth  int
	maxPages  int
	delay     time.Duration
	timeout   time.Duration
	exclude   []string
	include   []string
	outputDir string
	allowList map[string][]string

	robots     *robots.Agent
	recent     RecentCrawlChecker
	skipRecent time.Duration

	spiderOpts []crawler.SpiderOption
	logger     *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlMaxDepth sets the depth limit used when the site sets none.
func WithCrawlMaxDepth(depth int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxDepth = depth
	}
}

// WithCrawlMaxPages sets the page budget used when the site sets none.
func WithCrawlMaxPages(maxPages int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxPages = maxPages
	}
}

// WithCrawlDelay sets the politeness delay.
func WithCrawlDelay(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.delay = d
	}
}

// WithCrawlTimeout bounds each page analysis.
func WithCrawlTimeout(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.timeout = d
	}
}

// WithCrawlExcludePatterns sets exclude expressions; site patterns are
// appended to them.
func WithCrawlExcludePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.exclude = patterns
	}
}

// WithCrawlIncludePatterns sets include expressions; site patterns
// replace them.
func WithCrawlIncludePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.include = patterns
	}
}

// WithCrawlOutputDir sets the base directory for page output.
func WithCrawlOutputDir(dir string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.outputDir = dir
	}
}

// WithCrawlAllowList sets the per-host allow-list shared by every job,
// typically config.File.AllowList. The job's own AllowPaths are added for
// its start host.
func WithCrawlAllowList(allow map[string][]string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.allowList = allow
	}
}

// WithRobots makes the crawl honor robots.txt, including Crawl-delay when
// it is longer than the configured delay. A start URL robots.txt disallows
// skips the job.
func WithRobots(agent *robots.Agent) CrawlStepOption {
	return func(s *CrawlStep) {
		s.robots = agent
	}
}

// WithSkipRecent skips start URLs that were crawled successfully within d.
func WithSkipRecent(checker RecentCrawlChecker, d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.recent = checker
		s.skipRecent = d
	}
}

// WithSpiderOptions passes extra options to every spider, for example a
// progress callback.
func WithSpiderOptions(opts ...crawler.SpiderOption) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, opts...)
	}
}

// WithCrawlLogger sets the logger.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep returns a crawl step building analyzers with newAnalyzer.
func NewCrawlStep(newAnalyzer AnalyzerFactory, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		newAnalyzer: newAnalyzer,
		maxDepth:    config.DefaultMaxDepth,
		maxPages:    config.DefaultMaxPages,
		delay:       config.DefaultCrawlDelay,
		timeout:     config.DefaultTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Step.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do implements Step.
func (s *CrawlStep) Do(ctx context.Context, job *Job) error {
	if s.recent != nil && s.skipRecent > 0 {
		recent, err := s.recent.HasRecentCrawl(ctx, job.StartURL, s.skipRecent)
		if err != nil {
			s.logger.Warn("failed to check crawl history", "start_url", job.StartURL, "error", err)
		} else if recent {
			s.logger.Info("skipping recently crawled site", "start_url", job.StartURL, "within", s.skipRecent)
			job.Skipped = true
			job.SkipReason = fmt.Sprintf("crawled within the last %s", s.skipRecent)
			return nil
		}
	}

	if s.robots != nil && !s.robots.Allowed(ctx, job.StartURL) {
		s.logger.Warn("start URL disallowed by robots.txt", "start_url", job.StartURL)
		job.Skipped = true
		job.SkipReason = "disallowed by robots.txt"
		return nil
	}

	analyzer, err := s.newAnalyzer(job.Site)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	spider := crawler.NewSpider(analyzer, s.spiderOptions(job)...)
	crawlReport, err := spider.Crawl(ctx, job.StartURL)
	if err != nil {
		return fmt.Errorf("failed to crawl %s: %w", job.StartURL, err)
	}
	job.Report = crawlReport

	s.logger.Info("crawl completed",
		"start_url", job.StartURL,
		"pages", crawlReport.PagesCrawled,
		"failed", crawlReport.FailedCount,
		"termination", crawlReport.Termination.String(),
	)
	return nil
}

// spiderOptions merges the step settings with the job's site settings.
func (s *CrawlStep) spiderOptions(job *Job) []crawler.SpiderOption {
	site := job.Site

	depth := s.maxDepth
	if site.Depth != nil && *site.Depth >= 0 {
		depth = *site.Depth
	}
	maxPages := s.maxPages
	if site.MaxPages > 0 {
		maxPages = site.MaxPages
	}
	exclude := append(append([]string(nil), s.exclude...), site.ExcludePatterns...)
	include := s.include
	if len(site.IncludePatterns) > 0 {
		include = site.IncludePatterns
	}

	delay := s.delay
	opts := []crawler.SpiderOption{
		crawler.WithMaxDepth(depth),
		crawler.WithMaxPages(maxPages),
		crawler.WithAnalysisTimeout(s.timeout),
		crawler.WithExcludePatterns(exclude),
		crawler.WithIncludePatterns(include),
		crawler.WithLogger(s.logger),
	}
	if s.outputDir != "" {
		opts = append(opts, crawler.WithOutputDir(s.outputDir))
	}

	if u, err := url.Parse(job.StartURL); err == nil {
		if allow := s.mergedAllowList(u.Hostname(), site.AllowPaths); len(allow) > 0 {
			opts = append(opts, crawler.WithAllowPaths(allow))
		}
		if s.robots != nil {
			// Do has already fetched the start host's rules.
			if robotsDelay := s.robots.CrawlDelay(u.Host); robotsDelay > delay {
				s.logger.Info("using robots.txt crawl delay", "start_url", job.StartURL, "delay", robotsDelay)
				delay = robotsDelay
			}
			opts = append(opts, crawler.WithGate(s.robots))
		}
	}
	opts = append(opts, crawler.WithDelay(delay))

	return append(opts, s.spiderOpts...)
}

// mergedAllowList copies the shared allow-list and adds the start host's
// paths to it.
func (s *CrawlStep) mergedAllowList(startHost string, startPaths []string) map[string][]string {
	allow := make(map[string][]string, len(s.allowList)+1)
	for host, paths := range s.allowList {
		h := strings.ToLower(host)
		allow[h] = append(allow[h], paths...)
	}
	if len(startPaths) > 0 {
		h := strings.ToLower(startHost)
		allow[h] = append(allow[h], startPaths...)
	}
	return allow
}

// ReportStep writes the report files for the job's crawl.
type ReportStep struct {
	version string
	logger  *slog.Logger
}

// NewReportStep returns a report step stamping files with version.
func NewReportStep(version string, logger *slog.Logger) *ReportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportStep{version: version, logger: logger}
}

// Name implements Step.
func (s *ReportStep) Name() string {
	return "report"
}

// Do implements Step.
func (s *ReportStep) Do(_ context.Context, job *Job) error {
	if job.Report == nil {
		return ErrNoReport
	}

	dir := ReportDir(job.Report)
	paths, err := report.WriteFiles(dir, job.Report, s.version)
	job.Artifacts = append(job.Artifacts, paths...)
	if err != nil {
		return err
	}
	job.ReportDir = dir
	s.logger.Debug("report written", "dir", dir, "files", len(paths))
	return nil
}

// ReportDir returns the directory a crawl's report files go to:
// <output root>/reports/<start time>_<host>_<session prefix>.
func ReportDir(r *model.CrawlReport) string {
	host := "site"
	if u, err := url.Parse(r.StartURL); err == nil && u.Host != "" {
		host = strings.ReplaceAll(strings.ToLower(u.Host), ":", "_")
	}
	id := r.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s_%s_%s", r.StartedAt.UTC().Format("20060102_150405"), host, id)
	return filepath.Join(r.OutputRoot, "reports", name)
}

// PersistStep saves the report to a ReportStore.
type PersistStep struct {
	store ReportStore
}

// NewPersistStep returns a step saving to store.
func NewPersistStep(store ReportStore) *PersistStep {
	return &PersistStep{store: store}
}

// Name implements Step.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do implements Step.
func (s *PersistStep) Do(ctx context.Context, job *Job) error {
	if job.Report == nil {
		return ErrNoReport
	}
	if err := s.store.SaveCrawlReport(ctx, job.Report); err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}
	return nil
}
