package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/nao1215/pagecrawler/internal/analyzer"
	"github.com/nao1215/pagecrawler/internal/config"
	"github.com/nao1215/pagecrawler/internal/crawler"
	"github.com/nao1215/pagecrawler/internal/database"
	"github.com/nao1215/pagecrawler/internal/log"
	"github.com/nao1215/pagecrawler/internal/model"
	"github.com/nao1215/pagecrawler/internal/pipeline"
	"github.com/nao1215/pagecrawler/internal/report"
	"github.com/nao1215/pagecrawler/internal/robots"
	"github.com/nao1215/pagecrawler/internal/transport"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [start-url...]",
		Short: "Crawl one or more websites",
		Long: `Crawl visits every start URL breadth-first and follows same-site links.

Each analyzed page is written to its own directory under the output
directory. When a crawl ends, JSON, HTML and Markdown reports are written
to <output-dir>/reports/ and the result is stored in the history database.

A crawl ends when no admissible links are left, when the page budget is
used up, or on Ctrl-C. An interrupted crawl still writes its reports.

Examples:
  # Crawl a site two links deep
  pagecrawler crawl -d 2 https://example.com/

  # Crawl several sites, two at a time
  pagecrawler crawl -b 2 example.com example.org

  # Render pages in headless Chrome and obey robots.txt
  pagecrawler crawl --analyzer browser --respect-robots https://example.com/

  # Skip documentation and crawl only the blog
  pagecrawler crawl --exclude '/docs/' --include '/blog/' https://example.com/

  # Do not re-crawl sites crawled in the last day
  pagecrawler crawl --skip-recent 24h example.com

  # Print the report as JSON
  pagecrawler crawl --json https://example.com/

Configuration file (.pagecrawler) example:
  defaults:
    excludePatterns: ["/logout"]
  sites:
    www.example.com:
      cookie: "session=abc123"
      depth: 3
      allowPaths: ["/api/docs"]`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from the start URL (0 = start page only)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages analyzed per site, failures included")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Politeness delay between two page analyses")
	cmd.Flags().StringSlice("exclude", nil,
		"Regular expression of URLs never to crawl (repeatable)")
	cmd.Flags().StringSlice("include", nil,
		"Regular expression URLs must match to be crawled (repeatable)")
	cmd.Flags().Bool("respect-robots", false,
		"Skip URLs disallowed by robots.txt and honor its Crawl-delay")
	cmd.Flags().Duration("skip-recent", 0,
		"Skip sites crawled successfully within this duration (e.g. 24h)")

	// Analyzer flags
	cmd.Flags().String("analyzer", config.AnalyzerHTTP,
		"Page analyzer: http or browser (headless Chrome)")
	cmd.Flags().String("browser-path", "",
		"Chrome executable for the browser analyzer (default: auto-detect)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for a single page analysis")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes read by the http analyzer")

	// Network flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pagecrawler in current or home directory)")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", "",
		"Directory for page artifacts and reports (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Print JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "r", "",
		"Write the printed report to a file instead of stdout")
	cmd.Flags().Bool("no-db", false,
		"Do not store crawl results in the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.ExcludePatterns, err = flags.GetStringSlice("exclude"); err != nil {
		return nil, err
	}
	if cfg.IncludePatterns, err = flags.GetStringSlice("include"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("respect-robots"); err != nil {
		return nil, err
	}
	if cfg.SkipRecent, err = flags.GetDuration("skip-recent"); err != nil {
		return nil, err
	}
	if cfg.Analyzer, err = flags.GetString("analyzer"); err != nil {
		return nil, err
	}
	if cfg.BrowserPath, err = flags.GetString("browser-path"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	outputDir, err := flags.GetString("output-dir")
	if err != nil {
		return nil, err
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	// An explicitly named config file must exist; the default lookup may
	// find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = make([]string, 0, len(args))
	for _, arg := range args {
		target, err := normalizeTarget(arg)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, target)
	}

	return cfg, nil
}

// normalizeTarget turns a command line argument into a start URL,
// assuming https when no scheme is given.
func normalizeTarget(arg string) (string, error) {
	raw := strings.TrimSpace(arg)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	target, err := crawler.NormalizeStartURL(raw)
	if err != nil {
		return "", fmt.Errorf("invalid start URL %q: %w", arg, err)
	}
	return target, nil
}

// runCrawl crawls every target and prints one report per crawl.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}
	stderr = &lockedWriter{w: stderr}

	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"analyzer", cfg.Analyzer,
		"batch_size", cfg.BatchSize,
		"save_to_db", cfg.SaveToDB,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB || cfg.SkipRecent > 0 {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	client, proxyAddr, stopTor, err := newTransport(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer stopTor()

	newAnalyzer, closeAnalyzer, err := newAnalyzerFactory(ctx, cfg, client, proxyAddr)
	if err != nil {
		return err
	}
	defer closeAnalyzer()

	var robotsAgent *robots.Agent
	if cfg.RespectRobots {
		robotsAgent = robots.NewAgent(client.HTTPClient(),
			robots.WithUserAgent(cfg.UserAgent),
			robots.WithLogger(logger),
		)
	}

	newPipeline := func() *pipeline.Pipeline {
		return createPipeline(cfg, newAnalyzer, robotsAgent, db, logger, stderr)
	}
	newJob := func(startURL string) *pipeline.Job {
		return pipeline.NewJob(startURL, siteConfigFor(cfg, startURL))
	}

	bp := pipeline.NewBatchProcessor(newPipeline, newJob,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	jobs, batchErr := bp.ProcessBatch(ctx, cfg.Targets)

	if err := outputJobs(cfg, jobs, stdout, stderr); err != nil {
		return err
	}

	var result *multierror.Error
	if batchErr != nil {
		result = multierror.Append(result, batchErr)
	}
	for _, job := range jobs {
		if job != nil && job.Report == nil && job.Failed() {
			result = multierror.Append(result, fmt.Errorf("%s: %w", job.StartURL, job.Err()))
		}
	}
	return result.ErrorOrNil()
}

// siteConfigFor returns the configuration file settings for startURL's host.
func siteConfigFor(cfg *config.Config, startURL string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	return cfg.SiteConfigs.GetSiteConfigForURL(startURL)
}

// newTransport builds the HTTP transport, starting an embedded Tor daemon
// when requested. It also returns the SOCKS5 address in use, if any, and a
// function releasing the daemon.
func newTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*transport.Client, string, func(), error) {
	clientOpts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
	}

	if !cfg.UseTor {
		if cfg.ProxyAddress != "" {
			clientOpts = append(clientOpts, transport.WithProxy(cfg.ProxyAddress))
		}
		client, err := transport.NewClient(clientOpts...)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		if err := client.CheckProxy(ctx).Err(); err != nil {
			return nil, "", nil, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, err)
		}
		return client, cfg.ProxyAddress, func() {}, nil
	}

	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps.\n\n")

	daemon := transport.NewTorDaemon(transport.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := daemon.Start(ctx); err != nil {
		return nil, "", nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := daemon.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := daemon.NewClient(clientOpts...)
	if err != nil {
		stop()
		return nil, "", nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if err := client.CheckProxy(ctx).Err(); err != nil {
		stop()
		return nil, "", nil, fmt.Errorf("embedded Tor proxy check failed: %w", err)
	}

	logger.Info("embedded Tor daemon started", "socks_addr", daemon.SocksAddr())
	fmt.Fprintf(stderr, "SOCKS proxy: %s\n\n", daemon.SocksAddr())
	return client, daemon.SocksAddr(), stop, nil
}

// newAnalyzerFactory returns the analyzer factory for cfg.Analyzer and a
// function releasing shared analyzer resources.
func newAnalyzerFactory(ctx context.Context, cfg *config.Config, client *transport.Client, proxyAddr string) (pipeline.AnalyzerFactory, func(), error) {
	if cfg.Analyzer != config.AnalyzerBrowser {
		factory := func(site config.SiteConfig) (crawler.Analyzer, error) {
			return analyzer.NewHTTPAnalyzer(
				client.HTTPClientWithConfig(site.Cookie, site.Headers),
				analyzer.WithMaxBodySize(cfg.MaxBodySize),
			), nil
		}
		return factory, func() {}, nil
	}

	browser, err := analyzer.NewBrowserAnalyzer(ctx,
		analyzer.WithBrowserPath(cfg.BrowserPath),
		analyzer.WithBrowserProxy(proxyAddr),
		analyzer.WithBrowserUserAgent(cfg.UserAgent),
		analyzer.WithBrowserTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, nil, err
	}
	factory := func(site config.SiteConfig) (crawler.Analyzer, error) {
		if site.Cookie != "" || len(site.Headers) > 0 {
			slog.Warn("the browser analyzer ignores site cookies and headers")
		}
		return browser, nil
	}
	closeBrowser := func() {
		if err := browser.Close(); err != nil {
			slog.Warn("failed to close browser", "error", err)
		}
	}
	return factory, closeBrowser, nil
}

// createPipeline builds the per-site pipeline: crawl, write report files,
// then store the result when a database is open.
func createPipeline(cfg *config.Config, newAnalyzer pipeline.AnalyzerFactory, robotsAgent *robots.Agent, db *database.CrawlDB, logger *slog.Logger, progress io.Writer) *pipeline.Pipeline {
	crawlOpts := []pipeline.CrawlStepOption{
		pipeline.WithCrawlMaxDepth(cfg.MaxDepth),
		pipeline.WithCrawlMaxPages(cfg.MaxPages),
		pipeline.WithCrawlDelay(cfg.CrawlDelay),
		pipeline.WithCrawlTimeout(cfg.Timeout),
		pipeline.WithCrawlExcludePatterns(cfg.ExcludePatterns),
		pipeline.WithCrawlIncludePatterns(cfg.IncludePatterns),
		pipeline.WithCrawlOutputDir(cfg.OutputDir),
		pipeline.WithCrawlLogger(logger),
		pipeline.WithSpiderOptions(crawler.WithProgress(progressPrinter(progress))),
	}
	if robotsAgent != nil {
		crawlOpts = append(crawlOpts, pipeline.WithRobots(robotsAgent))
	}
	if cfg.SiteConfigs != nil {
		crawlOpts = append(crawlOpts, pipeline.WithCrawlAllowList(cfg.SiteConfigs.AllowList()))
	}
	if db != nil && cfg.SkipRecent > 0 {
		crawlOpts = append(crawlOpts, pipeline.WithSkipRecent(db, cfg.SkipRecent))
	}

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewCrawlStep(newAnalyzer, crawlOpts...),
		pipeline.NewReportStep(getVersion(), logger),
	)
	if db != nil && cfg.SaveToDB {
		p.AddStep(pipeline.NewPersistStep(db))
	}
	return p
}

// progressPrinter prints one line per analyzed page.
func progressPrinter(w io.Writer) func(crawler.Progress) {
	return func(p crawler.Progress) {
		status := ""
		if p.Failed {
			status = " (failed)"
		}
		fmt.Fprintf(w, "[%d/%d] %s%s\n", p.Processed, p.TotalWork, p.URL, status)
	}
}

// outputJobs prints the report of every finished job in input order.
func outputJobs(cfg *config.Config, jobs []*pipeline.Job, stdout, stderr io.Writer) (err error) {
	output := stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		output = f
	}

	for _, job := range jobs {
		switch {
		case job == nil:
			continue
		case job.Skipped:
			fmt.Fprintf(stderr, "Skipped %s: %s\n", job.StartURL, job.SkipReason)
			continue
		case job.Report == nil:
			fmt.Fprintf(stderr, "Crawl failed for %s: %v\n", job.StartURL, job.Err())
			continue
		}

		for _, jobErr := range job.Errors {
			fmt.Fprintf(stderr, "Warning for %s: %v\n", job.StartURL, jobErr)
		}
		if err := outputReport(cfg, job.Report, output); err != nil {
			return fmt.Errorf("failed to print report for %s: %w", job.StartURL, err)
		}
		if job.ReportDir != "" {
			fmt.Fprintf(stderr, "Reports written to %s\n", job.ReportDir)
		}
	}
	return nil
}

// outputReport writes one crawl report in the requested format.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport, output io.Writer) error {
	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	_, err := w.Write(crawlReport)
	return err
}

// lockedWriter serializes writes from concurrent crawls.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
