package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/juju/clock"

	"github.com/nao1215/pagecrawler/internal/config"
	"github.com/nao1215/pagecrawler/internal/crawler"
	"github.com/nao1215/pagecrawler/internal/model"
)

// NameBrowser identifies the BrowserAnalyzer in page_info.json.
const NameBrowser = "browser"

// navigationStatus reads the HTTP status of the top-level document.
// responseStatus is missing in old Chrome builds, which yields 0.
const navigationStatus = `(performance.getEntriesByType("navigation")[0] || {}).responseStatus || 0`

// BrowserAnalyzer renders pages in headless Chrome and persists the DOM as
// it looks after scripts ran, plus a full page screenshot.
//
// One Chrome process is started by NewBrowserAnalyzer and shared by every
// analysis; each page gets its own tab. Close must be called to stop Chrome.
type BrowserAnalyzer struct {
	browserPath string
	proxy       string
	userAgent   string
	timeout     time.Duration
	renderDelay time.Duration

	clock clock.Clock
	text  *textExtractor

	mu            sync.Mutex
	closed        bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context //nolint:containedctx // owns the Chrome process
	browserCancel context.CancelFunc
}

// BrowserOption configures a BrowserAnalyzer.
type BrowserOption func(*BrowserAnalyzer)

// WithBrowserPath sets the Chrome executable. By default chromedp looks it
// up in the usual install locations.
func WithBrowserPath(path string) BrowserOption {
	return func(a *BrowserAnalyzer) {
		a.browserPath = path
	}
}

// WithBrowserProxy routes Chrome through a SOCKS5 proxy given as
// "host:port".
func WithBrowserProxy(address string) BrowserOption {
	return func(a *BrowserAnalyzer) {
		a.proxy = address
	}
}

// WithBrowserUserAgent overrides Chrome's User-Agent.
func WithBrowserUserAgent(ua string) BrowserOption {
	return func(a *BrowserAnalyzer) {
		a.userAgent = ua
	}
}

// WithBrowserTimeout bounds a single page render.
func WithBrowserTimeout(d time.Duration) BrowserOption {
	return func(a *BrowserAnalyzer) {
		a.timeout = d
	}
}

// WithRenderDelay sets how long to wait after the body is ready before the
// DOM is captured, giving scripts time to run.
func WithRenderDelay(d time.Duration) BrowserOption {
	return func(a *BrowserAnalyzer) {
		a.renderDelay = d
	}
}

// WithBrowserClock sets the clock used for fetched_at timestamps.
func WithBrowserClock(c clock.Clock) BrowserOption {
	return func(a *BrowserAnalyzer) {
		a.clock = c
	}
}

// NewBrowserAnalyzer starts headless Chrome. ctx bounds the startup only.
func NewBrowserAnalyzer(ctx context.Context, opts ...BrowserOption) (*BrowserAnalyzer, error) {
	a := &BrowserAnalyzer{
		userAgent:   config.DefaultUserAgent,
		timeout:     config.DefaultTimeout,
		renderDelay: 250 * time.Millisecond,
		clock:       clock.WallClock,
		text:        newTextExtractor(),
	}
	for _, opt := range opts {
		opt(a)
	}

	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	}
	if ua := strings.TrimSpace(a.userAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}
	if a.browserPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(a.browserPath))
	}
	if a.proxy != "" {
		execOpts = append(execOpts, chromedp.ProxyServer("socks5://"+a.proxy))
	}

	// The browser outlives ctx, so it hangs off a background context.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	started := make(chan error, 1)
	go func() {
		// Running no actions launches the browser and its first tab.
		started <- chromedp.Run(browserCtx)
	}()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", ctx.Err())
	}

	a.allocCancel = allocCancel
	a.browserCtx = browserCtx
	a.browserCancel = browserCancel
	return a, nil
}

// Analyze implements crawler.Analyzer.
func (a *BrowserAnalyzer) Analyze(ctx context.Context, pageURL, outputDir string) (*crawler.Analysis, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrBrowserClosed
	}
	tabCtx, tabCancel := chromedp.NewContext(a.browserCtx)
	a.mu.Unlock()
	defer tabCancel()

	tabCtx, cancel := context.WithTimeout(tabCtx, a.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		markup     string
		finalURL   string
		status     int
		screenshot []byte
	)
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(a.renderDelay),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(navigationStatus, &status),
		chromedp.FullScreenshot(&screenshot, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", pageURL, err)
	}
	if status != 0 && (status < 200 || status > 299) {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}

	info := &model.PageInfo{
		URL:         pageURL,
		FinalURL:    finalURL,
		StatusCode:  status,
		ContentType: "text/html",
		Analyzer:    NameBrowser,
		FetchedAt:   a.clock.Now().UTC(),
	}
	analysis, err := persist(outputDir, []byte(markup), info, a.text)
	if err != nil {
		return nil, err
	}
	if len(screenshot) > 0 {
		if err := os.WriteFile(filepath.Join(outputDir, ScreenshotFileName), screenshot, filePerm); err != nil {
			return nil, fmt.Errorf("failed to write screenshot: %w", err)
		}
	}
	return analysis, nil
}

// Close stops Chrome. It is safe to call more than once.
func (a *BrowserAnalyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	err := chromedp.Cancel(a.browserCtx)
	a.browserCancel()
	a.allocCancel()
	if err != nil {
		return fmt.Errorf("failed to stop browser: %w", err)
	}
	return nil
}
