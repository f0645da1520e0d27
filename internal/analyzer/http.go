package analyzer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/juju/clock"

	"github.com/nao1215/pagecrawler/internal/config"
	"github.com/nao1215/pagecrawler/internal/crawler"
	"github.com/nao1215/pagecrawler/internal/model"
)

// NameHTTP identifies the HTTPAnalyzer in page_info.json.
const NameHTTP = "http"

// HTTPAnalyzer fetches pages with a plain HTTP GET and persists the served
// markup. It does not execute scripts; use BrowserAnalyzer for that.
//
// The http.Client is injected so that proxy, cookie and header settings
// stay in the transport package and tests can point it at httptest servers.
type HTTPAnalyzer struct {
	client *http.Client

	// maxBodySize limits how much of a response is read. Longer bodies are
	// truncated, not rejected.
	maxBodySize int64

	clock clock.Clock
	text  *textExtractor
}

// HTTPOption configures an HTTPAnalyzer.
type HTTPOption func(*HTTPAnalyzer)

// WithMaxBodySize sets the maximum number of body bytes read per page.
func WithMaxBodySize(size int64) HTTPOption {
	return func(a *HTTPAnalyzer) {
		a.maxBodySize = size
	}
}

// WithClock sets the clock used for fetched_at timestamps.
func WithClock(c clock.Clock) HTTPOption {
	return func(a *HTTPAnalyzer) {
		a.clock = c
	}
}

// NewHTTPAnalyzer returns an analyzer that fetches pages with client.
func NewHTTPAnalyzer(client *http.Client, opts ...HTTPOption) *HTTPAnalyzer {
	a := &HTTPAnalyzer{
		client:      client,
		maxBodySize: config.DefaultMaxBodySize,
		clock:       clock.WallClock,
		text:        newTextExtractor(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze implements crawler.Analyzer.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, pageURL, outputDir string) (*crawler.Analysis, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if !isHTML(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	info := &model.PageInfo{
		URL:         pageURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Analyzer:    NameHTTP,
		FetchedAt:   a.clock.Now().UTC(),
	}
	return persist(outputDir, body, info, a.text)
}

// isHTML reports whether a Content-Type header names an HTML document.
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	switch strings.ToLower(mediaType) {
	case "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}
