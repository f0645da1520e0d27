package robots

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/temoto/robotstxt"

	"github.com/nao1215/pagecrawler/internal/config"
)

const (
	// DefaultCacheTTL is how long fetched rules are reused for a host.
	DefaultCacheTTL = 30 * time.Minute

	// DefaultErrorCacheTTL is how long a host whose robots.txt could not be
	// fetched is treated as allowing everything before the next attempt.
	DefaultErrorCacheTTL = time.Minute
)

// Agent evaluates robots.txt rules with a per-host cache.
type Agent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	errTTL    time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	fetched time.Time
	ttl     time.Duration
	rules   *robotstxt.RobotsData
}

// Option configures an Agent.
type Option func(*Agent)

// WithUserAgent sets the agent name matched against robots.txt groups.
func WithUserAgent(ua string) Option {
	return func(a *Agent) {
		a.userAgent = ua
	}
}

// WithCacheTTL sets how long rules are cached.
func WithCacheTTL(d time.Duration) Option {
	return func(a *Agent) {
		a.ttl = d
	}
}

// WithErrorCacheTTL sets how long a failed robots.txt fetch is remembered.
func WithErrorCacheTTL(d time.Duration) Option {
	return func(a *Agent) {
		a.errTTL = d
	}
}

// WithClock sets the clock used for cache expiry.
func WithClock(c clock.Clock) Option {
	return func(a *Agent) {
		a.clock = c
	}
}

// WithLogger sets the logger for fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = l
	}
}

// NewAgent returns an Agent fetching robots.txt with client.
// A nil client gets a plain client with a 10 second timeout.
func NewAgent(client *http.Client, opts ...Option) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	a := &Agent{
		client:    client,
		userAgent: config.DefaultUserAgent,
		ttl:       DefaultCacheTTL,
		errTTL:    DefaultErrorCacheTTL,
		clock:     clock.WallClock,
		logger:    slog.Default(),
		cache:     make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allowed reports whether pageURL may be crawled.
func (a *Agent) Allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}

	rules, err := a.rules(ctx, u)
	if err != nil {
		a.logger.Debug("robots.txt unavailable, allowing", "host", u.Host, "error", err)
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.TestAgent(path, robotsAgentName(a.userAgent))
}

// CrawlDelay returns the Crawl-delay the host asks of this agent, or 0.
// Only cached rules are consulted.
func (a *Agent) CrawlDelay(host string) time.Duration {
	a.mu.RLock()
	entry, ok := a.cache[strings.ToLower(host)]
	a.mu.RUnlock()
	if !ok {
		return 0
	}
	group := entry.rules.FindGroup(robotsAgentName(a.userAgent))
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

func (a *Agent) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)
	now := a.clock.Now()

	a.mu.RLock()
	entry, ok := a.cache[host]
	a.mu.RUnlock()
	if ok && now.Sub(entry.fetched) < entry.ttl {
		return entry.rules, nil
	}

	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.store(host, now, a.errTTL, allowAll())
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	// 4xx means allow all and 5xx disallow all.
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		a.store(host, now, a.errTTL, allowAll())
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}

	a.store(host, now, a.ttl, data)
	return data, nil
}

func (a *Agent) store(host string, fetched time.Time, ttl time.Duration, rules *robotstxt.RobotsData) {
	a.mu.Lock()
	a.cache[host] = cacheEntry{fetched: fetched, ttl: ttl, rules: rules}
	a.mu.Unlock()
}

// allowAll returns rules that permit every path, as robots.txt answering
// 404 would.
func allowAll() *robotstxt.RobotsData {
	data, _ := robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	return data
}

// Purge evicts cached rules for host.
func (a *Agent) Purge(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}
	a.mu.Lock()
	delete(a.cache, host)
	a.mu.Unlock()
}

// robotsAgentName reduces a User-Agent header to the product token that
// robots.txt groups are written against, e.g. "pagecrawler/1.0 (...)"
// becomes "pagecrawler".
func robotsAgentName(ua string) string {
	name := strings.TrimSpace(ua)
	if i := strings.IndexAny(name, "/ "); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "*"
	}
	return name
}
