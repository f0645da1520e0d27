package model

import "time"

// MaxFailedSample caps the number of failed URLs listed in a report.
const MaxFailedSample = 100

// CrawlReport is the summary of one crawl session.
// It is created once when the session terminates and never mutated.
type CrawlReport struct {
	// SessionID uniquely identifies the crawl session.
	SessionID string `json:"session_id"`

	// StartURL is the seed of the crawl.
	StartURL string `json:"start_url"`

	// MaxDepth and MaxPages are the budgets the session ran with.
	MaxDepth int `json:"max_depth"`
	MaxPages int `json:"max_pages"`

	// PagesCrawled is the number of URLs handed to the analyzer,
	// including the ones that failed.
	PagesCrawled int `json:"pages_crawled"`

	// VisitedCount and FailedCount are the sizes of the visited and
	// failed sets at termination.
	VisitedCount int `json:"visited_urls"`
	FailedCount  int `json:"failed_urls"`

	// StartedAt and FinishedAt bound the session.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// DurationSeconds is FinishedAt - StartedAt in seconds.
	DurationSeconds float64 `json:"duration_seconds"`

	// PagesPerSecond is PagesCrawled / DurationSeconds, or 0 when the
	// duration is zero.
	PagesPerSecond float64 `json:"pages_per_second"`

	// Termination records why the session stopped.
	Termination Termination `json:"termination"`

	// OutputRoot is the base directory page artifacts were written under.
	OutputRoot string `json:"output_root,omitempty"`

	// Pages lists every processed URL in processing order.
	Pages []PageResult `json:"pages"`

	// Failed is a sorted sample of at most MaxFailedSample failed URLs.
	Failed []string `json:"failed"`
}

// Throughput returns pages processed per second for the given duration.
// A zero or negative duration yields 0.
func Throughput(pages int, duration time.Duration) float64 {
	secs := duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(pages) / secs
}

// SucceededCount returns the number of pages that did not fail.
func (r *CrawlReport) SucceededCount() int {
	n := 0
	for _, p := range r.Pages {
		if !p.Failed {
			n++
		}
	}
	return n
}

// Duration returns the session duration.
func (r *CrawlReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PagesAtDepth groups processed page counts by depth.
func (r *CrawlReport) PagesAtDepth() map[int]int {
	depths := make(map[int]int)
	for _, p := range r.Pages {
		depths[p.Depth]++
	}
	return depths
}
