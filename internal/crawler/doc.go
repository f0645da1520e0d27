// Package crawler implements bounded breadth-first crawling of a website.
//
// # Architecture
//
// The Spider type holds the crawl configuration and starts one Session per
// call to Crawl. A Session owns every piece of mutable crawl state (the
// Frontier with its visited and failed sets and depth index, the processed
// page results and the output allocator), so independent sessions can run
// concurrently without sharing anything.
//
// # Components
//
//   - Policy: decides whether a discovered URL is worth visiting
//   - Extract / ExtractLinks: DOM walk over persisted markup
//   - Allocator: derives a unique output directory per processed page
//   - Frontier: FIFO queue of (url, depth) entries with dedup bookkeeping
//   - Spider / Session: the traversal loop and budget accounting
//
// Page content itself is produced by an Analyzer, a one-method interface
// implemented by package analyzer (HTTP and headless browser) and by fakes
// in tests.
//
// # Usage
//
//	spider := crawler.NewSpider(analyzer,
//		crawler.WithMaxDepth(2),
//		crawler.WithOutputDir(dir),
//	)
//	report, err := spider.Crawl(ctx, "https://www.example.com/")
//
// Crawl only returns an error for configuration problems detected before the
// loop starts. Analyzer failures, unreadable markup, an exhausted budget and
// context cancellation all end in a regular report.
package crawler
