// Package model defines the data structures shared by the crawler, the
// report writers and the crawl history database.
//
// This package contains the following main types:
//   - PageResult: The outcome of processing a single URL
//   - CrawlReport: The immutable summary produced when a crawl session ends
//   - Termination: Why a crawl session stopped
//   - PageInfo: Page metadata persisted by an analyzer
//   - Comparison: The difference between two crawls of the same site
//
// The models are kept in their own package so that crawler, report and
// database can share them without import cycles. All of them serialize to
// JSON for report output and database storage.
package model
