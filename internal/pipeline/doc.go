// Package pipeline runs a crawl and everything that follows it.
//
// A Job carries one start URL through a Pipeline of Steps:
//
//	CrawlStep    runs a crawler session and stores the report on the job
//	ReportStep   writes crawl_report.json, crawl_report.html and README.md
//	PersistStep  saves the report to the history database
//
// BatchProcessor runs one pipeline per start URL with bounded concurrency
// using errgroup, keeping the results in input order.
package pipeline
