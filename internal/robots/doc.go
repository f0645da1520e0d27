// Package robots implements a robots.txt admission gate for the crawler.
//
// Agent satisfies crawler.Gate: it fetches and caches /robots.txt per host
// and answers whether a URL may be crawled. Fetch errors fail open so an
// unreachable robots.txt never stops a crawl.
package robots
