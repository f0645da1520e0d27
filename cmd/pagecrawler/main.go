// Package main provides the entry point for the pagecrawler CLI.
//
// pagecrawler crawls a website breadth-first from one or more start URLs,
// stores every page it analyzes in its own directory and writes a crawl
// report per site.
//
// Usage:
//
//	pagecrawler crawl <start-url>
//	pagecrawler history --list <start-url>
//
// See --help for all available options.
package main

// main is the entry point for pagecrawler.
func main() {
	Execute()
}
