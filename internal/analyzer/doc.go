// Package analyzer provides the Page Analyzers the crawler hands pages to.
//
// Every analyzer writes the same layout into the output directory it is
// given:
//
//	raw/page.html    markup as served (HTTPAnalyzer) or as rendered (BrowserAnalyzer)
//	raw/page.txt     visible text with all markup stripped
//	page_info.json   model.PageInfo metadata
//	screenshot.png   full page capture (BrowserAnalyzer only)
//
// The crawler only depends on raw/page.html; the rest is for people
// reading the crawl output.
package analyzer
