// Package report renders crawl reports and crawl comparisons.
//
// Writers:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter / FullJSONWriter: JSON for tools
//   - MarkdownWriter: GitHub flavored Markdown, also used for README.md
//   - HTMLWriter: a standalone HTML page
//
// All writers implement Writer and can be combined with MultiWriter.
// WriteFiles writes the report files that accompany a crawl's output
// directory.
package report
