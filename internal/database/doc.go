// Package database stores crawl history in SQLite.
//
// Each finished crawl is one row in sessions, holding the summary counts
// and the full report as JSON, plus one row per processed URL in pages.
// The history command uses this to list past crawls and compare the two
// latest crawls of a site.
//
// modernc.org/sqlite is a pure Go driver, so the binary stays CGO free.
// The database is opened with a single connection since SQLite allows
// one writer at a time; WAL mode keeps reads from blocking on it.
package database
