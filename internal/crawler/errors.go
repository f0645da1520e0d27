package crawler

import "errors"

var (
	// ErrInvalidStartURL is returned when the start URL cannot be parsed or
	// is not an absolute http(s) URL.
	ErrInvalidStartURL = errors.New("invalid start URL: must be an absolute http or https URL")

	// ErrNoAnalyzer is returned when a Spider is used without an Analyzer.
	ErrNoAnalyzer = errors.New("no page analyzer configured")

	// ErrMarkupNotFound is returned when no persisted markup exists below an
	// output directory.
	ErrMarkupNotFound = errors.New("raw markup not found")
)
