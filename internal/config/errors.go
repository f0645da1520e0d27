package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers can match them with errors.Is.
var (
	// ErrNoTarget is returned when no start URL is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one start URL")

	// ErrInvalidMaxDepth is returned when the depth budget is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidSkipRecent is returned when --skip-recent is negative.
	ErrInvalidSkipRecent = errors.New("invalid skip-recent duration: must be non-negative")

	// ErrUnknownAnalyzer is returned for an analyzer name other than
	// "http" or "browser".
	ErrUnknownAnalyzer = errors.New("unknown analyzer: must be \"http\" or \"browser\"")

	// ErrConflictingProxy is returned when --tor and --proxy are combined.
	ErrConflictingProxy = errors.New("conflicting proxy options: --tor and --proxy cannot be used together")

	// ErrInvalidPattern is wrapped by CompilePatterns for every regular
	// expression that does not compile.
	ErrInvalidPattern = errors.New("invalid URL pattern")
)
