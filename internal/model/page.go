package model

import "time"

// PageResult records what happened to a single URL during a crawl.
// Exactly one PageResult exists per processed URL and it is never modified
// after the session records it.
type PageResult struct {
	// URL is the absolute URL that was processed.
	URL string `json:"url"`

	// Depth is the link distance from the start URL (start URL is 0).
	Depth int `json:"depth"`

	// OutputPath is the directory allocated for the analyzer's artifacts.
	OutputPath string `json:"output_path"`

	// SequenceNumber is the 1-based processing order within the session.
	SequenceNumber int `json:"sequence_number"`

	// Title is the page title, when the analyzer or extractor found one.
	Title string `json:"title,omitempty"`

	// Failed is true when the analyzer returned an error for this URL.
	Failed bool `json:"failed"`

	// Error holds the analyzer error text for failed pages.
	Error string `json:"error,omitempty"`

	// AnalyzedAt is when processing of this URL finished.
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// PageInfo is the metadata an analyzer writes next to the raw markup
// (page_info.json). It is informational only; the crawler never reads it.
type PageInfo struct {
	URL         string    `json:"url"`
	FinalURL    string    `json:"final_url,omitempty"`
	StatusCode  int       `json:"status_code,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	LinkCount   int       `json:"link_count"`
	FormCount   int       `json:"form_count"`
	ImageCount  int       `json:"image_count"`
	Size        int       `json:"size"`
	Hash        string    `json:"hash"`
	Analyzer    string    `json:"analyzer"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// MaxPageSize is the default upper bound on a page body an analyzer reads.
const MaxPageSize = 10 * 1024 * 1024 // 10 MB
