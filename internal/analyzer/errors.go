package analyzer

import "errors"

var (
	// ErrUnexpectedStatus is returned when a page is served with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML is returned when a page is not an HTML document.
	ErrNotHTML = errors.New("content is not HTML")

	// ErrBrowserClosed is returned by BrowserAnalyzer.Analyze after Close.
	ErrBrowserClosed = errors.New("browser analyzer is closed")
)
