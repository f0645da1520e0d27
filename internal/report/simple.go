package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/pagecrawler/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs plain text for terminals. It uses no colors so the
// output can be piped or redirected as is.
type SimpleWriter struct {
	baseWriter

	// verbose lists every page instead of only the failed ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every processed page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter returns a SimpleWriter writing to output.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl report.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "CRAWL REPORT")
	fmt.Fprintf(&sb, "Start URL:      %s\n", report.StartURL)
	fmt.Fprintf(&sb, "Session:        %s\n", report.SessionID)
	fmt.Fprintf(&sb, "Started:        %s\n", report.StartedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Duration:       %.2fs\n", report.DurationSeconds)
	fmt.Fprintf(&sb, "Limits:         depth %d, %d pages\n", report.MaxDepth, report.MaxPages)
	fmt.Fprintf(&sb, "Status:         %s\n", terminationLabel(report.Termination))
	if report.OutputRoot != "" {
		fmt.Fprintf(&sb, "Output:         %s\n", report.OutputRoot)
	}
	sb.WriteString("\n")

	writeSection(&sb, "SUMMARY")
	fmt.Fprintf(&sb, "  PAGES:      %d\n", report.PagesCrawled)
	fmt.Fprintf(&sb, "  SUCCEEDED:  %d\n", report.SucceededCount())
	fmt.Fprintf(&sb, "  FAILED:     %d\n", report.FailedCount)
	fmt.Fprintf(&sb, "  VISITED:    %d\n", report.VisitedCount)
	fmt.Fprintf(&sb, "  RATE:       %.2f pages/s\n", report.PagesPerSecond)
	sb.WriteString("\n")

	if w.verbose && len(report.Pages) > 0 {
		writeSection(&sb, "PAGES")
		for _, p := range report.Pages {
			mark := "[OK]  "
			if p.Failed {
				mark = "[FAIL]"
			}
			fmt.Fprintf(&sb, "  %s %4d d%d %s\n", mark, p.SequenceNumber, p.Depth, p.URL)
			if p.Title != "" {
				fmt.Fprintf(&sb, "              %s\n", truncateString(p.Title, 60))
			}
		}
		sb.WriteString("\n")
	}

	if len(report.Failed) > 0 {
		writeSection(&sb, "FAILED URLS")
		for _, u := range report.Failed {
			fmt.Fprintf(&sb, "  - %s\n", u)
		}
		if report.FailedCount > len(report.Failed) {
			fmt.Fprintf(&sb, "  ... and %d more\n", report.FailedCount-len(report.Failed))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	return io.WriteString(w.output, sb.String())
}

// WriteComparison outputs what changed between two crawls.
func (w *SimpleWriter) WriteComparison(cmp *model.Comparison) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "CRAWL COMPARISON")
	fmt.Fprintf(&sb, "Start URL:      %s\n", cmp.StartURL)
	fmt.Fprintf(&sb, "Previous:       %s (%d pages)\n", cmp.OldSessionID, cmp.OldPageCount)
	fmt.Fprintf(&sb, "Latest:         %s (%d pages)\n", cmp.NewSessionID, cmp.NewPageCount)
	fmt.Fprintf(&sb, "Failed delta:   %+d\n\n", cmp.FailedDelta)

	if !cmp.HasChanges() {
		sb.WriteString("No changes detected.\n")
		return io.WriteString(w.output, sb.String())
	}

	for _, s := range []struct {
		title string
		urls  []string
	}{
		{"NEW PAGES", cmp.NewPages},
		{"MISSING PAGES", cmp.MissingPages},
		{"NEWLY FAILED", cmp.NewlyFailed},
		{"RECOVERED", cmp.Recovered},
	} {
		if len(s.urls) == 0 {
			continue
		}
		writeSection(&sb, fmt.Sprintf("%s (%d)", s.title, len(s.urls)))
		for _, u := range s.urls {
			fmt.Fprintf(&sb, "  - %s\n", u)
		}
		sb.WriteString("\n")
	}
	return io.WriteString(w.output, sb.String())
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	pad := (ruleWidth - len(title)) / 2
	sb.WriteString(strings.Repeat(" ", max(pad, 0)))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
