package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/pagecrawler/internal/model"
)

// Writer outputs crawl reports in one format.
type Writer interface {
	// Write outputs a crawl report.
	Write(report *model.CrawlReport) (int, error)

	// WriteComparison outputs the difference between two crawls.
	WriteComparison(cmp *model.Comparison) (int, error)
}

// MultiWriter writes to several Writers in order and stops at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter returns a Writer that writes to all writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every writer and returns the total bytes.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteComparison outputs the comparison to every writer.
func (m *MultiWriter) WriteComparison(cmp *model.Comparison) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteComparison(cmp)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// terminationLabel turns "budget_exhausted" into "Budget Exhausted".
func terminationLabel(t model.Termination) string {
	return cases.Title(language.English).String(strings.ReplaceAll(t.String(), "_", " "))
}

// truncateString shortens s to maxLen bytes, ending in "..." when cut.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

const timeLayout = "2006-01-02 15:04:05 MST"
