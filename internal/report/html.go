package report

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io"
	"sync"

	"github.com/nao1215/pagecrawler/internal/model"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var loadTemplate = sync.OnceValues(func() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/report.html.tmpl")
})

// ErrComparisonNotSupported is returned by writers with no comparison view.
var ErrComparisonNotSupported = errors.New("comparison output is not supported by this writer")

// HTMLWriter outputs a standalone HTML page.
type HTMLWriter struct {
	baseWriter
	version string
}

// NewHTMLWriter returns an HTMLWriter writing to output.
func NewHTMLWriter(output io.Writer, version string) *HTMLWriter {
	return &HTMLWriter{baseWriter: newBaseWriter(output), version: version}
}

type htmlData struct {
	Report      *model.CrawlReport
	Version     string
	Started     string
	Termination string
	Succeeded   int
}

// Write renders the report page.
func (w *HTMLWriter) Write(report *model.CrawlReport) (int, error) {
	tmpl, err := loadTemplate()
	if err != nil {
		return 0, err
	}

	// Render to a buffer first so a template error never leaves half a page.
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, htmlData{
		Report:      report,
		Version:     w.version,
		Started:     report.StartedAt.Format(timeLayout),
		Termination: terminationLabel(report.Termination),
		Succeeded:   report.SucceededCount(),
	}); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// WriteComparison is not supported; comparisons are a terminal feature.
func (w *HTMLWriter) WriteComparison(*model.Comparison) (int, error) {
	return 0, ErrComparisonNotSupported
}
