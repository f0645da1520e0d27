package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/pagecrawler/internal/model"
)

// File names written next to a crawl's page directories.
const (
	JSONFileName     = "crawl_report.json"
	HTMLFileName     = "crawl_report.html"
	MarkdownFileName = "README.md"
)

// WriteFiles writes the JSON, HTML and Markdown reports into dir and
// returns the paths it wrote.
func WriteFiles(dir string, report *model.CrawlReport, version string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	outputs := []struct {
		name   string
		writer func(io.Writer) Writer
	}{
		{JSONFileName, func(f io.Writer) Writer { return NewFullJSONWriter(f, version, WithPrettyPrint()) }},
		{HTMLFileName, func(f io.Writer) Writer { return NewHTMLWriter(f, version) }},
		{MarkdownFileName, func(f io.Writer) Writer { return NewMarkdownWriter(f) }},
	}

	written := make([]string, 0, len(outputs))
	for _, o := range outputs {
		path := filepath.Join(dir, o.name)
		if err := writeFile(path, report, o.writer); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, report *model.CrawlReport, newWriter func(io.Writer) Writer) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if _, err := newWriter(f).Write(report); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
