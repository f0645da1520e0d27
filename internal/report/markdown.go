package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pagecrawler/internal/model"
)

// maxMarkdownPages bounds the page table; the JSON report has all pages.
const maxMarkdownPages = 200

// MarkdownWriter outputs reports as GitHub flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter returns a MarkdownWriter writing to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the crawl report.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeOutcome(md, report)
	w.writeDepths(md, report)
	w.writePages(md, report)
	w.writeFailed(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + report.StartURL + "`"},
			{"Session", "`" + report.SessionID + "`"},
			{"Started", report.StartedAt.Format(timeLayout)},
			{"Duration", fmt.Sprintf("%.2fs", report.DurationSeconds)},
			{"Limits", fmt.Sprintf("depth %d, %d pages", report.MaxDepth, report.MaxPages)},
			{"Pages Crawled", strconv.Itoa(report.PagesCrawled)},
			{"Failed", strconv.Itoa(report.FailedCount)},
			{"Throughput", fmt.Sprintf("%.2f pages/s", report.PagesPerSecond)},
			{"Termination", terminationLabel(report.Termination)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, report *model.CrawlReport) {
	succeeded := report.SucceededCount()
	if report.PagesCrawled > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Page Outcomes"),
			piechart.WithShowData(true),
		)
		if succeeded > 0 {
			chart.LabelAndIntValue("Succeeded", uint64(succeeded))
		}
		if report.FailedCount > 0 {
			chart.LabelAndIntValue("Failed", uint64(report.FailedCount))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case report.PagesCrawled == 0:
		md.Cautionf("No pages were crawled from %s.", report.StartURL)
	case report.Termination == model.TerminationStopped:
		md.Warningf("The crawl was stopped early after %d page(s).", report.PagesCrawled)
	case report.FailedCount > 0:
		md.Importantf("%d of %d page(s) could not be analyzed.", report.FailedCount, report.PagesCrawled)
	case report.Termination == model.TerminationBudgetExhausted:
		md.Note("The page budget was reached before every reachable page was visited.")
	default:
		md.Tip("Every reachable page within the depth limit was crawled.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeDepths(md *markdown.Markdown, report *model.CrawlReport) {
	depths := report.PagesAtDepth()
	if len(depths) == 0 {
		return
	}

	keys := make([]int, 0, len(depths))
	for d := range depths {
		keys = append(keys, d)
	}
	slices.Sort(keys)

	rows := make([][]string, 0, len(keys))
	for _, d := range keys {
		rows = append(rows, []string{strconv.Itoa(d), strconv.Itoa(depths[d])})
	}

	md.H2("Pages per Depth")
	md.PlainText("")
	md.Table(markdown.TableSet{Header: []string{"Depth", "Pages"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")
	if len(report.Pages) == 0 {
		md.PlainText("No pages were processed.")
		md.PlainText("")
		return
	}

	pages := report.Pages
	if len(pages) > maxMarkdownPages {
		pages = pages[:maxMarkdownPages]
	}

	rows := make([][]string, len(pages))
	for i, p := range pages {
		status := "ok"
		if p.Failed {
			status = "failed"
		}
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			strconv.Itoa(p.SequenceNumber),
			strconv.Itoa(p.Depth),
			truncateString(p.URL, 80),
			truncateString(title, 50),
			status,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Depth", "URL", "Title", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(report.Pages) > maxMarkdownPages {
		md.PlainTextf("%d more page(s) are listed in crawl_report.json.", len(report.Pages)-maxMarkdownPages)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFailed(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Failed) == 0 {
		return
	}
	md.H2("Failed URLs")
	md.PlainText("")
	md.BulletList(report.Failed...)
	md.PlainText("")

	for _, p := range report.Pages {
		if p.Failed && p.Error != "" {
			md.Details(p.URL, p.Error)
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pagecrawler](https://github.com/nao1215/pagecrawler)*")
}

// WriteComparison outputs what changed between two crawls.
func (w *MarkdownWriter) WriteComparison(cmp *model.Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + cmp.StartURL + "`"},
			{"Previous Session", "`" + cmp.OldSessionID + "`"},
			{"Latest Session", "`" + cmp.NewSessionID + "`"},
			{"Pages", fmt.Sprintf("%d -> %d", cmp.OldPageCount, cmp.NewPageCount)},
			{"Failed Delta", fmt.Sprintf("%+d", cmp.FailedDelta)},
		},
	})
	md.PlainText("")

	if !cmp.HasChanges() {
		md.Tip("No changes between the two crawls.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	sections := []struct {
		title string
		urls  []string
	}{
		{"New Pages", cmp.NewPages},
		{"Missing Pages", cmp.MissingPages},
		{"Newly Failed", cmp.NewlyFailed},
		{"Recovered", cmp.Recovered},
	}
	for _, s := range sections {
		if len(s.urls) == 0 {
			continue
		}
		md.H2(fmt.Sprintf("%s (%d)", s.title, len(s.urls)))
		md.PlainText("")
		md.BulletList(s.urls...)
		md.PlainText("")
	}
	return len(md.String()), md.Build()
}
