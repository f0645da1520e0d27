package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagecrawler/internal/config"
	"github.com/nao1215/pagecrawler/internal/database"
	"github.com/nao1215/pagecrawler/internal/model"
	"github.com/nao1215/pagecrawler/internal/report"
)

// historyFormat selects how a comparison is printed.
type historyFormat int

const (
	historyText historyFormat = iota
	historyJSON
	historyMarkdown
)

// NewHistoryCmd creates the history command.
// It reads crawl results stored in the database by the crawl command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [start-url]",
		Short: "Show stored crawls and compare them",
		Long: `History lists stored crawls and compares the two latest crawls of a site.

The comparison shows pages that appeared, pages that disappeared, pages
that started or stopped failing, and the change in the failed page count.

Examples:
  # Compare the latest two crawls of a site
  pagecrawler history https://example.com/

  # List all crawls of a site
  pagecrawler history --list https://example.com/

  # List every stored crawl
  pagecrawler history --list

  # Compare the latest crawl with a specific earlier one
  pagecrawler history --with-session-id <session-id> https://example.com/

  # List all crawled sites
  pagecrawler history --list-sites

  # Output the comparison as JSON
  pagecrawler history --json https://example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List stored crawls (of the given start URL, or all)")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List every start URL in the database")
	cmd.Flags().StringP("with-session-id", "i", "",
		"Compare the latest crawl with this session (use --list to see IDs)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison in Markdown format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	listSites, err := flags.GetBool("list-sites")
	if err != nil {
		return err
	}
	list, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	sessionID, err := flags.GetString("with-session-id")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	// Validate before opening the database so a bad invocation leaves no lock.
	var startURL string
	if len(args) == 1 {
		startURL, err = normalizeTarget(args[0])
		if err != nil {
			return err
		}
	} else if !listSites && !list {
		return errors.New("start URL is required (use --list-sites to see crawled sites)")
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case listSites:
		return listCrawledSites(ctx, db, out)
	case list:
		return listCrawlHistory(ctx, db, startURL, out)
	}

	format := historyText
	if jsonOutput {
		format = historyJSON
	} else if markdownOutput {
		format = historyMarkdown
	}
	return runComparison(ctx, db, startURL, sessionID, format, out)
}

// listCrawledSites prints every start URL that has stored crawls.
func listCrawledSites(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	sites, err := db.ListStartURLs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No crawled sites found in the database.")
		fmt.Fprintln(out, "\nUse 'pagecrawler crawl <start-url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'pagecrawler history --list <start-url>' to see the crawls of a site.")
	return nil
}

// listCrawlHistory prints the stored sessions of startURL, or all sessions
// when startURL is empty.
func listCrawlHistory(ctx context.Context, db *database.CrawlDB, startURL string, out io.Writer) error {
	sessions, err := db.ListSessions(ctx, startURL)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(sessions) == 0 {
		if startURL == "" {
			fmt.Fprintln(out, "No crawls found in the database.")
		} else {
			fmt.Fprintf(out, "No crawl history found for %s\n", startURL)
		}
		return nil
	}

	if startURL == "" {
		fmt.Fprintf(out, "Crawl history (%d crawls):\n\n", len(sessions))
	} else {
		fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", startURL, len(sessions))
	}
	fmt.Fprintf(out, "  %-36s  %-19s  %6s  %6s  %-16s  %s\n", "Session", "Started", "Pages", "Failed", "Termination", "Start URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 110))
	for _, s := range sessions {
		fmt.Fprintf(out, "  %-36s  %-19s  %6d  %6d  %-16s  %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.PagesCrawled,
			s.Failed,
			s.Termination,
			s.StartURL,
		)
	}

	if startURL != "" {
		fmt.Fprintln(out, "\nUse 'pagecrawler history <start-url>' to compare the latest two crawls.")
		fmt.Fprintln(out, "Use 'pagecrawler history --with-session-id <id> <start-url>' to compare with a specific crawl.")
	}
	return nil
}

// runComparison compares the latest crawl of startURL with the previous
// one, or with sessionID when given.
func runComparison(ctx context.Context, db *database.CrawlDB, startURL, sessionID string, format historyFormat, out io.Writer) error {
	reports, err := db.GetLatestCrawlReports(ctx, startURL, 2)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(reports) == 0 {
		return fmt.Errorf("no crawl history found for %s", startURL)
	}

	newer := reports[0]
	var older *model.CrawlReport
	switch {
	case sessionID != "":
		older, err = db.GetCrawlReport(ctx, sessionID)
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("session %s not found", sessionID)
		}
		if err != nil {
			return fmt.Errorf("failed to get session %s: %w", sessionID, err)
		}
		if older.StartURL != startURL {
			return fmt.Errorf("session %s belongs to %s, not %s", sessionID, older.StartURL, startURL)
		}
		if older.SessionID == newer.SessionID {
			return fmt.Errorf("session %s is the latest crawl; choose an earlier one", sessionID)
		}
	case len(reports) < 2:
		return fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(reports))
	default:
		older = reports[1]
	}

	cmp := model.CompareReports(older, newer)

	var w report.Writer
	switch format {
	case historyJSON:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case historyMarkdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}
	_, err = w.WriteComparison(cmp)
	return err
}
