package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pagecrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagecrawler",
		Short: "Breadth-first website crawler with per-page artifacts",
		Long: `pagecrawler crawls websites breadth-first from one or more start URLs.

Every analyzed page is stored in its own directory (raw markup, text
snapshot, page metadata) and each crawl produces JSON, HTML and Markdown
reports. Crawl history is kept in a local database so later crawls of the
same site can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
