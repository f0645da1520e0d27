package crawler

import (
	"slices"

	"github.com/nao1215/pagecrawler/internal/model"
)

// generateReport aggregates the terminal session state. It runs exactly once
// per session, whatever made the loop exit.
func (sess *Session) generateReport() *model.CrawlReport {
	duration := sess.terminatedAt.Sub(sess.startedAt)

	failed := sess.frontier.Failed().Sorted()
	if len(failed) > model.MaxFailedSample {
		failed = failed[:model.MaxFailedSample]
	}

	pages := slices.Clone(sess.results)
	slices.SortStableFunc(pages, func(a, b model.PageResult) int {
		return a.SequenceNumber - b.SequenceNumber
	})

	return &model.CrawlReport{
		SessionID:       sess.id,
		StartURL:        sess.startURL,
		MaxDepth:        sess.spider.maxDepth,
		MaxPages:        sess.spider.maxPages,
		PagesCrawled:    sess.pagesProcessed,
		VisitedCount:    sess.frontier.Visited().Len(),
		FailedCount:     sess.frontier.Failed().Len(),
		StartedAt:       sess.startedAt,
		FinishedAt:      sess.terminatedAt,
		DurationSeconds: max(duration.Seconds(), 0),
		PagesPerSecond:  model.Throughput(sess.pagesProcessed, duration),
		Termination:     sess.exitState.termination(),
		OutputRoot:      sess.alloc.Base(),
		Pages:           pages,
		Failed:          failed,
	}
}
