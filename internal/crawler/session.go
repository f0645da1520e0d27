package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/pagecrawler/internal/model"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle means the frontier is seeded and the loop has not started.
	StateIdle State = iota
	// StateRunning means the traversal loop is active.
	StateRunning
	// StateDraining means the loop exited because the frontier was empty.
	StateDraining
	// StateBudgetExhausted means the loop exited because maxPages was reached.
	StateBudgetExhausted
	// StateStopped means the loop exited because the context was cancelled.
	StateStopped
	// StateTerminated means the report was generated; the session is read-only.
	StateTerminated
)

// String returns the state name.
func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateBudgetExhausted:
		return "budget_exhausted"
	case StateStopped:
		return "stopped"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

func (st State) termination() model.Termination {
	switch st {
	case StateDraining:
		return model.TerminationDrained
	case StateBudgetExhausted:
		return model.TerminationBudgetExhausted
	case StateStopped:
		return model.TerminationStopped
	default:
		return model.TerminationNone
	}
}

// Session holds the mutable state of one crawl. It is created by
// Spider.NewSession, driven by Run exactly once and not safe for
// concurrent use.
type Session struct {
	id       string
	spider   *Spider
	startURL string
	policy   *Policy
	frontier *Frontier
	alloc    *Allocator
	logger   *slog.Logger

	state          State
	exitState      State
	pagesProcessed int
	results        []model.PageResult
	startedAt      time.Time
	terminatedAt   time.Time
	report         *model.CrawlReport
}

func newSession(s *Spider, startURL string, policy *Policy) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		spider:   s,
		startURL: startURL,
		policy:   policy,
		frontier: NewFrontier(startURL),
		alloc:    NewAllocator(s.outputDir),
		logger:   s.logger.With(slog.String("crawl_id", id), slog.String("start_url", startURL)),
		state:    StateIdle,
		results:  make([]model.PageResult, 0),
	}
}

// ID returns the session identifier.
func (sess *Session) ID() string {
	return sess.id
}

// State returns the current lifecycle state.
func (sess *Session) State() State {
	return sess.state
}

// ExitState returns the state the loop exited with, or StateIdle while the
// session has not finished.
func (sess *Session) ExitState() State {
	return sess.exitState
}

// Frontier exposes the session frontier for inspection.
func (sess *Session) Frontier() *Frontier {
	return sess.frontier
}

// Run executes the traversal loop and returns the report. Calling Run again
// returns the same report without crawling.
func (sess *Session) Run(ctx context.Context) *model.CrawlReport {
	if sess.state == StateTerminated {
		return sess.report
	}

	sess.state = StateRunning
	sess.startedAt = sess.spider.clock.Now()
	sess.logger.Info("crawl started",
		slog.Int("max_depth", sess.spider.maxDepth),
		slog.Int("max_pages", sess.spider.maxPages))

	sess.screenSeed(ctx)
	for {
		if st := sess.nextState(ctx); st != StateRunning {
			sess.state = st
			break
		}

		entry, _ := sess.frontier.Pop()
		if sess.frontier.IsVisited(entry.URL) {
			continue
		}
		sess.frontier.MarkVisited(entry.URL)

		failed := sess.process(ctx, entry)
		sess.reportProgress(entry, failed)
		sess.pause(ctx)
	}

	sess.exitState = sess.state
	sess.terminatedAt = sess.spider.clock.Now()
	sess.report = sess.generateReport()
	sess.state = StateTerminated

	sess.logger.Info("crawl finished",
		slog.String("termination", sess.report.Termination.String()),
		slog.Int("pages", sess.report.PagesCrawled),
		slog.Int("failed", sess.report.FailedCount),
		slog.Float64("duration_seconds", sess.report.DurationSeconds))

	return sess.report
}

// nextState decides whether the loop continues.
func (sess *Session) nextState(ctx context.Context) State {
	switch {
	case sess.frontier.Len() == 0:
		return StateDraining
	case sess.pagesProcessed >= sess.spider.maxPages:
		return StateBudgetExhausted
	case ctx.Err() != nil:
		return StateStopped
	default:
		return StateRunning
	}
}

// process analyzes one entry and enqueues its admitted links.
// It reports whether the analyzer failed.
func (sess *Session) process(ctx context.Context, entry Entry) bool {
	outputDir := sess.alloc.Allocate(entry.URL, sess.spider.clock.Now())

	// The page in flight always completes; cancellation is observed at the
	// top of the loop.
	actx := context.WithoutCancel(ctx)
	if sess.spider.analysisTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, sess.spider.analysisTimeout)
		defer cancel()
	}

	analysis, err := sess.spider.analyzer.Analyze(actx, entry.URL, outputDir)
	sess.pagesProcessed++

	result := model.PageResult{
		URL:            entry.URL,
		Depth:          entry.Depth,
		OutputPath:     outputDir,
		SequenceNumber: sess.pagesProcessed,
	}

	if err != nil {
		sess.frontier.MarkFailed(entry.URL)
		result.Failed = true
		result.Error = err.Error()
		result.AnalyzedAt = sess.spider.clock.Now()
		sess.results = append(sess.results, result)
		sess.logger.Warn("page analysis failed",
			slog.String("url", entry.URL),
			slog.Int("depth", entry.Depth),
			slog.String("error", err.Error()))
		return true
	}
	if analysis == nil {
		analysis = &Analysis{OutputDir: outputDir}
	}
	result.Title = analysis.Title

	if entry.Depth < sess.spider.maxDepth {
		ext := sess.extract(entry.URL, outputDir, analysis)
		if result.Title == "" {
			result.Title = ext.Title
		}
		sess.enqueue(ctx, ext.Links, entry.Depth+1)
	}

	result.AnalyzedAt = sess.spider.clock.Now()
	sess.results = append(sess.results, result)
	sess.logger.Debug("page analyzed",
		slog.String("url", entry.URL),
		slog.Int("depth", entry.Depth),
		slog.String("output", outputDir))
	return false
}

// extract reads back the persisted markup. Unreadable markup yields no links.
func (sess *Session) extract(pageURL, outputDir string, analysis *Analysis) *Extraction {
	var (
		ext *Extraction
		err error
	)
	if analysis.MarkupPath != "" {
		ext, err = ExtractFile(pageURL, analysis.MarkupPath)
	} else {
		dir := analysis.OutputDir
		if dir == "" {
			dir = outputDir
		}
		ext, err = ExtractFromDir(pageURL, dir)
	}
	if err != nil {
		sess.logger.Debug("link extraction failed",
			slog.String("url", pageURL),
			slog.String("error", err.Error()))
	}
	return ext
}

// screenSeed drops the start URL from the frontier when the gate refuses
// it, so the session drains without analyzing anything.
func (sess *Session) screenSeed(ctx context.Context) {
	if sess.spider.gate == nil {
		return
	}
	if sess.spider.gate.Allowed(ctx, sess.startURL) {
		return
	}
	for sess.frontier.Len() > 0 {
		sess.frontier.Pop()
	}
	sess.logger.Warn("start URL rejected", slog.String("reason", "disallowed by gate"))
}

// enqueue screens links and pushes the admitted ones at depth.
func (sess *Session) enqueue(ctx context.Context, links []string, depth int) {
	visited, failed := sess.frontier.Visited(), sess.frontier.Failed()
	for _, link := range links {
		if v := sess.policy.Evaluate(link, visited, failed); v != VerdictAccept {
			sess.logger.Debug("link rejected", slog.String("url", link), slog.String("reason", v.String()))
			continue
		}
		if sess.spider.gate != nil && !sess.spider.gate.Allowed(ctx, link) {
			sess.logger.Debug("link rejected", slog.String("url", link), slog.String("reason", "disallowed by gate"))
			continue
		}
		sess.frontier.Push(link, depth)
	}
}

// reportProgress recomputes the advisory progress estimate.
func (sess *Session) reportProgress(entry Entry, failed bool) {
	totalWork := min(sess.spider.maxPages, sess.frontier.Visited().Len()+sess.frontier.Len())
	ratio := 0.0
	if totalWork > 0 {
		ratio = float64(sess.pagesProcessed) / float64(totalWork)
	}
	p := Progress{
		SessionID: sess.id,
		URL:       entry.URL,
		Depth:     entry.Depth,
		Failed:    failed,
		Processed: sess.pagesProcessed,
		TotalWork: totalWork,
		Ratio:     ratio,
	}
	sess.logger.Debug("crawl progress",
		slog.Int("processed", p.Processed),
		slog.Int("total_work", p.TotalWork),
		slog.Float64("ratio", p.Ratio))
	if sess.spider.progress != nil {
		sess.spider.progress(p)
	}
}

// pause sleeps for the politeness delay unless nothing is left to do or
// ctx is cancelled.
func (sess *Session) pause(ctx context.Context) {
	if sess.spider.delay <= 0 {
		return
	}
	if sess.frontier.Len() == 0 || sess.pagesProcessed >= sess.spider.maxPages {
		return
	}
	select {
	case <-ctx.Done():
	case <-sess.spider.clock.After(sess.spider.delay):
	}
}
