package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pagecrawler/internal/config"
)

// BatchProcessor runs one pipeline per start URL concurrently.
type BatchProcessor struct {
	// pipelineFactory builds a fresh pipeline for every job.
	pipelineFactory func() *Pipeline

	// jobFactory builds the job for a start URL.
	jobFactory func(startURL string) *Job

	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many pipelines run at once. Values below 1 are
// ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor returns a processor. jobFactory may be nil, in which
// case jobs carry no site configuration.
func NewBatchProcessor(pipelineFactory func() *Pipeline, jobFactory func(string) *Job, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		jobFactory:      jobFactory,
		concurrency:     config.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.jobFactory == nil {
		bp.jobFactory = func(u string) *Job { return &Job{StartURL: u} }
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs every start URL and returns the jobs in input order.
// A failed job does not stop the others; its errors are on the job.
// Jobs that never started because ctx was cancelled are nil and the
// context error is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, startURLs []string) ([]*Job, error) {
	bp.logger.Info("starting batch",
		"total", len(startURLs),
		"concurrency", bp.concurrency,
	)
	started := time.Now()

	// Each goroutine writes only its own index.
	jobs := make([]*Job, len(startURLs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, startURL := range startURLs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("crawling site", "start_url", startURL, "index", i+1, "total", len(startURLs))

			job := bp.jobFactory(startURL)
			if err := bp.pipelineFactory().Execute(ctx, job); err != nil {
				bp.logger.Warn("site failed", "start_url", startURL, "error", err)
			}
			jobs[i] = job
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete", "total", len(startURLs), "elapsed", time.Since(started))
	return jobs, err
}
