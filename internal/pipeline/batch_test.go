package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/pagecrawler/internal/config"
	"github.com/nao1215/pagecrawler/internal/model"
)

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("default settings", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, nil)
		if bp.concurrency != config.DefaultBatchSize {
			t.Errorf("expected concurrency %d, got %d", config.DefaultBatchSize, bp.concurrency)
		}
		if job := bp.jobFactory("https://example.com/"); job.StartURL != "https://example.com/" {
			t.Errorf("unexpected default job: %+v", job)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, nil, WithConcurrency(0))
		if bp.concurrency != config.DefaultBatchSize {
			t.Errorf("expected default concurrency, got %d", bp.concurrency)
		}
		bp = NewBatchProcessor(func() *Pipeline { return New() }, nil, WithConcurrency(2))
		if bp.concurrency != 2 {
			t.Errorf("expected concurrency 2, got %d", bp.concurrency)
		}
	})
}

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns jobs in input order", func(t *testing.T) {
		t.Parallel()

		factory := func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "crawl", doFunc: func(_ context.Context, job *Job) error {
				job.Report = &model.CrawlReport{StartURL: job.StartURL}
				return nil
			}})
			return p
		}
		urls := []string{"https://a.example/", "https://b.example/", "https://c.example/"}

		bp := NewBatchProcessor(factory, nil, WithConcurrency(3), WithBatchLogger(discardLogger()))
		jobs, err := bp.ProcessBatch(t.Context(), urls)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(jobs) != len(urls) {
			t.Fatalf("expected %d jobs, got %d", len(urls), len(jobs))
		}
		for i, job := range jobs {
			if job.StartURL != urls[i] || job.Report.StartURL != urls[i] {
				t.Errorf("job %d: expected %s, got %s", i, urls[i], job.StartURL)
			}
		}
	})

	t.Run("uses job factory", func(t *testing.T) {
		t.Parallel()

		jobFactory := func(u string) *Job {
			return NewJob(u, config.SiteConfig{Depth: intPtr(3)})
		}
		var sawDepth atomic.Int32
		factory := func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "check", doFunc: func(_ context.Context, job *Job) error {
				if job.Site.Depth != nil {
					sawDepth.Store(int32(*job.Site.Depth))
				}
				return nil
			}})
			return p
		}

		bp := NewBatchProcessor(factory, jobFactory, WithBatchLogger(discardLogger()))
		if _, err := bp.ProcessBatch(t.Context(), []string{"https://example.com/"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sawDepth.Load() != 3 {
			t.Errorf("expected site depth 3, got %d", sawDepth.Load())
		}
	})

	t.Run("failed job does not stop others", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("unreachable")
		factory := func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "crawl", doFunc: func(_ context.Context, job *Job) error {
				if job.StartURL == "https://bad.example/" {
					return stepErr
				}
				return nil
			}})
			return p
		}

		bp := NewBatchProcessor(factory, nil, WithConcurrency(1), WithBatchLogger(discardLogger()))
		jobs, err := bp.ProcessBatch(t.Context(), []string{"https://bad.example/", "https://good.example/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(jobs[0].Err(), stepErr) {
			t.Errorf("expected first job to fail, got %v", jobs[0].Err())
		}
		if jobs[1].Failed() {
			t.Errorf("expected second job to succeed, got %v", jobs[1].Err())
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var (
			mu      sync.Mutex
			running int
			peak    int
		)
		factory := func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *Job) error {
				mu.Lock()
				running++
				peak = max(peak, running)
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			}})
			return p
		}
		urls := []string{"https://a.example/", "https://b.example/", "https://c.example/", "https://d.example/", "https://e.example/"}

		bp := NewBatchProcessor(factory, nil, WithConcurrency(2), WithBatchLogger(discardLogger()))
		if _, err := bp.ProcessBatch(t.Context(), urls); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak > 2 {
			t.Errorf("expected at most 2 concurrent jobs, got %d", peak)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		bp := NewBatchProcessor(func() *Pipeline { return New(WithLogger(discardLogger())) }, nil, WithBatchLogger(discardLogger()))
		jobs, err := bp.ProcessBatch(ctx, []string{"https://example.com/"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if jobs[0] != nil {
			t.Error("expected job not to start")
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, nil, WithBatchLogger(discardLogger()))
		jobs, err := bp.ProcessBatch(t.Context(), nil)
		if err != nil || len(jobs) != 0 {
			t.Errorf("expected no jobs and no error, got %d, %v", len(jobs), err)
		}
	})
}
