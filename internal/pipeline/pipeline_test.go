package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/pagecrawler/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, job *Job) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, job *Job) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, job)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("expected continueOnError to be false by default")
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if p.StepCount() != 3 {
		t.Fatalf("expected 3 steps, got %d", p.StepCount())
	}
	names := p.StepNames()
	want := []string{"first", "second", "third"}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("step %d: expected %q, got %q", i, name, names[i])
		}
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *Job) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New()
		p.AddSteps(record("a"), record("b"), record("c"))

		job := NewJob("https://example.com/", zeroSite())
		if err := p.Execute(t.Context(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 3 || order[0] != "a" || order[2] != "c" {
			t.Errorf("unexpected order: %v", order)
		}
		if len(job.Steps) != 3 {
			t.Errorf("expected 3 recorded steps, got %v", job.Steps)
		}
		if job.Failed() {
			t.Errorf("expected job to succeed, got %v", job.Err())
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("boom")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *Job) error { return stepErr }}
		after := &mockStep{name: "after"}

		p := New()
		p.AddSteps(failing, after)

		job := NewJob("https://example.com/", zeroSite())
		err := p.Execute(t.Context(), job)
		if !errors.Is(err, stepErr) {
			t.Fatalf("expected step error, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("expected later step not to run")
		}
		if !job.Failed() || !errors.Is(job.Err(), stepErr) {
			t.Errorf("expected job to carry the step error, got %v", job.Err())
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		first := errors.New("first")
		second := errors.New("second")
		p := New(WithContinueOnError(true))
		p.AddSteps(
			&mockStep{name: "one", doFunc: func(context.Context, *Job) error { return first }},
			&mockStep{name: "two", doFunc: func(context.Context, *Job) error { return second }},
		)

		job := NewJob("https://example.com/", zeroSite())
		if err := p.Execute(t.Context(), job); err != nil {
			t.Fatalf("expected nil error with continueOnError, got %v", err)
		}
		if len(job.Errors) != 2 {
			t.Fatalf("expected 2 errors, got %d", len(job.Errors))
		}
		combined := job.Err()
		if !errors.Is(combined, first) || !errors.Is(combined, second) {
			t.Errorf("expected combined error to wrap both, got %v", combined)
		}
	})

	t.Run("skipped job stops remaining steps", func(t *testing.T) {
		t.Parallel()

		skip := &mockStep{name: "skip", doFunc: func(_ context.Context, job *Job) error {
			job.Skipped = true
			return nil
		}}
		after := &mockStep{name: "after"}

		p := New()
		p.AddSteps(skip, after)

		job := NewJob("https://example.com/", zeroSite())
		if err := p.Execute(t.Context(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if after.callCount != 0 {
			t.Error("expected step after skip not to run")
		}
	})

	t.Run("cancelled before report returns context error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		step := &mockStep{name: "crawl"}
		p := New()
		p.AddStep(step)

		job := NewJob("https://example.com/", zeroSite())
		err := p.Execute(ctx, job)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("expected step not to run")
		}
	})

	t.Run("cancelled after report keeps running detached", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())

		crawl := &mockStep{name: "crawl", doFunc: func(_ context.Context, job *Job) error {
			job.Report = &model.CrawlReport{SessionID: "s1", StartedAt: time.Now()}
			cancel()
			return nil
		}}
		var sawCancelled bool
		persist := &mockStep{name: "persist", doFunc: func(ctx context.Context, _ *Job) error {
			sawCancelled = ctx.Err() != nil
			return nil
		}}

		p := New()
		p.AddSteps(crawl, persist)

		job := NewJob("https://example.com/", zeroSite())
		if err := p.Execute(ctx, job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if persist.callCount != 1 {
			t.Fatal("expected persist step to run after cancellation")
		}
		if sawCancelled {
			t.Error("expected persist step to receive a context without cancellation")
		}
	})
}
