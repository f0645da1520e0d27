package pipeline

import (
	"context"
	"log/slog"
)

// Step is one stage of a Pipeline.
type Step interface {
	// Do runs the step. Returning an error records it on the job; whether
	// later steps still run depends on the pipeline.
	Do(ctx context.Context, job *Job) error

	// Name is used in logs and Job.Steps.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running later steps after a failed one. By
// default the pipeline stops at the first error.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New returns an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step against job.
//
// Cancellation is checked before each step. Once a crawl report exists the
// remaining steps still run, detached from cancellation, so a stopped crawl
// is written out and stored like any other.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		if job.Skipped {
			p.logger.Debug("job skipped, not running step", "step", step.Name(), "start_url", job.StartURL)
			return nil
		}

		if err := ctx.Err(); err != nil {
			if job.Report == nil {
				p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", err)
				job.Errors = append(job.Errors, err)
				return err
			}
			ctx = context.WithoutCancel(ctx)
		}

		p.logger.Info("executing step", "step", step.Name(), "start_url", job.StartURL)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "start_url", job.StartURL, "error", err)
			job.Errors = append(job.Errors, err)
			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed", "step", step.Name(), "start_url", job.StartURL)
		}
		job.Steps = append(job.Steps, step.Name())
	}
	return nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
