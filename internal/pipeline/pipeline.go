package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/pagemirror/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each one seeing what earlier steps
// recorded on the run.
type Step interface {
	// Do executes the step. A returned error is fatal for the run;
	// per-resource problems belong in the run's result instead.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// deferred steps run after steps, even when a step failed or the
	// context was cancelled.
	deferred []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The last error is kept on the run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:    make([]Step, 0),
		deferred: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddDeferredStep registers a step that runs once the regular steps are
// done, whatever their outcome. Its errors are logged and never recorded
// on the run.
func (p *Pipeline) AddDeferredStep(step Step) {
	p.deferred = append(p.deferred, step)
}

// Execute runs all pipeline steps in sequence, then the deferred steps.
//
// The context is checked before each step; steps handle their own
// cancellation once started. Returns the first error encountered if
// continueOnError is false.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	err := p.execute(ctx, run)
	run.FinishedAt = time.Now()

	// Deferred steps still need a usable context after cancellation.
	deferredCtx := context.WithoutCancel(ctx)
	for _, step := range p.deferred {
		if derr := step.Do(deferredCtx, run); derr != nil {
			p.logger.Warn("deferred step failed",
				"step", step.Name(),
				"run", run.ID,
				"error", derr,
			)
			continue
		}
		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	return err
}

func (p *Pipeline) execute(ctx context.Context, run *model.Run) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			run.Cancelled = true
			run.Error = ctx.Err()
			run.ErrorMessage = ctx.Err().Error()
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"url", run.URL,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", run.URL,
				"error", err,
			)

			run.Error = err
			run.ErrorMessage = err.Error()

			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"url", run.URL,
			)
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of regular steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order,
// deferred steps last.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps)+len(p.deferred))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.deferred {
		names = append(names, step.Name())
	}
	return names
}
