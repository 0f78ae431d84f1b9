// Package orchestrator executes a planner.Plan's step DAG, handling
// dependency gating, per-step timeouts, retry-with-backoff on
// transient errors, and critical-step abort.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evoagent/core/pkg/planner"
)

// StepOutput is what an Executor returns for a single step.
type StepOutput struct {
	Output    any
	Artifacts []string
}

// Executor runs a single plan step and returns its output.
type Executor func(ctx context.Context, step planner.Step) (StepOutput, error)

// StepResult records the outcome of running (or skipping) one step.
type StepResult struct {
	StepID    string        `json:"step_id"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped"`
	Output    any           `json:"output,omitempty"`
	Artifacts []string      `json:"artifacts,omitempty"`
	Error     string        `json:"error,omitempty"`
	Retries   int           `json:"retries"`
	Duration  time.Duration `json:"duration"`
}

// Result aggregates the outcome of executing an entire plan.
type Result struct {
	Success          bool          `json:"success"`
	CompletedSteps   int           `json:"completed_steps"`
	TotalSteps       int           `json:"total_steps"`
	StepResults      []StepResult  `json:"step_results"`
	AggregatedOutput string        `json:"aggregated_output"`
	Artifacts        []string      `json:"artifacts,omitempty"`
	Errors           []string      `json:"errors,omitempty"`
	Duration         time.Duration `json:"duration"`
}

// Config tunes retry and timeout behavior.
type Config struct {
	StepTimeout time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
}

// SetDefaults fills zero-valued fields with sane production defaults.
func (c *Config) SetDefaults() {
	if c.StepTimeout <= 0 {
		c.StepTimeout = 5 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
}

// Orchestrator executes plans against an injected Executor.
type Orchestrator struct {
	executor Executor
	cfg      Config
	logger   *slog.Logger
}

// New creates an Orchestrator. executor must not be nil.
func New(executor Executor, cfg Config, logger *slog.Logger) *Orchestrator {
	cfg.SetDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{executor: executor, cfg: cfg, logger: logger}
}

// Execute walks plan.Steps in order, dispatching each step whose
// dependencies have all completed. Steps with unmet dependencies are
// marked skipped. A failed critical step aborts the remaining plan.
func (o *Orchestrator) Execute(ctx context.Context, plan *planner.Plan) (*Result, error) {
	start := time.Now()
	completed := make(map[string]bool, len(plan.Steps))
	result := &Result{TotalSteps: len(plan.Steps)}
	aborted := false

	for i, step := range plan.Steps {
		if aborted {
			result.StepResults = append(result.StepResults, StepResult{StepID: step.ID, Skipped: true})
			continue
		}
		if !dependenciesSatisfied(step, completed) {
			result.StepResults = append(result.StepResults, StepResult{StepID: step.ID, Skipped: true})
			o.logger.Warn("skipping step with unmet dependencies", "step_id", step.ID)
			continue
		}

		sr := o.runStepWithRetry(ctx, step)
		result.StepResults = append(result.StepResults, sr)

		if sr.Success {
			completed[step.ID] = true
			result.CompletedSteps++
			result.Artifacts = append(result.Artifacts, sr.Artifacts...)
			continue
		}

		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", step.ID, sr.Error))
		if isCritical(i, step.Description) {
			o.logger.Error("critical step failed, aborting plan", "step_id", step.ID, "error", sr.Error)
			aborted = true
		}
	}

	result.Success = !aborted && result.CompletedSteps == result.TotalSteps
	result.Duration = time.Since(start)
	result.AggregatedOutput = summarize(result.StepResults)
	return result, nil
}

func dependenciesSatisfied(step planner.Step, completed map[string]bool) bool {
	for _, dep := range step.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// runStepWithRetry dispatches a single step, retrying on classified
// retryable errors with a linear backoff scaled by the error's
// backoff factor, up to cfg.MaxRetries retries (cfg.MaxRetries+1 attempts).
func (o *Orchestrator) runStepWithRetry(ctx context.Context, step planner.Step) StepResult {
	stepStart := time.Now()
	var lastErr error
	var lastOutput StepOutput

	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
		out, err := o.executor(stepCtx, step)
		cancel()

		if err == nil {
			return StepResult{
				StepID:    step.ID,
				Success:   true,
				Output:    out.Output,
				Artifacts: out.Artifacts,
				Retries:   attempt,
				Duration:  time.Since(stepStart),
			}
		}

		lastErr = err
		lastOutput = out
		retryable, factor := classify(err.Error())
		if !retryable || attempt == o.cfg.MaxRetries {
			break
		}

		o.logger.Warn("step failed, retrying", "step_id", step.ID, "attempt", attempt+1, "error", err)
		select {
		case <-time.After(o.cfg.BaseBackoff * time.Duration(factor) * time.Duration(attempt+1)):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = o.cfg.MaxRetries
		}
	}

	return StepResult{
		StepID:   step.ID,
		Success:  false,
		Output:   lastOutput.Output,
		Error:    lastErr.Error(),
		Retries:  o.cfg.MaxRetries,
		Duration: time.Since(stepStart),
	}
}

func summarize(results []StepResult) string {
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	return fmt.Sprintf("%d/%d steps completed", ok, len(results))
}
