// Package pipeline executes the docship step sequence. Steps run strictly
// sequentially in declaration order; the first failure halts the run and
// later steps never execute. There is no retry and no compensating action.
package pipeline

import (
	"context"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/metrics"
)

// StepName identifies a pipeline step.
type StepName string

const (
	StepExtractVersion   StepName = "extract-version"
	StepInstallToolchain StepName = "install-toolchain"
	StepGenerateDocs     StepName = "generate-docs"
	StepPublish          StepName = "publish"
)

// EnvDevVersion is the environment key carrying the derived dev version
// from the extract step to later steps.
const EnvDevVersion = "DEV_VERSION"

// RunState carries the mutable state of one pipeline run. It is owned by a
// single goroutine for the run's duration.
type RunState struct {
	RunID     string
	StartedAt time.Time
	Env       map[string]string
	Results   []StepResult
}

// DevVersion returns the derived dev version, or "" before extraction.
func (s *RunState) DevVersion() string {
	return s.Env[EnvDevVersion]
}

// StepOutcome is the recorded result of a step.
type StepOutcome string

const (
	OutcomeSuccess StepOutcome = "success"
	OutcomeFailure StepOutcome = "failure"
	OutcomeSkipped StepOutcome = "skipped"
)

// StepResult records one step execution.
type StepResult struct {
	Step     StepName
	Outcome  StepOutcome
	Duration time.Duration
	Err      error
}

// Step is one unit of pipeline work.
type Step interface {
	Name() StepName
	Execute(ctx context.Context, state *RunState) error
}

// Engine runs steps in order.
type Engine struct {
	steps    []Step
	recorder metrics.Recorder
}

// NewEngine creates an engine for the given steps.
func NewEngine(steps []Step) *Engine {
	return &Engine{steps: steps, recorder: metrics.NoopRecorder{}}
}

// WithRecorder injects a metrics recorder (fluent helper).
func (e *Engine) WithRecorder(r metrics.Recorder) *Engine {
	if r != nil {
		e.recorder = r
	}
	return e
}

// Run executes the pipeline. On failure the returned state still holds the
// results recorded so far (failed step last, remaining steps skipped).
func (e *Engine) Run(ctx context.Context) (*RunState, error) {
	state := &RunState{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Env:       make(map[string]string),
	}

	slog.Info("Starting pipeline run", logfields.RunID(state.RunID), slog.Int("steps", len(e.steps)))

	var failure error
	for i, step := range e.steps {
		if failure != nil {
			state.Results = append(state.Results, StepResult{Step: step.Name(), Outcome: OutcomeSkipped})
			e.recorder.IncStepResult(string(step.Name()), metrics.ResultSkipped)
			continue
		}

		slog.Info("Running step", logfields.RunID(state.RunID), logfields.Step(string(step.Name())))
		start := time.Now()
		err := step.Execute(ctx, state)
		elapsed := time.Since(start)

		result := StepResult{Step: step.Name(), Duration: elapsed}
		if err != nil {
			result.Outcome = OutcomeFailure
			result.Err = err
			failure = err
			e.recorder.IncStepResult(string(step.Name()), metrics.ResultFailure)
			slog.Error("Step failed, halting pipeline",
				logfields.RunID(state.RunID),
				logfields.Step(string(step.Name())),
				logfields.Error(err),
				slog.Int("remaining_steps", len(e.steps)-i-1))
		} else {
			result.Outcome = OutcomeSuccess
			e.recorder.IncStepResult(string(step.Name()), metrics.ResultSuccess)
			slog.Info("Step completed",
				logfields.RunID(state.RunID),
				logfields.Step(string(step.Name())),
				logfields.DurationMS(float64(elapsed.Milliseconds())))
		}
		e.recorder.ObserveStepDuration(string(step.Name()), elapsed)
		state.Results = append(state.Results, result)
	}

	total := time.Since(state.StartedAt)
	e.recorder.ObserveRunDuration(total)

	if failure != nil {
		e.recorder.IncRunOutcome("failed")
		return state, failure
	}
	e.recorder.IncRunOutcome("success")
	slog.Info("Pipeline run completed",
		logfields.RunID(state.RunID),
		logfields.Version(state.DevVersion()),
		logfields.DurationMS(float64(total.Milliseconds())))
	return state, nil
}
