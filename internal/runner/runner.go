// Package runner wires one pipeline run together: workspace, publisher,
// engine, run history and notifications. The CLI and the daemon both go
// through Execute so a scheduled run behaves exactly like a manual one.
package runner

import (
	"context"
	"path/filepath"

	"log/slog"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/history"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/metrics"
	"git.home.luguber.info/inful/docship/internal/notify"
	"git.home.luguber.info/inful/docship/internal/pipeline"
	"git.home.luguber.info/inful/docship/internal/publish"
	"git.home.luguber.info/inful/docship/internal/workspace"
)

// Options control a single run.
type Options struct {
	Push     bool
	Recorder metrics.Recorder // nil means no metrics
	Store    history.Store    // nil means no run history
	Notifier *notify.Notifier // nil means no notifications
}

// Execute runs the full pipeline once. History writes and notifications are
// best-effort and never change the run outcome.
func Execute(ctx context.Context, cfg *config.Config, opts Options) (*pipeline.RunState, error) {
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	ws := workspace.NewManager("")
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Workspace cleanup failed", logfields.Error(err))
		}
	}()

	pub := publish.NewPublisher(cfg.Publish, SiteDir(cfg), ws).WithRecorder(recorder)
	steps := pipeline.BuildSteps(cfg, pub, opts.Push)
	state, runErr := pipeline.NewEngine(steps).WithRecorder(recorder).Run(ctx)

	if opts.Store != nil {
		if err := opts.Store.RecordRun(ctx, toRunRecord(state, runErr)); err != nil {
			slog.Warn("Failed to record run history", logfields.RunID(state.RunID), logfields.Error(err))
		}
	}
	if err := opts.Notifier.PublishRun(state, runErr); err != nil {
		slog.Warn("Failed to publish run event", logfields.RunID(state.RunID), logfields.Error(err))
	}

	return state, runErr
}

// SiteDir resolves the generator output directory against the project
// source directory.
func SiteDir(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Docs.SiteDir) {
		return cfg.Docs.SiteDir
	}
	return filepath.Join(cfg.Project.SourceDir, cfg.Docs.SiteDir)
}

func toRunRecord(state *pipeline.RunState, runErr error) history.RunRecord {
	rec := history.RunRecord{
		ID:      state.RunID,
		Version: state.DevVersion(),
		Outcome: "success",
		Started: state.StartedAt,
	}
	if runErr != nil {
		rec.Outcome = "failed"
	}
	for _, r := range state.Results {
		step := history.StepRecord{
			Step:     string(r.Step),
			Outcome:  string(r.Outcome),
			Duration: r.Duration,
		}
		if r.Err != nil {
			step.Error = r.Err.Error()
		}
		rec.Steps = append(rec.Steps, step)
		rec.Duration += r.Duration
	}
	return rec
}
