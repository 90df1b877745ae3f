package runner

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/pipeline"
)

func TestSiteDirRelative(t *testing.T) {
	cfg := &config.Config{
		Project: config.ProjectConfig{SourceDir: "/work/repo"},
		Docs:    config.DocsConfig{SiteDir: "site"},
	}
	assert.Equal(t, "/work/repo/site", SiteDir(cfg))
}

func TestSiteDirAbsolute(t *testing.T) {
	cfg := &config.Config{
		Project: config.ProjectConfig{SourceDir: "/work/repo"},
		Docs:    config.DocsConfig{SiteDir: "/tmp/out"},
	}
	assert.Equal(t, "/tmp/out", SiteDir(cfg))
}

func TestToRunRecord(t *testing.T) {
	state := &pipeline.RunState{
		RunID:     "run-1",
		StartedAt: time.Now(),
		Env:       map[string]string{pipeline.EnvDevVersion: "3.8.0"},
		Results: []pipeline.StepResult{
			{Step: pipeline.StepExtractVersion, Outcome: pipeline.OutcomeSuccess, Duration: time.Second},
			{Step: pipeline.StepInstallToolchain, Outcome: pipeline.OutcomeFailure, Duration: 2 * time.Second, Err: errors.New("pip exploded")},
			{Step: pipeline.StepGenerateDocs, Outcome: pipeline.OutcomeSkipped},
		},
	}

	rec := toRunRecord(state, errors.New("pip exploded"))

	assert.Equal(t, "run-1", rec.ID)
	assert.Equal(t, "3.8.0", rec.Version)
	assert.Equal(t, "failed", rec.Outcome)
	assert.Equal(t, 3*time.Second, rec.Duration)
	require.Len(t, rec.Steps, 3)
	assert.Equal(t, "pip exploded", rec.Steps[1].Error)
	assert.Empty(t, rec.Steps[0].Error)
	assert.Equal(t, "skipped", rec.Steps[2].Outcome)
}

func TestToRunRecordSuccess(t *testing.T) {
	state := &pipeline.RunState{
		RunID: "run-2",
		Env:   map[string]string{},
	}
	rec := toRunRecord(state, nil)
	assert.Equal(t, "success", rec.Outcome)
	assert.Empty(t, rec.Steps)
}
