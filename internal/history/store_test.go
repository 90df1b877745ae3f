package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndQueryRuns(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history", "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().Truncate(time.Second)

	require.NoError(t, store.RecordRun(ctx, RunRecord{
		ID:       "run-1",
		Version:  "3.8.0",
		Outcome:  "success",
		Started:  base.Add(-time.Hour),
		Duration: 90 * time.Second,
		Steps: []StepRecord{
			{Step: "extract-version", Outcome: "success", Duration: time.Second},
			{Step: "install-toolchain", Outcome: "success", Duration: 30 * time.Second},
			{Step: "generate-docs", Outcome: "success", Duration: 40 * time.Second},
			{Step: "publish", Outcome: "success", Duration: 19 * time.Second},
		},
	}))
	require.NoError(t, store.RecordRun(ctx, RunRecord{
		ID:       "run-2",
		Version:  "",
		Outcome:  "failed",
		Started:  base,
		Duration: 2 * time.Second,
		Steps: []StepRecord{
			{Step: "extract-version", Outcome: "failure", Duration: 2 * time.Second, Error: "no version token"},
		},
	}))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "failed", runs[0].Outcome)
	require.Len(t, runs[0].Steps, 1)
	assert.Equal(t, "no version token", runs[0].Steps[0].Error)

	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, "3.8.0", runs[1].Version)
	require.Len(t, runs[1].Steps, 4)
	assert.Equal(t, "extract-version", runs[1].Steps[0].Step)
	assert.Equal(t, 90*time.Second, runs[1].Duration)
}

func TestRecentRunsLimit(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordRun(ctx, RunRecord{
			ID:      string(rune('a' + i)),
			Outcome: "success",
			Started: time.Now().Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := store.RecentRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestRecentRunsEmpty(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestDuplicateRunIDRejected(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	run := RunRecord{ID: "run-1", Outcome: "success", Started: time.Now()}
	require.NoError(t, store.RecordRun(ctx, run))
	require.Error(t, store.RecordRun(ctx, run))
}
